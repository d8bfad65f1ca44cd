package sensor

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withTemperature(t float64) Set {
	s := NewSet()
	s.Put(Temperature, t)
	return s
}

func TestThermistor_ReferenceComputation(t *testing.T) {
	p := DefaultThermistor()

	// Independent evaluation of the divider and Steinhart-Hart equation.
	r := 10000.0 * (3.3/1.5 - 1.0)
	lnR := math.Log(r)
	want := 1.0/(0.8999648402e-3+2.494581846e-4*lnR+2.002476456e-7*lnR*lnR*lnR) - 273.15

	assert.InDelta(t, 12000.0, ThermistorResistance(1.5, p), 1e-6)

	got, err := Thermistor(1.5, p)
	require.NoError(t, err)
	assert.InDelta(t, want, got, 0.01)
	assert.InDelta(t, 20.19, got, 0.01)
}

func TestThermistor_Range(t *testing.T) {
	p := DefaultThermistor()

	tests := []struct {
		name    string
		voltage float64
		wantErr bool
	}{
		{name: "at lower bound", voltage: 0.01, wantErr: true},
		{name: "just above lower bound", voltage: 0.011, wantErr: false},
		{name: "mid scale", voltage: 1.65, wantErr: false},
		{name: "just below upper bound", voltage: 3.29, wantErr: false},
		{name: "at upper bound", voltage: 3.3 * 0.997, wantErr: true},
		{name: "zero", voltage: 0, wantErr: true},
		{name: "supply", voltage: 3.3, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Thermistor(tt.voltage, p)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrRange))
				assert.Equal(t, 0.0, got)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDissolvedSolids(t *testing.T) {
	seeed := TDSProfiles()["seeed"]

	t.Run("reference temperature applies no compensation", func(t *testing.T) {
		got := DissolvedSolids(1.65, withTemperature(25), seeed)
		assert.InDelta(t, 1.0*0.946*10000*1.65, got, 1e-9)
	})

	t.Run("missing temperature disables compensation", func(t *testing.T) {
		got := DissolvedSolids(1.65, NewSet(), seeed)
		assert.InDelta(t, 0.946*10000*1.65, got, 1e-9)
	})

	t.Run("warmer water lowers compensated value", func(t *testing.T) {
		got := DissolvedSolids(1.0, withTemperature(30), seeed)
		assert.InDelta(t, 9460.0/1.1, got, 1e-9)
	})

	t.Run("legacy profile is plain scaling", func(t *testing.T) {
		got := DissolvedSolids(0.6, withTemperature(40), TDSProfiles()["legacy"])
		assert.InDelta(t, 1000.2, got, 1e-9)
	})
}

func TestAcidity(t *testing.T) {
	p := PHProfiles()["two_point"]

	t.Run("clamps high values to 14", func(t *testing.T) {
		// Slope chosen so the uncompensated value is 15.2.
		hot := PHParams{Slope: 15.2, Intercept: 0, TempCoeff: -0.03, RefTemp: 25, MinVoltage: 0, MaxVoltage: 3.3}
		got, err := Acidity(1.0, withTemperature(25), hot)
		require.NoError(t, err)
		assert.Equal(t, 14.0, got)
	})

	t.Run("clamps low values to 0", func(t *testing.T) {
		neg := PHParams{Slope: 1, Intercept: -3, TempCoeff: 0, RefTemp: 25, MinVoltage: 0, MaxVoltage: 3.3}
		got, err := Acidity(1.0, NewSet(), neg)
		require.NoError(t, err)
		assert.Equal(t, 0.0, got)
	})

	t.Run("temperature compensation", func(t *testing.T) {
		got, err := Acidity(1.0, withTemperature(35), p)
		require.NoError(t, err)
		assert.InDelta(t, 7.425742574257425+0.04950495049504955-0.3, got, 1e-9)
	})

	t.Run("voltage outside band", func(t *testing.T) {
		_, err := Acidity(3.31, NewSet(), p)
		assert.True(t, errors.Is(err, ErrRange))
		_, err = Acidity(-0.01, NewSet(), p)
		assert.True(t, errors.Is(err, ErrRange))
	})

	t.Run("band edges are valid", func(t *testing.T) {
		_, err := Acidity(0, NewSet(), p)
		assert.NoError(t, err)
		_, err = Acidity(3.3, NewSet(), p)
		assert.NoError(t, err)
	})
}

func TestWaterLevel(t *testing.T) {
	assert.Equal(t, 42.5, WaterLevel(42.5, WaterLevelParams{Mode: LevelModeDistance, TankHeightCM: 100}))
	assert.Equal(t, 57.5, WaterLevel(42.5, WaterLevelParams{Mode: LevelModeLevel, TankHeightCM: 100}))
	assert.Equal(t, 0.0, WaterLevel(120, WaterLevelParams{Mode: LevelModeLevel, TankHeightCM: 100}))
}

func TestModel_ComputeIsIdempotent(t *testing.T) {
	snap := withTemperature(21.5)
	models := []Model{
		{Kind: Temperature, Thermistor: DefaultThermistor()},
		{Kind: TotalDissolvedSolids, TDS: TDSProfiles()["seeed"]},
		{Kind: Acidity, PH: PHProfiles()["two_point"]},
		{Kind: WaterLevel, Level: WaterLevelParams{Mode: LevelModeLevel, TankHeightCM: 100}},
	}

	for _, m := range models {
		t.Run(m.Kind.String(), func(t *testing.T) {
			a, errA := m.Compute(1.234, snap)
			b, errB := m.Compute(1.234, snap)
			assert.Equal(t, errA, errB)
			assert.Equal(t, math.Float64bits(a), math.Float64bits(b))
		})
	}
}

func TestModel_UnknownKind(t *testing.T) {
	_, err := Model{Kind: NumKinds}.Compute(1, NewSet())
	assert.Error(t, err)
}
