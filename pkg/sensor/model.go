package sensor

import (
	"errors"
	"fmt"
	"math"
)

// ErrRange is returned when a measurement lies outside the domain a model
// accepts.
var ErrRange = errors.New("sensor: value out of range")

const kelvinOffset = 273.15

// ThermistorParams configures the NTC divider and its Steinhart-Hart fit.
type ThermistorParams struct {
	RRef       float64 `yaml:"r_ref"`       // Divider reference resistor (Ω)
	VSupply    float64 `yaml:"v_supply"`    // Divider supply voltage (V)
	A          float64 `yaml:"a"`           // Steinhart-Hart A
	B          float64 `yaml:"b"`           // Steinhart-Hart B
	C          float64 `yaml:"c"`           // Steinhart-Hart C
	MinVoltage float64 `yaml:"min_voltage"` // Exclusive lower bound (V)
	MaxRatio   float64 `yaml:"max_ratio"`   // Exclusive upper bound as fraction of VSupply
}

// TDSParams is one calibration set for the conductivity probe.
type TDSParams struct {
	ECScale   float64 `yaml:"ec_scale"`   // K_scale: µS/cm per volt
	CalFactor float64 `yaml:"cal_factor"` // C: linear calibration of EC
	TempCoeff float64 `yaml:"temp_coeff"` // α: relative EC change per °C
	TDSFactor float64 `yaml:"tds_factor"` // K: ppm per µS/cm
	RefTemp   float64 `yaml:"ref_temp_c"` // Compensation reference (°C)
}

// PHParams is one calibration set for the pH probe.
type PHParams struct {
	Slope      float64 `yaml:"slope"`       // M: pH per volt
	Intercept  float64 `yaml:"intercept"`   // B
	TempCoeff  float64 `yaml:"temp_coeff"`  // pH per °C deviation from RefTemp
	RefTemp    float64 `yaml:"ref_temp_c"`  // Compensation reference (°C)
	MinVoltage float64 `yaml:"min_voltage"` // Inclusive valid band (V)
	MaxVoltage float64 `yaml:"max_voltage"`
}

// Level modes for the ultrasonic reading.
const (
	LevelModeDistance = "distance"
	LevelModeLevel    = "level"
)

// WaterLevelParams configures how a measured distance becomes a level.
type WaterLevelParams struct {
	Mode         string  `yaml:"mode"` // "distance" or "level"
	TankHeightCM float64 `yaml:"tank_height_cm"`
}

// DefaultThermistor returns the 10k NTC fit used on the reference board.
func DefaultThermistor() ThermistorParams {
	return ThermistorParams{
		RRef:       10000,
		VSupply:    3.3,
		A:          0.8999648402e-3,
		B:          2.494581846e-4,
		C:          2.002476456e-7,
		MinVoltage: 0.01,
		MaxRatio:   0.997,
	}
}

// TDSProfiles returns the built-in conductivity calibration sets.
func TDSProfiles() map[string]TDSParams {
	return map[string]TDSParams{
		// Grove/SEEED EC probe, 2 %/°C compensation.
		"seeed": {ECScale: 10000, CalFactor: 0.946, TempCoeff: 0.02, TDSFactor: 1.0, RefTemp: 25},
		// Plain voltage scaling without compensation.
		"legacy": {ECScale: 1667, CalFactor: 1, TempCoeff: 0, TDSFactor: 1.0, RefTemp: 25},
	}
}

// PHProfiles returns the built-in pH calibration sets.
func PHProfiles() map[string]PHParams {
	return map[string]PHParams{
		"two_point": {
			Slope: 7.425742574257425, Intercept: 0.04950495049504955,
			TempCoeff: -0.03, RefTemp: 25, MinVoltage: 0, MaxVoltage: 3.3,
		},
		"sen0161": {
			Slope: 3.5, Intercept: 0,
			TempCoeff: -0.03, RefTemp: 25, MinVoltage: 0, MaxVoltage: 3.3,
		},
	}
}

// Thermistor converts the divider voltage to degrees Celsius.
func Thermistor(v float64, p ThermistorParams) (float64, error) {
	if v <= p.MinVoltage || v >= p.VSupply*p.MaxRatio {
		return 0, fmt.Errorf("%w: thermistor voltage %.3fV", ErrRange, v)
	}
	r := ThermistorResistance(v, p)
	lnR := math.Log(r)
	tk := 1.0 / (p.A + p.B*lnR + p.C*lnR*lnR*lnR)
	return tk - kelvinOffset, nil
}

// ThermistorResistance returns the NTC resistance for divider voltage v.
func ThermistorResistance(v float64, p ThermistorParams) float64 {
	return p.RRef * (p.VSupply/v - 1.0)
}

// DissolvedSolids converts the probe voltage to ppm. Without a valid
// temperature in the snapshot the compensation factor is 1.
func DissolvedSolids(v float64, snap Set, p TDSParams) float64 {
	ecRaw := p.ECScale * v
	ecCal := p.CalFactor * ecRaw
	ecComp := ecCal
	if t, ok := snap.Temperature(); ok {
		ecComp = ecCal / (1.0 + p.TempCoeff*(t-p.RefTemp))
	}
	return p.TDSFactor * ecComp
}

// Acidity converts the probe voltage to pH, clamped to [0, 14].
func Acidity(v float64, snap Set, p PHParams) (float64, error) {
	if v < p.MinVoltage || v > p.MaxVoltage {
		return 0, fmt.Errorf("%w: pH voltage %.3fV outside [%.3f, %.3f]", ErrRange, v, p.MinVoltage, p.MaxVoltage)
	}
	ph := p.Slope*v + p.Intercept
	if t, ok := snap.Temperature(); ok {
		ph += p.TempCoeff * (t - p.RefTemp)
	}
	return math.Min(math.Max(ph, 0), 14), nil
}

// WaterLevel converts a measured distance to the reported value.
func WaterLevel(distanceCM float64, p WaterLevelParams) float64 {
	if p.Mode != LevelModeLevel {
		return distanceCM
	}
	level := p.TankHeightCM - distanceCM
	return math.Min(math.Max(level, 0), p.TankHeightCM)
}

// Model is a sensor model tagged by Kind. Only the parameter block matching
// Kind is used.
type Model struct {
	Kind       Kind
	Thermistor ThermistorParams
	TDS        TDSParams
	PH         PHParams
	Level      WaterLevelParams
}

// Compute maps a primary measurement (smoothed voltage, or distance in cm for
// WaterLevel) to the model's physical unit. It has no side effects.
func (m Model) Compute(primary float64, snap Set) (float64, error) {
	switch m.Kind {
	case Temperature:
		return Thermistor(primary, m.Thermistor)
	case TotalDissolvedSolids:
		return DissolvedSolids(primary, snap, m.TDS), nil
	case Acidity:
		return Acidity(primary, snap, m.PH)
	case WaterLevel:
		return WaterLevel(primary, m.Level), nil
	default:
		return 0, fmt.Errorf("sensor: unknown kind %v", m.Kind)
	}
}
