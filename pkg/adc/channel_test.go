package adc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDriver returns queued codes, repeating the last one.
type fakeDriver struct {
	codes []int
	err   error
	calls int
}

func (f *fakeDriver) ReadRaw(channel int) (int, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	if len(f.codes) == 0 {
		return 0, nil
	}
	code := f.codes[0]
	if len(f.codes) > 1 {
		f.codes = f.codes[1:]
	}
	return code, nil
}

// fakeCalibrated adds a calibration curve of mvPerCode millivolts per code.
type fakeCalibrated struct {
	fakeDriver
	mvPerCode int
	calErr    error
}

func (f *fakeCalibrated) RawToMillivolts(channel, raw int) (int, error) {
	if f.calErr != nil {
		return 0, f.calErr
	}
	return raw * f.mvPerCode, nil
}

func newTestChannel(t *testing.T, d Driver, cfg ChannelConfig) *Channel {
	t.Helper()
	ch, err := NewChannel(d, cfg, 0)
	require.NoError(t, err)
	return ch
}

func TestNewChannel_ReferenceFromAttenuation(t *testing.T) {
	tests := []struct {
		att  Attenuation
		want float64
	}{
		{Atten0dB, 3.3},
		{Atten2_5dB, 3.3},
		{Atten6dB, 2.15},
		{Atten12dB, 3.3},
	}

	for _, tt := range tests {
		t.Run(string(tt.att), func(t *testing.T) {
			ch := newTestChannel(t, &fakeDriver{}, ChannelConfig{Name: "x", Attenuation: tt.att})
			assert.Equal(t, tt.want, ch.Config().ReferenceVoltage)
			assert.Equal(t, DefaultFullScaleCode, ch.Config().FullScaleCode)
		})
	}

	_, err := NewChannel(&fakeDriver{}, ChannelConfig{Attenuation: "db99"}, 0)
	assert.Error(t, err)

	_, err = NewChannel(nil, ChannelConfig{Attenuation: Atten12dB}, 0)
	assert.Error(t, err)
}

func TestChannel_MovingAverageWindow(t *testing.T) {
	// 20 samples of increasing code; only the last 16 contribute.
	codes := make([]int, 20)
	for i := range codes {
		codes[i] = (i + 1) * 100
	}
	ch := newTestChannel(t, &fakeDriver{codes: codes}, ChannelConfig{Name: "tds", Attenuation: Atten12dB})

	var last Sample
	for i := 0; i < len(codes); i++ {
		var err error
		last, err = ch.Sample()
		require.NoError(t, err)
	}

	var sum float64
	for _, c := range codes[4:] {
		sum += float64(c) * 3.3 / 4095
	}
	assert.InDelta(t, sum/16, last.Voltage, 1e-12)
	assert.InDelta(t, 2000*3.3/4095.0, last.Instant, 1e-12)
	assert.InDelta(t, last.Voltage, ch.Average(), 1e-12)
}

func TestChannel_ZeroFilledStart(t *testing.T) {
	ch := newTestChannel(t, &fakeDriver{codes: []int{2047}}, ChannelConfig{Name: "ph", Attenuation: Atten12dB})

	s, err := ch.Sample()
	require.NoError(t, err)
	instant := 2047 * 3.3 / 4095
	assert.InDelta(t, instant, s.Instant, 1e-12)
	assert.InDelta(t, instant/16, s.Voltage, 1e-12)

	for i := 1; i < 16; i++ {
		s, err = ch.Sample()
		require.NoError(t, err)
	}
	assert.InDelta(t, instant, s.Voltage, 1e-12)

	ch.Reset()
	assert.Equal(t, 0.0, ch.Average())
}

func TestChannel_OverVoltageSkipsHistory(t *testing.T) {
	d := &fakeDriver{codes: []int{1000, 4095, 1000}}
	ch := newTestChannel(t, d, ChannelConfig{Name: "temp", Attenuation: Atten12dB})

	_, err := ch.Sample()
	require.NoError(t, err)
	before := ch.Average()

	s, err := ch.Sample()
	assert.True(t, errors.Is(err, ErrOutOfRange))
	assert.InDelta(t, 3.3, s.Instant, 1e-12)
	assert.Equal(t, s.Instant, s.Voltage)
	assert.Equal(t, before, ch.Average())

	s, err = ch.Sample()
	require.NoError(t, err)
	assert.InDelta(t, 2*1000*3.3/4095/16, s.Voltage, 1e-12)
}

func TestChannel_OverVoltageBoundary(t *testing.T) {
	// 0.99 * 4095 = 4054.05: 4054 is accepted, 4055 rejected.
	ch := newTestChannel(t, &fakeDriver{codes: []int{4054, 4055}}, ChannelConfig{Name: "b", Attenuation: Atten12dB})

	_, err := ch.Sample()
	assert.NoError(t, err)
	_, err = ch.Sample()
	assert.True(t, errors.Is(err, ErrOutOfRange))
}

func TestChannel_DriverFailure(t *testing.T) {
	ch := newTestChannel(t, &fakeDriver{err: errors.New("bus error")}, ChannelConfig{Name: "tds", Attenuation: Atten12dB})

	_, err := ch.Sample()
	assert.True(t, errors.Is(err, ErrConversion))
	assert.Contains(t, err.Error(), "bus error")
	assert.Equal(t, 0.0, ch.Average())
}

func TestChannel_Calibration(t *testing.T) {
	d := &fakeCalibrated{fakeDriver: fakeDriver{codes: []int{1000}}, mvPerCode: 1}

	t.Run("used when requested", func(t *testing.T) {
		ch := newTestChannel(t, d, ChannelConfig{Name: "c", Attenuation: Atten12dB, Calibrate: true})
		assert.True(t, ch.Calibrated())

		s, err := ch.Sample()
		require.NoError(t, err)
		assert.True(t, s.Calibrated)
		assert.InDelta(t, 1.0, s.Instant, 1e-12)
	})

	t.Run("ignored when not requested", func(t *testing.T) {
		ch := newTestChannel(t, d, ChannelConfig{Name: "c", Attenuation: Atten12dB})
		assert.False(t, ch.Calibrated())

		s, err := ch.Sample()
		require.NoError(t, err)
		assert.False(t, s.Calibrated)
		assert.InDelta(t, 1000*3.3/4095, s.Instant, 1e-12)
	})

	t.Run("driver without calibration", func(t *testing.T) {
		ch := newTestChannel(t, &fakeDriver{}, ChannelConfig{Name: "c", Attenuation: Atten12dB, Calibrate: true})
		assert.False(t, ch.Calibrated())
	})

	t.Run("calibration failure", func(t *testing.T) {
		bad := &fakeCalibrated{fakeDriver: fakeDriver{codes: []int{10}}, calErr: errors.New("no efuse")}
		ch := newTestChannel(t, bad, ChannelConfig{Name: "c", Attenuation: Atten12dB, Calibrate: true})

		s, err := ch.Sample()
		assert.True(t, errors.Is(err, ErrCalibration))
		assert.Equal(t, 10, s.Raw)
	})
}

func TestChannel_NegativeClampsToZero(t *testing.T) {
	ch := newTestChannel(t, &fakeDriver{codes: []int{-12}}, ChannelConfig{Name: "n", Attenuation: Atten12dB})

	s, err := ch.Sample()
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.Instant)
	assert.Equal(t, 0.0, s.Voltage)
}
