package adc

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// MockChannel describes the simulated signal on one input.
type MockChannel struct {
	Channel int           `yaml:"channel"`
	Voltage float64       `yaml:"voltage"` // Mean voltage (V)
	Swing   float64       `yaml:"swing"`   // Peak deviation from Voltage (V)
	Period  time.Duration `yaml:"period"`  // Period of the slow drift
}

// MockConfig contains simulated ADC configuration.
type MockConfig struct {
	Reference     float64       `yaml:"reference"`       // Full-scale voltage (V)
	FullScaleCode int           `yaml:"full_scale_code"` // Largest raw code
	NoiseLevel    float64       `yaml:"noise_level"`     // Noise amplitude (V)
	FailEvery     int           `yaml:"fail_every"`      // Every Nth read fails, 0 disables
	Channels      []MockChannel `yaml:"channels"`
}

// DefaultMockConfig returns a simulation of a tank at room temperature.
func DefaultMockConfig() MockConfig {
	return MockConfig{
		Reference:     3.3,
		FullScaleCode: DefaultFullScaleCode,
		NoiseLevel:    0.002,
		Channels: []MockChannel{
			{Channel: 0, Voltage: 1.5, Swing: 0.05, Period: 5 * time.Minute},   // thermistor, ~20 °C
			{Channel: 1, Voltage: 0.05, Swing: 0.005, Period: 2 * time.Minute}, // TDS, ~470 ppm
			{Channel: 2, Voltage: 0.9, Swing: 0.02, Period: 3 * time.Minute},   // pH, ~6.7
		},
	}
}

// Mock simulates an analog front end for development without hardware.
type Mock struct {
	cfg MockConfig
	now func() time.Time

	mu        sync.Mutex
	startTime time.Time
	reads     int
}

var (
	_ Driver     = (*Mock)(nil)
	_ Calibrator = (*Mock)(nil)
)

// NewMock creates a simulated driver. A nil cfg selects DefaultMockConfig.
func NewMock(cfg *MockConfig) *Mock {
	if cfg == nil {
		def := DefaultMockConfig()
		cfg = &def
	}
	c := *cfg
	if c.Reference <= 0 {
		c.Reference = 3.3
	}
	if c.FullScaleCode <= 0 {
		c.FullScaleCode = DefaultFullScaleCode
	}
	return &Mock{
		cfg:       c,
		now:       time.Now,
		startTime: time.Now(),
	}
}

// ReadRaw returns the simulated code for channel.
func (m *Mock) ReadRaw(channel int) (int, error) {
	m.mu.Lock()
	m.reads++
	reads := m.reads
	elapsed := m.now().Sub(m.startTime)
	m.mu.Unlock()

	if m.cfg.FailEvery > 0 && reads%m.cfg.FailEvery == 0 {
		return 0, fmt.Errorf("simulated conversion failure on channel %d", channel)
	}

	var ch *MockChannel
	for i := range m.cfg.Channels {
		if m.cfg.Channels[i].Channel == channel {
			ch = &m.cfg.Channels[i]
			break
		}
	}
	if ch == nil {
		return 0, fmt.Errorf("channel %d not simulated", channel)
	}

	v := ch.Voltage
	if ch.Period > 0 {
		v += ch.Swing * math.Sin(2*math.Pi*elapsed.Seconds()/ch.Period.Seconds())
	}
	t := float64(elapsed.Nanoseconds())
	v += (math.Sin(t*0.001+float64(channel)) + math.Cos(t*0.0013)) * m.cfg.NoiseLevel * 0.5

	code := v / m.cfg.Reference * float64(m.cfg.FullScaleCode)
	code = math.Max(0, math.Min(code, float64(m.cfg.FullScaleCode)))
	return int(code), nil
}

// RawToMillivolts converts with the ideal transfer function of the simulation.
func (m *Mock) RawToMillivolts(channel, raw int) (int, error) {
	if raw < 0 || raw > m.cfg.FullScaleCode {
		return 0, fmt.Errorf("code %d outside [0, %d]", raw, m.cfg.FullScaleCode)
	}
	return int(math.Round(float64(raw) * m.cfg.Reference * 1000 / float64(m.cfg.FullScaleCode))), nil
}
