package adc

import (
	"fmt"
	"sync"
)

// Sample is the outcome of one conversion.
type Sample struct {
	Raw        int     // Code returned by the driver
	Instant    float64 // Voltage of this conversion (V)
	Voltage    float64 // Moving average including this conversion (V)
	Calibrated bool    // Instant came from the driver calibration
}

// Channel turns raw codes from one driver input into smoothed voltages.
//
// History is a fixed ring of window samples, zero filled on creation. The
// average is always taken over the full window, so the first window-1
// samples are biased toward zero.
type Channel struct {
	cfg       ChannelConfig
	ref       float64
	fullScale float64

	driver Driver
	cal    Calibrator

	mu     sync.Mutex
	ring   []float64
	cursor int
}

// NewChannel creates a channel reading cfg.Channel from driver. A window of 0
// or less selects DefaultWindow. A calibration handle is attached when the
// channel asks for one and the driver provides it.
func NewChannel(driver Driver, cfg ChannelConfig, window int) (*Channel, error) {
	if driver == nil {
		return nil, fmt.Errorf("adc: channel %q has no driver", cfg.Name)
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if cfg.FullScaleCode <= 0 {
		cfg.FullScaleCode = DefaultFullScaleCode
	}
	if cfg.ReferenceVoltage <= 0 {
		ref, err := ReferenceVoltage(cfg.Attenuation, nil)
		if err != nil {
			return nil, err
		}
		cfg.ReferenceVoltage = ref
	}

	c := &Channel{
		cfg:       cfg,
		ref:       cfg.ReferenceVoltage,
		fullScale: float64(cfg.FullScaleCode),
		driver:    driver,
		ring:      make([]float64, window),
	}
	if cal, ok := driver.(Calibrator); ok && cfg.Calibrate {
		c.cal = cal
	}
	return c, nil
}

// Name returns the configured channel name.
func (c *Channel) Name() string { return c.cfg.Name }

// Config returns the resolved channel configuration.
func (c *Channel) Config() ChannelConfig { return c.cfg }

// Calibrated reports whether a calibration handle is attached.
func (c *Channel) Calibrated() bool { return c.cal != nil }

// Sample performs one conversion and updates the moving average.
//
// When the voltage exceeds OverVoltageRatio of the reference, ErrOutOfRange is
// returned together with the instantaneous voltage and the history is left
// unchanged.
func (c *Channel) Sample() (Sample, error) {
	raw, err := c.driver.ReadRaw(c.cfg.Channel)
	if err != nil {
		return Sample{}, fmt.Errorf("%w: %s channel %d: %v", ErrConversion, c.cfg.Name, c.cfg.Channel, err)
	}

	s := Sample{Raw: raw}
	if c.cal != nil {
		mv, err := c.cal.RawToMillivolts(c.cfg.Channel, raw)
		if err != nil {
			return Sample{Raw: raw}, fmt.Errorf("%w: %s channel %d: %v", ErrCalibration, c.cfg.Name, c.cfg.Channel, err)
		}
		s.Instant = float64(mv) / 1000.0
		s.Calibrated = true
	} else {
		s.Instant = float64(raw) * c.ref / c.fullScale
	}
	if s.Instant < 0 {
		s.Instant = 0
	}

	if s.Instant > OverVoltageRatio*c.ref {
		s.Voltage = s.Instant
		return s, fmt.Errorf("%w: %s %.3fV > %.3fV", ErrOutOfRange, c.cfg.Name, s.Instant, OverVoltageRatio*c.ref)
	}

	c.mu.Lock()
	c.ring[c.cursor] = s.Instant
	c.cursor = (c.cursor + 1) % len(c.ring)
	s.Voltage = c.mean()
	c.mu.Unlock()

	return s, nil
}

// Average returns the current moving average without sampling.
func (c *Channel) Average() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mean()
}

// Reset zero fills the history.
func (c *Channel) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.ring {
		c.ring[i] = 0
	}
	c.cursor = 0
}

// mean is the arithmetic mean over the whole ring. Caller holds mu.
func (c *Channel) mean() float64 {
	var sum float64
	for _, v := range c.ring {
		sum += v
	}
	return sum / float64(len(c.ring))
}
