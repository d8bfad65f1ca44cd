package adc

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/experimental/conn/analog"
	"periph.io/x/periph/experimental/devices/ads1x15"
	"periph.io/x/periph/host"
)

// ADS1115Config contains configuration of an ADS1115 on an I2C bus.
type ADS1115Config struct {
	Bus        string  `yaml:"bus"`         // I2C bus name, empty for the default bus
	MaxVoltage float64 `yaml:"max_voltage"` // Largest expected input (V), selects the gain
	Frequency  int     `yaml:"frequency"`   // Sample rate (Hz)
	Quality    string  `yaml:"quality"`     // "best" or "save_energy"
}

// ADS1115 reads single-ended channels of a TI ADS1115 through periph.
// Pins are opened lazily on first use.
type ADS1115 struct {
	cfg ADS1115Config
	bus i2c.BusCloser
	dev *ads1x15.Dev

	mu   sync.Mutex
	pins map[int]analog.PinADC
}

var (
	_ Driver     = (*ADS1115)(nil)
	_ Calibrator = (*ADS1115)(nil)
)

// OpenADS1115 initialises the host drivers and opens the converter.
func OpenADS1115(cfg ADS1115Config) (*ADS1115, error) {
	if cfg.MaxVoltage <= 0 {
		cfg.MaxVoltage = 4.096
	}
	if cfg.Frequency <= 0 {
		cfg.Frequency = 128
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialise host drivers: %w", err)
	}

	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, fmt.Errorf("failed to open i2c bus %q: %w", cfg.Bus, err)
	}

	dev, err := ads1x15.NewADS1115(bus, &ads1x15.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("failed initializing ADS1115 device: %w", err)
	}

	return &ADS1115{
		cfg:  cfg,
		bus:  bus,
		dev:  dev,
		pins: make(map[int]analog.PinADC),
	}, nil
}

func (a *ADS1115) pin(channel int) (analog.PinADC, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if p, ok := a.pins[channel]; ok {
		return p, nil
	}

	ch, err := singleEnded(channel)
	if err != nil {
		return nil, err
	}

	quality := ads1x15.BestQuality
	if a.cfg.Quality == "save_energy" {
		quality = ads1x15.SaveEnergy
	}

	maxV := physic.ElectricPotential(a.cfg.MaxVoltage * float64(physic.Volt))
	p, err := a.dev.PinForChannel(ch, maxV, physic.Frequency(a.cfg.Frequency)*physic.Hertz, quality)
	if err != nil {
		return nil, fmt.Errorf("failed to open channel %d: %w", channel, err)
	}
	a.pins[channel] = p
	return p, nil
}

// ReadRaw returns the signed 16-bit conversion result.
func (a *ADS1115) ReadRaw(channel int) (int, error) {
	p, err := a.pin(channel)
	if err != nil {
		return 0, err
	}
	s, err := p.Read()
	if err != nil {
		return 0, err
	}
	return int(s.Raw), nil
}

// RawToMillivolts scales raw by the full-scale range reported by the pin.
func (a *ADS1115) RawToMillivolts(channel, raw int) (int, error) {
	p, err := a.pin(channel)
	if err != nil {
		return 0, err
	}
	_, hi := p.Range()
	if hi.Raw == 0 {
		return 0, fmt.Errorf("channel %d reports an empty range", channel)
	}
	mv := float64(raw) * float64(hi.V) / float64(physic.MilliVolt) / float64(hi.Raw)
	return int(mv), nil
}

// Close halts every open pin and releases the bus.
func (a *ADS1115) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var err error
	for ch, p := range a.pins {
		err = multierr.Append(err, p.Halt())
		delete(a.pins, ch)
	}
	return multierr.Append(err, a.bus.Close())
}

func singleEnded(channel int) (ads1x15.Channel, error) {
	switch channel {
	case 0:
		return ads1x15.Channel0, nil
	case 1:
		return ads1x15.Channel1, nil
	case 2:
		return ads1x15.Channel2, nil
	case 3:
		return ads1x15.Channel3, nil
	default:
		return 0, fmt.Errorf("ADS1115 has no channel %d", channel)
	}
}
