package config

import (
	"fmt"

	"github.com/itohio/hydromon/pkg/adc"
	"github.com/itohio/hydromon/pkg/sensor"
	"go.uber.org/multierr"
)

// Validate checks configuration correctness and reports every problem found.
// It does not mutate the configuration.
func (c *Config) Validate() error {
	var err error
	add := func(format string, args ...any) {
		err = multierr.Append(err, fmt.Errorf(format, args...))
	}

	switch c.ADC.Driver {
	case DriverMock, DriverADS1115, DriverModbus:
	default:
		add("adc: unknown driver %q", c.ADC.Driver)
	}
	if c.ADC.Window < 1 {
		add("adc: window must be at least 1, got %d", c.ADC.Window)
	}
	if c.ADC.FullScaleCode < 1 {
		add("adc: full_scale_code must be positive, got %d", c.ADC.FullScaleCode)
	}
	if c.ADC.Driver == DriverModbus && c.ADC.Modbus.Address == "" {
		add("adc: modbus address required")
	}

	seen := make(map[int]string)
	chans := []adc.ChannelConfig{c.ADC.Channels.Thermistor, c.ADC.Channels.TDS, c.ADC.Channels.PH}
	for _, ch := range chans {
		if ch.Channel < 0 {
			add("adc: channel %q has negative input %d", ch.Name, ch.Channel)
		}
		if prev, ok := seen[ch.Channel]; ok {
			add("adc: channels %q and %q share input %d", prev, ch.Name, ch.Channel)
		}
		seen[ch.Channel] = ch.Name
		if ch.ReferenceVoltage == 0 {
			if _, rerr := adc.ReferenceVoltage(ch.Attenuation, c.ADC.ReferenceVoltages); rerr != nil {
				add("adc: channel %q: %v", ch.Name, rerr)
			}
		} else if ch.ReferenceVoltage < 0 {
			add("adc: channel %q has negative reference voltage", ch.Name)
		}
	}

	if c.Serial.Port == "" {
		add("serial: port required")
	}
	if c.Serial.ReadTimeout <= 0 {
		add("serial: read_timeout must be positive")
	}

	th := c.Sensors.Thermistor
	if th.RRef <= 0 || th.VSupply <= 0 {
		add("sensors: thermistor r_ref and v_supply must be positive")
	}
	if th.MaxRatio <= 0 || th.MaxRatio > 1 {
		add("sensors: thermistor max_ratio must be in (0, 1], got %g", th.MaxRatio)
	}
	if _, perr := c.TDSParams(); perr != nil {
		add("sensors: %v", perr)
	}
	if p, perr := c.PHParams(); perr != nil {
		add("sensors: %v", perr)
	} else if p.MinVoltage > p.MaxVoltage {
		add("sensors: ph profile %q has min_voltage > max_voltage", c.Sensors.PH.Profile)
	}
	switch c.Sensors.Ultrasonic.Mode {
	case sensor.LevelModeDistance:
	case sensor.LevelModeLevel:
		if c.Sensors.Ultrasonic.TankHeightCM <= 0 {
			add("sensors: tank_height_cm must be positive in level mode")
		}
	default:
		add("sensors: unknown ultrasonic mode %q", c.Sensors.Ultrasonic.Mode)
	}

	if c.Cycle.Period <= 0 {
		add("cycle: period must be positive")
	}
	if c.Cycle.LogEvery < 0 {
		add("cycle: log_every must not be negative")
	}
	if c.Monitor.Enabled && c.Monitor.ListenAddr == "" {
		add("monitor: listen_addr required when enabled")
	}

	return err
}
