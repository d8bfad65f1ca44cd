package acquire

import (
	"fmt"

	"github.com/itohio/hydromon/pkg/adc"
	"github.com/itohio/hydromon/pkg/config"
	"github.com/itohio/hydromon/pkg/sonar"
)

// OpenDriver opens the analog driver selected by cfg.ADC.Driver.
func OpenDriver(cfg *config.Config) (adc.Driver, error) {
	switch cfg.ADC.Driver {
	case config.DriverMock:
		return adc.NewMock(&cfg.Mock.ADC), nil
	case config.DriverADS1115:
		return adc.OpenADS1115(cfg.ADC.ADS1115)
	case config.DriverModbus:
		return adc.OpenModbus(cfg.ADC.Modbus)
	default:
		return nil, fmt.Errorf("unknown adc driver %q", cfg.ADC.Driver)
	}
}

// NewSonar returns the ultrasonic device, not yet connected.
func NewSonar(cfg *config.Config, mock bool) sonar.Device {
	if mock {
		return sonar.NewMock(&cfg.Mock.Sonar)
	}
	return sonar.New(cfg.Serial.Port, cfg.Serial.BaudRate, cfg.Serial.ReadTimeout, cfg.Serial.ByteBudget)
}

// Build creates the analog channels on driver and the acquisition cycle.
// dev may be nil when no ultrasonic sensor is fitted.
func Build(cfg *config.Config, driver adc.Driver, dev sonar.Device) (*Cycle, error) {
	chans, err := cfg.AnalogChannels()
	if err != nil {
		return nil, err
	}

	channels := make([]*adc.Channel, len(chans))
	for i, cc := range chans {
		ch, err := adc.NewChannel(driver, cc, cfg.ADC.Window)
		if err != nil {
			return nil, fmt.Errorf("channel %q: %w", cc.Name, err)
		}
		channels[i] = ch
	}

	tds, err := cfg.TDSParams()
	if err != nil {
		return nil, err
	}
	ph, err := cfg.PHParams()
	if err != nil {
		return nil, err
	}

	s := Sensors{
		Thermistor: channels[0],
		TDS:        channels[1],
		PH:         channels[2],
		Sonar:      dev,
	}
	m := Models{
		Thermistor: cfg.Sensors.Thermistor,
		TDS:        tds,
		PH:         ph,
		Level:      cfg.Sensors.Ultrasonic,
	}
	return New(s, m, cfg.Cycle.Period, cfg.Cycle.LogEvery), nil
}
