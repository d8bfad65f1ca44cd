package config

import (
	"fmt"
	"os"
	"time"

	"github.com/itohio/hydromon/pkg/adc"
	"github.com/itohio/hydromon/pkg/frame"
	"github.com/itohio/hydromon/pkg/sensor"
	"github.com/itohio/hydromon/pkg/sonar"
	"gopkg.in/yaml.v3"
)

// ADC drivers.
const (
	DriverMock    = "mock"
	DriverADS1115 = "ads1115"
	DriverModbus  = "modbus"
)

// Config represents the application configuration.
type Config struct {
	ADC     ADCConfig     `yaml:"adc"`
	Serial  SerialConfig  `yaml:"serial"`
	Sensors SensorsConfig `yaml:"sensors"`
	Cycle   CycleConfig   `yaml:"cycle"`
	Monitor MonitorConfig `yaml:"monitor"`
	Mock    MockConfig    `yaml:"mock"`
}

// ADCConfig contains analog front end configuration.
type ADCConfig struct {
	Driver            string                      `yaml:"driver"`          // "mock", "ads1115" or "modbus"
	FullScaleCode     int                         `yaml:"full_scale_code"` // Default for channels that do not set one
	Window            int                         `yaml:"window"`          // Moving average length
	ReferenceVoltages map[adc.Attenuation]float64 `yaml:"reference_voltages"`
	Channels          ChannelsConfig              `yaml:"channels"`
	ADS1115           adc.ADS1115Config           `yaml:"ads1115"`
	Modbus            adc.ModbusConfig            `yaml:"modbus"`
}

// ChannelsConfig assigns analog inputs to sensors.
type ChannelsConfig struct {
	Thermistor adc.ChannelConfig `yaml:"thermistor"`
	TDS        adc.ChannelConfig `yaml:"tds"`
	PH         adc.ChannelConfig `yaml:"ph"`
}

// SerialConfig contains serial port configuration of the ultrasonic sensor.
type SerialConfig struct {
	Port        string        `yaml:"port"`
	BaudRate    int           `yaml:"baud_rate"`
	ReadTimeout time.Duration `yaml:"read_timeout"` // Per byte
	ByteBudget  int           `yaml:"byte_budget"`  // Bytes read per frame before giving up
}

// SensorsConfig contains the sensor models' calibration.
type SensorsConfig struct {
	Thermistor sensor.ThermistorParams `yaml:"thermistor"`
	TDS        TDSConfig               `yaml:"tds"`
	PH         PHConfig                `yaml:"ph"`
	Ultrasonic sensor.WaterLevelParams `yaml:"ultrasonic"`
}

// TDSConfig selects one of several conductivity calibration sets.
type TDSConfig struct {
	Profile  string                      `yaml:"profile"`
	Profiles map[string]sensor.TDSParams `yaml:"profiles"`
}

// PHConfig selects one of several pH calibration sets.
type PHConfig struct {
	Profile  string                     `yaml:"profile"`
	Profiles map[string]sensor.PHParams `yaml:"profiles"`
}

// CycleConfig contains acquisition loop parameters.
type CycleConfig struct {
	Period   time.Duration `yaml:"period"`
	LogEvery int           `yaml:"log_every"` // Log a summary line every N cycles, 0 disables
}

// MonitorConfig contains the HTTP/websocket monitor configuration.
type MonitorConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// MockConfig contains simulated device configuration.
type MockConfig struct {
	ADC   adc.MockConfig   `yaml:"adc"`
	Sonar sonar.MockConfig `yaml:"sonar"`
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		ADC: ADCConfig{
			Driver:            DriverMock,
			FullScaleCode:     adc.DefaultFullScaleCode,
			Window:            adc.DefaultWindow,
			ReferenceVoltages: adc.DefaultReferenceVoltages(),
			Channels: ChannelsConfig{
				Thermistor: adc.ChannelConfig{Name: "thermistor", Channel: 0, Attenuation: adc.Atten12dB, Calibrate: true},
				TDS:        adc.ChannelConfig{Name: "tds", Channel: 1, Attenuation: adc.Atten12dB, Calibrate: true},
				PH:         adc.ChannelConfig{Name: "ph", Channel: 2, Attenuation: adc.Atten12dB, Calibrate: true},
			},
			ADS1115: adc.ADS1115Config{
				MaxVoltage: 4.096,
				Frequency:  128,
				Quality:    "best",
			},
			Modbus: adc.ModbusConfig{
				Mode:    "tcp",
				Address: "127.0.0.1:502",
				SlaveID: 1,
				Timeout: time.Second,
			},
		},
		Serial: SerialConfig{
			Port:        "/dev/ttyUSB0",
			BaudRate:    sonar.DefaultBaudRate,
			ReadTimeout: frame.ReadTimeout,
			ByteBudget:  frame.DefaultByteBudget,
		},
		Sensors: SensorsConfig{
			Thermistor: sensor.DefaultThermistor(),
			TDS: TDSConfig{
				Profile:  "seeed",
				Profiles: sensor.TDSProfiles(),
			},
			PH: PHConfig{
				Profile:  "two_point",
				Profiles: sensor.PHProfiles(),
			},
			Ultrasonic: sensor.WaterLevelParams{
				Mode:         sensor.LevelModeDistance,
				TankHeightCM: 100,
			},
		},
		Cycle: CycleConfig{
			Period:   100 * time.Millisecond,
			LogEvery: 10,
		},
		Monitor: MonitorConfig{
			Enabled:    true,
			ListenAddr: ":8080",
		},
		Mock: MockConfig{
			ADC:   adc.DefaultMockConfig(),
			Sonar: sonar.DefaultMockConfig(),
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// TDSParams returns the selected conductivity calibration set.
func (c *Config) TDSParams() (sensor.TDSParams, error) {
	p, ok := c.Sensors.TDS.Profiles[c.Sensors.TDS.Profile]
	if !ok {
		return sensor.TDSParams{}, fmt.Errorf("unknown tds profile %q", c.Sensors.TDS.Profile)
	}
	return p, nil
}

// PHParams returns the selected pH calibration set.
func (c *Config) PHParams() (sensor.PHParams, error) {
	p, ok := c.Sensors.PH.Profiles[c.Sensors.PH.Profile]
	if !ok {
		return sensor.PHParams{}, fmt.Errorf("unknown ph profile %q", c.Sensors.PH.Profile)
	}
	return p, nil
}

// AnalogChannels returns the channel configurations with reference voltage
// and full-scale code resolved.
func (c *Config) AnalogChannels() ([]adc.ChannelConfig, error) {
	chans := []adc.ChannelConfig{c.ADC.Channels.Thermistor, c.ADC.Channels.TDS, c.ADC.Channels.PH}
	for i := range chans {
		if chans[i].FullScaleCode == 0 {
			chans[i].FullScaleCode = c.ADC.FullScaleCode
		}
		if chans[i].ReferenceVoltage == 0 {
			v, err := adc.ReferenceVoltage(chans[i].Attenuation, c.ADC.ReferenceVoltages)
			if err != nil {
				return nil, fmt.Errorf("channel %q: %w", chans[i].Name, err)
			}
			chans[i].ReferenceVoltage = v
		}
	}
	return chans, nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.ADC.Driver == "" {
		c.ADC.Driver = def.ADC.Driver
	}
	if c.ADC.FullScaleCode == 0 {
		c.ADC.FullScaleCode = def.ADC.FullScaleCode
	}
	if c.ADC.Window == 0 {
		c.ADC.Window = def.ADC.Window
	}
	for att, v := range def.ADC.ReferenceVoltages {
		if _, ok := c.ADC.ReferenceVoltages[att]; !ok {
			if c.ADC.ReferenceVoltages == nil {
				c.ADC.ReferenceVoltages = make(map[adc.Attenuation]float64)
			}
			c.ADC.ReferenceVoltages[att] = v
		}
	}
	defaultChannel(&c.ADC.Channels.Thermistor, def.ADC.Channels.Thermistor)
	defaultChannel(&c.ADC.Channels.TDS, def.ADC.Channels.TDS)
	defaultChannel(&c.ADC.Channels.PH, def.ADC.Channels.PH)

	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}
	if c.Serial.ReadTimeout == 0 {
		c.Serial.ReadTimeout = def.Serial.ReadTimeout
	}
	if c.Serial.ByteBudget == 0 {
		c.Serial.ByteBudget = def.Serial.ByteBudget
	}

	if c.Sensors.Thermistor.RRef == 0 {
		c.Sensors.Thermistor = def.Sensors.Thermistor
	}
	if c.Sensors.TDS.Profile == "" {
		c.Sensors.TDS.Profile = def.Sensors.TDS.Profile
	}
	for name, p := range def.Sensors.TDS.Profiles {
		if _, ok := c.Sensors.TDS.Profiles[name]; !ok {
			if c.Sensors.TDS.Profiles == nil {
				c.Sensors.TDS.Profiles = make(map[string]sensor.TDSParams)
			}
			c.Sensors.TDS.Profiles[name] = p
		}
	}
	if c.Sensors.PH.Profile == "" {
		c.Sensors.PH.Profile = def.Sensors.PH.Profile
	}
	for name, p := range def.Sensors.PH.Profiles {
		if _, ok := c.Sensors.PH.Profiles[name]; !ok {
			if c.Sensors.PH.Profiles == nil {
				c.Sensors.PH.Profiles = make(map[string]sensor.PHParams)
			}
			c.Sensors.PH.Profiles[name] = p
		}
	}
	if c.Sensors.Ultrasonic.Mode == "" {
		c.Sensors.Ultrasonic.Mode = def.Sensors.Ultrasonic.Mode
	}
	if c.Sensors.Ultrasonic.TankHeightCM == 0 {
		c.Sensors.Ultrasonic.TankHeightCM = def.Sensors.Ultrasonic.TankHeightCM
	}

	if c.Cycle.Period == 0 {
		c.Cycle.Period = def.Cycle.Period
	}
	if c.Monitor.ListenAddr == "" {
		c.Monitor.ListenAddr = def.Monitor.ListenAddr
	}

	if len(c.Mock.ADC.Channels) == 0 {
		c.Mock.ADC.Channels = def.Mock.ADC.Channels
	}
	if c.Mock.ADC.Reference == 0 {
		c.Mock.ADC.Reference = def.Mock.ADC.Reference
	}
	if c.Mock.Sonar.DistanceCM == 0 {
		c.Mock.Sonar.DistanceCM = def.Mock.Sonar.DistanceCM
	}
}

func defaultChannel(ch *adc.ChannelConfig, def adc.ChannelConfig) {
	if ch.Name == "" {
		ch.Name = def.Name
	}
	if ch.Attenuation == "" {
		ch.Attenuation = def.Attenuation
	}
}
