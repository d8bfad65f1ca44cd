package adc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

// ModbusConfig contains configuration of a Modbus analog input module.
type ModbusConfig struct {
	Mode         string        `yaml:"mode"`          // "tcp" or "rtu"
	Address      string        `yaml:"address"`       // host:port for tcp, device path for rtu
	SlaveID      uint8         `yaml:"slave_id"`      // Unit identifier
	Timeout      time.Duration `yaml:"timeout"`       // Per request timeout
	BaudRate     int           `yaml:"baud_rate"`     // rtu only
	BaseRegister uint16        `yaml:"base_register"` // Input register of channel 0
	Signed       bool          `yaml:"signed"`        // Registers hold two's complement values
}

// RegisterReader is the subset of modbus.Client used by the driver.
type RegisterReader interface {
	ReadInputRegisters(address, quantity uint16) ([]byte, error)
}

type modbusHandler interface {
	modbus.ClientHandler
	Connect() error
	Close() error
}

// Modbus reads one input register per channel (function code 4).
type Modbus struct {
	mu      sync.Mutex
	cfg     ModbusConfig
	client  RegisterReader
	handler modbusHandler
}

var _ Driver = (*Modbus)(nil)

// NewModbus wraps an existing register reader.
func NewModbus(client RegisterReader, cfg ModbusConfig) *Modbus {
	return &Modbus{cfg: cfg, client: client}
}

// OpenModbus connects to the module described by cfg.
func OpenModbus(cfg ModbusConfig) (*Modbus, error) {
	if cfg.Address == "" {
		return nil, errors.New("adc modbus: address required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Second
	}

	var h modbusHandler
	switch cfg.Mode {
	case "", "tcp":
		th := modbus.NewTCPClientHandler(cfg.Address)
		th.Timeout = cfg.Timeout
		th.SlaveId = cfg.SlaveID
		h = th
	case "rtu":
		rh := modbus.NewRTUClientHandler(cfg.Address)
		rh.BaudRate = cfg.BaudRate
		if rh.BaudRate == 0 {
			rh.BaudRate = 9600
		}
		rh.DataBits = 8
		rh.Parity = "N"
		rh.StopBits = 1
		rh.Timeout = cfg.Timeout
		rh.SlaveId = cfg.SlaveID
		h = rh
	default:
		return nil, fmt.Errorf("adc modbus: unknown mode %q", cfg.Mode)
	}

	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("adc modbus: connect %s: %w", cfg.Address, err)
	}

	m := NewModbus(modbus.NewClient(h), cfg)
	m.handler = h
	return m, nil
}

// ReadRaw reads the input register BaseRegister+channel.
func (m *Modbus) ReadRaw(channel int) (int, error) {
	if channel < 0 || channel > 0xFFFF-int(m.cfg.BaseRegister) {
		return 0, fmt.Errorf("adc modbus: invalid channel %d", channel)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := m.client.ReadInputRegisters(m.cfg.BaseRegister+uint16(channel), 1)
	if err != nil {
		return 0, err
	}
	if len(data) < 2 {
		return 0, fmt.Errorf("adc modbus: short response (%d bytes)", len(data))
	}

	reg := binary.BigEndian.Uint16(data)
	if m.cfg.Signed {
		return int(int16(reg)), nil
	}
	return int(reg), nil
}

// Close closes the underlying connection, if the driver owns one.
func (m *Modbus) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handler == nil {
		return nil
	}
	return m.handler.Close()
}
