package sonar

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/itohio/hydromon/pkg/frame"
	"go.bug.st/serial"
)

// DefaultBaudRate is the UART speed of SEN0311-style range finders.
const DefaultBaudRate = 9600

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Serial is an ultrasonic range finder on a serial port.
type Serial struct {
	port        string
	baudRate    int
	readTimeout time.Duration
	budget      int

	mu        sync.Mutex
	conn      serial.Port
	dec       *frame.Decoder
	stats     frame.Stats
	connected bool
}

// New creates a device for the given port. Zero values select 9600 baud,
// the 100 ms frame timeout and the default byte budget.
func New(port string, baudRate int, readTimeout time.Duration, budget int) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if readTimeout == 0 {
		readTimeout = frame.ReadTimeout
	}
	return &Serial{
		port:        port,
		baudRate:    baudRate,
		readTimeout: readTimeout,
		budget:      budget,
	}
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{Name: name, Description: name})
	}
	return result, nil
}

// Connect opens the port at 8N1 with the per-byte read timeout.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return fmt.Errorf("already connected")
	}

	mode := &serial.Mode{
		BaudRate: d.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(d.port, mode)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}
	if err := port.SetReadTimeout(d.readTimeout); err != nil {
		port.Close()
		return fmt.Errorf("failed to set read timeout on %s: %w", d.port, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		log.Printf("[sonar] failed to flush %s: %v", d.port, err)
	}

	d.conn = port
	d.dec = frame.NewDecoder(port, d.budget)
	d.connected = true
	log.Printf("[sonar] connected to %s at %d baud", d.port, d.baudRate)

	return nil
}

// Close closes the port. Decoder statistics are kept.
func (d *Serial) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}

	d.stats = addStats(d.stats, d.dec.Stats())
	d.dec = nil
	d.connected = false

	err := d.conn.Close()
	d.conn = nil
	if err != nil {
		return fmt.Errorf("failed to close serial port %s: %w", d.port, err)
	}
	return nil
}

// IsConnected returns whether the device is currently connected.
func (d *Serial) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

// Read decodes the next frame. It blocks for at most the byte budget times
// the read timeout.
func (d *Serial) Read() (float64, error) {
	d.mu.Lock()
	dec := d.dec
	d.mu.Unlock()

	if dec == nil {
		return 0, ErrNotConnected
	}
	return dec.Next()
}

// Stats returns decoder counters accumulated across connections.
func (d *Serial) Stats() frame.Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.dec == nil {
		return d.stats
	}
	return addStats(d.stats, d.dec.Stats())
}

func addStats(a, b frame.Stats) frame.Stats {
	return frame.Stats{
		Frames:         a.Frames + b.Frames,
		ChecksumErrors: a.ChecksumErrors + b.ChecksumErrors,
		RangeErrors:    a.RangeErrors + b.RangeErrors,
		Timeouts:       a.Timeouts + b.Timeouts,
		DiscardedBytes: a.DiscardedBytes + b.DiscardedBytes,
	}
}
