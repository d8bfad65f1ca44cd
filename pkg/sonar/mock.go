package sonar

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/itohio/hydromon/pkg/frame"
)

// MockConfig contains simulated range finder configuration.
type MockConfig struct {
	DistanceCM   float64       `yaml:"distance_cm"`   // Mean distance to the surface (cm)
	Swing        float64       `yaml:"swing"`         // Peak deviation from DistanceCM (cm)
	Period       time.Duration `yaml:"period"`        // Period of the simulated level change
	NoiseBytes   int           `yaml:"noise_bytes"`   // Junk bytes sent before each frame
	CorruptEvery int           `yaml:"corrupt_every"` // Every Nth frame carries a bad checksum, 0 disables
	FrameTime    time.Duration `yaml:"frame_time"`    // Simulated transmission time per frame
}

// DefaultMockConfig returns a tank that is slowly filled and drained.
func DefaultMockConfig() MockConfig {
	return MockConfig{
		DistanceCM:   40,
		Swing:        10,
		Period:       10 * time.Minute,
		NoiseBytes:   1,
		CorruptEvery: 25,
		FrameTime:    5 * time.Millisecond,
	}
}

// Mock simulates an ultrasonic range finder. It produces real wire frames
// which are decoded by frame.Decoder, so corruption and resync paths are
// exercised without hardware.
type Mock struct {
	cfg MockConfig

	mu        sync.Mutex
	port      *mockPort
	dec       *frame.Decoder
	connected bool
}

// NewMock creates a new mocked device instance.
func NewMock(cfg *MockConfig) *Mock {
	if cfg == nil {
		def := DefaultMockConfig()
		cfg = &def
	}
	return &Mock{cfg: *cfg}
}

// Connect simulates connecting to the device.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return fmt.Errorf("already connected")
	}

	m.port = &mockPort{cfg: m.cfg, start: time.Now(), now: time.Now}
	m.dec = frame.NewDecoder(m.port, 0)
	m.connected = true
	return nil
}

// Close stops the mocked device.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil
	}
	m.port.close()
	m.connected = false
	return nil
}

// IsConnected returns whether the device is currently connected.
func (m *Mock) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Read decodes the next simulated frame.
func (m *Mock) Read() (float64, error) {
	m.mu.Lock()
	dec := m.dec
	connected := m.connected
	m.mu.Unlock()

	if !connected {
		return 0, ErrNotConnected
	}
	return dec.Next()
}

// Stats returns decoder counters of the current connection.
func (m *Mock) Stats() frame.Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dec == nil {
		return frame.Stats{}
	}
	return m.dec.Stats()
}

// mockPort generates frames on demand. After close it behaves like a silent
// line: reads time out.
type mockPort struct {
	cfg   MockConfig
	start time.Time
	now   func() time.Time

	mu     sync.Mutex
	buf    []byte
	frames int
	closed bool
}

func (p *mockPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, nil
	}
	if len(p.buf) == 0 {
		p.generate()
	}
	n := copy(b, p.buf)
	p.buf = p.buf[n:]
	return n, nil
}

func (p *mockPort) ResetInputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buf = p.buf[:0]
	return nil
}

func (p *mockPort) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.buf = nil
}

// generate appends noise and one frame. Caller holds mu.
func (p *mockPort) generate() {
	if p.cfg.FrameTime > 0 {
		time.Sleep(p.cfg.FrameTime)
	}

	for i := 0; i < p.cfg.NoiseBytes; i++ {
		p.buf = append(p.buf, byte(0x10+i))
	}

	p.frames++
	f := frame.Encode(p.distanceMM())
	if p.cfg.CorruptEvery > 0 && p.frames%p.cfg.CorruptEvery == 0 {
		f[3] ^= 0x5A
	}
	p.buf = append(p.buf, f[:]...)
}

func (p *mockPort) distanceMM() int {
	d := p.cfg.DistanceCM
	if p.cfg.Period > 0 {
		elapsed := p.now().Sub(p.start).Seconds()
		d += p.cfg.Swing * math.Sin(2*math.Pi*elapsed/p.cfg.Period.Seconds())
	}
	mm := int(math.Round(d * 10))
	return max(0, min(mm, 0xFFFF))
}
