package sonar

import (
	"errors"

	"github.com/itohio/hydromon/pkg/frame"
)

// ErrNotConnected is returned by Read before Connect or after Close.
var ErrNotConnected = errors.New("sonar: not connected")

// Device defines the interface for ultrasonic range finders (real or mocked).
type Device interface {
	Connect() error
	Close() error
	IsConnected() bool
	// Read blocks until one frame is decoded and returns the distance in cm.
	Read() (float64, error)
	Stats() frame.Stats
}

// Ensure Serial implements Device.
var _ Device = (*Serial)(nil)

// Ensure Mock implements Device.
var _ Device = (*Mock)(nil)
