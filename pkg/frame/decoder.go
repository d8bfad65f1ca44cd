// Package frame decodes the 4-byte distance frames sent by UART ultrasonic
// range finders.
//
// Wire format, big-endian millimetres:
//
//	0xFF  hi  lo  sum    sum = (0xFF + hi + lo) & 0xFF
package frame

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

const (
	// StartByte opens every frame.
	StartByte = 0xFF
	// Len is the frame length in bytes.
	Len = 4
	// MinDistanceMM and MaxDistanceMM bound the measurable range.
	MinDistanceMM = 30
	MaxDistanceMM = 4500
	// DefaultByteBudget bounds the bytes consumed by one Next call.
	DefaultByteBudget = 64
	// ReadTimeout is the per-byte timeout the port should be configured with.
	ReadTimeout = 100 * time.Millisecond
)

var (
	// ErrTimeout is returned when no byte arrived within the port timeout.
	ErrTimeout = errors.New("frame: read timeout")
	// ErrChecksum marks a frame whose checksum did not match.
	ErrChecksum = errors.New("frame: checksum mismatch")
	// ErrRange is returned for a valid frame with a distance outside
	// [MinDistanceMM, MaxDistanceMM].
	ErrRange = errors.New("frame: distance out of range")
	// ErrNoFrame is returned when the byte budget ran out before a valid frame.
	ErrNoFrame = errors.New("frame: no valid frame")
)

// Source is a byte stream with a configured read timeout. A read that
// returns no data and no error is treated as a timeout.
type Source interface {
	io.Reader
	ResetInputBuffer() error
}

// Stats counts decoder outcomes since creation.
type Stats struct {
	Frames         uint64 `json:"frames"`
	ChecksumErrors uint64 `json:"checksum_errors"`
	RangeErrors    uint64 `json:"range_errors"`
	Timeouts       uint64 `json:"timeouts"`
	DiscardedBytes uint64 `json:"discarded_bytes"`
}

// Decoder recovers distance frames from a Source. It resynchronises on the
// next start byte after any framing or checksum error. Next must not be
// called concurrently; Stats may.
type Decoder struct {
	src    Source
	budget int

	buf [Len]byte
	n   int
	one [1]byte

	mu    sync.Mutex
	stats Stats
}

// NewDecoder creates a decoder reading from src. A budget of 0 or less selects
// DefaultByteBudget.
func NewDecoder(src Source, budget int) *Decoder {
	if budget <= 0 {
		budget = DefaultByteBudget
	}
	return &Decoder{src: src, budget: budget}
}

// Next reads until one complete frame is decoded and returns the distance
// in centimetres.
func (d *Decoder) Next() (float64, error) {
	lastChecksum := false

	for i := 0; i < d.budget; i++ {
		b, err := d.readByte()
		if err != nil {
			return 0, err
		}

		if d.n == 0 {
			if b != StartByte {
				d.count(func(s *Stats) { s.DiscardedBytes++ })
				continue
			}
			d.buf[0] = b
			d.n = 1
			continue
		}

		d.buf[d.n] = b
		d.n++
		if d.n < Len {
			continue
		}
		d.n = 0

		if Checksum(d.buf[:3]) != d.buf[3] {
			lastChecksum = true
			d.count(func(s *Stats) {
				s.ChecksumErrors++
				s.DiscardedBytes += Len
			})
			continue
		}

		mm := int(d.buf[1])<<8 | int(d.buf[2])
		if mm < MinDistanceMM || mm > MaxDistanceMM {
			d.count(func(s *Stats) { s.RangeErrors++ })
			return 0, fmt.Errorf("%w: %d mm", ErrRange, mm)
		}
		d.count(func(s *Stats) { s.Frames++ })
		return float64(mm) / 10.0, nil
	}

	if lastChecksum {
		return 0, fmt.Errorf("%w after %d bytes: %w", ErrNoFrame, d.budget, ErrChecksum)
	}
	return 0, fmt.Errorf("%w after %d bytes", ErrNoFrame, d.budget)
}

// Stats returns a copy of the counters.
func (d *Decoder) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Reset drops a partially accumulated frame.
func (d *Decoder) Reset() {
	d.n = 0
}

func (d *Decoder) readByte() (byte, error) {
	n, err := d.src.Read(d.one[:])
	if n == 1 {
		return d.one[0], nil
	}
	if err != nil && err != io.EOF {
		d.n = 0
		return 0, fmt.Errorf("frame: read: %w", err)
	}

	d.n = 0
	d.count(func(s *Stats) { s.Timeouts++ })
	if ferr := d.src.ResetInputBuffer(); ferr != nil {
		return 0, fmt.Errorf("%w (flush: %v)", ErrTimeout, ferr)
	}
	return 0, ErrTimeout
}

func (d *Decoder) count(f func(*Stats)) {
	d.mu.Lock()
	f(&d.stats)
	d.mu.Unlock()
}

// Checksum returns the low byte of the sum of b.
func Checksum(b []byte) byte {
	var sum byte
	for _, v := range b {
		sum += v
	}
	return sum
}

// Encode builds the frame for distanceMM.
func Encode(distanceMM int) [Len]byte {
	f := [Len]byte{StartByte, byte(distanceMM >> 8), byte(distanceMM)}
	f[3] = Checksum(f[:3])
	return f
}
