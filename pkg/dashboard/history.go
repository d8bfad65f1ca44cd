package dashboard

import (
	"sync"
	"time"

	"github.com/itohio/hydromon/pkg/sensor"
)

// Point is one value of a reading trend.
type Point struct {
	At    time.Time
	Value float64
	Valid bool
}

// History keeps the readings of the last window per kind, oldest first.
type History struct {
	window time.Duration

	mu     sync.RWMutex
	points [sensor.NumKinds][]Point
}

// NewHistory creates a history covering window.
func NewHistory(window time.Duration) *History {
	if window <= 0 {
		window = 10 * time.Minute
	}
	return &History{window: window}
}

// Window returns the time span kept.
func (h *History) Window() time.Duration { return h.window }

// Add appends every reading of s and drops points older than the window.
func (h *History) Add(s sensor.Set) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := s.At.Add(-h.window)
	for _, r := range s.Readings {
		pts := append(h.points[r.Kind], Point{At: s.At, Value: r.Value, Valid: r.Valid})

		drop := 0
		for drop < len(pts) && !pts[drop].At.After(cutoff) {
			drop++
		}
		if drop > 0 {
			pts = append(pts[:0], pts[drop:]...)
		}
		h.points[r.Kind] = pts
	}
}

// Points returns a copy of the trend of kind.
func (h *History) Points(kind sensor.Kind) []Point {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Point, len(h.points[kind]))
	copy(out, h.points[kind])
	return out
}

// Downsample decimates points to at most maxPoints for display.
// It reuses dst when it has sufficient capacity.
func Downsample(dst []Point, points []Point, maxPoints int) []Point {
	if len(points) <= maxPoints {
		if cap(dst) >= len(points) {
			dst = dst[:len(points)]
			copy(dst, points)
			return dst
		}
		result := make([]Point, len(points))
		copy(result, points)
		return result
	}

	if cap(dst) >= maxPoints {
		dst = dst[:0]
	} else {
		dst = make([]Point, 0, maxPoints)
	}

	step := float64(len(points)) / float64(maxPoints)
	for i := 0; i < maxPoints; i++ {
		idx := int(float64(i) * step)
		if idx < len(points) {
			dst = append(dst, points[idx])
		}
	}
	return dst
}
