package dashboard

import (
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/hydromon/pkg/sensor"
)

const maxDisplayPoints = 600

// TrendWidget plots the recent history of one reading.
type TrendWidget struct {
	widget.BaseWidget

	window time.Duration

	mu      sync.RWMutex
	kind    sensor.Kind
	display []Point

	yMin, yMax float32
	xMin, xMax time.Time
}

// NewTrend creates a trend widget showing window of history.
func NewTrend(window time.Duration) *TrendWidget {
	t := &TrendWidget{
		window:  window,
		display: make([]Point, 0, maxDisplayPoints),
	}
	t.ExtendBaseWidget(t)
	t.Refresh()
	return t
}

// UpdateData replaces the plotted points. Call on the fyne main thread.
func (t *TrendWidget) UpdateData(kind sensor.Kind, points []Point) {
	t.mu.Lock()
	t.kind = kind
	t.display = Downsample(t.display, points, maxDisplayPoints)
	t.yMin, t.yMax = autoScale(t.display)
	t.xMin, t.xMax = timeRange(t.display, t.window)
	t.mu.Unlock()

	t.Refresh()
}

// CreateRenderer creates the widget renderer.
func (t *TrendWidget) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255})
	return &trendRenderer{
		trend:   t,
		bg:      bg,
		objects: []fyne.CanvasObject{bg},
	}
}

func timeRange(points []Point, window time.Duration) (time.Time, time.Time) {
	if len(points) == 0 {
		now := time.Now()
		return now.Add(-window), now
	}
	last := points[len(points)-1].At
	first := points[0].At
	if last.Sub(first) < window {
		first = last.Add(-window)
	}
	return first, last
}
