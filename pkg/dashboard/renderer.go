package dashboard

import (
	"fmt"
	"image/color"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"github.com/chewxy/math32"
)

const (
	marginLeft   = 60
	marginRight  = 20
	marginTop    = 20
	marginBottom = 40

	hLines = 8
	vLines = 10
)

var (
	gridColor  = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	labelColor = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	traceColor = color.RGBA{R: 80, G: 200, B: 120, A: 255}
)

type trendRenderer struct {
	trend *TrendWidget

	bg      *canvas.Rectangle
	objects []fyne.CanvasObject

	lastSize fyne.Size
}

func (r *trendRenderer) MinSize() fyne.Size {
	return fyne.NewSize(400, 240)
}

func (r *trendRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)
	if r.lastSize != size {
		r.lastSize = size
		r.trend.BaseWidget.Refresh()
	}
}

func (r *trendRenderer) Refresh() {
	r.trend.mu.RLock()
	points := r.trend.display
	kind := r.trend.kind
	yMin, yMax := r.trend.yMin, r.trend.yMax
	xMin, xMax := r.trend.xMin, r.trend.xMax
	r.trend.mu.RUnlock()

	size := r.trend.Size()
	if size.Width == 0 || size.Height == 0 {
		return
	}

	r.objects = []fyne.CanvasObject{r.bg}

	plot := plotArea{
		x: marginLeft,
		y: marginTop,
		w: math32.Max(size.Width-marginLeft-marginRight, 1),
		h: math32.Max(size.Height-marginTop-marginBottom, 1),
	}

	r.drawGrid(plot, yMin, yMax, xMax.Sub(xMin))

	unit := text(kind.String()+", "+kind.Unit(), 11, fyne.TextAlignLeading)
	unit.Move(fyne.NewPos(plot.x+10, plot.y+4))
	r.objects = append(r.objects, unit)

	span := xMax.Sub(xMin).Seconds()
	if span <= 0 {
		return
	}

	// Invalid points break the trace.
	var prev *fyne.Position
	for _, p := range points {
		if !p.Valid {
			prev = nil
			continue
		}
		pos := fyne.NewPos(
			plot.x+float32(p.At.Sub(xMin).Seconds()/span)*plot.w,
			plot.y+plot.h-project(float32(p.Value), yMin, yMax, plot.h),
		)
		if prev != nil {
			line := canvas.NewLine(traceColor)
			line.Position1 = *prev
			line.Position2 = pos
			line.StrokeWidth = 1.5
			r.objects = append(r.objects, line)
		}
		prev = &pos
	}
}

func (r *trendRenderer) drawGrid(plot plotArea, yMin, yMax float32, span time.Duration) {
	for i := 0; i < hLines+1; i++ {
		y := plot.y + float32(i)*plot.h/hLines
		r.objects = append(r.objects, gridLine(plot.x, y, plot.x+plot.w, y))

		v := yMax - float32(i)*(yMax-yMin)/hLines
		t := text(formatValue(v, yMax-yMin), 10, fyne.TextAlignTrailing)
		t.Move(fyne.NewPos(plot.x-5, y-6))
		r.objects = append(r.objects, t)
	}

	for i := 0; i < vLines+1; i++ {
		x := plot.x + float32(i)*plot.w/vLines
		r.objects = append(r.objects, gridLine(x, plot.y, x, plot.y+plot.h))

		ago := span - time.Duration(i)*span/vLines
		t := text(formatAgo(ago), 10, fyne.TextAlignCenter)
		t.Move(fyne.NewPos(x-20, plot.y+plot.h+5))
		r.objects = append(r.objects, t)
	}
}

func (r *trendRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

func (r *trendRenderer) Destroy() {}

type plotArea struct {
	x, y, w, h float32
}

func gridLine(x1, y1, x2, y2 float32) *canvas.Line {
	line := canvas.NewLine(gridColor)
	line.Position1 = fyne.NewPos(x1, y1)
	line.Position2 = fyne.NewPos(x2, y2)
	line.StrokeWidth = 1
	return line
}

func text(s string, size float32, align fyne.TextAlign) *canvas.Text {
	t := canvas.NewText(s, labelColor)
	t.TextSize = size
	t.Alignment = align
	return t
}

// project maps v from [lo, hi] onto [0, height].
func project(v, lo, hi, height float32) float32 {
	if hi <= lo {
		return height / 2
	}
	return math32.Min(math32.Max((v-lo)/(hi-lo), 0), 1) * height
}

// autoScale returns the vertical range of the valid points with a 10% margin.
func autoScale(points []Point) (float32, float32) {
	lo, hi := math32.Inf(1), math32.Inf(-1)
	for _, p := range points {
		if !p.Valid {
			continue
		}
		lo = math32.Min(lo, float32(p.Value))
		hi = math32.Max(hi, float32(p.Value))
	}
	if lo > hi {
		return 0, 1
	}

	margin := (hi - lo) * 0.1
	if margin == 0 {
		margin = math32.Max(math32.Abs(hi)*0.1, 0.1)
	}
	return lo - margin, hi + margin
}

// formatValue picks enough decimals to tell grid labels apart.
func formatValue(v, span float32) string {
	decimals := 0
	if step := span / hLines; step > 0 && step < 1 {
		decimals = int(math32.Ceil(-math32.Log10(step)))
	}
	if math32.Abs(v) < 1e-6 {
		v = 0
	}
	return fmt.Sprintf("%.*f", decimals, v)
}

func formatAgo(d time.Duration) string {
	switch {
	case d <= 0:
		return "now"
	case d < time.Minute:
		return fmt.Sprintf("-%.0fs", d.Seconds())
	default:
		return fmt.Sprintf("-%.1fm", d.Minutes())
	}
}
