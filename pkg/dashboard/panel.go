// Package dashboard renders the latest readings and their recent trend with fyne.
package dashboard

import (
	"fmt"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/hydromon/pkg/sensor"
)

// Panel shows one value tile per reading kind above a trend of the selected kind.
type Panel struct {
	history *History

	values [sensor.NumKinds]*widget.Label
	status *widget.Label
	picker *widget.Select
	trend  *TrendWidget

	selected sensor.Kind
	content  fyne.CanvasObject
}

// NewPanel creates a panel plotting from history.
func NewPanel(history *History) *Panel {
	p := &Panel{
		history:  history,
		status:   widget.NewLabel("waiting for first cycle"),
		trend:    NewTrend(history.Window()),
		selected: sensor.TotalDissolvedSolids,
	}

	tiles := container.NewGridWithColumns(int(sensor.NumKinds))
	names := make([]string, 0, sensor.NumKinds)
	for _, k := range sensor.Kinds {
		p.values[k] = widget.NewLabelWithStyle("--", fyne.TextAlignCenter, fyne.TextStyle{Bold: true})
		tiles.Add(widget.NewCard(k.String(), k.Unit(), p.values[k]))
		names = append(names, k.String())
	}

	p.picker = widget.NewSelect(names, func(name string) {
		for _, k := range sensor.Kinds {
			if k.String() == name {
				p.selected = k
			}
		}
		p.trend.UpdateData(p.selected, p.history.Points(p.selected))
	})
	p.picker.SetSelected(p.selected.String())

	p.content = container.NewBorder(
		container.NewVBox(tiles, container.NewBorder(nil, nil, p.picker, nil, p.status)),
		nil, nil, nil,
		p.trend,
	)
	return p
}

// Content returns the root canvas object of the panel.
func (p *Panel) Content() fyne.CanvasObject { return p.content }

// Update shows s and err. Call on the fyne main thread.
func (p *Panel) Update(s sensor.Set, err error) {
	for _, r := range s.Readings {
		if r.Valid {
			p.values[r.Kind].SetText(formatReading(r))
		} else {
			p.values[r.Kind].SetText("--")
		}
	}

	if err != nil {
		p.status.SetText(err.Error())
	} else {
		p.status.SetText("updated " + s.At.Format(time.TimeOnly))
	}

	p.trend.UpdateData(p.selected, p.history.Points(p.selected))
}

// Selected returns the kind shown in the trend.
func (p *Panel) Selected() sensor.Kind { return p.selected }

func formatReading(r sensor.Reading) string {
	switch r.Kind {
	case sensor.Acidity:
		return fmt.Sprintf("%.2f", r.Value)
	case sensor.Temperature, sensor.WaterLevel:
		return fmt.Sprintf("%.1f", r.Value)
	default:
		return fmt.Sprintf("%.0f", r.Value)
	}
}
