package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/hydromon/pkg/acquire"
	"github.com/itohio/hydromon/pkg/config"
	"github.com/itohio/hydromon/pkg/dashboard"
	"github.com/itohio/hydromon/pkg/sensor"
	"go.uber.org/multierr"
)

// Dashboard refreshes are throttled, cycles may run faster than this.
const updateInterval = 250 * time.Millisecond

// appState holds the GUI state.
type appState struct {
	cfg        *config.Config
	configPath string
	cycle      *acquire.Cycle
	window     fyne.Window
	panel      *dashboard.Panel
	history    *dashboard.History

	lastUpdate time.Time
	updateMu   sync.Mutex
}

// runGUI shows the dashboard and blocks until the window closes or ctx is
// cancelled.
func runGUI(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, configPath string, cycle *acquire.Cycle) {
	application := app.NewWithID("com.itohio.hydromon")

	window := application.NewWindow("Hydroponics Monitor")
	window.Resize(fyne.NewSize(1000, 640))
	window.CenterOnScreen()

	history := dashboard.NewHistory(10 * time.Minute)
	state := &appState{
		cfg:        cfg,
		configPath: configPath,
		cycle:      cycle,
		window:     window,
		history:    history,
		panel:      dashboard.NewPanel(history),
	}

	cycle.OnUpdate(state.onUpdate)

	window.SetContent(container.NewBorder(
		createToolbar(state),
		nil, nil, nil,
		state.panel.Content(),
	))
	window.SetOnClosed(cancel)

	go func() {
		<-ctx.Done()
		fyne.Do(application.Quit)
	}()

	window.ShowAndRun()
}

func createToolbar(state *appState) fyne.CanvasObject {
	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(state)
	})
	return container.NewBorder(nil, nil, container.NewHBox(settingsBtn), nil, nil)
}

// onUpdate runs on the acquisition goroutine.
func (s *appState) onUpdate(set sensor.Set) {
	s.history.Add(set)

	s.updateMu.Lock()
	if set.At.Sub(s.lastUpdate) < updateInterval {
		s.updateMu.Unlock()
		return
	}
	s.lastUpdate = set.At
	s.updateMu.Unlock()

	err := readingErrors(set, s.cycle.Stats())
	fyne.Do(func() {
		s.panel.Update(set, err)
	})
}

// readingErrors combines the last error of every kind missing from set.
func readingErrors(set sensor.Set, st acquire.Stats) error {
	var err error
	for _, r := range set.Readings {
		if r.Valid {
			continue
		}
		msg := st.LastErrors[r.Kind.String()]
		if msg == "" {
			msg = "no reading"
		}
		err = multierr.Append(err, fmt.Errorf("%s: %w", r.Kind, errors.New(msg)))
	}
	return err
}
