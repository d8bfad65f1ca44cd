package main

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/hydromon/pkg/sensor"
	"github.com/itohio/hydromon/pkg/sonar"
)

// showSettingsDialog edits the configuration file. Changes apply on restart.
func showSettingsDialog(state *appState) {
	tabs := container.NewAppTabs(
		createSerialTab(state),
		createSensorsTab(state),
		createCycleTab(state),
	)

	content := container.NewBorder(
		widget.NewLabel("Changes are saved to "+state.configPath+" and apply on restart."),
		nil, nil, nil,
		tabs,
	)

	d := dialog.NewCustom("Settings", "Close", content, state.window)
	d.Resize(fyne.NewSize(560, 420))
	d.Show()
}

func createSerialTab(state *appState) *container.TabItem {
	ports, err := sonar.Ports()
	options := []string{}
	byDisplay := make(map[string]string)

	if err == nil {
		for _, p := range ports {
			display := p.Name
			if p.Description != "" && p.Description != p.Name {
				display = fmt.Sprintf("%s (%s)", p.Name, p.Description)
			}
			options = append(options, display)
			byDisplay[display] = p.Name
		}
	}

	current := state.cfg.Serial.Port
	selected := current
	found := false
	for _, opt := range options {
		if byDisplay[opt] == current {
			selected = opt
			found = true
			break
		}
	}
	if !found && current != "" {
		options = append(options, current)
		byDisplay[current] = current
	}

	portSelect := widget.NewSelect(options, nil)
	if selected != "" {
		portSelect.SetSelected(selected)
	}

	baudEntry := widget.NewEntry()
	baudEntry.SetText(strconv.Itoa(state.cfg.Serial.BaudRate))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Ultrasonic Port", Widget: portSelect},
			{Text: "Baud Rate", Widget: baudEntry},
		},
		OnSubmit: func() {
			if portSelect.Selected != "" {
				port := byDisplay[portSelect.Selected]
				if port == "" {
					port = portSelect.Selected
				}
				state.cfg.Serial.Port = port
			}
			if baud, err := strconv.Atoi(baudEntry.Text); err == nil {
				state.cfg.Serial.BaudRate = baud
			}
			saveConfig(state)
		},
	}

	return container.NewTabItem("Serial", form)
}

func createSensorsTab(state *appState) *container.TabItem {
	tdsSelect := widget.NewSelect(sortedKeys(state.cfg.Sensors.TDS.Profiles), nil)
	tdsSelect.SetSelected(state.cfg.Sensors.TDS.Profile)

	phSelect := widget.NewSelect(sortedKeys(state.cfg.Sensors.PH.Profiles), nil)
	phSelect.SetSelected(state.cfg.Sensors.PH.Profile)

	modeSelect := widget.NewSelect([]string{sensor.LevelModeDistance, sensor.LevelModeLevel}, nil)
	modeSelect.SetSelected(state.cfg.Sensors.Ultrasonic.Mode)

	tankEntry := widget.NewEntry()
	tankEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Sensors.Ultrasonic.TankHeightCM))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "TDS Profile", Widget: tdsSelect},
			{Text: "pH Profile", Widget: phSelect},
			{Text: "Water Level Mode", Widget: modeSelect},
			{Text: "Tank Height (cm)", Widget: tankEntry},
		},
		OnSubmit: func() {
			state.cfg.Sensors.TDS.Profile = tdsSelect.Selected
			state.cfg.Sensors.PH.Profile = phSelect.Selected
			state.cfg.Sensors.Ultrasonic.Mode = modeSelect.Selected
			if h, err := strconv.ParseFloat(tankEntry.Text, 64); err == nil {
				state.cfg.Sensors.Ultrasonic.TankHeightCM = h
			}
			saveConfig(state)
		},
	}

	return container.NewTabItem("Sensors", form)
}

func createCycleTab(state *appState) *container.TabItem {
	periodEntry := widget.NewEntry()
	periodEntry.SetText(state.cfg.Cycle.Period.String())

	windowEntry := widget.NewEntry()
	windowEntry.SetText(strconv.Itoa(state.cfg.ADC.Window))

	logEntry := widget.NewEntry()
	logEntry.SetText(strconv.Itoa(state.cfg.Cycle.LogEvery))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Period", Widget: periodEntry},
			{Text: "Averaging Window (samples)", Widget: windowEntry},
			{Text: "Log Every (cycles, 0=off)", Widget: logEntry},
		},
		OnSubmit: func() {
			if p, err := time.ParseDuration(periodEntry.Text); err == nil {
				state.cfg.Cycle.Period = p
			}
			if w, err := strconv.Atoi(windowEntry.Text); err == nil {
				state.cfg.ADC.Window = w
			}
			if n, err := strconv.Atoi(logEntry.Text); err == nil {
				state.cfg.Cycle.LogEvery = n
			}
			saveConfig(state)
		},
	}

	return container.NewTabItem("Cycle", form)
}

// saveConfig validates and writes the configuration file.
func saveConfig(state *appState) {
	if err := state.cfg.Validate(); err != nil {
		dialog.ShowError(fmt.Errorf("invalid settings: %w", err), state.window)
		return
	}
	if err := state.cfg.Save(state.configPath); err != nil {
		dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
