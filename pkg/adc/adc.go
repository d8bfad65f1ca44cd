package adc

import (
	"errors"
	"fmt"
)

var (
	// ErrConversion is returned when the driver fails to produce a raw code.
	ErrConversion = errors.New("adc: conversion failed")
	// ErrCalibration is returned when a calibrated conversion fails.
	ErrCalibration = errors.New("adc: calibration failed")
	// ErrOutOfRange is returned when the voltage exceeds 99% of the reference.
	ErrOutOfRange = errors.New("adc: voltage out of range")
)

const (
	// DefaultWindow is the moving average length.
	DefaultWindow = 16
	// DefaultFullScaleCode is the largest code of a 12-bit converter.
	DefaultFullScaleCode = 4095
	// OverVoltageRatio is the fraction of the reference voltage above which a
	// sample is rejected.
	OverVoltageRatio = 0.99
)

// Driver reads raw conversion codes from a hardware ADC.
type Driver interface {
	ReadRaw(channel int) (int, error)
}

// Calibrator is implemented by drivers that can convert a raw code to
// millivolts using per-device calibration data.
type Calibrator interface {
	RawToMillivolts(channel, raw int) (int, error)
}

// Attenuation is the input attenuation setting of a channel.
type Attenuation string

const (
	Atten0dB   Attenuation = "db0"
	Atten2_5dB Attenuation = "db2_5"
	Atten6dB   Attenuation = "db6"
	Atten12dB  Attenuation = "db12"
)

// DefaultReferenceVoltages maps attenuation settings to the full-scale
// voltage of the channel.
func DefaultReferenceVoltages() map[Attenuation]float64 {
	return map[Attenuation]float64{
		Atten0dB:   3.3,
		Atten2_5dB: 3.3,
		Atten6dB:   2.15,
		Atten12dB:  3.3,
	}
}

// ReferenceVoltage looks up the full-scale voltage for att in table.
func ReferenceVoltage(att Attenuation, table map[Attenuation]float64) (float64, error) {
	if table == nil {
		table = DefaultReferenceVoltages()
	}
	v, ok := table[att]
	if !ok || v <= 0 {
		return 0, fmt.Errorf("adc: no reference voltage for attenuation %q", att)
	}
	return v, nil
}

// ChannelConfig describes one analog input. It is not modified after the
// channel is created.
type ChannelConfig struct {
	Name             string      `yaml:"name"`
	Channel          int         `yaml:"channel"`
	Attenuation      Attenuation `yaml:"attenuation"`
	ReferenceVoltage float64     `yaml:"reference_voltage,omitempty"` // Derived from Attenuation when 0
	FullScaleCode    int         `yaml:"full_scale_code,omitempty"`   // Largest raw code, 4095 when 0
	Calibrate        bool        `yaml:"calibrate"`                   // Use driver calibration when available
}
