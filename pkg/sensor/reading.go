package sensor

import (
	"fmt"
	"time"
)

// Kind identifies a physical quantity produced by the acquisition pipeline.
type Kind int

const (
	// TotalDissolvedSolids in ppm.
	TotalDissolvedSolids Kind = iota
	// Temperature in degrees Celsius.
	Temperature
	// WaterLevel in centimetres.
	WaterLevel
	// Acidity in pH units.
	Acidity

	// NumKinds is the number of reading kinds.
	NumKinds
)

// Kinds lists all reading kinds in reporting order.
var Kinds = [NumKinds]Kind{TotalDissolvedSolids, Temperature, WaterLevel, Acidity}

var kindNames = [NumKinds]string{"tds", "temperature", "water_level", "ph"}
var kindUnits = [NumKinds]string{"ppm", "°C", "cm", "pH"}

func (k Kind) String() string {
	if k < 0 || k >= NumKinds {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Unit returns the physical unit of the kind.
func (k Kind) Unit() string {
	if k < 0 || k >= NumKinds {
		return ""
	}
	return kindUnits[k]
}

// Reading is a single physical value. Valid is false when the sensor failed
// (Value is then 0) or has not been read yet.
type Reading struct {
	Kind  Kind
	Value float64
	Valid bool
}

// Set holds exactly one Reading per Kind.
// Writes overwrite the previous value in place.
//
// A Set is a plain value: passing it by value hands the callee a read-only
// snapshot.
type Set struct {
	At       time.Time
	Readings [NumKinds]Reading
}

// NewSet returns a set with every kind present and invalid.
func NewSet() Set {
	var s Set
	for _, k := range Kinds {
		s.Readings[k] = Reading{Kind: k}
	}
	return s
}

// Put stores a valid value for kind.
func (s *Set) Put(kind Kind, value float64) {
	s.Readings[kind] = Reading{Kind: kind, Value: value, Valid: true}
}

// Fail marks kind as failed for this cycle. The value is reset to 0.
func (s *Set) Fail(kind Kind) {
	s.Readings[kind] = Reading{Kind: kind}
}

// Get returns the value for kind and whether it is valid.
func (s Set) Get(kind Kind) (float64, bool) {
	r := s.Readings[kind]
	return r.Value, r.Valid
}

// Value returns the value for kind, 0 when it is not valid.
func (s Set) Value(kind Kind) float64 {
	return s.Readings[kind].Value
}

// Temperature returns the temperature reading used for compensation.
func (s Set) Temperature() (float64, bool) {
	return s.Get(Temperature)
}

// String formats the set as a single log line.
func (s Set) String() string {
	return fmt.Sprintf("TDS: %.2f ppm, pH: %.2f, Temp: %.2f °C, Water-Level: %.2f cm",
		s.Value(TotalDissolvedSolids), s.Value(Acidity), s.Value(Temperature), s.Value(WaterLevel))
}
