package sensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet_PutOverwrites(t *testing.T) {
	s := NewSet()
	for _, k := range Kinds {
		_, ok := s.Get(k)
		assert.False(t, ok, k.String())
	}

	s.Put(Temperature, 20)
	s.Put(Temperature, 21)
	v, ok := s.Temperature()
	assert.True(t, ok)
	assert.Equal(t, 21.0, v)

	s.Fail(Temperature)
	v, ok = s.Temperature()
	assert.False(t, ok)
	assert.Equal(t, 0.0, v)
	assert.Equal(t, Temperature, s.Readings[Temperature].Kind)
}

func TestSet_ValueSemantics(t *testing.T) {
	s := NewSet()
	s.Put(Acidity, 7)

	snap := s
	s.Put(Acidity, 8)

	assert.Equal(t, 7.0, snap.Value(Acidity))
	assert.Equal(t, 8.0, s.Value(Acidity))
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "tds", TotalDissolvedSolids.String())
	assert.Equal(t, "temperature", Temperature.String())
	assert.Equal(t, "water_level", WaterLevel.String())
	assert.Equal(t, "ph", Acidity.String())
	assert.Equal(t, "kind(9)", Kind(9).String())
	assert.Equal(t, "cm", WaterLevel.Unit())
}
