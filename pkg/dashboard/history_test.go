package dashboard

import (
	"testing"
	"time"

	"github.com/itohio/hydromon/pkg/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setAt(at time.Time, tds float64) sensor.Set {
	s := sensor.NewSet()
	s.At = at
	s.Put(sensor.TotalDissolvedSolids, tds)
	return s
}

func TestHistory_AddAndWindow(t *testing.T) {
	h := NewHistory(time.Minute)
	start := time.Unix(1700000000, 0)

	for i := 0; i < 5; i++ {
		h.Add(setAt(start.Add(time.Duration(i)*30*time.Second), float64(100+i)))
	}

	pts := h.Points(sensor.TotalDissolvedSolids)
	require.Len(t, pts, 2)
	assert.Equal(t, 103.0, pts[0].Value)
	assert.Equal(t, 104.0, pts[1].Value)
	assert.True(t, pts[1].Valid)

	ph := h.Points(sensor.Acidity)
	require.Len(t, ph, 2)
	assert.False(t, ph[0].Valid)
}

func TestHistory_PointsIsCopy(t *testing.T) {
	h := NewHistory(time.Minute)
	h.Add(setAt(time.Unix(1700000000, 0), 100))

	pts := h.Points(sensor.TotalDissolvedSolids)
	pts[0].Value = -1

	assert.Equal(t, 100.0, h.Points(sensor.TotalDissolvedSolids)[0].Value)
}

func TestHistory_DefaultWindow(t *testing.T) {
	assert.Equal(t, 10*time.Minute, NewHistory(0).Window())
}

func TestDownsample(t *testing.T) {
	src := make([]Point, 100)
	for i := range src {
		src[i].Value = float64(i)
	}

	t.Run("short input is copied", func(t *testing.T) {
		dst := make([]Point, 0, 200)
		out := Downsample(dst, src[:10], 50)
		require.Len(t, out, 10)
		assert.Equal(t, 9.0, out[9].Value)
		out[0].Value = -1
		assert.Equal(t, 0.0, src[0].Value)
	})

	t.Run("decimates", func(t *testing.T) {
		out := Downsample(nil, src, 10)
		require.Len(t, out, 10)
		for i, p := range out {
			assert.Equal(t, float64(i*10), p.Value)
		}
	})

	t.Run("reuses dst", func(t *testing.T) {
		dst := make([]Point, 0, 20)
		out := Downsample(dst, src, 20)
		require.Len(t, out, 20)
		assert.Equal(t, &dst[:1][0], &out[0])
	})
}
