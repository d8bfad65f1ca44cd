package monitor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/itohio/hydromon/pkg/acquire"
	"github.com/itohio/hydromon/pkg/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	set   sensor.Set
	stats acquire.Stats
}

func (f *fakeSource) Snapshot() sensor.Set  { return f.set }
func (f *fakeSource) Stats() acquire.Stats { return f.stats }

func testSet(tds float64) sensor.Set {
	s := sensor.NewSet()
	s.At = time.UnixMilli(1700000000000)
	s.Put(sensor.TotalDissolvedSolids, tds)
	s.Put(sensor.Temperature, 21.5)
	return s
}

func TestNewMessage(t *testing.T) {
	m := NewMessage(testSet(480))

	assert.Equal(t, int64(1700000000000), m.Stamp)
	require.Len(t, m.Readings, int(sensor.NumKinds))
	assert.Equal(t, Reading{Value: 480, Unit: "ppm", Valid: true}, m.Readings["tds"])
	assert.Equal(t, Reading{Value: 0, Unit: "pH", Valid: false}, m.Readings["ph"])
}

func TestHub_Readings(t *testing.T) {
	src := &fakeSource{set: testSet(480)}
	srv := httptest.NewServer(New("", src).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/readings")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var m Message
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	assert.Equal(t, 21.5, m.Readings["temperature"].Value)

	post, err := http.Post(srv.URL+"/api/readings", "application/json", nil)
	require.NoError(t, err)
	post.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, post.StatusCode)
}

func TestHub_Stats(t *testing.T) {
	src := &fakeSource{stats: acquire.Stats{Phase: "acquisition", Cycles: 12, Failures: map[string]uint64{"ph": 2}}}
	srv := httptest.NewServer(New("", src).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var st acquire.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, uint64(12), st.Cycles)
	assert.Equal(t, uint64(2), st.Failures["ph"])
}

func TestHub_WebsocketStream(t *testing.T) {
	src := &fakeSource{set: testSet(480)}
	hub := New("", src)
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() Message {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var m Message
		require.NoError(t, conn.ReadJSON(&m))
		return m
	}

	// Current snapshot on connect.
	first := read()
	assert.Equal(t, 480.0, first.Readings["tds"].Value)
	assert.Equal(t, 1, hub.Clients())

	hub.Publish(testSet(510))
	next := read()
	assert.Equal(t, 510.0, next.Readings["tds"].Value)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}
