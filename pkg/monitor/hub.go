// Package monitor serves the latest readings over HTTP and streams every
// published set to websocket clients.
package monitor

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/itohio/hydromon/pkg/acquire"
	"github.com/itohio/hydromon/pkg/sensor"
)

// Source provides the data served by the hub.
type Source interface {
	Snapshot() sensor.Set
	Stats() acquire.Stats
}

// Reading is the JSON form of one sensor reading.
type Reading struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
	Valid bool    `json:"valid"`
}

// Message is the JSON structure sent to clients.
type Message struct {
	Readings map[string]Reading `json:"readings"`
	Stamp    int64              `json:"stamp"` // Unix ms of the acquisition cycle
}

// NewMessage converts a reading set.
func NewMessage(s sensor.Set) Message {
	m := Message{
		Readings: make(map[string]Reading, sensor.NumKinds),
		Stamp:    s.At.UnixMilli(),
	}
	for _, r := range s.Readings {
		m.Readings[r.Kind.String()] = Reading{Value: r.Value, Unit: r.Kind.Unit(), Valid: r.Valid}
	}
	return m
}

// Hub broadcasts reading sets to websocket clients.
type Hub struct {
	src        Source
	listenAddr string

	clients   map[*wsClient]struct{}
	clientsMu sync.RWMutex

	upgrader websocket.Upgrader
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// New creates a hub serving src on listenAddr.
func New(listenAddr string, src Source) *Hub {
	return &Hub{
		src:        src,
		listenAddr: listenAddr,
		clients:    make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP routes of the hub.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWS)
	mux.HandleFunc("/api/readings", h.handleReadings)
	mux.HandleFunc("/api/stats", h.handleStats)
	return mux
}

// Run serves HTTP until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    h.listenAddr,
		Handler: h.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	log.Printf("[monitor] listening on %s", h.listenAddr)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Publish sends s to every connected client. Slow clients miss messages.
func (h *Hub) Publish(s sensor.Set) {
	h.broadcast(NewMessage(s))
}

// Clients returns the number of connected websocket clients.
func (h *Hub) Clients() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- data:
		default:
		}
	}
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[monitor] upgrade error: %v", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 64),
	}

	if data, err := json.Marshal(NewMessage(h.src.Snapshot())); err == nil {
		client.send <- data
	}

	h.clientsMu.Lock()
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.clientsMu.Unlock()

	log.Printf("[monitor] client connected (%d total)", n)

	go func() {
		defer conn.Close()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	go func() {
		defer func() {
			h.clientsMu.Lock()
			delete(h.clients, client)
			n := len(h.clients)
			h.clientsMu.Unlock()
			close(client.send)
			log.Printf("[monitor] client disconnected (%d total)", n)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (h *Hub) handleReadings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, NewMessage(h.src.Snapshot()))
}

func (h *Hub) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, h.src.Stats())
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}
