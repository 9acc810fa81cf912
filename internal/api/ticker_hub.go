package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/agrostack/mandi-engine/internal/metrics"
	"github.com/agrostack/mandi-engine/internal/model"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	writeWait  = 10 * time.Second
)

// TickerSource produces the current ticker rows.
type TickerSource interface {
	Ticker(ctx context.Context) []model.TickerEntry
}

// TickerMessage is the JSON frame pushed to ticker clients.
type TickerMessage struct {
	Type    string              `json:"type"` // always "ticker"
	Entries []model.TickerEntry `json:"entries"`
	At      time.Time           `json:"at"`
}

type tickerClient struct {
	id   string
	conn *websocket.Conn
}

// TickerHub polls the ticker source on an interval and pushes each snapshot
// to every connected WebSocket client. New clients get the latest snapshot
// immediately.
type TickerHub struct {
	source   TickerSource
	interval time.Duration

	clients    map[string]*websocket.Conn
	register   chan tickerClient
	unregister chan string
	broadcast  chan []byte
	done       chan struct{}
	mu         sync.RWMutex

	lastMu sync.RWMutex
	last   []byte
}

// NewTickerHub creates a hub. Call Run to start it.
func NewTickerHub(source TickerSource, interval time.Duration) *TickerHub {
	return &TickerHub{
		source:     source,
		interval:   interval,
		clients:    make(map[string]*websocket.Conn),
		register:   make(chan tickerClient),
		unregister: make(chan string),
		broadcast:  make(chan []byte, 16),
		done:       make(chan struct{}),
	}
}

// Run starts polling and the hub's event loop. It blocks until ctx is
// cancelled, then closes every client connection.
func (h *TickerHub) Run(ctx context.Context) {
	defer close(h.done)
	go h.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, conn := range h.clients {
				conn.Close()
				delete(h.clients, id)
			}
			h.mu.Unlock()
			metrics.TickerClients.Set(0)
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.id] = c.conn
			total := len(h.clients)
			h.mu.Unlock()
			metrics.TickerClients.Set(float64(total))
			slog.Info("ticker client connected", "client", c.id, "total", total)

			if snapshot := h.snapshot(); snapshot != nil {
				h.send(c.id, c.conn, snapshot)
			}

		case id := <-h.unregister:
			h.mu.Lock()
			if conn, ok := h.clients[id]; ok {
				delete(h.clients, id)
				conn.Close()
			}
			total := len(h.clients)
			h.mu.Unlock()
			metrics.TickerClients.Set(float64(total))

		case msg := <-h.broadcast:
			h.mu.RLock()
			targets := make(map[string]*websocket.Conn, len(h.clients))
			for id, conn := range h.clients {
				targets[id] = conn
			}
			h.mu.RUnlock()
			for id, conn := range targets {
				h.send(id, conn, msg)
			}
		}
	}
}

// send writes one frame; a failed client is dropped. Only the Run loop
// writes data frames, so writes never race.
func (h *TickerHub) send(id string, conn *websocket.Conn, msg []byte) {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		h.mu.Lock()
		delete(h.clients, id)
		total := len(h.clients)
		h.mu.Unlock()
		conn.Close()
		metrics.TickerClients.Set(float64(total))
	}
}

func (h *TickerHub) poll(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.refresh(ctx)
		}
	}
}

// refresh takes a ticker snapshot and queues it for broadcast.
func (h *TickerHub) refresh(ctx context.Context) {
	data, err := json.Marshal(TickerMessage{
		Type:    "ticker",
		Entries: nonNil(h.source.Ticker(ctx)),
		At:      time.Now().UTC(),
	})
	if err != nil {
		slog.Error("encode ticker snapshot", "err", err)
		return
	}

	h.lastMu.Lock()
	h.last = data
	h.lastMu.Unlock()

	select {
	case h.broadcast <- data:
	default:
		// Drop if the loop is behind; the next tick carries fresher data.
	}
}

func (h *TickerHub) snapshot() []byte {
	h.lastMu.RLock()
	defer h.lastMu.RUnlock()
	return h.last
}

// ClientCount returns the number of connected clients.
func (h *TickerHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true // CORS policy is enforced by the router.
	},
}

// HandleWS handles WebSocket upgrade requests at GET /api/v1/ticker/ws.
func (h *TickerHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}

	id := uuid.New().String()
	select {
	case h.register <- tickerClient{id: id, conn: conn}:
	case <-h.done:
		conn.Close()
		return
	}

	// Read pump: keep connection alive and detect disconnects.
	go func() {
		defer func() {
			select {
			case h.unregister <- id:
			case <-h.done:
			}
		}()
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()

	// Ping ticker to keep connection alive through proxies. WriteControl is
	// safe to call concurrently with the Run loop's writes.
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-h.done:
				return
			case <-ticker.C:
			}
			h.mu.RLock()
			_, ok := h.clients[id]
			h.mu.RUnlock()
			if !ok {
				return
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}()
}

func nonNil(entries []model.TickerEntry) []model.TickerEntry {
	if entries == nil {
		return []model.TickerEntry{}
	}
	return entries
}
