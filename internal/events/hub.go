package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"raybox-panel/internal/job"
	"raybox-panel/internal/monitor"
)

// Hub fans monitor and job updates out to connected WebSocket clients.
// Only the hub goroutine writes to connections; producers enqueue onto the
// broadcast channel, so no handler ever touches UI state directly.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

type message struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		stopCh:     make(chan struct{}),
	}
}

func (h *Hub) Start() {
	h.wg.Add(1)
	go h.loop()
}

func (h *Hub) Stop() {
	close(h.stopCh)
	h.wg.Wait()
}

func (h *Hub) loop() {
	defer h.wg.Done()

	for {
		select {
		case <-h.stopCh:
			for conn := range h.clients {
				conn.Close()
			}
			return
		case conn := <-h.register:
			h.clients[conn] = true
			log.Debug().Int("clients", len(h.clients)).Msg("websocket client connected")
		case conn := <-h.unregister:
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
		case payload := <-h.broadcast:
			for conn := range h.clients {
				if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
					conn.Close()
					delete(h.clients, conn)
				}
			}
		}
	}
}

func (h *Hub) Register(conn *websocket.Conn) {
	select {
	case h.register <- conn:
	case <-h.stopCh:
		conn.Close()
	}
}

func (h *Hub) Unregister(conn *websocket.Conn) {
	select {
	case h.unregister <- conn:
	case <-h.stopCh:
	}
}

func (h *Hub) send(msgType string, data any) {
	payload, err := json.Marshal(message{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	})
	if err != nil {
		log.Error().Err(err).Str("type", msgType).Msg("failed to marshal event")
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		log.Warn().Str("type", msgType).Msg("event queue full, dropping event")
	}
}

// JobUpdated implements monitor.Broadcaster.
func (h *Hub) JobUpdated(r *job.Record) {
	h.send("job_update", r)
}

// MachineState implements monitor.Broadcaster.
func (h *Hub) MachineState(state monitor.MachineState) {
	h.send("machine_state", state)
}

// MonitorChanged announces monitoring start/stop to clients.
func (h *Hub) MonitorChanged(status monitor.Status) {
	h.send("monitor", status)
}
