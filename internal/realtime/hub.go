// Package realtime implements the per-generation WebSocket progress
// channel: clients join room `generation-{id}` and receive progress,
// phase-change, scene-complete, generation-complete and error events
// through a register/unregister/broadcast hub.
package realtime

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Event types emitted by the orchestrator and phase 3.
const (
	EventProgress           = "progress"
	EventPhaseChange        = "phase-change"
	EventSceneComplete      = "scene-complete"
	EventGenerationComplete = "generation-complete"
	EventError              = "error"
)

// Message is the envelope written to every subscriber of a room.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ProgressPayload backs the "progress" event.
type ProgressPayload struct {
	GenerationID string `json:"generationId"`
	Progress     int    `json:"progress"`
	Phase        string `json:"phase"`
}

// PhaseChangePayload backs the "phase-change" event.
type PhaseChangePayload struct {
	GenerationID string `json:"generationId"`
	Phase        string `json:"phase"`
	Progress     int    `json:"progress"`
}

// SceneCompletePayload backs the "scene-complete" event.
type SceneCompletePayload struct {
	GenerationID string `json:"generationId"`
	SceneID      string `json:"sceneId"`
	SceneURL     string `json:"sceneUrl"`
}

// GenerationCompletePayload backs the "generation-complete" event.
type GenerationCompletePayload struct {
	GenerationID string `json:"generationId"`
	ResultURL    string `json:"resultUrl"`
}

// ErrorPayload backs the "error" event.
type ErrorPayload struct {
	GenerationID string `json:"generationId"`
	Error        string `json:"error"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type roomMessage struct {
	room    string
	message Message
}

type subscription struct {
	conn *websocket.Conn
	room string
}

// Hub fans out events to per-generation rooms. Delivery is fire-and-forget
//: a write failure only drops that one subscriber, it never blocks
// or fails the caller.
type Hub struct {
	logger *zap.Logger

	rooms map[string]map[*websocket.Conn]bool
	mu    sync.RWMutex

	register   chan subscription
	unregister chan subscription
	disconnect chan *websocket.Conn
	broadcast  chan roomMessage
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:     logger,
		rooms:      make(map[string]map[*websocket.Conn]bool),
		register:   make(chan subscription),
		unregister: make(chan subscription),
		disconnect: make(chan *websocket.Conn),
		broadcast:  make(chan roomMessage, 256),
	}
}

// Run drives the hub's event loop; call it once in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case sub := <-h.register:
			h.mu.Lock()
			if h.rooms[sub.room] == nil {
				h.rooms[sub.room] = make(map[*websocket.Conn]bool)
			}
			h.rooms[sub.room][sub.conn] = true
			h.mu.Unlock()

		case sub := <-h.unregister:
			h.mu.Lock()
			if conns, ok := h.rooms[sub.room]; ok {
				delete(conns, sub.conn)
				if len(conns) == 0 {
					delete(h.rooms, sub.room)
				}
			}
			h.mu.Unlock()

		case conn := <-h.disconnect:
			h.mu.Lock()
			for room, conns := range h.rooms {
				if _, ok := conns[conn]; ok {
					delete(conns, conn)
					if len(conns) == 0 {
						delete(h.rooms, room)
					}
				}
			}
			h.mu.Unlock()
			conn.Close()

		case rm := <-h.broadcast:
			h.mu.RLock()
			conns := h.rooms[rm.room]
			targets := make([]*websocket.Conn, 0, len(conns))
			for c := range conns {
				targets = append(targets, c)
			}
			h.mu.RUnlock()

			for _, c := range targets {
				if err := c.WriteJSON(rm.message); err != nil {
					h.logger.Warn("dropping websocket subscriber after write failure",
						zap.String("room", rm.room), zap.Error(err))
					go func(conn *websocket.Conn) { h.disconnect <- conn }(c)
				}
			}
		}
	}
}

// Room returns the canonical room name for a generation id.
func Room(generationID string) string {
	return "generation-" + generationID
}

// publish emits an event to a generation's room. Never blocks the caller
// for long: the broadcast channel is buffered and the hub loop does the
// actual (possibly slow) per-connection writes.
func (h *Hub) publish(generationID, eventType string, payload interface{}) {
	select {
	case h.broadcast <- roomMessage{room: Room(generationID), message: Message{Type: eventType, Data: payload}}:
	case <-time.After(time.Second):
		h.logger.Warn("dropped realtime event: broadcast channel full", zap.String("event", eventType), zap.String("generation_id", generationID))
	}
}

func (h *Hub) PublishProgress(generationID string, progress int, phase string) {
	h.publish(generationID, EventProgress, ProgressPayload{GenerationID: generationID, Progress: progress, Phase: phase})
}

func (h *Hub) PublishPhaseChange(generationID, phase string, progress int) {
	h.publish(generationID, EventPhaseChange, PhaseChangePayload{GenerationID: generationID, Phase: phase, Progress: progress})
}

func (h *Hub) PublishSceneComplete(generationID, sceneID, sceneURL string) {
	h.publish(generationID, EventSceneComplete, SceneCompletePayload{GenerationID: generationID, SceneID: sceneID, SceneURL: sceneURL})
}

func (h *Hub) PublishGenerationComplete(generationID, resultURL string) {
	h.publish(generationID, EventGenerationComplete, GenerationCompletePayload{GenerationID: generationID, ResultURL: resultURL})
}

func (h *Hub) PublishError(generationID, errMsg string) {
	h.publish(generationID, EventError, ErrorPayload{GenerationID: generationID, Error: errMsg})
}

// joinMessage / leaveMessage are the client→server control messages.
type clientMessage struct {
	Type         string `json:"type"`
	GenerationID string `json:"generationId"`
}

// ServeWS upgrades an HTTP request to a WebSocket connection and runs its
// read pump, handling join-generation/leave-generation control messages
// until the client disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	joined := make(map[string]bool)
	defer func() {
		for room := range joined {
			h.unregister <- subscription{conn: conn, room: room}
		}
		h.disconnect <- conn
	}()

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case "join-generation":
			room := Room(msg.GenerationID)
			h.register <- subscription{conn: conn, room: room}
			joined[room] = true
		case "leave-generation":
			room := Room(msg.GenerationID)
			h.unregister <- subscription{conn: conn, room: room}
			delete(joined, room)
		}
	}
}
