package dashboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/vcguard/vcguard/internal/infra/cache"
)

// Message types pushed to dashboard clients.
const (
	MessageTypeState = "state"
	MessageTypeError = "error"
)

// Message is the dashboard wire envelope.
type Message struct {
	Type      string    `json:"type"`
	State     *State    `json:"state,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// State is the dashboard snapshot payload.
type State struct {
	Connected      bool                    `json:"connected"`
	VoiceChannels  map[string]ChannelState `json:"voiceChannels"`
	RecentCommands []cache.CommandEntry    `json:"recentCommands"`
}

type ChannelState struct {
	Players []string `json:"players"`
}

// Hub maintains the set of connected dashboard clients and fans snapshots
// out to all of them. New clients immediately get the latest snapshot.
type Hub struct {
	log *slog.Logger

	mu      sync.RWMutex
	clients map[*Client]bool
	last    []byte

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(log *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		log:        log,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run is the hub's main loop.
func (h *Hub) Run() {
	h.log.Info("dashboard_hub_started")
	for {
		select {
		case <-h.ctx.Done():
			h.log.Info("dashboard_hub_stopping")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			last := h.last
			h.mu.Unlock()
			h.log.Debug("dashboard_client_registered", "client_id", client.id)
			if last != nil {
				select {
				case client.send <- last:
				default:
				}
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.log.Debug("dashboard_client_unregistered", "client_id", client.id)

		case data := <-h.broadcast:
			h.mu.Lock()
			h.last = data
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					// client buffer full, skip
					h.log.Warn("dashboard_client_slow", "client_id", client.id)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) Stop() { h.cancel() }

// BroadcastState pushes a fresh snapshot to every connected client.
func (h *Hub) BroadcastState(st State) {
	h.push(Message{Type: MessageTypeState, State: &st, Timestamp: time.Now()})
}

// BroadcastError tells clients the snapshot could not be built.
func (h *Hub) BroadcastError(errMsg string) {
	h.push(Message{Type: MessageTypeError, Error: errMsg, Timestamp: time.Now()})
}

func (h *Hub) push(m Message) {
	data, err := json.Marshal(m)
	if err != nil {
		h.log.Error("dashboard_marshal_failed", "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.log.Warn("dashboard_broadcast_full")
	}
}

// LastSnapshot returns the most recently broadcast message, if any.
func (h *Hub) LastSnapshot() []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.last
}

// ClientCount reports connected dashboard clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Register(c *Client)   { h.register <- c }
func (h *Hub) Unregister(c *Client) { h.unregister <- c }
