// Package dashclient is a reconnecting consumer of the dashboard push
// stream, for terminal dashboards and smoke tooling.
package dashclient

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	initialBackoff = 2 * time.Second
	backoffFactor  = 1.5
	maxBackoff     = 30 * time.Second
	maxAttempts    = 5
)

// ErrGaveUp means all reconnect attempts were spent; the caller is in a
// terminal disconnected state and must restart explicitly.
var ErrGaveUp = errors.New("dashclient: gave up after max reconnect attempts")

// Message mirrors the server's wire envelope.
type Message struct {
	Type      string    `json:"type"`
	State     *State    `json:"state,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type State struct {
	Connected      bool                    `json:"connected"`
	VoiceChannels  map[string]ChannelState `json:"voiceChannels"`
	RecentCommands []CommandEntry          `json:"recentCommands"`
}

type ChannelState struct {
	Players []string `json:"players"`
}

type CommandEntry struct {
	At     time.Time `json:"at"`
	Kind   string    `json:"kind"`
	Player string    `json:"player"`
	Detail string    `json:"detail,omitempty"`
}

type Client struct {
	url string
	log *slog.Logger

	// OnMessage receives every decoded push. Required.
	OnMessage func(Message)
	// OnDown is told about each failed attempt and the wait before the
	// next one; lets a UI render a degraded state. Optional.
	OnDown func(attempt int, nextTry time.Duration)
}

func New(url string, log *slog.Logger, onMessage func(Message)) *Client {
	return &Client{url: url, log: log, OnMessage: onMessage}
}

// Backoff returns the wait before reconnect attempt n (1-based):
// 2s, 3s, 4.5s, … capped at 30s.
func Backoff(attempt int) time.Duration {
	d := initialBackoff
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * backoffFactor)
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// Run connects and streams until ctx is cancelled or the reconnect budget
// is exhausted. A successful connection resets the attempt counter.
func (c *Client) Run(ctx context.Context) error {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		if err != nil {
			attempt++
			if attempt >= maxAttempts {
				c.log.Error("dashclient_gave_up", "attempts", attempt)
				return ErrGaveUp
			}
			wait := Backoff(attempt)
			c.log.Warn("dashclient_dial_failed", "attempt", attempt, "retry_in", wait.String())
			if c.OnDown != nil {
				c.OnDown(attempt, wait)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}

		attempt = 0
		c.log.Info("dashclient_connected", "url", c.url)
		c.readLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("dashclient_disconnected")
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()
	for {
		var m Message
		if err := conn.ReadJSON(&m); err != nil {
			return
		}
		if c.OnMessage != nil {
			c.OnMessage(m)
		}
	}
}
