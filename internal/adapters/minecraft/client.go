// Package minecraft talks to the companion plugin on the game server over
// a persistent websocket. The plugin owns the Discord↔Minecraft account
// link; its session events carry both identifiers.
package minecraft

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// frame is the JSON wire unit in both directions.
type frame struct {
	Seq       uint32 `json:"seq,omitempty"`
	Type      string `json:"type"`
	Player    string `json:"player,omitempty"`
	DiscordID string `json:"discord_id,omitempty"`
	Text      string `json:"text,omitempty"`
	Reason    string `json:"reason,omitempty"`
	OK        bool   `json:"ok,omitempty"`
	Error     string `json:"error,omitempty"`
}

const (
	frameWhisper = "whisper"
	frameKick    = "kick"
	frameAck     = "ack"
	frameJoin    = "player_join"
	frameQuit    = "player_quit"
)

// SessionEventHandler receives game join/quit events from the bridge.
type SessionEventHandler func(discordID, player string, joined bool)

var ErrNotConnected = errors.New("bridge not connected")

type Client struct {
	url string
	log *slog.Logger

	onSession SessionEventHandler

	wmu       sync.Mutex
	conn      *websocket.Conn
	connected atomic.Bool

	seq atomic.Uint32

	pmu     sync.Mutex
	pending map[uint32]chan frame
}

func NewClient(url string, log *slog.Logger, onSession SessionEventHandler) *Client {
	return &Client{
		url:       url,
		log:       log,
		onSession: onSession,
		pending:   make(map[uint32]chan frame),
	}
}

func (c *Client) Connected() bool { return c.connected.Load() }

// SendPrivateMessage whispers to a player in-game. Best-effort: fails fast
// when the bridge is down.
func (c *Client) SendPrivateMessage(ctx context.Context, player, text string) error {
	resp, err := c.request(ctx, frame{Type: frameWhisper, Player: player, Text: text})
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("whisper rejected: %s", resp.Error)
	}
	return nil
}

// ExecuteKick removes a player from the game session.
func (c *Client) ExecuteKick(ctx context.Context, player, reason string) error {
	resp, err := c.request(ctx, frame{Type: frameKick, Player: player, Reason: reason})
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("kick rejected: %s", resp.Error)
	}
	return nil
}

// request writes one frame and waits for its seq-matched ack.
func (c *Client) request(ctx context.Context, f frame) (frame, error) {
	if !c.connected.Load() {
		return frame{}, ErrNotConnected
	}

	f.Seq = c.seq.Add(1)
	ch := make(chan frame, 1)
	c.pmu.Lock()
	c.pending[f.Seq] = ch
	c.pmu.Unlock()
	defer func() {
		c.pmu.Lock()
		delete(c.pending, f.Seq)
		c.pmu.Unlock()
	}()

	c.wmu.Lock()
	conn := c.conn
	var err error
	if conn == nil {
		err = ErrNotConnected
	} else {
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		err = conn.WriteJSON(f)
	}
	c.wmu.Unlock()
	if err != nil {
		return frame{}, err
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return frame{}, ErrNotConnected
		}
		return resp, nil
	case <-ctx.Done():
		return frame{}, ctx.Err()
	case <-time.After(5 * time.Second):
		return frame{}, errors.New("bridge ack timeout")
	}
}
