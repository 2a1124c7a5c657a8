package minecraft

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pongWait   = 60 * time.Second
	pingEvery  = 20 * time.Second
	maxBackoff = 30 * time.Second
)

// Run dials the bridge and keeps the connection alive until ctx is
// cancelled, reconnecting with doubling backoff. Safe to call with an
// unreachable endpoint; the client just stays disconnected.
func (c *Client) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		if err != nil {
			c.log.Warn("bridge_dial_failed", "error", err, "retry_in", backoff.String())
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < maxBackoff {
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
			}
			continue
		}
		backoff = time.Second

		c.setup(conn)
		c.log.Info("bridge_connected", "url", c.url)

		stopPing := make(chan struct{})
		go c.pingLoop(conn, stopPing)
		go func() {
			// unblock the read loop when the caller shuts down
			select {
			case <-ctx.Done():
				_ = conn.Close()
			case <-stopPing:
			}
		}()
		c.readLoop(ctx, conn)
		close(stopPing)

		c.teardown(conn)
		c.log.Warn("bridge_disconnected")
	}
}

func (c *Client) setup(conn *websocket.Conn) {
	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	c.wmu.Lock()
	c.conn = conn
	c.wmu.Unlock()
	c.connected.Store(true)
}

func (c *Client) teardown(conn *websocket.Conn) {
	c.connected.Store(false)
	c.wmu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.wmu.Unlock()
	_ = conn.Close()

	// fail any in-flight requests instead of letting them ride the timeout
	c.pmu.Lock()
	for seq, ch := range c.pending {
		close(ch)
		delete(c.pending, seq)
	}
	c.pmu.Unlock()
}

func (c *Client) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	t := time.NewTicker(pingEvery)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			c.wmu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			c.wmu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		if ctx.Err() != nil {
			return
		}
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			if ctx.Err() == nil {
				c.log.Warn("bridge_read_failed", "error", err)
			}
			return
		}

		switch f.Type {
		case frameAck:
			c.pmu.Lock()
			ch, ok := c.pending[f.Seq]
			if ok {
				delete(c.pending, f.Seq)
			}
			c.pmu.Unlock()
			if ok {
				ch <- f
			}
		case frameJoin, frameQuit:
			if c.onSession != nil && f.DiscordID != "" {
				go c.onSession(f.DiscordID, f.Player, f.Type == frameJoin)
			}
		default:
			c.log.Debug("bridge_frame_ignored", "type", f.Type)
		}
	}
}
