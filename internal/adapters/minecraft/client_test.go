package minecraft

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sessionEvent struct {
	discordID string
	player    string
	joined    bool
}

// fakeBridge acts as the companion plugin: acks whispers, rejects kicks
// for offline players, and announces one join on connect.
func fakeBridge(t *testing.T) string {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.WriteJSON(frame{Type: frameJoin, Player: "steve", DiscordID: "42"})

		for {
			var f frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			switch f.Type {
			case frameWhisper:
				_ = conn.WriteJSON(frame{Seq: f.Seq, Type: frameAck, OK: true})
			case frameKick:
				_ = conn.WriteJSON(frame{Seq: f.Seq, Type: frameAck, OK: false, Error: "player offline"})
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestClient_FailsFastWhenDisconnected(t *testing.T) {
	c := NewClient("ws://127.0.0.1:1/ws", testLogger(), nil)
	if err := c.SendPrivateMessage(context.Background(), "steve", "hi"); err != ErrNotConnected {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
	if err := c.ExecuteKick(context.Background(), "steve", "test"); err != ErrNotConnected {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestClient_WhisperKickAndSessionEvents(t *testing.T) {
	url := fakeBridge(t)

	events := make(chan sessionEvent, 4)
	c := NewClient(url, testLogger(), func(discordID, player string, joined bool) {
		events <- sessionEvent{discordID, player, joined}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	waitFor(t, c.Connected, "client never connected")

	select {
	case ev := <-events:
		if ev.discordID != "42" || ev.player != "steve" || !ev.joined {
			t.Errorf("unexpected session event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("join event never delivered")
	}

	if err := c.SendPrivateMessage(ctx, "steve", "rejoin voice"); err != nil {
		t.Errorf("expected whisper to be acked, got %v", err)
	}

	err := c.ExecuteKick(ctx, "steve", "grace expired")
	if err == nil || !strings.Contains(err.Error(), "player offline") {
		t.Errorf("expected rejected kick to surface the bridge error, got %v", err)
	}
}

func TestClient_ReconnectsAfterServerDrop(t *testing.T) {
	up := websocket.Upgrader{}
	var drops atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if drops.Add(1) == 1 {
			// first connection dies immediately
			conn.Close()
			return
		}
		defer conn.Close()
		for {
			var f frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			_ = conn.WriteJSON(frame{Seq: f.Seq, Type: frameAck, OK: true})
		}
	}))
	defer srv.Close()

	c := NewClient("ws"+strings.TrimPrefix(srv.URL, "http"), testLogger(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	// survives the first drop and comes back on the retry
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if c.Connected() {
			if err := c.SendPrivateMessage(ctx, "steve", "still here"); err == nil {
				return
			}
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatal("client never recovered after the server dropped it")
}
