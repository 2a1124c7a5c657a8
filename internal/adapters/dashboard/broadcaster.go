package dashboard

import (
	"context"
	"log/slog"
	"time"

	"github.com/vcguard/vcguard/internal/domain"
	"github.com/vcguard/vcguard/internal/infra/cache"
)

type PresenceLister interface {
	ListTracked(ctx context.Context) ([]domain.PlayerRecord, error)
}

type BridgeStatus interface {
	Connected() bool
}

type CommandHistory interface {
	RecentCommands(ctx context.Context, n int64) ([]cache.CommandEntry, error)
}

const recentCommandCount = 20

// Broadcaster turns the presence store into dashboard snapshots and hands
// them to the hub. Refresh runs after every store mutation.
type Broadcaster struct {
	log      *slog.Logger
	hub      *Hub
	presence PresenceLister
	bridge   BridgeStatus
	history  CommandHistory
}

func NewBroadcaster(log *slog.Logger, hub *Hub, presence PresenceLister, bridge BridgeStatus, history CommandHistory) *Broadcaster {
	return &Broadcaster{log: log, hub: hub, presence: presence, bridge: bridge, history: history}
}

// Snapshot builds the current dashboard state.
func (b *Broadcaster) Snapshot(ctx context.Context) (State, error) {
	recs, err := b.presence.ListTracked(ctx)
	if err != nil {
		return State{}, err
	}

	st := State{
		VoiceChannels:  make(map[string]ChannelState),
		RecentCommands: []cache.CommandEntry{},
	}
	if b.bridge != nil {
		st.Connected = b.bridge.Connected()
	}
	for _, rec := range recs {
		if rec.CurrentChannel == domain.ChannelNone {
			continue
		}
		ch := st.VoiceChannels[string(rec.CurrentChannel)]
		name := rec.GameUsername
		if name == "" {
			name = rec.ExternalID
		}
		ch.Players = append(ch.Players, name)
		st.VoiceChannels[string(rec.CurrentChannel)] = ch
	}

	if b.history != nil {
		cmds, err := b.history.RecentCommands(ctx, recentCommandCount)
		if err != nil {
			b.log.Warn("command_history_failed", "error", err)
		} else {
			st.RecentCommands = cmds
		}
	}
	return st, nil
}

// Refresh rebuilds the snapshot and pushes it to every connected client.
func (b *Broadcaster) Refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	st, err := b.Snapshot(ctx)
	if err != nil {
		b.log.Error("snapshot_failed", "error", err)
		b.hub.BroadcastError("snapshot unavailable")
		return
	}
	b.hub.BroadcastState(st)
}
