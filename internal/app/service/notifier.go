package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vcguard/vcguard/internal/infra/cache"
	"github.com/vcguard/vcguard/internal/domain"
)

// NotifierService delivers messages and the punitive action across both
// platforms, trying handles in priority order: game-session whisper first,
// Discord DM as fallback. Every failure is logged and swallowed — the
// policy favors availability over guaranteed delivery.
type NotifierService struct {
	log    *slog.Logger
	game   GameSession
	dm     DirectMessenger
	cmdlog CommandLog

	cooldown time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

const commandLogKeep = 50

func NewNotifierService(log *slog.Logger, game GameSession, dm DirectMessenger, cmdlog CommandLog, cooldown time.Duration) *NotifierService {
	return &NotifierService{
		log:      log,
		game:     game,
		dm:       dm,
		cmdlog:   cmdlog,
		cooldown: cooldown,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (n *NotifierService) limiter(externalID string) *rate.Limiter {
	n.mu.Lock()
	defer n.mu.Unlock()
	l, ok := n.limiters[externalID]
	if !ok {
		l = rate.NewLimiter(rate.Every(n.cooldown), 1)
		n.limiters[externalID] = l
	}
	return l
}

// SendMessage is best-effort: per-player cooldown, then the first handle
// that accepts the message wins. Never returns an error.
func (n *NotifierService) SendMessage(ctx context.Context, p domain.PlayerRecord, text string) {
	if n.cooldown > 0 && !n.limiter(p.ExternalID).Allow() {
		n.log.Debug("message_suppressed", "player", p.ExternalID)
		return
	}

	delivered := false
	if n.game != nil && n.game.Connected() && p.GameUsername != "" {
		if err := n.game.SendPrivateMessage(ctx, p.GameUsername, text); err != nil {
			n.log.Warn("game_whisper_failed", "player", p.GameUsername, "error", err)
		} else {
			delivered = true
		}
	}
	if !delivered && n.dm != nil {
		if err := n.dm.SendDM(ctx, p.ExternalID, text); err != nil {
			n.log.Warn("dm_failed", "player", p.ExternalID, "error", err)
		} else {
			delivered = true
		}
	}
	if !delivered {
		n.log.Warn("message_dropped", "player", p.ExternalID)
		return
	}
	n.record(ctx, cache.CommandEntry{At: time.Now(), Kind: "warn", Player: p.ExternalID, Detail: text})
}

// PerformPunitiveAction kicks the player from the game session. When the
// bridge is down the player at least gets a DM explaining what happened.
func (n *NotifierService) PerformPunitiveAction(ctx context.Context, p domain.PlayerRecord, reason string) {
	acted := false
	if n.game != nil && n.game.Connected() && p.GameUsername != "" {
		if err := n.game.ExecuteKick(ctx, p.GameUsername, reason); err != nil {
			n.log.Warn("kick_failed", "player", p.GameUsername, "error", err)
		} else {
			acted = true
			n.log.Info("player_kicked", "player", p.GameUsername, "reason", reason)
		}
	}
	if !acted && n.dm != nil {
		if err := n.dm.SendDM(ctx, p.ExternalID, "You were flagged for removal from the game: "+reason); err != nil {
			n.log.Warn("dm_failed", "player", p.ExternalID, "error", err)
		}
	}
	n.record(ctx, cache.CommandEntry{At: time.Now(), Kind: "kick", Player: p.ExternalID, Detail: reason})
}

func (n *NotifierService) record(ctx context.Context, e cache.CommandEntry) {
	if n.cmdlog == nil {
		return
	}
	if err := n.cmdlog.PushCommand(ctx, e, commandLogKeep); err != nil {
		n.log.Warn("command_log_failed", "error", err)
	}
}
