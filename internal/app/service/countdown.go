package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vcguard/vcguard/internal/domain"
)

// CountdownService drives the per-player grace timer state machine:
// Connected → Disconnected(grace) → cancelled on rejoin, punitive on expiry.
// At most one timer per player exists at any instant.
type CountdownService struct {
	log      *slog.Logger
	repo     PresenceRepo
	policy   PolicyRepo
	notifier Notifier
	guildID  string

	// Fallbacks when the policy row is unreadable or zeroed.
	defaultGrace     time.Duration
	defaultWarnEvery time.Duration

	mu     sync.Mutex
	timers map[string]*countdownTimer
}

type countdownTimer struct {
	deadline     time.Time
	warningsSent int
	timer        *time.Timer
	stopWarn     chan struct{}
}

func NewCountdownService(
	log *slog.Logger,
	repo PresenceRepo,
	policy PolicyRepo,
	notifier Notifier,
	guildID string,
	grace, warnEvery time.Duration,
) *CountdownService {
	return &CountdownService{
		log:              log,
		repo:             repo,
		policy:           policy,
		notifier:         notifier,
		guildID:          guildID,
		defaultGrace:     grace,
		defaultWarnEvery: warnEvery,
		timers:           make(map[string]*countdownTimer),
	}
}

func (c *CountdownService) graceWindows(ctx context.Context) (grace, warnEvery time.Duration, enabled bool) {
	grace, warnEvery, enabled = c.defaultGrace, c.defaultWarnEvery, true
	pol, err := c.policy.Get(ctx, c.guildID)
	if err != nil {
		c.log.Warn("policy_read_failed", "error", err)
		return
	}
	enabled = pol.Enabled
	if pol.GraceSeconds > 0 {
		grace = time.Duration(pol.GraceSeconds) * time.Second
	}
	if pol.WarningIntervalSeconds > 0 {
		warnEvery = time.Duration(pol.WarningIntervalSeconds) * time.Second
	}
	return
}

// OnApprovedChannelLost starts the grace countdown for a player who is
// active in-game but no longer in an approved channel. A no-op when the
// player already has a running timer or is not in-game.
func (c *CountdownService) OnApprovedChannelLost(ctx context.Context, p domain.PlayerRecord) {
	if !p.InGame {
		return
	}
	grace, warnEvery, enabled := c.graceWindows(ctx)
	if !enabled {
		return
	}

	id := p.ExternalID
	c.mu.Lock()
	if _, exists := c.timers[id]; exists {
		c.mu.Unlock()
		return
	}
	t := &countdownTimer{
		deadline: time.Now().Add(grace),
		stopWarn: make(chan struct{}),
	}
	t.timer = time.AfterFunc(grace, func() { c.expire(id) })
	t.warningsSent = 1
	c.timers[id] = t
	c.mu.Unlock()

	c.log.Info("countdown_started", "player", id, "grace", grace.String())
	c.notifier.SendMessage(ctx, p, fmt.Sprintf(
		"You left the approved voice channel. Rejoin within %s or you will be removed from the game.",
		grace.Round(time.Second)))
	go c.warnLoop(p, t, warnEvery)
}

// OnApprovedChannelRegained cancels any pending timer for the player and
// confirms it. Idempotent when no timer exists. Cancellation happens
// synchronously before any other step so a concurrently firing expiry
// always loses to an observed reconnect.
func (c *CountdownService) OnApprovedChannelRegained(ctx context.Context, p domain.PlayerRecord) {
	if !c.cancel(p.ExternalID) {
		return
	}
	c.log.Info("countdown_cancelled", "player", p.ExternalID)
	c.notifier.SendMessage(ctx, p, "Voice check passed — countdown cancelled.")
}

// Forget drops a player's timer without messaging, for players who left
// the game entirely.
func (c *CountdownService) Forget(externalID string) {
	if c.cancel(externalID) {
		c.log.Info("countdown_dropped", "player", externalID)
	}
}

func (c *CountdownService) cancel(externalID string) bool {
	c.mu.Lock()
	t, ok := c.timers[externalID]
	if ok {
		t.timer.Stop()
		close(t.stopWarn)
		delete(c.timers, externalID)
	}
	c.mu.Unlock()
	return ok
}

func (c *CountdownService) warnLoop(p domain.PlayerRecord, t *countdownTimer, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopWarn:
			return
		case <-ticker.C:
			c.mu.Lock()
			_, alive := c.timers[p.ExternalID]
			remaining := time.Until(t.deadline)
			if alive && remaining > 0 {
				t.warningsSent++
			}
			c.mu.Unlock()
			if !alive || remaining <= 0 {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			c.notifier.SendMessage(ctx, p, fmt.Sprintf(
				"%s left to rejoin an approved voice channel.", remaining.Round(time.Second)))
			cancel()
		}
	}
}

// expire runs when the grace deadline passes. The timer entry is removed
// under the lock first, so a second fire (or a racing cancel) is a no-op;
// the punitive action runs at most once. Conditions are re-checked against
// the store before acting — best-effort guard, a reconnect that was never
// observed cannot be honored.
func (c *CountdownService) expire(externalID string) {
	c.mu.Lock()
	t, ok := c.timers[externalID]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.timers, externalID)
	close(t.stopWarn)
	warnings := t.warningsSent
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rec, err := c.repo.Get(ctx, externalID)
	if err != nil {
		c.log.Warn("expire_lookup_failed", "player", externalID, "error", err)
		return
	}
	if !rec.InGame || rec.InApprovedChannel() {
		c.log.Info("expire_skipped", "player", externalID,
			"in_game", rec.InGame, "channel", string(rec.CurrentChannel))
		return
	}

	c.log.Info("countdown_expired", "player", externalID, "warnings_sent", warnings)
	c.notifier.PerformPunitiveAction(ctx, rec, "stayed out of the approved voice channels past the grace period")
}

// ActiveTimers reports how many countdowns are currently pending.
func (c *CountdownService) ActiveTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// HasTimer reports whether a countdown is pending for the player.
func (c *CountdownService) HasTimer(externalID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.timers[externalID]
	return ok
}
