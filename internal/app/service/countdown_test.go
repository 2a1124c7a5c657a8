package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vcguard/vcguard/internal/domain"
)

func newCountdown(repo *memRepo, rec *recorder, grace, warnEvery time.Duration) *CountdownService {
	return NewCountdownService(testLogger(), repo, enabledPolicy(), rec, "guild-1", grace, warnEvery)
}

func inGamePlayer(id string) domain.PlayerRecord {
	return domain.PlayerRecord{ExternalID: id, GameUsername: "mc_" + id, InGame: true}
}

func TestCountdown_SingleTimerPerPlayer(t *testing.T) {
	repo := newMemRepo()
	rec := &recorder{}
	c := newCountdown(repo, rec, time.Minute, time.Hour)

	p := inGamePlayer("100")
	repo.put(p)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.OnApprovedChannelLost(context.Background(), p)
		}()
	}
	wg.Wait()

	if got := c.ActiveTimers(); got != 1 {
		t.Errorf("expected 1 active timer after concurrent starts, got %d", got)
	}
	if got := rec.messageCount(); got != 1 {
		t.Errorf("expected 1 initial warning, got %d", got)
	}
	c.Forget("100")
}

func TestCountdown_RejoinBeforeExpiryCancels(t *testing.T) {
	repo := newMemRepo()
	rec := &recorder{}
	c := newCountdown(repo, rec, 120*time.Millisecond, time.Hour)

	p := inGamePlayer("200")
	repo.put(p)

	c.OnApprovedChannelLost(context.Background(), p)
	if !c.HasTimer("200") {
		t.Fatal("expected a running timer")
	}

	time.Sleep(30 * time.Millisecond)
	p.CurrentChannel = "1179321724785922088"
	repo.put(p)
	c.OnApprovedChannelRegained(context.Background(), p)

	if c.HasTimer("200") {
		t.Error("expected timer to be cancelled on rejoin")
	}

	// well past the original deadline; nothing must fire
	time.Sleep(250 * time.Millisecond)
	if got := rec.kickCount(); got != 0 {
		t.Errorf("expected no punitive action after cancelled countdown, got %d", got)
	}
	if got := rec.messageCount(); got != 2 {
		t.Errorf("expected warning + cancellation message, got %d messages", got)
	}
}

func TestCountdown_RegainedWithoutTimerIsSilent(t *testing.T) {
	repo := newMemRepo()
	rec := &recorder{}
	c := newCountdown(repo, rec, time.Minute, time.Hour)

	c.OnApprovedChannelRegained(context.Background(), inGamePlayer("300"))
	if got := rec.messageCount(); got != 0 {
		t.Errorf("expected no message when no countdown was running, got %d", got)
	}
}

func TestCountdown_ExpiryKicksExactlyOnce(t *testing.T) {
	repo := newMemRepo()
	rec := &recorder{}
	c := newCountdown(repo, rec, 40*time.Millisecond, time.Hour)

	p := inGamePlayer("400")
	repo.put(p)

	c.OnApprovedChannelLost(context.Background(), p)
	time.Sleep(200 * time.Millisecond)

	if got := rec.kickCount(); got != 1 {
		t.Fatalf("expected exactly one punitive action, got %d", got)
	}
	if c.HasTimer("400") {
		t.Error("expected timer entry removed after expiry")
	}

	// a straggling second fire finds no entry and does nothing
	c.expire("400")
	if got := rec.kickCount(); got != 1 {
		t.Errorf("expected punitive action to stay at 1, got %d", got)
	}
}

func TestCountdown_ExpirySkipsWhenStoreShowsRejoin(t *testing.T) {
	repo := newMemRepo()
	rec := &recorder{}
	c := newCountdown(repo, rec, 40*time.Millisecond, time.Hour)

	p := inGamePlayer("500")
	repo.put(p)
	c.OnApprovedChannelLost(context.Background(), p)

	// store reflects a rejoin the timer never heard about
	p.CurrentChannel = "1179321724785922088"
	repo.put(p)

	time.Sleep(200 * time.Millisecond)
	if got := rec.kickCount(); got != 0 {
		t.Errorf("expected expiry to defer to the store, got %d kicks", got)
	}
}

func TestCountdown_ExpirySkipsWhenPlayerLeftGame(t *testing.T) {
	repo := newMemRepo()
	rec := &recorder{}
	c := newCountdown(repo, rec, 40*time.Millisecond, time.Hour)

	p := inGamePlayer("600")
	repo.put(p)
	c.OnApprovedChannelLost(context.Background(), p)

	p.InGame = false
	repo.put(p)

	time.Sleep(200 * time.Millisecond)
	if got := rec.kickCount(); got != 0 {
		t.Errorf("expected no kick for a player who already quit, got %d", got)
	}
}

func TestCountdown_IgnoresPlayersNotInGame(t *testing.T) {
	repo := newMemRepo()
	rec := &recorder{}
	c := newCountdown(repo, rec, time.Minute, time.Hour)

	p := domain.PlayerRecord{ExternalID: "700", InGame: false}
	c.OnApprovedChannelLost(context.Background(), p)

	if got := c.ActiveTimers(); got != 0 {
		t.Errorf("expected no timer for a player outside the game, got %d", got)
	}
}

func TestCountdown_DisabledPolicySuppressesTimers(t *testing.T) {
	repo := newMemRepo()
	rec := &recorder{}
	c := NewCountdownService(testLogger(), repo, &stubPolicy{}, rec, "guild-1", time.Minute, time.Hour)

	c.OnApprovedChannelLost(context.Background(), inGamePlayer("800"))
	if got := c.ActiveTimers(); got != 0 {
		t.Errorf("expected no timers while enforcement is disabled, got %d", got)
	}
}

func TestCountdown_WarningsRepeatUntilDeadline(t *testing.T) {
	repo := newMemRepo()
	rec := &recorder{}
	c := newCountdown(repo, rec, 250*time.Millisecond, 50*time.Millisecond)

	p := inGamePlayer("900")
	repo.put(p)
	c.OnApprovedChannelLost(context.Background(), p)

	time.Sleep(400 * time.Millisecond)
	// initial warning plus at least two interval reminders
	if got := rec.messageCount(); got < 3 {
		t.Errorf("expected repeated warnings during the grace window, got %d", got)
	}
	if got := rec.kickCount(); got != 1 {
		t.Errorf("expected one punitive action at deadline, got %d", got)
	}
}

func TestCountdown_ForgetDropsTimerSilently(t *testing.T) {
	repo := newMemRepo()
	rec := &recorder{}
	c := newCountdown(repo, rec, time.Minute, time.Hour)

	p := inGamePlayer("1000")
	repo.put(p)
	c.OnApprovedChannelLost(context.Background(), p)
	before := rec.messageCount()

	c.Forget("1000")
	if c.HasTimer("1000") {
		t.Error("expected timer to be dropped")
	}
	if got := rec.messageCount(); got != before {
		t.Errorf("expected no extra message on Forget, got %d (was %d)", got, before)
	}
}
