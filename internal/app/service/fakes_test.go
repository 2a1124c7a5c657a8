package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/vcguard/vcguard/internal/domain"
	"github.com/vcguard/vcguard/internal/infra/cache"
	"github.com/vcguard/vcguard/internal/infra/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memRepo is an in-memory PresenceRepo with the same change-detection
// contract as the SQL implementation: Upsert reports whether the row
// actually differed.
type memRepo struct {
	mu   sync.Mutex
	rows map[string]domain.PlayerRecord
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[string]domain.PlayerRecord)}
}

func (m *memRepo) Get(_ context.Context, externalID string) (domain.PlayerRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rows[externalID]
	if !ok {
		return domain.PlayerRecord{}, storage.ErrNotFound
	}
	return rec, nil
}

func (m *memRepo) Upsert(_ context.Context, p domain.PlayerRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.rows[p.ExternalID]
	if ok && old.CurrentChannel == p.CurrentChannel &&
		old.GameUsername == p.GameUsername && old.InGame == p.InGame {
		return false, nil
	}
	p.LastUpdated = time.Now()
	m.rows[p.ExternalID] = p
	return true, nil
}

func (m *memRepo) ListTracked(_ context.Context) ([]domain.PlayerRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.PlayerRecord, 0, len(m.rows))
	for _, rec := range m.rows {
		out = append(out, rec)
	}
	return out, nil
}

func (m *memRepo) SweepUnobserved(_ context.Context, observed []string) (int64, error) {
	seen := make(map[string]struct{}, len(observed))
	for _, id := range observed {
		seen[id] = struct{}{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, rec := range m.rows {
		if _, ok := seen[id]; ok {
			continue
		}
		if rec.CurrentChannel != domain.ChannelNone {
			rec.CurrentChannel = domain.ChannelNone
			rec.LastUpdated = time.Now()
			m.rows[id] = rec
			n++
		}
	}
	return n, nil
}

func (m *memRepo) SetInGame(_ context.Context, externalID, gameUsername string, inGame bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.rows[externalID]
	rec.ExternalID = externalID
	if gameUsername != "" {
		rec.GameUsername = gameUsername
	}
	rec.InGame = inGame
	rec.LastUpdated = time.Now()
	m.rows[externalID] = rec
	return nil
}

func (m *memRepo) ClearAll(_ context.Context, externalID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[externalID]
	delete(m.rows, externalID)
	return ok, nil
}

func (m *memRepo) put(rec domain.PlayerRecord) {
	m.mu.Lock()
	m.rows[rec.ExternalID] = rec
	m.mu.Unlock()
}

// stubPolicy always hands back a fixed policy row.
type stubPolicy struct {
	pol storage.EnforcementPolicy
}

func (s *stubPolicy) Get(context.Context, string) (storage.EnforcementPolicy, error) {
	return s.pol, nil
}

func (s *stubPolicy) Update(_ context.Context, _ string, _ storage.PolicyUpdate) (storage.EnforcementPolicy, error) {
	return s.pol, nil
}

func enabledPolicy() *stubPolicy {
	// zero durations mean the service defaults apply
	return &stubPolicy{pol: storage.EnforcementPolicy{Enabled: true}}
}

// recorder captures everything a countdown pushes through the Notifier.
type recorder struct {
	mu       sync.Mutex
	messages []string
	kicked   []string
}

func (r *recorder) SendMessage(_ context.Context, p domain.PlayerRecord, text string) {
	r.mu.Lock()
	r.messages = append(r.messages, p.ExternalID+": "+text)
	r.mu.Unlock()
}

func (r *recorder) PerformPunitiveAction(_ context.Context, p domain.PlayerRecord, _ string) {
	r.mu.Lock()
	r.kicked = append(r.kicked, p.ExternalID)
	r.mu.Unlock()
}

func (r *recorder) messageCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

func (r *recorder) kickCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.kicked)
}

// fakeSource is a scripted VoiceSource.
type fakeSource struct {
	name  string
	obs   map[string]VoiceObservation
	err   error
	calls int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Collect(context.Context) (map[string]VoiceObservation, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]VoiceObservation, len(f.obs))
	for k, v := range f.obs {
		out[k] = v
	}
	return out, nil
}

// fakeDedup marks every event as already seen when tripped.
type fakeDedup struct {
	seen bool
}

func (f *fakeDedup) SeenEvent(context.Context, string, time.Duration) bool { return f.seen }

// fakeCmdLog counts recorded command entries per kind.
type fakeCmdLog struct {
	mu      sync.Mutex
	entries []cache.CommandEntry
}

func (f *fakeCmdLog) PushCommand(_ context.Context, e cache.CommandEntry, _ int64) error {
	f.mu.Lock()
	f.entries = append(f.entries, e)
	f.mu.Unlock()
	return nil
}

func (f *fakeCmdLog) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.entries))
	for i, e := range f.entries {
		out[i] = e.Kind
	}
	return out
}
