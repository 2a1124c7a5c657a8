package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vcguard/vcguard/internal/domain"
)

// ScannerService reconciles live voice membership against the presence
// store. Every redundant source is merged into one deduplicated pass per
// cycle; accounts are classified and normalized before they touch the store.
type ScannerService struct {
	log       *slog.Logger
	repo      PresenceRepo
	countdown *CountdownService
	sources   []VoiceSource
	dedup     EventDeduper

	approved  map[domain.ChannelID]struct{}
	ownerTest map[string]struct{}

	rescanDelay time.Duration
	onMutation  func() // dashboard refresh hook, may be nil

	mu sync.Mutex // serializes reconcile passes

	resMu sync.Mutex
	last  domain.ScanResult
}

func NewScannerService(
	log *slog.Logger,
	repo PresenceRepo,
	countdown *CountdownService,
	sources []VoiceSource,
	dedup EventDeduper,
	approvedChannels []string,
	ownerTestIDs []string,
	rescanDelay time.Duration,
	onMutation func(),
) *ScannerService {
	approved := make(map[domain.ChannelID]struct{}, len(approvedChannels))
	for _, id := range approvedChannels {
		approved[domain.ChannelID(id)] = struct{}{}
	}
	owners := make(map[string]struct{}, len(ownerTestIDs))
	for _, id := range ownerTestIDs {
		owners[id] = struct{}{}
	}
	return &ScannerService{
		log:         log,
		repo:        repo,
		countdown:   countdown,
		sources:     sources,
		dedup:       dedup,
		approved:    approved,
		ownerTest:   owners,
		rescanDelay: rescanDelay,
		onMutation:  onMutation,
	}
}

// Reconcile runs one full pass: collect every source, dedupe, classify,
// normalize, upsert, then sweep tracked players nobody reported. Returns
// counts of real players in approved channels vs. in-game players who are
// not. A single failing source is skipped; partial data beats none.
func (s *ScannerService) Reconcile(ctx context.Context) (domain.ScanResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tracked, err := s.repo.ListTracked(ctx)
	if err != nil {
		return domain.ScanResult{}, err
	}
	known := make(map[string]domain.PlayerRecord, len(tracked))
	for _, rec := range tracked {
		known[rec.ExternalID] = rec
	}

	// Cycle-scoped union of all sources; first observation of a user wins,
	// so the same account seen twice never double-counts.
	observed := make(map[string]VoiceObservation)
	for _, src := range s.sources {
		obs, err := src.Collect(ctx)
		if err != nil {
			s.log.Warn("voice_source_failed", "source", src.Name(), "error", err)
			continue
		}
		for id, o := range obs {
			if _, dup := observed[id]; dup {
				continue
			}
			observed[id] = o
		}
	}

	var res domain.ScanResult
	mutated := false
	observedIDs := make([]string, 0, len(observed))

	for id, o := range observed {
		observedIDs = append(observedIDs, id)

		class := s.classify(o)
		if class == domain.ClassBot {
			continue
		}

		ch := s.normalize(o.ChannelID)
		rec := known[id]
		rec.ExternalID = id
		rec.CurrentChannel = ch

		changed, err := s.repo.Upsert(ctx, rec)
		if err != nil {
			s.log.Error("presence_upsert_failed", "player", id, "error", err)
			continue
		}
		if changed {
			mutated = true
		}

		if class != domain.ClassReal {
			continue // owner/test accounts are tracked for display only
		}
		if ch != domain.ChannelNone {
			res.Approved++
			s.countdown.OnApprovedChannelRegained(ctx, rec)
		} else {
			if rec.InGame {
				res.UnapprovedOrAbsent++
			}
			s.countdown.OnApprovedChannelLost(ctx, rec)
		}
	}

	// Silent-leave sweep: anyone the sources missed entirely loses their
	// recorded channel. The store keeps reflecting the last explicit
	// observation for everything else.
	n, err := s.repo.SweepUnobserved(ctx, observedIDs)
	if err != nil {
		s.log.Error("sweep_failed", "error", err)
	} else if n > 0 {
		mutated = true
	}
	for _, rec := range tracked {
		if _, ok := observed[rec.ExternalID]; ok {
			continue
		}
		if _, owner := s.ownerTest[rec.ExternalID]; owner {
			continue
		}
		if rec.InGame {
			res.UnapprovedOrAbsent++
		}
		rec.CurrentChannel = domain.ChannelNone
		// idempotent: no-ops for players with a running timer or out of game
		s.countdown.OnApprovedChannelLost(ctx, rec)
	}

	if mutated && s.onMutation != nil {
		s.onMutation()
	}

	s.resMu.Lock()
	s.last = res
	s.resMu.Unlock()
	return res, nil
}

// HandleVoiceEvent reacts to one raw voice-transition event: reconcile
// right away, then schedule one follow-up pass to absorb upstream
// eventual-consistency lag. The follow-up is armed only after this pass
// finished, never mid-reconciliation.
func (s *ScannerService) HandleVoiceEvent(ctx context.Context, eventKey string) {
	if s.dedup != nil && s.dedup.SeenEvent(ctx, eventKey, 10*time.Second) {
		return
	}
	if _, err := s.Reconcile(ctx); err != nil {
		s.log.Error("event_scan_failed", "error", err)
		return
	}
	time.AfterFunc(s.rescanDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := s.Reconcile(ctx); err != nil {
			s.log.Warn("rescan_failed", "error", err)
		}
	})
}

// OnGameSession records a game join/quit reported by the bridge and
// re-reconciles so the countdown reacts immediately.
func (s *ScannerService) OnGameSession(ctx context.Context, externalID, gameUsername string, joined bool) {
	if err := s.repo.SetInGame(ctx, externalID, gameUsername, joined); err != nil {
		s.log.Error("set_in_game_failed", "player", externalID, "error", err)
		return
	}
	if !joined {
		s.countdown.Forget(externalID)
	}
	if _, err := s.Reconcile(ctx); err != nil {
		s.log.Error("game_event_scan_failed", "error", err)
	}
	if s.onMutation != nil {
		s.onMutation()
	}
}

// Run drives the fixed-interval scan loop until ctx is cancelled.
func (s *ScannerService) Run(ctx context.Context, every time.Duration) {
	if _, err := s.Reconcile(ctx); err != nil {
		s.log.Error("initial_scan_failed", "error", err)
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			cctx, cancel := context.WithTimeout(ctx, every)
			if _, err := s.Reconcile(cctx); err != nil {
				s.log.Error("interval_scan_failed", "error", err)
			}
			cancel()
		}
	}
}

// LastResult returns the counts from the most recent completed pass.
func (s *ScannerService) LastResult() domain.ScanResult {
	s.resMu.Lock()
	defer s.resMu.Unlock()
	return s.last
}

func (s *ScannerService) classify(o VoiceObservation) domain.Classification {
	if o.Bot {
		return domain.ClassBot
	}
	if _, ok := s.ownerTest[o.ExternalID]; ok {
		return domain.ClassOwnerTest
	}
	return domain.ClassReal
}

// normalize collapses anything outside the approved set to "none".
func (s *ScannerService) normalize(raw string) domain.ChannelID {
	if _, ok := s.approved[domain.ChannelID(raw)]; ok {
		return domain.ChannelID(raw)
	}
	return domain.ChannelNone
}
