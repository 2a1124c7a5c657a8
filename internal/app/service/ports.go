package service

import (
	"context"
	"time"

	"github.com/vcguard/vcguard/internal/domain"
	"github.com/vcguard/vcguard/internal/infra/cache"
	"github.com/vcguard/vcguard/internal/infra/storage"
)

// Implemented by internal/infra/storage.PresenceRepo
type PresenceRepo interface {
	Get(ctx context.Context, externalID string) (domain.PlayerRecord, error)
	Upsert(ctx context.Context, p domain.PlayerRecord) (bool, error)
	ListTracked(ctx context.Context) ([]domain.PlayerRecord, error)
	SweepUnobserved(ctx context.Context, observed []string) (int64, error)
	SetInGame(ctx context.Context, externalID, gameUsername string, inGame bool) error
	ClearAll(ctx context.Context, externalID string) (bool, error)
}

// Implemented by internal/infra/storage.PolicyRepo
type PolicyRepo interface {
	Get(ctx context.Context, guildID string) (storage.EnforcementPolicy, error)
	Update(ctx context.Context, guildID string, u storage.PolicyUpdate) (storage.EnforcementPolicy, error)
}

// VoiceObservation is one account seen by one live source.
type VoiceObservation struct {
	ExternalID string
	Username   string
	ChannelID  string // raw platform channel id, "" when not in voice
	Bot        bool
}

// VoiceSource is one redundant view of live voice membership. Sources
// overlap on purpose; the scanner merges them into a single pass.
type VoiceSource interface {
	Name() string
	Collect(ctx context.Context) (map[string]VoiceObservation, error)
}

// GameSession is the capability handle into the game server. It may be
// absent or disconnected at any time; callers must tolerate failure.
type GameSession interface {
	Connected() bool
	SendPrivateMessage(ctx context.Context, gameUsername, text string) error
	ExecuteKick(ctx context.Context, gameUsername, reason string) error
}

// DirectMessenger is the fallback delivery path over the voice platform.
type DirectMessenger interface {
	SendDM(ctx context.Context, externalID, text string) error
}

// EventDeduper collapses duplicate gateway deliveries of one transition.
type EventDeduper interface {
	SeenEvent(ctx context.Context, key string, ttl time.Duration) bool
}

// CommandLog records outbound actions for the dashboard history.
type CommandLog interface {
	PushCommand(ctx context.Context, e cache.CommandEntry, keep int64) error
}

// Notifier is what the countdown engine fires messages and the punitive
// action through. Implemented by NotifierService.
type Notifier interface {
	SendMessage(ctx context.Context, p domain.PlayerRecord, text string)
	PerformPunitiveAction(ctx context.Context, p domain.PlayerRecord, reason string)
}
