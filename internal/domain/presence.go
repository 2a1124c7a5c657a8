package domain

import "time"

// ChannelID is a Discord voice channel id. Only channels from the approved
// set are ever stored; everything else collapses to ChannelNone.
type ChannelID string

const ChannelNone ChannelID = ""

// PlayerRecord is the durable presence row for one Discord account.
// Key = ExternalID (Discord snowflake).
type PlayerRecord struct {
	ExternalID     string
	GameUsername   string
	CurrentChannel ChannelID
	InGame         bool
	LastUpdated    time.Time
}

func (p PlayerRecord) InApprovedChannel() bool { return p.CurrentChannel != ChannelNone }

// Classification decides whether a presence observation counts toward
// policy enforcement. Derived each scan, never stored.
type Classification int

const (
	ClassReal Classification = iota
	ClassOwnerTest
	ClassBot
)

func (c Classification) String() string {
	switch c {
	case ClassOwnerTest:
		return "owner_test"
	case ClassBot:
		return "bot"
	default:
		return "real"
	}
}

// ScanResult is what one reconciliation pass reports back.
type ScanResult struct {
	Approved           int // real players currently in an approved channel
	UnapprovedOrAbsent int // real players tracked but not in an approved channel
}
