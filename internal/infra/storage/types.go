package storage

import "time"

// EnforcementPolicy is the per-guild knob set for the countdown.
type EnforcementPolicy struct {
	GuildID                string
	Enabled                bool
	GraceSeconds           int
	WarningIntervalSeconds int
	CreatedAt, UpdatedAt   time.Time
}

// Partial updates coming from /vcpolicy set.
type PolicyUpdate struct {
	Enabled                *bool
	GraceSeconds           *int
	WarningIntervalSeconds *int
}
