package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type PolicyRepo struct{ db *sql.DB }

func NewPolicyRepo(db *sql.DB) *PolicyRepo { return &PolicyRepo{db: db} }

func (r *PolicyRepo) Get(ctx context.Context, guildID string) (EnforcementPolicy, error) {
	var p EnforcementPolicy
	err := r.db.QueryRowContext(ctx, `
SELECT guild_id, enabled, grace_seconds, warning_interval_seconds, created_at, updated_at
  FROM enforcement_policies
 WHERE guild_id = $1
`, guildID).Scan(
		&p.GuildID, &p.Enabled, &p.GraceSeconds, &p.WarningIntervalSeconds, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		// create defaults
		_, err := r.db.ExecContext(ctx, `
INSERT INTO enforcement_policies (guild_id) VALUES ($1)
`, guildID)
		if err != nil {
			return EnforcementPolicy{}, err
		}
		return r.Get(ctx, guildID)
	}
	return p, err
}

func (r *PolicyRepo) Update(ctx context.Context, guildID string, u PolicyUpdate) (EnforcementPolicy, error) {
	sets := make([]string, 0, 3)
	args := make([]any, 0, 4)
	i := 1

	if u.Enabled != nil {
		sets = append(sets, fmt.Sprintf("enabled = $%d", i))
		args = append(args, *u.Enabled)
		i++
	}
	if u.GraceSeconds != nil {
		sets = append(sets, fmt.Sprintf("grace_seconds = $%d", i))
		args = append(args, *u.GraceSeconds)
		i++
	}
	if u.WarningIntervalSeconds != nil {
		sets = append(sets, fmt.Sprintf("warning_interval_seconds = $%d", i))
		args = append(args, *u.WarningIntervalSeconds)
		i++
	}
	if len(sets) == 0 {
		return r.Get(ctx, guildID)
	}
	sets = append(sets, fmt.Sprintf("updated_at = $%d", i))
	args = append(args, time.Now())
	i++

	args = append(args, guildID)

	_, err := r.db.ExecContext(ctx, `
UPDATE enforcement_policies
   SET `+strings.Join(sets, ", ")+`
 WHERE guild_id = $`+fmt.Sprint(i), args...)
	if err != nil {
		return EnforcementPolicy{}, err
	}
	return r.Get(ctx, guildID)
}
