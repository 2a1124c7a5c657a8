package storage

import (
	"context"
	"database/sql"
	"errors"

	pq "github.com/lib/pq"

	"github.com/vcguard/vcguard/internal/domain"
)

var ErrNotFound = errors.New("not found")

type PresenceRepo struct{ db *sql.DB }

func NewPresenceRepo(db *sql.DB) *PresenceRepo { return &PresenceRepo{db: db} }

// Upsert writes a player record keyed by external_id. The update only fires
// when something actually changed, so a repeated scan with identical upstream
// state touches zero rows. Returns whether a row was written.
func (r *PresenceRepo) Upsert(ctx context.Context, p domain.PlayerRecord) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
INSERT INTO players (external_id, game_username, current_channel, in_game)
VALUES ($1,$2,$3,$4)
ON CONFLICT (external_id) DO UPDATE SET
  game_username   = EXCLUDED.game_username,
  current_channel = EXCLUDED.current_channel,
  in_game         = EXCLUDED.in_game,
  last_updated    = now()
WHERE (players.game_username, players.current_channel, players.in_game)
  IS DISTINCT FROM
      (EXCLUDED.game_username, EXCLUDED.current_channel, EXCLUDED.in_game)
`, p.ExternalID, p.GameUsername, string(p.CurrentChannel), p.InGame)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *PresenceRepo) Get(ctx context.Context, externalID string) (domain.PlayerRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT external_id, game_username, current_channel, in_game, last_updated
  FROM players
 WHERE external_id = $1
`, externalID)

	var p domain.PlayerRecord
	var ch string
	err := row.Scan(&p.ExternalID, &p.GameUsername, &ch, &p.InGame, &p.LastUpdated)
	if err == sql.ErrNoRows {
		return domain.PlayerRecord{}, ErrNotFound
	}
	p.CurrentChannel = domain.ChannelID(ch)
	return p, err
}

func (r *PresenceRepo) ListTracked(ctx context.Context) ([]domain.PlayerRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT external_id, game_username, current_channel, in_game, last_updated
  FROM players
 ORDER BY external_id
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PlayerRecord
	for rows.Next() {
		var p domain.PlayerRecord
		var ch string
		if err := rows.Scan(&p.ExternalID, &p.GameUsername, &ch, &p.InGame, &p.LastUpdated); err != nil {
			return nil, err
		}
		p.CurrentChannel = domain.ChannelID(ch)
		out = append(out, p)
	}
	return out, rows.Err()
}

// SweepUnobserved clears current_channel for every tracked player that no
// voice source reported this cycle. Catches silent disconnects the gateway
// event hooks missed.
func (r *PresenceRepo) SweepUnobserved(ctx context.Context, observed []string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE players
   SET current_channel = '', last_updated = now()
 WHERE current_channel <> ''
   AND NOT (external_id = ANY($1))
`, pq.Array(observed))
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// SetInGame flips game-session membership from bridge join/quit events.
// Creates the row on first observed game activity.
func (r *PresenceRepo) SetInGame(ctx context.Context, externalID, gameUsername string, inGame bool) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO players (external_id, game_username, current_channel, in_game)
VALUES ($1,$2,'',$3)
ON CONFLICT (external_id) DO UPDATE SET
  game_username = EXCLUDED.game_username,
  in_game       = EXCLUDED.in_game,
  last_updated  = now()
`, externalID, gameUsername, inGame)
	return err
}

// ClearAll removes a player entirely. Only the explicit data-reset command
// calls this; nothing else hard-deletes.
func (r *PresenceRepo) ClearAll(ctx context.Context, externalID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
DELETE FROM players WHERE external_id = $1
`, externalID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
