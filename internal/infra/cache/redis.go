package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	rdb *redis.Client
}

func New(dsn string) (*Client, error) {
	opts, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = 10
	opts.MinIdleConns = 2
	opts.ConnMaxIdleTime = 5 * time.Minute

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Client{rdb: rdb}, nil
}

func (c *Client) Close() error { return c.rdb.Close() }

// SeenEvent reports whether the key was already recorded inside the TTL
// window, recording it if not. Duplicate gateway deliveries of the same
// voice transition collapse to one reconciliation.
func (c *Client) SeenEvent(ctx context.Context, key string, ttl time.Duration) bool {
	set, err := c.rdb.SetNX(ctx, "event:dedup:"+key, "1", ttl).Result()
	if err != nil {
		// Redis down: treat as unseen, a spare scan is cheaper than a missed one.
		return false
	}
	return !set
}

const commandLogKey = "vcguard:commands"

// CommandEntry is one line of the dashboard's recent-command history.
type CommandEntry struct {
	At     time.Time `json:"at"`
	Kind   string    `json:"kind"` // warn | confirm | kick | reset
	Player string    `json:"player"`
	Detail string    `json:"detail,omitempty"`
}

func (c *Client) PushCommand(ctx context.Context, e CommandEntry, keep int64) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	pipe := c.rdb.Pipeline()
	pipe.LPush(ctx, commandLogKey, data)
	pipe.LTrim(ctx, commandLogKey, 0, keep-1)
	_, err = pipe.Exec(ctx)
	return err
}

func (c *Client) RecentCommands(ctx context.Context, n int64) ([]CommandEntry, error) {
	raw, err := c.rdb.LRange(ctx, commandLogKey, 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]CommandEntry, 0, len(raw))
	for _, item := range raw {
		var e CommandEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
