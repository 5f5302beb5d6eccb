package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JonMunkholm/sdtm/internal/core"
)

const defaultKeyPrefix = "sdtm:"

// Redis stores each run under <prefix>run:<id> and indexes ids in the
// sorted set <prefix>runs scored by completion time. Index entries whose
// run key has expired are skipped by List.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// OpenRedis parses the URL, connects and pings.
func OpenRedis(ctx context.Context, opts Options) (*Redis, error) {
	if opts.RedisURL == "" {
		return nil, fmt.Errorf("redis store requires a redis url")
	}
	ropts, err := redis.ParseURL(opts.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(ropts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewRedis(client, opts.KeyPrefix, opts.TTL), nil
}

// NewRedis wraps a connected client. A zero ttl keeps runs forever.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

func (r *Redis) runKey(id string) string { return r.prefix + "run:" + id }
func (r *Redis) indexKey() string        { return r.prefix + "runs" }

func (r *Redis) Save(ctx context.Context, summary *core.RunSummary) error {
	data, err := encode(summary)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.runKey(summary.ID), data, r.ttl)
	pipe.ZAdd(ctx, r.indexKey(), redis.Z{
		Score:  indexScore(summary.CompletedAt),
		Member: summary.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save run %s: %w", summary.ID, err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, id string) (*core.RunSummary, error) {
	data, err := r.client.Get(ctx, r.runKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return decode(data)
}

func (r *Redis) List(ctx context.Context, limit int) ([]*core.RunSummary, error) {
	limit = normalizeLimit(limit)
	ids, err := r.client.ZRevRange(ctx, r.indexKey(), 0, int64(limit)*2-1).Result()
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	if len(ids) == 0 {
		return []*core.RunSummary{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.runKey(id)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	out := make([]*core.RunSummary, 0, limit)
	var stale []any
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		if len(out) == limit {
			continue
		}
		summary, err := decode([]byte(s))
		if err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	if len(stale) > 0 {
		// Best effort: expired runs leave ids behind in the index.
		r.client.ZRem(ctx, r.indexKey(), stale...)
	}
	return out, nil
}

// Ping checks connectivity; /healthz reports it via store.Ping.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func indexScore(t time.Time) float64 {
	return float64(t.UnixMilli())
}
