// Package store persists compliance run summaries.
//
// Three backends share one interface: an in-memory map for tests and
// single-node use, PostgreSQL (JSONB rows, goose migrations) and Redis
// (one JSON value per run plus a sorted-set index). The engine's persist
// callback is Store.Save.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/sdtm/internal/core"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// DefaultListLimit caps List when the caller passes zero.
const DefaultListLimit = 50

// Store saves and retrieves run summaries. Save is an upsert keyed by run id.
type Store interface {
	Save(ctx context.Context, summary *core.RunSummary) error
	Get(ctx context.Context, id string) (*core.RunSummary, error)
	// List returns the most recently completed runs first.
	List(ctx context.Context, limit int) ([]*core.RunSummary, error)
	Close() error
}

// Pinger is implemented by backends that hold a remote connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks s's connection. Stores without one always pass.
func Ping(ctx context.Context, s Store) error {
	if p, ok := s.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Options selects and configures a backend.
type Options struct {
	Backend string

	DatabaseURL     string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration

	RedisURL  string
	KeyPrefix string
	TTL       time.Duration
}

// Open connects the configured backend. Postgres runs pending migrations
// before returning.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(opts.Backend) {
	case "", BackendMemory:
		return NewMemory(), nil
	case BackendPostgres:
		return OpenPostgres(ctx, opts)
	case BackendRedis:
		return OpenRedis(ctx, opts)
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

func encode(summary *core.RunSummary) ([]byte, error) {
	if summary == nil || summary.ID == "" {
		return nil, fmt.Errorf("run summary requires an id")
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return nil, fmt.Errorf("encode run %s: %w", summary.ID, err)
	}
	return data, nil
}

func decode(data []byte) (*core.RunSummary, error) {
	var s core.RunSummary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode run summary: %w", err)
	}
	return &s, nil
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", core.ErrRunNotFound, id)
}
