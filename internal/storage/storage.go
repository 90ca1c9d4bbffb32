package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jwebster45206/mask-engine/internal/config"
	"github.com/jwebster45206/mask-engine/pkg/stage"
	"github.com/redis/go-redis/v9"
)

// Store is a ProgressStore with a connection lifecycle.
type Store interface {
	stage.ProgressStore
	Ping(ctx context.Context) error
	Close() error
}

// MemoryStore adapts stage.MemoryStore to Store.
type MemoryStore struct {
	*stage.MemoryStore
}

// Ensure MemoryStore implements Store interface
var _ Store = MemoryStore{}

// NewMemoryStore returns an empty session-only store.
func NewMemoryStore() MemoryStore {
	return MemoryStore{MemoryStore: stage.NewMemoryStore()}
}

func (MemoryStore) Ping(context.Context) error { return nil }
func (MemoryStore) Close() error               { return nil }

// Open builds the progress backend named by cfg. Redis is waited on before
// returning. A non-nil client is shared with the caller, who keeps closing
// it; otherwise the store dials its own.
func Open(ctx context.Context, cfg *config.Config, client *redis.Client, logger *slog.Logger) (Store, error) {
	switch cfg.ProgressBackend {
	case config.BackendMemory:
		logger.Info("Using in-memory progress store")
		return NewMemoryStore(), nil
	case config.BackendRedis:
		shared := client != nil
		if !shared {
			var err error
			if client, err = NewRedisClient(cfg.RedisURL); err != nil {
				return nil, err
			}
		}
		store := NewRedisProgressStore(client, cfg.ProfileID, logger)
		store.shared = shared
		if err := store.WaitForConnection(ctx, 5, 500*time.Millisecond); err != nil {
			_ = store.Close()
			return nil, err
		}
		logger.Info("Using redis progress store", "profile_id", cfg.ProfileID)
		return store, nil
	}
	return nil, fmt.Errorf("unknown progress backend: %q", cfg.ProgressBackend)
}
