package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/mask-engine/pkg/stage"
	"github.com/redis/go-redis/v9"
)

// RedisProgressStore keeps stage progress in Redis, namespaced by profile so
// several players can share one server.
type RedisProgressStore struct {
	client  *redis.Client
	logger  *slog.Logger
	profile uuid.UUID
	shared  bool // client is closed by its owner, not by Close
}

// Ensure RedisProgressStore implements Store interface
var _ Store = (*RedisProgressStore)(nil)

// NewRedisClient parses a redis:// URL into a client. It does not dial.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return redis.NewClient(opt), nil
}

// NewRedisProgressStore wraps client. The store owns the client and closes
// it on Close.
func NewRedisProgressStore(client *redis.Client, profile uuid.UUID, logger *slog.Logger) *RedisProgressStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisProgressStore{
		client:  client,
		logger:  logger,
		profile: profile,
	}
}

func (r *RedisProgressStore) prefix() string {
	return "mask:" + r.profile.String() + ":"
}

func (r *RedisProgressStore) stageKey(key string) string {
	return r.prefix() + "stage:" + key
}

func (r *RedisProgressStore) rewardsKey() string {
	return r.prefix() + "rewards"
}

// Health and lifecycle methods

func (r *RedisProgressStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisProgressStore) Close() error {
	if r.shared {
		return nil
	}
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection pings until Redis answers, the attempts run out, or ctx
// is done.
func (r *RedisProgressStore) WaitForConnection(ctx context.Context, maxRetries int, retryDelay time.Duration) error {
	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

// Progress operations

func (r *RedisProgressStore) GetStage(ctx context.Context, key string) (int, error) {
	if key == "" {
		return 0, nil
	}
	n, err := r.client.Get(ctx, r.stageKey(key)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		r.logger.Error("Failed to load stage progress", "key", key, "error", err)
		return 0, fmt.Errorf("failed to load stage progress: %w", err)
	}
	return n, nil
}

// SetStage ignores an empty key.
func (r *RedisProgressStore) SetStage(ctx context.Context, key string, index int) error {
	if key == "" {
		return nil
	}
	if err := r.client.Set(ctx, r.stageKey(key), index, 0).Err(); err != nil {
		r.logger.Error("Failed to save stage progress", "key", key, "stage_index", index, "error", err)
		return fmt.Errorf("failed to save stage progress: %w", err)
	}
	return nil
}

func (r *RedisProgressStore) HasGrantedReward(ctx context.Context, key string, index int) (bool, error) {
	ok, err := r.client.SIsMember(ctx, r.rewardsKey(), stage.RewardKey(key, index)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check reward flag: %w", err)
	}
	return ok, nil
}

func (r *RedisProgressStore) MarkRewardGranted(ctx context.Context, key string, index int) error {
	if err := r.client.SAdd(ctx, r.rewardsKey(), stage.RewardKey(key, index)).Err(); err != nil {
		r.logger.Error("Failed to save reward flag", "key", key, "stage_index", index, "error", err)
		return fmt.Errorf("failed to save reward flag: %w", err)
	}
	return nil
}

// Reset deletes every key under this profile. Other profiles are untouched.
func (r *RedisProgressStore) Reset(ctx context.Context) error {
	var cursor uint64
	deleted := 0
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.prefix()+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan progress keys: %w", err)
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete progress keys: %w", err)
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	r.logger.Debug("Progress reset", "profile_id", r.profile, "deleted_keys", deleted)
	return nil
}
