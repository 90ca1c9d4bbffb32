package stage

import (
	"context"
	"fmt"
	"sync"
)

// ProgressStore persists per-key stage progress and reward flags.
// Implementations may be session-only or durable; callers must not assume
// which.
type ProgressStore interface {
	// GetStage returns the stored index for key, 0 when unset.
	GetStage(ctx context.Context, key string) (int, error)
	SetStage(ctx context.Context, key string, index int) error
	HasGrantedReward(ctx context.Context, key string, index int) (bool, error)
	MarkRewardGranted(ctx context.Context, key string, index int) error
	// Reset clears all progress and reward flags.
	Reset(ctx context.Context) error
}

// RewardKey is the flag name for a (key, stage index) reward.
func RewardKey(key string, index int) string {
	return fmt.Sprintf("%s__reward__%d", key, index)
}

// MemoryStore is a session-only ProgressStore.
type MemoryStore struct {
	mu      sync.RWMutex
	stages  map[string]int
	rewards map[string]struct{}
}

// Ensure MemoryStore implements ProgressStore
var _ ProgressStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		stages:  make(map[string]int),
		rewards: make(map[string]struct{}),
	}
}

func (m *MemoryStore) GetStage(ctx context.Context, key string) (int, error) {
	if key == "" {
		return 0, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stages[key], nil
}

// SetStage ignores an empty key.
func (m *MemoryStore) SetStage(ctx context.Context, key string, index int) error {
	if key == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages[key] = index
	return nil
}

func (m *MemoryStore) HasGrantedReward(ctx context.Context, key string, index int) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.rewards[RewardKey(key, index)]
	return ok, nil
}

func (m *MemoryStore) MarkRewardGranted(ctx context.Context, key string, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rewards[RewardKey(key, index)] = struct{}{}
	return nil
}

func (m *MemoryStore) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages = make(map[string]int)
	m.rewards = make(map[string]struct{})
	return nil
}
