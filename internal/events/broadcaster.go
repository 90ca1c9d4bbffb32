package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/mask-engine/pkg/mask"
	"github.com/jwebster45206/mask-engine/pkg/stage"
	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeStageEvaluated EventType = "stage.evaluated"
	EventTypeStageAdvanced  EventType = "stage.advanced"
	EventTypeRewardGranted  EventType = "reward.granted"
	EventTypeMaskChanged    EventType = "mask.changed"
)

// Event represents a generic event structure
type Event struct {
	Type      EventType      `json:"type"`
	ProfileID string         `json:"profile_id"`
	Key       string         `json:"key,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// publishTimeout bounds each publish made from a frame callback.
const publishTimeout = 2 * time.Second

// Broadcaster publishes mask and stage events to Redis Pub/Sub so other
// processes (a second console, a stream overlay) can follow a session.
type Broadcaster struct {
	client  *redis.Client
	profile uuid.UUID
	logger  *slog.Logger
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(client *redis.Client, profile uuid.UUID, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		client:  client,
		profile: profile,
		logger:  logger,
	}
}

// Channel is the profile-specific pub/sub channel.
func (b *Broadcaster) Channel() string {
	return "mask-events:" + b.profile.String()
}

// PublishStageEvaluated publishes a stage.evaluated event
func (b *Broadcaster) PublishStageEvaluated(ctx context.Context, o stage.Outcome) error {
	return b.publish(ctx, Event{
		Type: EventTypeStageEvaluated,
		Key:  o.Key,
		Data: map[string]any{
			"stage_index": o.StageIndex,
			"matched":     o.Matched,
			"finished":    o.Finished,
			"pending":     o.Pending,
		},
	})
}

// PublishStageAdvanced publishes a stage.advanced event
func (b *Broadcaster) PublishStageAdvanced(ctx context.Context, a stage.Advance) error {
	granted := make([]string, 0, len(a.Granted))
	for _, id := range a.Granted {
		granted = append(granted, string(id))
	}
	return b.publish(ctx, Event{
		Type: EventTypeStageAdvanced,
		Key:  a.Key,
		Data: map[string]any{
			"stage_index": a.StageIndex,
			"from":        a.From,
			"to":          a.To,
			"granted":     granted,
		},
	})
}

// PublishRewardGranted publishes a reward.granted event
func (b *Broadcaster) PublishRewardGranted(ctx context.Context, key string, stageIndex int, id mask.FragmentID) error {
	return b.publish(ctx, Event{
		Type: EventTypeRewardGranted,
		Key:  key,
		Data: map[string]any{
			"stage_index": stageIndex,
			"fragment_id": string(id),
		},
	})
}

// PublishMaskChanged publishes a mask.changed event
func (b *Broadcaster) PublishMaskChanged(ctx context.Context, st mask.State) error {
	return b.publish(ctx, Event{
		Type: EventTypeMaskChanged,
		Data: map[string]any{
			"identity": st.Identity.String(),
			"summary":  st.Summary(),
		},
	})
}

func (b *Broadcaster) publish(ctx context.Context, event Event) error {
	event.ProfileID = b.profile.String()
	channel := b.Channel()

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.client.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
		"key", event.Key,
	)

	return nil
}

// Attach publishes the runner's outcomes and advances and every change to
// the assembly's resolved state. Publish failures are logged and dropped.
// The returned func detaches all listeners.
func (b *Broadcaster) Attach(ctx context.Context, runner *stage.Runner, asm *mask.Assembly) (detach func()) {
	var unsubs []func()

	send := func(f func(context.Context) error) {
		pctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		_ = f(pctx)
	}

	if runner != nil {
		unsubs = append(unsubs,
			runner.OnOutcome(func(o stage.Outcome) {
				send(func(c context.Context) error { return b.PublishStageEvaluated(c, o) })
			}),
			runner.OnAdvance(func(a stage.Advance) {
				send(func(c context.Context) error { return b.PublishStageAdvanced(c, a) })
				for _, id := range a.Granted {
					send(func(c context.Context) error { return b.PublishRewardGranted(c, a.Key, a.StageIndex, id) })
				}
			}),
		)
	}
	if asm != nil {
		unsubs = append(unsubs, asm.Subscribe(func(st mask.State) {
			send(func(c context.Context) error { return b.PublishMaskChanged(c, st) })
		}))
	}

	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Subscribe follows this profile's channel. Events arrive on the returned
// channel until ctx is done or close is called; undecodable messages are
// skipped.
func (b *Broadcaster) Subscribe(ctx context.Context) (<-chan Event, func() error, error) {
	ps := b.client.Subscribe(ctx, b.Channel())
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to %s: %w", b.Channel(), err)
	}

	out := make(chan Event, 16)
	go func() {
		defer close(out)
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.logger.Warn("Dropping malformed event", "error", err, "channel", msg.Channel)
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, ps.Close, nil
}
