package stage

import (
	"log/slog"

	"github.com/jwebster45206/mask-engine/pkg/dialogue"
	"github.com/jwebster45206/mask-engine/pkg/mask"
	"github.com/jwebster45206/mask-engine/pkg/schedule"
)

// IdentityTrigger plays a sequence once, the first time the resolved
// identity becomes Target. Used for endings reached by wearing a mask
// rather than by answering a stage.
type IdentityTrigger struct {
	Target     mask.IdentityType
	Sequence   dialogue.Sequence
	OnComplete func()

	src         Source
	player      dialogue.Player
	logger      *slog.Logger
	triggered   bool
	unsubscribe func()

	sched *schedule.Scheduler
	retry schedule.Handle
}

// NewIdentityTrigger subscribes to src. It does not look at the current
// state; call Check(src.State()) to evaluate on scene start.
func NewIdentityTrigger(src Source, player dialogue.Player, target mask.IdentityType, seq dialogue.Sequence, logger *slog.Logger) *IdentityTrigger {
	if logger == nil {
		logger = slog.Default()
	}
	t := &IdentityTrigger{
		Target:   target,
		Sequence: seq,
		src:      src,
		player:   player,
		logger:   logger,
	}
	if src != nil {
		t.unsubscribe = src.Subscribe(func(st mask.State) { t.Check(st) })
	}
	return t
}

// RetryOn makes a trigger deferred by a busy player check again on sched
// once the player is idle.
func (t *IdentityTrigger) RetryOn(sched *schedule.Scheduler) {
	t.sched = sched
}

// Check fires the trigger if st carries the target identity and it has not
// fired yet. It reports whether the trigger fired on this call. If the
// player is busy the trigger stays armed and, with RetryOn, is checked
// again when the player goes idle.
func (t *IdentityTrigger) Check(st mask.State) bool {
	if t.triggered || st.Identity != t.Target || t.Target == mask.IdentityNone {
		return false
	}

	if t.Sequence.Empty() || t.player == nil {
		t.triggered = true
		t.logger.Warn("Identity trigger has no dialogue, completing", "identity", t.Target)
		if t.OnComplete != nil {
			t.OnComplete()
		}
		return true
	}

	if !t.player.Play(t.Sequence, t.OnComplete) {
		t.logger.Debug("Identity trigger deferred, dialogue busy", "identity", t.Target)
		t.scheduleRetry(st)
		return false
	}
	t.triggered = true
	t.logger.Info("Identity trigger fired", "identity", t.Target)
	return true
}

func (t *IdentityTrigger) scheduleRetry(st mask.State) {
	if t.sched == nil || t.retry != 0 {
		return
	}
	t.retry = t.sched.When(func() bool { return !t.player.IsPlaying() }, func() {
		t.retry = 0
		if t.src != nil {
			st = t.src.State()
		}
		t.Check(st)
	})
}

// Triggered reports whether the trigger has fired.
func (t *IdentityTrigger) Triggered() bool {
	return t.triggered
}

// Close unsubscribes from the source and drops a pending retry.
func (t *IdentityTrigger) Close() {
	if t.sched != nil && t.retry != 0 {
		t.sched.Cancel(t.retry)
		t.retry = 0
	}
	if t.unsubscribe != nil {
		t.unsubscribe()
		t.unsubscribe = nil
	}
}
