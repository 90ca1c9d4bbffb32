package stage

import (
	"github.com/jwebster45206/mask-engine/pkg/mask"
)

// Source publishes resolved mask states. mask.Assembly satisfies it.
type Source interface {
	State() mask.State
	Subscribe(fn func(mask.State)) (unsubscribe func())
}

// Goal is a looser mask requirement than a stage answer: the listed
// emotions must be present, and with Exact no other emotion may be.
// Counted compares emotion counts the way a stage answer does.
type Goal struct {
	Identity mask.IdentityType
	Emotions []mask.EmotionType
	Exact    bool
	Counted  bool
}

// GoalFromStage builds a goal that matches exactly when s would be
// answered correctly.
func GoalFromStage(s Stage) Goal {
	return Goal{Identity: s.Identity, Emotions: s.Emotions, Exact: true, Counted: true}
}

// Matches reports whether st meets the goal.
func (g Goal) Matches(st mask.State) bool {
	if st.Identity != g.Identity {
		return false
	}
	if g.Counted {
		return IsCorrect(Stage{Identity: g.Identity, Emotions: g.Emotions}, st.Identity, st.EmotionMultiset())
	}
	distinct := make(map[mask.EmotionType]bool, len(g.Emotions))
	for _, e := range g.Emotions {
		if e == mask.EmotionNone {
			continue
		}
		if !st.HasEmotion(e) {
			return false
		}
		distinct[e] = true
	}
	if g.Exact && len(st.Emotions) != len(distinct) {
		return false
	}
	return true
}

// GoalWatcher calls onReached each time the mask goes from not meeting the
// goal to meeting it, e.g. to play a success cue.
type GoalWatcher struct {
	src         Source
	goal        Goal
	matched     bool
	onReached   func(mask.State)
	unsubscribe func()
}

// WatchGoal subscribes to src and evaluates the current state right away,
// so a player who enters the scene already matching still gets the cue.
func WatchGoal(src Source, goal Goal, onReached func(mask.State)) *GoalWatcher {
	w := &GoalWatcher{src: src, goal: goal, onReached: onReached}
	w.unsubscribe = src.Subscribe(w.check)
	w.check(src.State())
	return w
}

func (w *GoalWatcher) check(st mask.State) {
	matched := w.goal.Matches(st)
	if matched && !w.matched && w.onReached != nil {
		w.onReached(st)
	}
	w.matched = matched
}

// Matched reports whether the last seen state met the goal.
func (w *GoalWatcher) Matched() bool {
	return w.matched
}

// SetGoal swaps the goal and re-arms the cue.
func (w *GoalWatcher) SetGoal(g Goal) {
	w.goal = g
	w.matched = false
	w.check(w.src.State())
}

// Close unsubscribes from the source.
func (w *GoalWatcher) Close() {
	if w.unsubscribe != nil {
		w.unsubscribe()
		w.unsubscribe = nil
	}
}
