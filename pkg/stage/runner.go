package stage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jwebster45206/mask-engine/pkg/dialogue"
	"github.com/jwebster45206/mask-engine/pkg/mask"
	"github.com/jwebster45206/mask-engine/pkg/notify"
	"github.com/jwebster45206/mask-engine/pkg/schedule"
)

var (
	// ErrBusy is returned when a dialogue is still in flight.
	ErrBusy = errors.New("stage evaluation already in progress")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("stage runner is closed")
)

// DefaultAutoRunDelay gives the scene time to fade in before the first
// evaluation.
const DefaultAutoRunDelay = 100 * time.Millisecond

// DefaultRetryInterval is how often AutoRun polls a busy dialogue player.
const DefaultRetryInterval = 100 * time.Millisecond

// Granter receives reward fragments. inventory.Inventory satisfies it.
type Granter interface {
	Unlock(id mask.FragmentID) bool
}

// Advance describes a completed stage.
type Advance struct {
	Key        string
	StageIndex int // stage that was answered
	From       int // stored progress before
	To         int // stored progress after
	Granted    []mask.FragmentID
}

// Outcome describes one evaluation.
type Outcome struct {
	Key        string
	Progress   int // stored progress that was read
	StageIndex int // evaluated stage, -1 when none
	Matched    bool
	Finished   bool // past the last stage with clamping off
	Dialogue   dialogue.Sequence
	Played     bool
	Advanced   bool // progress moved before Evaluate returned
	Pending    bool // progress moves when the dialogue completes
}

// RunnerOptions tunes a Runner. The zero value is usable.
type RunnerOptions struct {
	Logger *slog.Logger
	// WaitIfPlaying makes AutoRun retry while another dialogue plays
	// instead of giving up for the scene.
	WaitIfPlaying bool
	RetryInterval time.Duration
}

// Runner evaluates a track against the resolved mask, plays the chosen
// dialogue, and on success advances progress and grants rewards. It is
// meant for a single-threaded caller; the busy guard stops a second
// evaluation while a dialogue it started is still playing.
type Runner struct {
	track   *Track
	store   ProgressStore
	player  dialogue.Player
	granter Granter
	logger  *slog.Logger
	opts    RunnerOptions

	busy       bool
	closed     bool
	generation uint64

	sched      *schedule.Scheduler
	autoHandle schedule.Handle
	autoPlayed bool
	current    func() mask.State

	advances notify.Registry[Advance]
	outcomes notify.Registry[Outcome]
}

// NewRunner wires a runner. player and granter may be nil: without a player
// every evaluation completes silently, and without a granter rewards are
// skipped.
func NewRunner(track *Track, store ProgressStore, player dialogue.Player, granter Granter, opts RunnerOptions) *Runner {
	if track == nil {
		track = &Track{}
	}
	if store == nil {
		store = NewMemoryStore()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultRetryInterval
	}
	return &Runner{
		track:   track,
		store:   store,
		player:  player,
		granter: granter,
		logger:  logger.With("key", track.Key),
		opts:    opts,
	}
}

// Track returns the runner's track.
func (r *Runner) Track() *Track {
	return r.track
}

// Busy reports whether a dialogue started by this runner is in flight.
func (r *Runner) Busy() bool {
	r.dropAbandoned()
	return r.busy
}

// OnAdvance registers fn for completed stages.
func (r *Runner) OnAdvance(fn func(Advance)) (unsubscribe func()) {
	return r.advances.Add(fn)
}

// OnOutcome registers fn for every successful evaluation.
func (r *Runner) OnOutcome(fn func(Outcome)) (unsubscribe func()) {
	return r.outcomes.Add(fn)
}

// Evaluate checks st against the current stage of the track.
//
// A correct answer plays the stage's correct dialogue and advances progress
// by one when it completes; with no correct dialogue the stage completes
// silently right away. A wrong answer plays the wrong dialogue, or the
// track fallback, and leaves progress alone. Missing content never blocks
// progression and never produces an error.
func (r *Runner) Evaluate(ctx context.Context, st mask.State) (Outcome, error) {
	out, err := r.evaluate(ctx, st)
	if err != nil {
		return out, err
	}
	r.outcomes.Notify(out)
	return out, nil
}

func (r *Runner) evaluate(ctx context.Context, st mask.State) (Outcome, error) {
	out := Outcome{Key: r.track.Key, StageIndex: -1}
	if r.closed {
		return out, ErrClosed
	}
	r.dropAbandoned()
	if r.busy || (r.player != nil && r.player.IsPlaying()) {
		return out, ErrBusy
	}

	if r.track.Len() == 0 {
		out.Dialogue = r.track.Fallback
		out.Played = r.play(r.track.Fallback)
		r.logger.Warn("Track has no stages, playing fallback", "played", out.Played)
		return out, nil
	}

	progress, err := r.store.GetStage(ctx, r.track.Key)
	if err != nil {
		return out, fmt.Errorf("failed to load stage progress: %w", err)
	}
	progress = max(progress, 0)
	out.Progress = progress

	idx, ok := r.track.Resolve(progress)
	if !ok {
		out.Finished = true
		r.logger.Debug("Track finished, nothing to evaluate", "progress", progress)
		return out, nil
	}
	out.StageIndex = idx
	stg := r.track.Stages[idx]
	out.Matched = stg.Matches(st)

	r.logger.Debug("Evaluated stage",
		"stage_index", idx,
		"identity", st.Identity,
		"emotions", st.EmotionMultiset(),
		"matched", out.Matched)

	if !out.Matched {
		seq := stg.Wrong
		if seq.Empty() {
			seq = r.track.Fallback
		}
		out.Dialogue = seq
		out.Played = r.play(seq)
		return out, nil
	}

	out.Dialogue = stg.Correct
	if !stg.Correct.Empty() && r.player != nil {
		gen := r.generation
		completed := false
		r.busy = true
		bg := context.WithoutCancel(ctx)
		played := r.player.Play(stg.Correct, func() {
			completed = r.complete(bg, gen, progress, idx)
		})
		if played {
			out.Played = true
			out.Advanced = completed
			out.Pending = !completed
			return out, nil
		}
		r.busy = false
		r.logger.Warn("Correct dialogue could not start, completing silently", "stage_index", idx)
	}

	if err := r.advance(ctx, progress, idx); err != nil {
		return out, err
	}
	out.Advanced = true
	return out, nil
}

func (r *Runner) play(seq dialogue.Sequence) bool {
	if r.player == nil || seq.Empty() {
		return false
	}
	return r.player.Play(seq, nil)
}

// complete runs when a correct dialogue finishes. Completions from before
// Close or from an abandoned dialogue are ignored.
func (r *Runner) complete(ctx context.Context, gen uint64, progress, idx int) bool {
	if r.closed || gen != r.generation {
		r.logger.Debug("Discarding stale dialogue completion", "stage_index", idx)
		return false
	}
	r.busy = false
	if err := r.advance(ctx, progress, idx); err != nil {
		r.logger.Error("Failed to advance stage after dialogue", "stage_index", idx, "error", err)
		return false
	}
	return true
}

// dropAbandoned clears the busy flag when the dialogue this runner waits on
// is no longer playing but never reported completion, e.g. it was aborted
// by a scene teardown. The pending completion is invalidated so a late
// callback cannot advance or grant.
func (r *Runner) dropAbandoned() {
	if !r.busy || r.player == nil || r.player.IsPlaying() {
		return
	}
	r.generation++
	r.busy = false
	r.logger.Warn("Abandoning stage completion for a dialogue that never finished")
}

func (r *Runner) advance(ctx context.Context, progress, idx int) error {
	next := progress + 1
	if err := r.store.SetStage(ctx, r.track.Key, next); err != nil {
		return fmt.Errorf("failed to save stage progress: %w", err)
	}

	granted, err := r.GrantRewards(ctx, idx)
	r.logger.Info("Stage advanced", "stage_index", idx, "from", progress, "to", next, "granted", len(granted))
	r.advances.Notify(Advance{
		Key:        r.track.Key,
		StageIndex: idx,
		From:       progress,
		To:         next,
		Granted:    granted,
	})
	return err
}

// GrantRewards hands the stage's reward fragments to the granter. With
// GrantOnce set the flag for (key, idx) is checked and set before anything
// is handed over, so a second call grants nothing. Empty ids are skipped
// without aborting the rest.
func (r *Runner) GrantRewards(ctx context.Context, idx int) ([]mask.FragmentID, error) {
	if idx < 0 || idx >= r.track.Len() {
		return nil, nil
	}
	stg := r.track.Stages[idx]
	if len(stg.Rewards) == 0 {
		return nil, nil
	}
	if r.granter == nil {
		r.logger.Warn("No inventory to grant rewards to", "stage_index", idx)
		return nil, nil
	}

	if stg.GrantOnce {
		done, err := r.store.HasGrantedReward(ctx, r.track.Key, idx)
		if err != nil {
			return nil, fmt.Errorf("failed to check reward flag: %w", err)
		}
		if done {
			r.logger.Debug("Rewards already granted", "stage_index", idx)
			return nil, nil
		}
		if err := r.store.MarkRewardGranted(ctx, r.track.Key, idx); err != nil {
			return nil, fmt.Errorf("failed to mark reward granted: %w", err)
		}
	}

	var granted []mask.FragmentID
	for _, id := range stg.Rewards {
		if id == "" {
			continue
		}
		r.granter.Unlock(id)
		granted = append(granted, id)
		r.logger.Debug("Granted fragment", "stage_index", idx, "fragment_id", id)
	}
	return granted, nil
}

// ScheduleAutoRun evaluates once for this scene after delay, reading the
// mask state from current at that moment. With WaitIfPlaying the
// evaluation is retried every RetryInterval while another dialogue plays.
func (r *Runner) ScheduleAutoRun(sched *schedule.Scheduler, delay time.Duration, current func() mask.State) {
	if r.closed || sched == nil {
		return
	}
	if r.sched != nil && r.autoHandle != 0 {
		r.sched.Cancel(r.autoHandle)
	}
	r.sched = sched
	r.current = current
	r.autoHandle = sched.After(max(delay, 0), r.autoRun)
}

func (r *Runner) autoRun() {
	r.autoHandle = 0
	if r.autoPlayed || r.closed {
		return
	}
	if r.opts.WaitIfPlaying && r.player != nil && r.player.IsPlaying() {
		r.autoHandle = r.sched.After(r.opts.RetryInterval, r.autoRun)
		return
	}
	r.autoPlayed = true

	var st mask.State
	if r.current != nil {
		st = r.current()
	}
	if _, err := r.Evaluate(context.Background(), st); err != nil {
		r.logger.Warn("Auto-run evaluation skipped", "error", err)
	}
}

// Close abandons any pending completion and scheduled auto-run. A dialogue
// that finishes after Close does not advance progress or grant rewards.
func (r *Runner) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.generation++
	r.busy = false
	if r.sched != nil && r.autoHandle != 0 {
		r.sched.Cancel(r.autoHandle)
		r.autoHandle = 0
	}
	r.advances.Clear()
	r.outcomes.Clear()
}
