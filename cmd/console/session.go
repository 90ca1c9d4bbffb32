package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jwebster45206/mask-engine/pkg/content"
	"github.com/jwebster45206/mask-engine/pkg/dialogue"
	"github.com/jwebster45206/mask-engine/pkg/inventory"
	"github.com/jwebster45206/mask-engine/pkg/mask"
	"github.com/jwebster45206/mask-engine/pkg/schedule"
	"github.com/jwebster45206/mask-engine/pkg/stage"
)

const maxActivity = 200

// AttachFunc hooks extra listeners (the event broadcaster) onto a scene's
// runner and assembly. It returns a detach func.
type AttachFunc func(runner *stage.Runner, asm *mask.Assembly) (detach func())

type SessionOptions struct {
	Catalog      *content.Catalog
	Track        *stage.Track
	Store        stage.ProgressStore
	Policy       mask.PriorityPolicy // overrides the catalog when set
	AutoRunDelay time.Duration
	Logger       *slog.Logger
	Attach       AttachFunc
}

// Session is one scene of play: a mask assembly, the player's inventory, a
// dialogue player and the stage runner for the scene's track, all driven by
// Tick from the UI loop.
type Session struct {
	ctx          context.Context
	catalog      *content.Catalog
	track        *stage.Track
	store        stage.ProgressStore
	policy       mask.PriorityPolicy
	autoRunDelay time.Duration
	logger       *slog.Logger
	attach       AttachFunc

	assembly  *mask.Assembly
	inventory *inventory.Memory
	dialogue  *dialogue.Manager
	sched     *schedule.Scheduler

	runner   *stage.Runner
	goal     *stage.GoalWatcher
	triggers []*stage.IdentityTrigger
	scene    []func()
	detach   func()

	activity []string
	noted    int
}

func NewSession(ctx context.Context, opts SessionOptions) (*Session, error) {
	if opts.Catalog == nil || opts.Track == nil {
		return nil, errors.New("session needs a catalog and a track")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	store := opts.Store
	if store == nil {
		store = stage.NewMemoryStore()
	}

	s := &Session{
		ctx:          ctx,
		catalog:      opts.Catalog,
		track:        opts.Track,
		store:        store,
		policy:       opts.Policy,
		autoRunDelay: opts.AutoRunDelay,
		logger:       logger,
		attach:       opts.Attach,
		inventory:    inventory.NewMemory(opts.Catalog.Starting...),
		dialogue:     dialogue.NewManager(),
		sched:        schedule.New(),
	}

	if err := s.buildAssembly(); err != nil {
		return nil, err
	}
	s.inventory.OnChange(func(c inventory.Change) {
		switch c.Kind {
		case inventory.ChangeUnlocked:
			s.note("New fragment: %s", s.label(c.ID))
		case inventory.ChangeRemoved:
			s.assembly.RemoveByID(c.ID)
			s.note("Fragment lost: %s", c.ID)
		}
	})
	s.dialogue.Subscribe(func(ev dialogue.Event) {
		if ev.Type == dialogue.EventAborted {
			s.note("(dialogue interrupted)")
		}
	})

	if err := s.startScene(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) buildAssembly() error {
	resolver, err := s.catalog.Resolver(s.policy)
	if err != nil {
		return fmt.Errorf("failed to build resolver: %w", err)
	}
	s.assembly = mask.NewAssembly(resolver, mask.DefaultSockets()...)
	return nil
}

// startScene enters the track's scene: a fresh runner, goal watcher and
// triggers, with the auto-run evaluation scheduled.
func (s *Session) startScene() error {
	s.runner = stage.NewRunner(s.track, s.store, s.dialogue, s.inventory, stage.RunnerOptions{
		Logger:        s.logger,
		WaitIfPlaying: true,
	})

	s.scene = append(s.scene,
		s.runner.OnOutcome(s.onOutcome),
		s.runner.OnAdvance(s.onAdvance),
	)

	if err := s.refreshGoal(); err != nil {
		return err
	}

	for _, t := range s.track.Triggers {
		trig := stage.NewIdentityTrigger(s.assembly, s.dialogue, t.Identity, t.Dialogue, s.logger)
		identity := t.Identity
		trig.OnComplete = func() { s.note("Ending reached as %s.", identity) }
		trig.RetryOn(s.sched)
		trig.Check(s.assembly.State())
		s.triggers = append(s.triggers, trig)
	}

	if s.attach != nil {
		s.detach = s.attach(s.runner, s.assembly)
	}

	s.runner.ScheduleAutoRun(s.sched, s.autoRunDelay, s.assembly.State)
	s.note("Entered %s.", s.trackName())
	return nil
}

func (s *Session) endScene() {
	if s.detach != nil {
		s.detach()
		s.detach = nil
	}
	for _, u := range s.scene {
		u()
	}
	s.scene = nil
	if s.runner != nil {
		s.runner.Close()
	}
	if s.goal != nil {
		s.goal.Close()
		s.goal = nil
	}
	for _, t := range s.triggers {
		t.Close()
	}
	s.triggers = nil
	s.sched.CancelAll()
	if s.dialogue.IsPlaying() {
		s.dialogue.Abort()
	}
}

// refreshGoal points the goal watcher at the stage progress now selects.
// A finished track has no goal.
func (s *Session) refreshGoal() error {
	progress, err := s.store.GetStage(s.ctx, s.track.Key)
	if err != nil {
		return fmt.Errorf("failed to read progress: %w", err)
	}
	st, ok := s.track.StageClamped(progress)
	if !ok || (!s.track.Clamps() && s.track.Finished(progress)) {
		if s.goal != nil {
			s.goal.Close()
			s.goal = nil
		}
		return nil
	}

	goal := stage.GoalFromStage(*st)
	if s.goal != nil {
		s.goal.SetGoal(goal)
		return nil
	}
	s.goal = stage.WatchGoal(s.assembly, goal, func(mask.State) {
		s.note("The mask feels right.")
	})
	return nil
}

func (s *Session) onOutcome(o stage.Outcome) {
	switch {
	case o.Finished:
		s.note("Nothing more to say here.")
	case o.StageIndex < 0:
	case o.Matched:
		s.note("Stage %d: the mask convinces them.", o.StageIndex+1)
	default:
		s.note("Stage %d: the mask does not convince them.", o.StageIndex+1)
	}
}

func (s *Session) onAdvance(a stage.Advance) {
	s.note("Stage %d complete.", a.StageIndex+1)
	if err := s.refreshGoal(); err != nil {
		s.logger.Error("Failed to refresh goal", "error", err)
	}
}

// Tick advances dialogue timers and scheduled continuations by dt.
func (s *Session) Tick(dt time.Duration) {
	s.dialogue.Update(dt)
	s.sched.Advance(dt)
}

// Place moves fragment id into socket, taking it out of any other socket
// first.
func (s *Session) Place(id mask.FragmentID, socket int) error {
	if !s.inventory.Has(id) {
		return fmt.Errorf("fragment %s is not unlocked", id)
	}
	f := s.catalog.Fragment(id)
	if f.IsZero() {
		return fmt.Errorf("fragment %s is not in the catalog", id)
	}
	spec, _, ok := s.assembly.Socket(socket)
	if !ok {
		return fmt.Errorf("%w: %d", mask.ErrNoSocket, socket)
	}
	if !spec.Any && spec.Accepts != f.Def.Type {
		return fmt.Errorf("%w: %s does not take %s", mask.ErrSocketRejected, spec.Name, f.Def.Type)
	}
	s.assembly.RemoveByID(id)
	if _, err := s.assembly.Place(socket, f); err != nil {
		return err
	}
	return nil
}

// PlaceFirstFree places id into the first empty socket.
func (s *Session) PlaceFirstFree(id mask.FragmentID) error {
	for i := 0; i < s.assembly.Len(); i++ {
		if _, f, _ := s.assembly.Socket(i); f.IsZero() {
			return s.Place(id, i)
		}
	}
	return fmt.Errorf("%w: every socket is full", mask.ErrNoSocket)
}

func (s *Session) Remove(socket int) {
	s.assembly.Remove(socket)
}

// Evaluate checks the mask against the current stage on demand.
func (s *Session) Evaluate() (stage.Outcome, error) {
	return s.runner.Evaluate(s.ctx, s.assembly.State())
}

// Continue handles the continue key for the dialogue on screen.
func (s *Session) Continue() {
	s.dialogue.Advance()
}

// ReenterScene leaves and enters the scene again, which schedules a new
// auto-run evaluation.
func (s *Session) ReenterScene() error {
	s.endScene()
	return s.startScene()
}

// ResetProgress clears stored progress and re-enters the scene.
func (s *Session) ResetProgress() error {
	if err := s.store.Reset(s.ctx); err != nil {
		return fmt.Errorf("failed to reset progress: %w", err)
	}
	s.note("Progress reset.")
	return s.ReenterScene()
}

// ReplaceTrack swaps in a reloaded track and re-enters the scene.
func (s *Session) ReplaceTrack(t *stage.Track) error {
	s.endScene()
	s.track = t
	return s.startScene()
}

// ReplaceCatalog swaps in a reloaded catalog. Fragments the new catalog
// no longer defines are dropped from the inventory; the rest stay equipped
// with their reloaded definitions.
func (s *Session) ReplaceCatalog(c *content.Catalog) error {
	s.endScene()
	for _, id := range s.inventory.Unlocked() {
		if _, ok := c.Lookup(id); !ok {
			s.inventory.Remove(id)
		}
	}
	equipped := make([]mask.FragmentID, s.assembly.Len())
	for i := range equipped {
		if _, f, _ := s.assembly.Socket(i); !f.IsZero() {
			equipped[i] = f.Def.ID
		}
	}

	s.catalog = c
	if err := s.buildAssembly(); err != nil {
		return err
	}
	for _, id := range c.Starting {
		s.inventory.Unlock(id)
	}
	for i, id := range equipped {
		if id == "" {
			continue
		}
		if err := s.Place(id, i); err != nil {
			s.logger.Warn("Dropped equipped fragment on reload", "fragment", id, "socket", i, "error", err)
		}
	}
	return s.startScene()
}

func (s *Session) Close() {
	s.endScene()
}

// Accessors for the UI.

func (s *Session) Assembly() *mask.Assembly   { return s.assembly }
func (s *Session) Dialogue() *dialogue.Manager { return s.dialogue }
func (s *Session) Track() *stage.Track         { return s.track }
func (s *Session) Catalog() *content.Catalog   { return s.catalog }
func (s *Session) Busy() bool                  { return s.runner.Busy() }
func (s *Session) GoalMatched() bool           { return s.goal != nil && s.goal.Matched() }

// Inventory lists unlocked fragments in unlock order.
func (s *Session) Inventory() []mask.FragmentID {
	return s.inventory.Unlocked()
}

// SocketOf returns the socket holding id, or -1.
func (s *Session) SocketOf(id mask.FragmentID) int {
	for i := 0; i < s.assembly.Len(); i++ {
		if _, f, _ := s.assembly.Socket(i); !f.IsZero() && f.Def.ID == id {
			return i
		}
	}
	return -1
}

// Progress returns the stored stage index for the track.
func (s *Session) Progress() (int, error) {
	return s.store.GetStage(s.ctx, s.track.Key)
}

// Activity returns the session log, oldest first.
func (s *Session) Activity() []string {
	return s.activity
}

// ActivityCount returns how many notes were ever logged, including ones
// trimmed from Activity.
func (s *Session) ActivityCount() int {
	return s.noted
}

func (s *Session) note(format string, args ...any) {
	s.noted++
	s.activity = append(s.activity, fmt.Sprintf(format, args...))
	if len(s.activity) > maxActivity {
		s.activity = s.activity[len(s.activity)-maxActivity:]
	}
}

func (s *Session) label(id mask.FragmentID) string {
	if a, ok := s.catalog.Lookup(id); ok {
		return a.Label()
	}
	return string(id)
}

func (s *Session) trackName() string {
	if strings.TrimSpace(s.track.Name) != "" {
		return s.track.Name
	}
	return s.track.Key
}
