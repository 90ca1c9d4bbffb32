package dialogue

import (
	"time"

	"github.com/jwebster45206/mask-engine/pkg/notify"
)

// DefaultRevealAfter is how long a line shows before the continue
// indicator appears on its own.
const DefaultRevealAfter = 5 * time.Second

// EventType identifies a dialogue lifecycle event.
type EventType string

const (
	EventStarted  EventType = "dialogue.started"
	EventFinished EventType = "dialogue.finished"
	EventAborted  EventType = "dialogue.aborted"
)

// Event is published to Manager subscribers.
type Event struct {
	Type     EventType
	Sequence Sequence
}

// Manager is the in-process Player. It is driven by the frame loop: Update
// advances the reveal timer and Advance handles the player's continue input.
// The first continue press on a line reveals the indicator; the next moves
// to the following line.
type Manager struct {
	RevealAfter time.Duration

	seq        Sequence
	index      int
	active     bool
	ready      bool
	elapsed    time.Duration
	onComplete func()
	events     notify.Registry[Event]
}

var _ Player = (*Manager)(nil)

// NewManager returns an idle manager.
func NewManager() *Manager {
	return &Manager{RevealAfter: DefaultRevealAfter, index: -1}
}

// Play implements Player.
func (m *Manager) Play(seq Sequence, onComplete func()) bool {
	if seq.Empty() || m.active {
		return false
	}
	m.seq = seq
	m.index = -1
	m.active = true
	m.onComplete = onComplete

	m.events.Notify(Event{Type: EventStarted, Sequence: seq})
	m.next()
	return true
}

// IsPlaying implements Player.
func (m *Manager) IsPlaying() bool {
	return m.active
}

// Current returns the line on screen.
func (m *Manager) Current() (Line, bool) {
	if !m.active || m.index < 0 || m.index >= len(m.seq.Lines) {
		return Line{}, false
	}
	return m.seq.Lines[m.index], true
}

// Position returns the zero-based index of the current line and the line
// count of the active sequence.
func (m *Manager) Position() (int, int) {
	return m.index, len(m.seq.Lines)
}

// Ready reports whether the continue indicator is showing.
func (m *Manager) Ready() bool {
	return m.active && m.ready
}

// Update advances the reveal timer by dt.
func (m *Manager) Update(dt time.Duration) {
	if !m.active || m.ready {
		return
	}
	m.elapsed += dt
	if m.elapsed >= m.RevealAfter {
		m.ready = true
	}
}

// Advance handles a continue press.
func (m *Manager) Advance() {
	if !m.active {
		return
	}
	if !m.ready {
		m.ready = true
		return
	}
	m.next()
}

func (m *Manager) next() {
	m.index++
	if m.index >= len(m.seq.Lines) {
		m.Stop()
		return
	}
	m.elapsed = 0
	m.ready = false
}

// Stop ends the active sequence as finished: the completion callback runs,
// then subscribers are notified.
func (m *Manager) Stop() {
	if !m.active {
		return
	}
	seq, done := m.seq, m.onComplete
	m.reset()
	if done != nil {
		done()
	}
	m.events.Notify(Event{Type: EventFinished, Sequence: seq})
}

// Abort ends the active sequence without running its completion callback,
// as when the scene is torn down mid-conversation.
func (m *Manager) Abort() {
	if !m.active {
		return
	}
	seq := m.seq
	m.reset()
	m.events.Notify(Event{Type: EventAborted, Sequence: seq})
}

func (m *Manager) reset() {
	m.active = false
	m.ready = false
	m.seq = Sequence{}
	m.index = -1
	m.elapsed = 0
	m.onComplete = nil
}

// Subscribe registers fn for lifecycle events.
func (m *Manager) Subscribe(fn func(Event)) (unsubscribe func()) {
	return m.events.Add(fn)
}
