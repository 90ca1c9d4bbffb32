package dialogue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoLines() Sequence {
	return Sequence{Lines: []Line{
		{Speaker: "inspector vale", Content: "You again."},
		{Speaker: "you", Content: "Me again."},
	}}
}

func TestManager_PlayThroughCallsCompletionOnce(t *testing.T) {
	m := NewManager()
	completed := 0
	var events []EventType
	m.Subscribe(func(e Event) { events = append(events, e.Type) })

	require.True(t, m.Play(twoLines(), func() { completed++ }))
	require.True(t, m.IsPlaying())

	line, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, "You again.", line.Content)
	assert.Equal(t, "Inspector Vale", line.SpeakerName())

	// first press reveals the indicator, second moves on
	m.Advance()
	assert.True(t, m.Ready())
	m.Advance()
	line, _ = m.Current()
	assert.Equal(t, "Me again.", line.Content)
	assert.False(t, m.Ready())

	m.Advance()
	m.Advance()

	assert.False(t, m.IsPlaying())
	assert.Equal(t, 1, completed)
	assert.Equal(t, []EventType{EventStarted, EventFinished}, events)

	m.Advance()
	m.Stop()
	assert.Equal(t, 1, completed)
}

func TestManager_RejectsEmptyAndConcurrentPlay(t *testing.T) {
	m := NewManager()
	called := false

	assert.False(t, m.Play(Sequence{}, func() { called = true }))
	assert.False(t, called)

	require.True(t, m.Play(twoLines(), nil))
	assert.False(t, m.Play(twoLines(), func() { called = true }))
	assert.False(t, called)
}

func TestManager_UpdateRevealsIndicator(t *testing.T) {
	m := NewManager()
	m.RevealAfter = time.Second
	require.True(t, m.Play(twoLines(), nil))

	m.Update(400 * time.Millisecond)
	assert.False(t, m.Ready())
	m.Update(600 * time.Millisecond)
	assert.True(t, m.Ready())

	m.Advance()
	idx, total := m.Position()
	assert.Equal(t, 1, idx)
	assert.Equal(t, 2, total)
}

func TestManager_AbortSkipsCompletion(t *testing.T) {
	m := NewManager()
	completed := false
	var last EventType
	m.Subscribe(func(e Event) { last = e.Type })

	require.True(t, m.Play(twoLines(), func() { completed = true }))
	m.Abort()

	assert.False(t, m.IsPlaying())
	assert.False(t, completed)
	assert.Equal(t, EventAborted, last)
}

func TestManager_CompletionSeesIdlePlayer(t *testing.T) {
	m := NewManager()
	var playingDuringCallback bool
	require.True(t, m.Play(twoLines(), func() { playingDuringCallback = m.IsPlaying() }))
	m.Stop()
	assert.False(t, playingDuringCallback)
}
