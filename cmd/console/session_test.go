package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jwebster45206/mask-engine/pkg/content"
	"github.com/jwebster45206/mask-engine/pkg/mask"
	"github.com/jwebster45206/mask-engine/pkg/stage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalog = `fragments:
  - {id: det_1, type: Identity, identity: Detective}
  - {id: det_2, type: Identity, identity: Detective}
  - {id: det_3, type: Identity, identity: Detective}
  - {id: conf_1, type: Emotion, emotion: Confident}
  - {id: angry_1, type: Emotion, emotion: Angry}
  - {id: th_1, type: Identity, identity: Therapist}
starting: [det_1, det_2, det_3, conf_1]
`

const testTrack = `key: interrogation
name: Interrogation Room
stages:
  - identity: Detective
    emotions: [Confident]
    correct:
      lines:
        - {speaker: suspect, content: "Fine, I was there."}
    wrong:
      lines:
        - {speaker: suspect, content: "Who are you supposed to be?"}
    rewards: [angry_1]
    grant_once: true
  - identity: Detective
    emotions: [Angry]
    correct:
      lines:
        - {speaker: suspect, content: "Okay, okay!"}
`

func loadTestContent(t *testing.T, track string) (*content.Catalog, *stage.Track) {
	t.Helper()
	c, err := content.DecodeCatalog([]byte(testCatalog), content.FormatYAML, true)
	require.NoError(t, err)
	tr, err := content.DecodeTrack([]byte(track), content.FormatYAML, true)
	require.NoError(t, err)
	return c, tr
}

func newTestSession(t *testing.T, track string) *Session {
	t.Helper()
	c, tr := loadTestContent(t, track)
	s, err := NewSession(context.Background(), SessionOptions{
		Catalog:      c,
		Track:        tr,
		AutoRunDelay: 100 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

// finishDialogue presses continue until the dialogue ends.
func finishDialogue(t *testing.T, s *Session) {
	t.Helper()
	for i := 0; i < 20 && s.Dialogue().IsPlaying(); i++ {
		s.Continue()
	}
	require.False(t, s.Dialogue().IsPlaying(), "dialogue should have finished")
}

func activityContains(s *Session, text string) bool {
	for _, line := range s.Activity() {
		if strings.Contains(line, text) {
			return true
		}
	}
	return false
}

func TestSession_InterrogationFlow(t *testing.T) {
	s := newTestSession(t, testTrack)
	assert.True(t, activityContains(s, "Entered Interrogation Room."))

	s.Tick(50 * time.Millisecond)
	assert.False(t, s.Dialogue().IsPlaying(), "auto-run waits for its delay")

	s.Tick(50 * time.Millisecond)
	require.True(t, s.Dialogue().IsPlaying(), "auto-run plays the wrong answer for a bare mask")
	line, _ := s.Dialogue().Current()
	assert.Equal(t, "Who are you supposed to be?", line.Content)
	assert.True(t, activityContains(s, "does not convince"))
	finishDialogue(t, s)

	for i, id := range []mask.FragmentID{"det_1", "det_2", "det_3", "conf_1"} {
		require.NoError(t, s.Place(id, i))
	}
	assert.True(t, s.GoalMatched())
	assert.True(t, activityContains(s, "The mask feels right."))
	assert.Equal(t, "Detective x3, Confident x1", s.Assembly().Summary())

	out, err := s.Evaluate()
	require.NoError(t, err)
	assert.True(t, out.Matched)
	assert.True(t, out.Pending)
	assert.True(t, s.Busy())

	_, err = s.Evaluate()
	assert.ErrorIs(t, err, stage.ErrBusy)

	finishDialogue(t, s)
	progress, err := s.Progress()
	require.NoError(t, err)
	assert.Equal(t, 1, progress)
	assert.Contains(t, s.Inventory(), mask.FragmentID("angry_1"))
	assert.True(t, activityContains(s, "Stage 1 complete."))
	assert.True(t, activityContains(s, "New fragment:"))

	assert.False(t, s.GoalMatched(), "goal moves to the second stage")
	require.NoError(t, s.Place("angry_1", 3))
	assert.True(t, s.GoalMatched())
	assert.Equal(t, -1, s.SocketOf("conf_1"), "displaced fragment is back in the inventory")
	assert.Equal(t, 3, s.SocketOf("angry_1"))
}

func TestSession_PlaceErrors(t *testing.T) {
	s := newTestSession(t, testTrack)

	assert.ErrorContains(t, s.Place("angry_1", 0), "not unlocked")
	assert.ErrorIs(t, s.Place("det_1", 9), mask.ErrNoSocket)

	require.NoError(t, s.Place("det_1", 0))
	require.NoError(t, s.Place("det_1", 2))
	assert.Equal(t, 2, s.SocketOf("det_1"), "a fragment occupies one socket at a time")

	for _, id := range []mask.FragmentID{"det_2", "det_3", "conf_1"} {
		require.NoError(t, s.PlaceFirstFree(id))
	}
	assert.ErrorIs(t, s.PlaceFirstFree("det_1"), mask.ErrNoSocket)

	s.Remove(2)
	assert.Equal(t, -1, s.SocketOf("det_1"))
}

func TestSession_ResetAndReload(t *testing.T) {
	s := newTestSession(t, testTrack)
	ctx := context.Background()

	require.NoError(t, s.store.SetStage(ctx, "interrogation", 1))
	require.NoError(t, s.ResetProgress())
	progress, err := s.Progress()
	require.NoError(t, err)
	assert.Equal(t, 0, progress)

	require.NoError(t, s.Place("det_1", 0))
	require.NoError(t, s.Place("conf_1", 3))
	c, err := content.DecodeCatalog([]byte(strings.Replace(testCatalog,
		"  - {id: conf_1, type: Emotion, emotion: Confident}\n", "", 1)), content.FormatYAML, true)
	require.NoError(t, err)
	require.NoError(t, s.ReplaceCatalog(c))
	assert.Equal(t, 0, s.SocketOf("det_1"), "surviving fragments stay equipped")
	assert.Equal(t, -1, s.SocketOf("conf_1"))
	assert.NotContains(t, s.Inventory(), mask.FragmentID("conf_1"))
	assert.True(t, activityContains(s, "Fragment lost: conf_1"))
	assert.Same(t, c.Fragment("det_1").Def, s.Assembly().Equipped()[0].Def)

	_, tr := loadTestContent(t, strings.Replace(testTrack, "Interrogation Room", "Back Alley", 1))
	require.NoError(t, s.ReplaceTrack(tr))
	assert.Equal(t, "Back Alley", s.Track().Name)
	assert.True(t, activityContains(s, "Entered Back Alley."))
}

func TestSession_IdentityTrigger(t *testing.T) {
	track := testTrack + `triggers:
  - identity: Therapist
    dialogue:
      lines:
        - {speaker: suspect, content: "You sound like my shrink."}
`
	c, tr := loadTestContent(t, track)
	s, err := NewSession(context.Background(), SessionOptions{Catalog: c, Track: tr, AutoRunDelay: time.Hour})
	require.NoError(t, err)
	defer s.Close()

	s.inventory.Unlock("th_1")
	require.NoError(t, s.Place("th_1", 0))

	require.True(t, s.Dialogue().IsPlaying())
	line, _ := s.Dialogue().Current()
	assert.Equal(t, "You sound like my shrink.", line.Content)

	finishDialogue(t, s)
	assert.True(t, activityContains(s, "Ending reached as Therapist."))
}

func TestSession_IdentityTriggerWaitsForDialogue(t *testing.T) {
	track := testTrack + `triggers:
  - identity: Therapist
    dialogue:
      lines:
        - {speaker: suspect, content: "You sound like my shrink."}
`
	c, tr := loadTestContent(t, track)
	s, err := NewSession(context.Background(), SessionOptions{Catalog: c, Track: tr, AutoRunDelay: time.Hour})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Evaluate()
	require.NoError(t, err)
	require.True(t, s.Dialogue().IsPlaying())

	s.inventory.Unlock("th_1")
	require.NoError(t, s.Place("th_1", 0))
	line, _ := s.Dialogue().Current()
	assert.Equal(t, "Who are you supposed to be?", line.Content, "the stage line keeps playing")

	finishDialogue(t, s)
	s.Tick(frameInterval)

	require.True(t, s.Dialogue().IsPlaying(), "the ending plays once the stage line is done")
	line, _ = s.Dialogue().Current()
	assert.Equal(t, "You sound like my shrink.", line.Content)

	finishDialogue(t, s)
	assert.True(t, activityContains(s, "Ending reached as Therapist."))
}

func TestSession_AttachFollowsScenes(t *testing.T) {
	c, tr := loadTestContent(t, testTrack)
	attached, detached := 0, 0
	s, err := NewSession(context.Background(), SessionOptions{
		Catalog: c,
		Track:   tr,
		Attach: func(r *stage.Runner, a *mask.Assembly) func() {
			attached++
			return func() { detached++ }
		},
	})
	require.NoError(t, err)

	require.NoError(t, s.ReenterScene())
	s.Close()

	assert.Equal(t, 2, attached)
	assert.Equal(t, 2, detached)
}
