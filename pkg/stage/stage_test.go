package stage

import (
	"testing"

	"github.com/jwebster45206/mask-engine/pkg/dialogue"
	"github.com/jwebster45206/mask-engine/pkg/mask"
	"github.com/stretchr/testify/assert"
)

const (
	det   = mask.IdentityDetective
	conf  = mask.EmotionConfident
	angry = mask.EmotionAngry
	none  = mask.EmotionNone
)

func seq(lines ...string) dialogue.Sequence {
	var s dialogue.Sequence
	for _, l := range lines {
		s.Lines = append(s.Lines, dialogue.Line{Speaker: "npc", Content: l})
	}
	return s
}

// equip resolves a state from n identity fragments and the given emotions.
func equip(identity mask.IdentityType, n int, emotions ...mask.EmotionType) mask.State {
	var frags []mask.Fragment
	for i := 0; i < n; i++ {
		frags = append(frags, mask.FragmentOf(&mask.Attribute{ID: "i", Type: mask.AttributeIdentity, Identity: identity}))
	}
	for _, e := range emotions {
		frags = append(frags, mask.FragmentOf(&mask.Attribute{ID: "e", Type: mask.AttributeEmotion, Emotion: e}))
	}
	return mask.DefaultResolver().Resolve(frags)
}

func TestIsCorrect(t *testing.T) {
	tests := []struct {
		name     string
		stage    Stage
		identity mask.IdentityType
		emotions []mask.EmotionType
		want     bool
	}{
		{
			name:     "missing multiplicity fails",
			stage:    Stage{Identity: det, Emotions: []mask.EmotionType{conf, conf, angry}},
			identity: det,
			emotions: []mask.EmotionType{conf, angry},
			want:     false,
		},
		{
			name:     "exact multiplicity passes",
			stage:    Stage{Identity: det, Emotions: []mask.EmotionType{conf, conf, angry}},
			identity: det,
			emotions: []mask.EmotionType{angry, conf, conf},
			want:     true,
		},
		{
			name:     "extra emotion fails",
			stage:    Stage{Identity: det, Emotions: []mask.EmotionType{conf}},
			identity: det,
			emotions: []mask.EmotionType{conf, angry},
			want:     false,
		},
		{
			name:     "none slots ignored on both sides",
			stage:    Stage{Identity: det, Emotions: []mask.EmotionType{none, conf, none}},
			identity: det,
			emotions: []mask.EmotionType{conf, none},
			want:     true,
		},
		{
			name:     "identity mismatch short-circuits",
			stage:    Stage{Identity: det, Emotions: []mask.EmotionType{conf}},
			identity: mask.IdentityNone,
			emotions: []mask.EmotionType{conf},
			want:     false,
		},
		{
			name:     "no emotions expected and none given",
			stage:    Stage{Identity: mask.IdentityTherapist},
			identity: mask.IdentityTherapist,
			want:     true,
		},
		{
			name:     "none identity stage matches unresolved mask",
			stage:    Stage{Identity: mask.IdentityNone, Emotions: []mask.EmotionType{angry}},
			identity: mask.IdentityNone,
			emotions: []mask.EmotionType{angry},
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCorrect(tt.stage, tt.identity, tt.emotions))
		})
	}
}

func TestStage_MatchesUsesResolvedMultiset(t *testing.T) {
	s := Stage{Identity: det, Emotions: []mask.EmotionType{conf, conf, angry}}

	assert.False(t, s.Matches(equip(det, 3, conf, angry)))
	assert.True(t, s.Matches(equip(det, 3, conf, conf, angry)))
	assert.False(t, s.Matches(equip(det, 2, conf, conf, angry)), "two detectives do not resolve Detective")
}

func TestStage_Validate(t *testing.T) {
	assert.NoError(t, Stage{Identity: det, Emotions: []mask.EmotionType{conf, conf, angry}}.Validate())
	assert.Error(t, Stage{Identity: det, Emotions: []mask.EmotionType{conf, conf, angry, angry}}.Validate())
	assert.Error(t, Stage{Identity: mask.IdentityType(42)}.Validate())
	assert.Error(t, Stage{Identity: det, Rewards: []mask.FragmentID{""}}.Validate())
}

func TestTrack_Resolve(t *testing.T) {
	off := false
	clamped := &Track{Key: "k", Stages: make([]Stage, 3)}
	open := &Track{Key: "k", Stages: make([]Stage, 3), ClampAtLastStage: &off}

	tests := []struct {
		name     string
		track    *Track
		progress int
		wantIdx  int
		wantOK   bool
	}{
		{"clamped in range", clamped, 1, 1, true},
		{"clamped past end repeats last", clamped, 7, 2, true},
		{"clamped negative starts at zero", clamped, -3, 0, true},
		{"unclamped in range", open, 2, 2, true},
		{"unclamped past end is finished", open, 3, 0, false},
		{"empty track", &Track{Key: "k"}, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, ok := tt.track.Resolve(tt.progress)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantIdx, idx)
			}
		})
	}
}

func TestTrack_IsCorrectAndClampedLookup(t *testing.T) {
	tr := &Track{Key: "k", Stages: []Stage{
		{Identity: det, Emotions: []mask.EmotionType{conf}},
		{Identity: mask.IdentityJournalist},
	}}

	assert.True(t, tr.IsCorrect(0, det, []mask.EmotionType{conf}))
	assert.False(t, tr.IsCorrect(5, det, []mask.EmotionType{conf}))
	assert.False(t, tr.IsCorrect(-1, det, []mask.EmotionType{conf}))

	s, ok := tr.StageClamped(10)
	assert.True(t, ok)
	assert.Equal(t, mask.IdentityJournalist, s.Identity)

	_, ok = (&Track{}).StageClamped(0)
	assert.False(t, ok)

	assert.True(t, tr.Clamps())
	assert.True(t, tr.Finished(2))
	assert.Error(t, (&Track{}).Validate())
}

func TestTrack_ValidateTriggers(t *testing.T) {
	tr := &Track{Key: "k", Triggers: []Trigger{{Identity: mask.IdentityDirtyCop, Dialogue: seq("ending")}}}
	assert.NoError(t, tr.Validate())

	tr.Triggers = append(tr.Triggers, Trigger{Dialogue: seq("no identity")})
	assert.ErrorContains(t, tr.Validate(), "trigger 1")
}
