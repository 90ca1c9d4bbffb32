package stage

import (
	"fmt"

	"github.com/jwebster45206/mask-engine/pkg/dialogue"
	"github.com/jwebster45206/mask-engine/pkg/mask"
)

// MaxStageEmotions is the number of emotion slots a stage answer has.
const MaxStageEmotions = 3

// Stage is one step of a track: the expected mask and what happens on a
// correct or wrong answer.
type Stage struct {
	Identity  mask.IdentityType  `json:"identity" yaml:"identity"`
	Emotions  []mask.EmotionType `json:"emotions,omitempty" yaml:"emotions,omitempty"` // None = unused slot
	Correct   dialogue.Sequence  `json:"correct" yaml:"correct"`
	Wrong     dialogue.Sequence  `json:"wrong" yaml:"wrong"`
	Rewards   []mask.FragmentID  `json:"rewards,omitempty" yaml:"rewards,omitempty"`
	GrantOnce bool               `json:"grant_once,omitempty" yaml:"grant_once,omitempty"`
}

// ExpectedEmotions returns the answer's emotion multiset, ignoring None.
func (s Stage) ExpectedEmotions() map[mask.EmotionType]int {
	return multiset(s.Emotions)
}

// Validate checks the answer slots.
func (s Stage) Validate() error {
	if len(s.Emotions) > MaxStageEmotions {
		return fmt.Errorf("stage lists %d emotions, at most %d allowed", len(s.Emotions), MaxStageEmotions)
	}
	if s.Identity < 0 || (s.Identity != mask.IdentityNone && !s.Identity.Valid()) {
		return fmt.Errorf("stage has invalid identity %d", int(s.Identity))
	}
	for _, e := range s.Emotions {
		if e != mask.EmotionNone && !e.Valid() {
			return fmt.Errorf("stage has invalid emotion %d", int(e))
		}
	}
	for i, id := range s.Rewards {
		if id == "" {
			return fmt.Errorf("stage reward %d is empty", i)
		}
	}
	return nil
}

// IsCorrect reports whether the resolved mask answers s. The identity must
// match exactly; the emotions must equal the expected emotions as a
// multiset, with None ignored on both sides.
func IsCorrect(s Stage, identity mask.IdentityType, emotions []mask.EmotionType) bool {
	if s.Identity != identity {
		return false
	}

	want := s.ExpectedEmotions()
	got := multiset(emotions)
	if len(want) != len(got) {
		return false
	}
	for e, n := range want {
		if got[e] != n {
			return false
		}
	}
	return true
}

// Matches is IsCorrect against a resolved state's emotion multiset.
func (s Stage) Matches(st mask.State) bool {
	return IsCorrect(s, st.Identity, st.EmotionMultiset())
}

func multiset(emotions []mask.EmotionType) map[mask.EmotionType]int {
	m := make(map[mask.EmotionType]int, len(emotions))
	for _, e := range emotions {
		if e == mask.EmotionNone {
			continue
		}
		m[e]++
	}
	return m
}
