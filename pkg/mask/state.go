package mask

import (
	"fmt"
	"slices"
	"strings"
)

// State is the resolved mask: derived from the equipped set, never stored.
// Emotions lists each present emotion once in canonical order and never
// contains EmotionNone.
type State struct {
	Identity       IdentityType
	Emotions       []EmotionType
	IdentityCounts map[IdentityType]int
	EmotionCounts  map[EmotionType]int
}

// EmotionMultiset repeats each present emotion by its equipped count, in
// canonical order. Stage matching compares against this.
func (s State) EmotionMultiset() []EmotionType {
	var out []EmotionType
	for _, e := range s.Emotions {
		n := s.EmotionCounts[e]
		if n <= 0 {
			n = 1
		}
		for i := 0; i < n; i++ {
			out = append(out, e)
		}
	}
	return out
}

// HasEmotion reports whether e is present.
func (s State) HasEmotion(e EmotionType) bool {
	return slices.Contains(s.Emotions, e)
}

// Empty reports whether nothing counted is equipped.
func (s State) Empty() bool {
	return Counts{Identities: s.IdentityCounts, Emotions: s.EmotionCounts}.Total() == 0
}

// Summary renders the equipped tallies, identities first, e.g.
// "Detective x3, Confident x2". It is empty when nothing is equipped.
func (s State) Summary() string {
	var parts []string
	for _, id := range Identities() {
		if n := s.IdentityCounts[id]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s x%d", id, n))
		}
	}
	for _, e := range Emotions() {
		if n := s.EmotionCounts[e]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s x%d", e, n))
		}
	}
	return strings.Join(parts, ", ")
}

func (s State) String() string {
	return fmt.Sprintf("identity=%s emotions=%v", s.Identity, s.Emotions)
}
