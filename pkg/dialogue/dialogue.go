package dialogue

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Line is one spoken line.
type Line struct {
	Speaker string `json:"speaker" yaml:"speaker"`
	Content string `json:"content" yaml:"content"`
}

// SpeakerName returns the speaker title-cased for display ("old tom" -> "Old Tom").
func (l Line) SpeakerName() string {
	if strings.TrimSpace(l.Speaker) == "" {
		return ""
	}
	return cases.Title(language.English).String(l.Speaker)
}

// Sequence is an ordered list of lines played as one conversation.
type Sequence struct {
	Lines []Line `json:"lines,omitempty" yaml:"lines,omitempty"`
}

// Empty reports whether there is nothing to play.
func (s Sequence) Empty() bool {
	return len(s.Lines) == 0
}

// Player plays sequences. Only one sequence plays at a time.
type Player interface {
	// Play starts seq and calls onComplete once it finishes normally. It
	// returns false, without calling onComplete, when seq is empty or
	// another sequence is playing.
	Play(seq Sequence, onComplete func()) bool
	// IsPlaying reports whether a sequence is active.
	IsPlaying() bool
}
