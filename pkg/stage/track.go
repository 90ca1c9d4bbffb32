package stage

import (
	"errors"
	"fmt"

	"github.com/jwebster45206/mask-engine/pkg/dialogue"
	"github.com/jwebster45206/mask-engine/pkg/mask"
)

// Track is an ordered list of stages whose progress is stored under Key.
type Track struct {
	Key    string  `json:"key" yaml:"key"`
	Name   string  `json:"name,omitempty" yaml:"name,omitempty"`
	Stages []Stage `json:"stages" yaml:"stages"`
	// ClampAtLastStage repeats the final stage once the track is finished.
	// When false, evaluation past the last stage does nothing. Defaults to
	// true when unset.
	ClampAtLastStage *bool             `json:"clamp_at_last_stage,omitempty" yaml:"clamp_at_last_stage,omitempty"`
	Fallback         dialogue.Sequence `json:"fallback,omitempty" yaml:"fallback,omitempty"`
	Triggers         []Trigger         `json:"triggers,omitempty" yaml:"triggers,omitempty"`
}

// Trigger plays Dialogue the first time the mask resolves to Identity while
// the track's scene is active.
type Trigger struct {
	Identity mask.IdentityType `json:"identity" yaml:"identity"`
	Dialogue dialogue.Sequence `json:"dialogue" yaml:"dialogue"`
}

// Clamps reports the effective clamp policy.
func (t *Track) Clamps() bool {
	return t.ClampAtLastStage == nil || *t.ClampAtLastStage
}

// Len returns the number of stages.
func (t *Track) Len() int {
	return len(t.Stages)
}

// Resolve maps a stored progress index to the stage to evaluate. It reports
// false when there is nothing to evaluate: an empty track, or an index past
// the end with clamping off.
func (t *Track) Resolve(progress int) (int, bool) {
	n := len(t.Stages)
	if n == 0 {
		return 0, false
	}
	if !t.Clamps() {
		if progress < 0 || progress >= n {
			return 0, false
		}
		return progress, true
	}
	if progress < 0 {
		return 0, true
	}
	if progress >= n {
		return n - 1, true
	}
	return progress, true
}

// StageClamped returns the stage at index clamped into range.
func (t *Track) StageClamped(index int) (*Stage, bool) {
	n := len(t.Stages)
	if n == 0 {
		return nil, false
	}
	index = max(0, min(index, n-1))
	return &t.Stages[index], true
}

// IsCorrect reports whether the stage at index is answered. Out-of-range
// indexes are never correct.
func (t *Track) IsCorrect(index int, identity mask.IdentityType, emotions []mask.EmotionType) bool {
	if index < 0 || index >= len(t.Stages) {
		return false
	}
	return IsCorrect(t.Stages[index], identity, emotions)
}

// Finished reports whether progress has moved past the last stage.
func (t *Track) Finished(progress int) bool {
	return progress >= len(t.Stages)
}

// Validate checks the key and every stage, joining all problems.
func (t *Track) Validate() error {
	var errs []error
	if t.Key == "" {
		errs = append(errs, errors.New("track key is required"))
	}
	for i, s := range t.Stages {
		if err := s.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("stage %d: %w", i, err))
		}
	}
	for i, tr := range t.Triggers {
		if !tr.Identity.Valid() {
			errs = append(errs, fmt.Errorf("trigger %d: needs a real identity", i))
		}
	}
	return errors.Join(errs...)
}
