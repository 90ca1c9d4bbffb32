package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jwebster45206/mask-engine/pkg/content"
	"github.com/jwebster45206/mask-engine/pkg/mask"
	"github.com/jwebster45206/mask-engine/pkg/stage"
)

// Result collects the findings for one file.
type Result struct {
	Path     string
	Errors   []string
	Warnings []string
}

// OK reports whether the file passed. Warnings count as failures when
// strictWarnings is set.
func (r Result) OK(strictWarnings bool) bool {
	if len(r.Errors) > 0 {
		return false
	}
	return !strictWarnings || len(r.Warnings) == 0
}

func (r *Result) addError(format string, args ...any) {
	r.Errors = append(r.Errors, "  - "+fmt.Sprintf(format, args...))
}

func (r *Result) addWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, "  - "+fmt.Sprintf(format, args...))
}

// TrackValidator checks track files, optionally against a catalog. It holds
// no per-file state and is safe to share across goroutines.
type TrackValidator struct {
	Catalog  *content.Catalog
	Resolver *mask.Resolver
	Sockets  int
}

// ValidateFile validates one track file in strict mode.
func (v *TrackValidator) ValidateFile(path string) Result {
	res := Result{Path: path}

	format, err := content.FormatOf(path)
	if err != nil {
		res.addError("%v", err)
		return res
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if !isValidFilename(base) {
		res.addError("track filename '%s' must be lowercase snake_case (e.g., interrogation_room.yaml)", filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		res.addError("failed to read file: %v", err)
		return res
	}

	t, err := content.DecodeTrack(data, format, true)
	if err != nil {
		res.addError("%v", err)
		return res
	}

	v.validateTrack(t, &res)
	return res
}

func (v *TrackValidator) validateTrack(t *stage.Track, res *Result) {
	if len(t.Stages) == 0 {
		res.addWarning("track %s has no stages; every evaluation plays the fallback", t.Key)
	}
	if !t.Clamps() && t.Fallback.Empty() {
		res.addWarning("track %s does not clamp and has no fallback; a finished track is silent", t.Key)
	}

	minimums := make(map[mask.IdentityType]int)
	if v.Resolver != nil {
		for _, rule := range v.Resolver.Rules() {
			minimums[rule.Identity] = rule.Min
		}
	}

	for i, s := range t.Stages {
		if v.Resolver != nil && s.Identity != mask.IdentityNone {
			if _, ok := minimums[s.Identity]; !ok {
				res.addError("stage %d expects identity %s, which no identity rule can resolve", i, s.Identity)
			}
		}

		if v.Sockets > 0 {
			needed := minimums[s.Identity]
			for _, n := range s.ExpectedEmotions() {
				needed += n
			}
			if needed > v.Sockets {
				res.addWarning("stage %d needs %d fragments but a mask has %d sockets", i, needed, v.Sockets)
			}
		}

		if s.Correct.Empty() {
			res.addWarning("stage %d has no correct dialogue; it completes silently", i)
		}
		if s.Wrong.Empty() && t.Fallback.Empty() {
			res.addWarning("stage %d has no wrong dialogue and the track has no fallback", i)
		}

		for _, id := range s.Rewards {
			if !isValidID(string(id)) {
				res.addError("stage %d reward '%s' should be lowercase snake_case", i, id)
			}
		}
		if len(s.Rewards) > 0 && !s.GrantOnce && t.Clamps() && i == len(t.Stages)-1 {
			res.addWarning("stage %d repeats on a clamped track and grants its rewards every time; set grant_once", i)
		}
	}

	if v.Catalog != nil {
		for _, p := range content.CheckRewards(t, v.Catalog) {
			res.addError("%s", p)
		}
	}
}

// ValidateCatalogFile validates a catalog in strict mode.
func ValidateCatalogFile(path string) (*content.Catalog, Result) {
	res := Result{Path: path}

	format, err := content.FormatOf(path)
	if err != nil {
		res.addError("%v", err)
		return nil, res
	}
	data, err := os.ReadFile(path)
	if err != nil {
		res.addError("failed to read file: %v", err)
		return nil, res
	}
	c, err := content.DecodeCatalog(data, format, true)
	if err != nil {
		res.addError("%v", err)
		return nil, res
	}

	for _, id := range c.IDs() {
		if !isValidID(string(id)) {
			res.addError("fragment id '%s' should be lowercase snake_case", id)
		}
	}
	if len(c.Starting) == 0 {
		res.addWarning("catalog has no starting fragments; the inventory starts empty")
	}
	return c, res
}

var (
	validIDRegex       = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)
	validFilenameRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)
)

func isValidID(id string) bool {
	return validIDRegex.MatchString(id)
}

func isValidFilename(name string) bool {
	// Allow 'x.' prefix for experimental tracks
	name = strings.TrimPrefix(name, "x.")
	return validFilenameRegex.MatchString(name)
}
