// Package content loads stage tracks and fragment catalogs from JSON or
// YAML files.
package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jwebster45206/mask-engine/pkg/mask"
	"github.com/jwebster45206/mask-engine/pkg/stage"
	"gopkg.in/yaml.v3"
)

// Format is a content file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatOf picks a format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported content file extension: %s", filepath.Base(path))
}

// CatalogFile is the on-disk shape of a fragment catalog.
type CatalogFile struct {
	Fragments      []mask.Attribute    `json:"fragments" yaml:"fragments"`
	Starting       []mask.FragmentID   `json:"starting,omitempty" yaml:"starting,omitempty"`
	IdentityRules  mask.ThresholdTable `json:"identity_rules,omitempty" yaml:"identity_rules,omitempty"`
	IdentityPolicy mask.PriorityPolicy `json:"identity_policy,omitempty" yaml:"identity_policy,omitempty"`
}

// Catalog is a loaded, validated catalog.
type Catalog struct {
	*mask.Catalog
	Starting []mask.FragmentID
	Rules    mask.ThresholdTable
	Policy   mask.PriorityPolicy
}

// Resolver builds a resolver from the catalog's rules, falling back to the
// defaults when none are listed. override, when non-empty, replaces the
// file's policy.
func (c *Catalog) Resolver(override mask.PriorityPolicy) (*mask.Resolver, error) {
	rules := c.Rules
	if len(rules) == 0 {
		rules = mask.DefaultThresholds()
	}
	policy := c.Policy
	if override != "" {
		policy = override
	}
	return mask.NewResolver(rules, policy)
}

// decode unmarshals data into v. Strict mode rejects unknown fields.
func decode(data []byte, format Format, strict bool, v any) error {
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		if strict {
			dec.DisallowUnknownFields()
		}
		return dec.Decode(v)
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(strict)
		return dec.Decode(v)
	}
	return fmt.Errorf("unsupported format: %q", format)
}

// DecodeTrack parses and validates a track.
func DecodeTrack(data []byte, format Format, strict bool) (*stage.Track, error) {
	var t stage.Track
	if err := decode(data, format, strict, &t); err != nil {
		return nil, fmt.Errorf("failed to parse track: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid track %q: %w", t.Key, err)
	}
	return &t, nil
}

// DecodeCatalog parses and validates a catalog.
func DecodeCatalog(data []byte, format Format, strict bool) (*Catalog, error) {
	var f CatalogFile
	if err := decode(data, format, strict, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	c, err := mask.NewCatalog(f.Fragments)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	for _, id := range f.Starting {
		if _, ok := c.Lookup(id); !ok {
			return nil, fmt.Errorf("invalid catalog: starting fragment %s is not defined", id)
		}
	}
	if len(f.IdentityRules) > 0 {
		if err := f.IdentityRules.Validate(); err != nil {
			return nil, fmt.Errorf("invalid catalog: %w", err)
		}
	}
	policy, err := mask.ParsePolicy(string(f.IdentityPolicy))
	if err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}

	return &Catalog{
		Catalog:  c,
		Starting: f.Starting,
		Rules:    f.IdentityRules,
		Policy:   policy,
	}, nil
}

// LoadTrack reads a track file, choosing the format by extension.
func LoadTrack(path string) (*stage.Track, error) {
	data, format, err := read(path)
	if err != nil {
		return nil, err
	}
	return DecodeTrack(data, format, false)
}

// LoadCatalog reads a catalog file, choosing the format by extension.
func LoadCatalog(path string) (*Catalog, error) {
	data, format, err := read(path)
	if err != nil {
		return nil, err
	}
	return DecodeCatalog(data, format, false)
}

func read(path string) ([]byte, Format, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("content file not found: %s", path)
		}
		return nil, "", fmt.Errorf("failed to read content file: %w", err)
	}
	return data, format, nil
}

// ListTracks walks dir/tracks and returns track key -> file path. Files that
// fail to parse are skipped.
func ListTracks(dir string) (map[string]string, error) {
	tracksDir := filepath.Join(dir, "tracks")
	tracks := make(map[string]string)

	err := filepath.WalkDir(tracksDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if _, ferr := FormatOf(path); ferr != nil {
			return nil
		}
		t, lerr := LoadTrack(path)
		if lerr != nil {
			return nil
		}
		tracks[t.Key] = path
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tracks: %w", err)
	}
	return tracks, nil
}

// SortedKeys returns map keys in order, for stable menus.
func SortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CheckRewards reports rewards in t that c does not define.
func CheckRewards(t *stage.Track, c *Catalog) []string {
	var problems []string
	for i, s := range t.Stages {
		for _, id := range s.Rewards {
			if _, ok := c.Lookup(id); !ok {
				problems = append(problems, fmt.Sprintf("stage %d rewards undefined fragment %q", i, id))
			}
		}
	}
	return problems
}
