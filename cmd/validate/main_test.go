package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jwebster45206/mask-engine/pkg/mask"
)

const validTrack = `key: MaskStage_Default
stages:
  - identity: Detective
    emotions: [Confident]
    correct:
      lines:
        - speaker: suspect
          content: Fine.
    wrong:
      lines:
        - speaker: suspect
          content: No.
    rewards: [angry_1]
    grant_once: true
`

const validCatalog = `fragments:
  - id: det_1
    type: Identity
    identity: Detective
  - id: angry_1
    type: Emotion
    emotion: Angry
starting: [det_1]
`

func write(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestTrackValidator_ValidFile(t *testing.T) {
	dir := t.TempDir()
	path := write(t, dir, "interrogation.yaml", validTrack)

	v := &TrackValidator{Resolver: mask.DefaultResolver(), Sockets: mask.DefaultSocketCount}
	res := v.ValidateFile(path)
	if !res.OK(true) {
		t.Fatalf("Expected clean result, got errors %v warnings %v", res.Errors, res.Warnings)
	}
}

func TestTrackValidator_Findings(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		body        string
		wantError   string
		wantWarning string
	}{
		{
			name:      "bad filename",
			filename:  "Interrogation-Room.yaml",
			body:      validTrack,
			wantError: "lowercase snake_case",
		},
		{
			name:      "unknown field in strict mode",
			filename:  "extra.json",
			body:      `{"key": "k", "stages": [], "colour": "red"}`,
			wantError: "unknown field",
		},
		{
			name:      "bad reward id",
			filename:  "reward.yaml",
			body:      "key: k\nstages:\n  - identity: Therapist\n    rewards: [Angry-1]\n    grant_once: true\n",
			wantError: "reward 'Angry-1'",
		},
		{
			name:        "silent stage",
			filename:    "silent.yaml",
			body:        "key: k\nstages:\n  - identity: Therapist\n",
			wantWarning: "completes silently",
		},
		{
			name:        "unreachable with four sockets",
			filename:    "dirty.yaml",
			body:        "key: k\nstages:\n  - identity: DirtyCop\n    emotions: [Angry]\n",
			wantWarning: "needs 5 fragments",
		},
		{
			name:        "repeating rewards",
			filename:    "repeat.yaml",
			body:        "key: k\nstages:\n  - identity: Therapist\n    rewards: [conf_1]\n",
			wantWarning: "set grant_once",
		},
	}

	v := &TrackValidator{Resolver: mask.DefaultResolver(), Sockets: mask.DefaultSocketCount}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.ValidateFile(write(t, t.TempDir(), tt.filename, tt.body))
			if tt.wantError != "" && !strings.Contains(strings.Join(res.Errors, "\n"), tt.wantError) {
				t.Errorf("Expected error containing %q, got %v", tt.wantError, res.Errors)
			}
			if tt.wantWarning != "" && !strings.Contains(strings.Join(res.Warnings, "\n"), tt.wantWarning) {
				t.Errorf("Expected warning containing %q, got %v", tt.wantWarning, res.Warnings)
			}
		})
	}
}

func TestTrackValidator_IdentityWithoutRule(t *testing.T) {
	r, err := mask.NewResolver(mask.ThresholdTable{{Identity: mask.IdentityDetective, Min: 3}}, "")
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	v := &TrackValidator{Resolver: r}
	res := v.ValidateFile(write(t, t.TempDir(), "journalist.yaml", "key: k\nstages:\n  - identity: Journalist\n"))
	if !strings.Contains(strings.Join(res.Errors, "\n"), "no identity rule can resolve") {
		t.Errorf("Expected unreachable identity error, got %v", res.Errors)
	}
}

func TestIsValidFilename(t *testing.T) {
	tests := map[string]bool{
		"interrogation":   true,
		"x.interrogation": true,
		"room_2":          true,
		"Room":            false,
		"room-2":          false,
		"_room":           false,
	}
	for name, want := range tests {
		if got := isValidFilename(name); got != want {
			t.Errorf("isValidFilename(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestRootCmd(t *testing.T) {
	dir := t.TempDir()
	catalog := write(t, dir, "catalog.yaml", validCatalog)
	tracks := filepath.Join(dir, "tracks")
	if err := os.Mkdir(tracks, 0o755); err != nil {
		t.Fatal(err)
	}
	write(t, tracks, "interrogation.yaml", validTrack)
	write(t, tracks, "README.md", "not content")

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"--catalog", catalog, tracks})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Expected success, got %v\nstderr: %s", err, stderr.String())
	}
	if !strings.Contains(stdout.String(), "1 track file(s) valid!") {
		t.Errorf("Unexpected output: %s", stdout.String())
	}

	write(t, tracks, "ghost.yaml", strings.Replace(validTrack, "angry_1", "ghost_1", 1))
	stdout.Reset()
	stderr.Reset()
	cmd = newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"-c", catalog, tracks})

	if err := cmd.Execute(); err == nil {
		t.Fatal("Expected failure for undefined reward")
	}
	if !strings.Contains(stderr.String(), `undefined fragment "ghost_1"`) {
		t.Errorf("Expected undefined reward error, got %s", stderr.String())
	}
}

func TestRootCmd_ShippedContent(t *testing.T) {
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"--warnings-as-errors", "-c", "../../data/catalog.yaml", "../../data/tracks"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Shipped content should validate cleanly, got %v\nstdout: %s\nstderr: %s", err, stdout.String(), stderr.String())
	}
	if !strings.Contains(stdout.String(), "2 track file(s) valid!") {
		t.Errorf("Unexpected output: %s", stdout.String())
	}
}
