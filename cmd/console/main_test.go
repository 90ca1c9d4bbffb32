package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jwebster45206/mask-engine/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeContent(t *testing.T, path, body string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestChooseTrack(t *testing.T) {
	dir := t.TempDir()
	alley := writeContent(t, filepath.Join(dir, "tracks", "alley.yaml"),
		strings.Replace(testTrack, "key: interrogation", "key: alley", 1))
	room := writeContent(t, filepath.Join(dir, "tracks", "room.yaml"), testTrack)

	t.Run("explicit file wins", func(t *testing.T) {
		got, err := chooseTrack(&config.Config{TrackFile: "x.yaml", ContentDir: dir}, strings.NewReader(""), &bytes.Buffer{})
		require.NoError(t, err)
		assert.Equal(t, "x.yaml", got)
	})

	t.Run("menu selection", func(t *testing.T) {
		var out bytes.Buffer
		got, err := chooseTrack(&config.Config{ContentDir: dir}, strings.NewReader("2\n"), &out)
		require.NoError(t, err)
		assert.Equal(t, room, got)
		assert.Contains(t, out.String(), "1 - alley ("+alley+")")
	})

	t.Run("invalid selection", func(t *testing.T) {
		_, err := chooseTrack(&config.Config{ContentDir: dir}, strings.NewReader("7\n"), &bytes.Buffer{})
		assert.Error(t, err)
	})

	t.Run("no tracks", func(t *testing.T) {
		_, err := chooseTrack(&config.Config{ContentDir: t.TempDir()}, strings.NewReader(""), &bytes.Buffer{})
		assert.ErrorContains(t, err, "no tracks found")
	})
}

func TestReloader(t *testing.T) {
	dir := t.TempDir()
	catalogPath := writeContent(t, filepath.Join(dir, "catalog.yaml"), testCatalog)
	trackPath := writeContent(t, filepath.Join(dir, "tracks", "room.yaml"), testTrack)
	trackAbs, err := filepath.Abs(trackPath)
	require.NoError(t, err)
	catalogAbs, err := filepath.Abs(catalogPath)
	require.NoError(t, err)

	s := newTestSession(t, testTrack)
	reload := newReloader(catalogPath, trackPath)

	writeContent(t, trackPath, strings.Replace(testTrack, "Interrogation Room", "Cell Block", 1))
	require.NoError(t, reload(s, trackAbs))
	assert.Equal(t, "Cell Block", s.Track().Name)

	writeContent(t, trackPath, strings.Replace(testTrack, "[angry_1]", "[ghost_1]", 1))
	assert.ErrorContains(t, reload(s, trackAbs), "ghost_1")
	assert.Equal(t, "Cell Block", s.Track().Name, "a bad reload keeps the running track")

	writeContent(t, catalogPath, "fragments: [\n")
	assert.Error(t, reload(s, catalogAbs))

	assert.ErrorContains(t, reload(s, filepath.Join(dir, "other.yaml")), "not a watched")
}
