package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jwebster45206/mask-engine/internal/config"
	"github.com/jwebster45206/mask-engine/internal/events"
	"github.com/jwebster45206/mask-engine/internal/logger"
	"github.com/jwebster45206/mask-engine/internal/storage"
	"github.com/jwebster45206/mask-engine/pkg/content"
	"github.com/jwebster45206/mask-engine/pkg/mask"
	"github.com/jwebster45206/mask-engine/pkg/stage"
	"github.com/redis/go-redis/v9"
)

const logFileName = "mask-console.log"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logPath := filepath.Join(os.TempDir(), logFileName)
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() {
		_ = logFile.Close() // Ignore error in defer
	}()
	log := logger.WithProfile(logger.SetupWriter(cfg, logFile), cfg.ProfileID.String())
	log.Info("Starting mask console", "environment", cfg.Environment, "backend", cfg.ProgressBackend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalogPath := cfg.CatalogFile
	if catalogPath == "" {
		catalogPath = filepath.Join(cfg.ContentDir, "catalog.yaml")
	}
	catalog, err := content.LoadCatalog(catalogPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	trackPath, err := chooseTrack(cfg, os.Stdin, os.Stdout)
	if err != nil {
		return err
	}
	track, err := content.LoadTrack(trackPath)
	if err != nil {
		return fmt.Errorf("failed to load track: %w", err)
	}
	for _, p := range content.CheckRewards(track, catalog) {
		log.Warn("Track content problem", "track", track.Key, "problem", p)
	}

	// One client serves both the progress store and the event feed.
	var client *redis.Client
	if cfg.UsesRedis() {
		client, err = storage.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer func() {
			_ = client.Close() // Ignore error in defer
		}()
	}

	store, err := storage.Open(ctx, cfg, client, log)
	if err != nil {
		return fmt.Errorf("failed to open progress store: %w", err)
	}
	defer func() {
		_ = store.Close() // Ignore error in defer
	}()

	opts := SessionOptions{
		Catalog:      catalog,
		Track:        track,
		Store:        store,
		Policy:       cfg.Policy,
		AutoRunDelay: cfg.AutoRunDelay,
		Logger:       log,
	}

	var feed <-chan events.Event
	if cfg.EventsEnabled {
		b := events.NewBroadcaster(client, cfg.ProfileID, log)
		opts.Attach = func(r *stage.Runner, a *mask.Assembly) func() {
			return b.Attach(ctx, r, a)
		}
		ch, closeSub, err := b.Subscribe(ctx)
		if err != nil {
			return fmt.Errorf("failed to subscribe to events: %w", err)
		}
		defer func() {
			_ = closeSub() // Ignore error in defer
		}()
		feed = ch
		log.Info("Publishing mask events", "channel", b.Channel())
	}

	session, err := NewSession(ctx, opts)
	if err != nil {
		return err
	}
	defer session.Close()

	var changes <-chan string
	watcher, err := content.NewWatcher([]string{catalogPath, trackPath}, content.DefaultDebounce, log)
	if err != nil {
		logger.WithError(log, err).Warn("Hot reload disabled")
	} else {
		watcher.Start(ctx)
		defer func() {
			_ = watcher.Close() // Ignore error in defer
		}()
		changes = watcher.Changes()
	}

	p := tea.NewProgram(NewConsoleUI(session, changes, newReloader(catalogPath, trackPath), feed),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}

// chooseTrack returns TRACK_FILE when set, otherwise asks which track under
// the content dir to play.
func chooseTrack(cfg *config.Config, in io.Reader, out io.Writer) (string, error) {
	if cfg.TrackFile != "" {
		return cfg.TrackFile, nil
	}

	tracks, err := content.ListTracks(cfg.ContentDir)
	if err != nil {
		return "", err
	}
	keys := content.SortedKeys(tracks)
	switch len(keys) {
	case 0:
		return "", fmt.Errorf("no tracks found in %s", filepath.Join(cfg.ContentDir, "tracks"))
	case 1:
		return tracks[keys[0]], nil
	}

	fmt.Fprintln(out, "Available Tracks:")
	for i, k := range keys {
		fmt.Fprintf(out, "  %d - %s (%s)\n", i+1, k, tracks[k])
	}
	fmt.Fprint(out, "\nSelect a track by number: ")

	var choice int
	if _, err := fmt.Fscan(in, &choice); err != nil || choice < 1 || choice > len(keys) {
		return "", fmt.Errorf("invalid selection")
	}
	return tracks[keys[choice-1]], nil
}

// newReloader applies watcher changes for the catalog and track files.
func newReloader(catalogPath, trackPath string) ReloadFunc {
	catalogAbs, _ := filepath.Abs(catalogPath)
	trackAbs, _ := filepath.Abs(trackPath)

	return func(s *Session, path string) error {
		switch path {
		case catalogAbs:
			c, err := content.LoadCatalog(path)
			if err != nil {
				return err
			}
			if problems := content.CheckRewards(s.Track(), c); len(problems) > 0 {
				return fmt.Errorf("catalog does not cover the track: %s", problems[0])
			}
			return s.ReplaceCatalog(c)
		case trackAbs:
			t, err := content.LoadTrack(path)
			if err != nil {
				return err
			}
			if problems := content.CheckRewards(t, s.Catalog()); len(problems) > 0 {
				return fmt.Errorf("track rewards unknown fragments: %s", problems[0])
			}
			return s.ReplaceTrack(t)
		}
		return fmt.Errorf("not a watched content file: %s", path)
	}
}
