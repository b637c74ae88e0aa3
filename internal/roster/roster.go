// Package roster auto-registers workers from a YAML file at startup and
// re-loads it when the file changes, so ops can add workers without an
// API call.
package roster

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/focusdeck/focusdeck/internal/capability"
	"github.com/focusdeck/focusdeck/pkg/cerr"
)

// DebounceInterval is the delay after an fsnotify event before re-reading
// the file, coalescing editor write bursts into one reload.
const DebounceInterval = 100 * time.Millisecond

type Worker struct {
	AgentID            string   `yaml:"agent_id"`
	AgentName          string   `yaml:"agent_name"`
	AgentType          string   `yaml:"agent_type"`
	Skills             []string `yaml:"skills"`
	MaxConcurrentTasks int      `yaml:"max_concurrent_tasks"`
}

type File struct {
	Workers []Worker `yaml:"workers"`
}

type Loader struct {
	path     string
	registry *capability.Registry
}

func NewLoader(path string, registry *capability.Registry) *Loader {
	return &Loader{
		path:     path,
		registry: registry,
	}
}

// Load reads the roster file and registers every worker whose agent_id is
// not yet known. Skipping known ids keeps reloads from minting duplicate
// capability records.
func (l *Loader) Load(ctx context.Context) error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("failed to read roster file: %w", err)
	}
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse roster file: %w", err)
	}

	for _, w := range file.Workers {
		if _, err := l.registry.Lookup(ctx, w.AgentID); err == nil {
			continue
		} else if !cerr.IsCode(err, cerr.NotFound) {
			return err
		}
		c, err := l.registry.Register(ctx, capability.RegisterRequest{
			AgentID:            w.AgentID,
			AgentName:          w.AgentName,
			AgentType:          w.AgentType,
			Skills:             w.Skills,
			MaxConcurrentTasks: w.MaxConcurrentTasks,
		})
		if err != nil {
			slog.Error("roster: failed to register worker", "agent_id", w.AgentID, "error", err)
			continue
		}
		slog.Info("roster: registered worker", "agent_id", c.AgentID, "capability_id", c.ID)
	}
	return nil
}

// Watch blocks until ctx is cancelled, re-loading the roster whenever the
// file changes. The watch is on the parent directory because editors
// replace files by rename.
func (l *Loader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(l.path)); err != nil {
		return fmt.Errorf("failed to watch roster directory: %w", err)
	}

	var debounce *time.Timer
	var debounceCh <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(l.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(DebounceInterval)
				debounceCh = debounce.C
			} else {
				debounce.Reset(DebounceInterval)
			}
		case <-debounceCh:
			if err := l.Load(ctx); err != nil {
				slog.Error("roster: reload failed", "path", l.path, "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("roster: watcher error", "error", err)
		}
	}
}
