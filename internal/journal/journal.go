// Package journal persists every bus event as a YAML document for audit.
// The backing store is a local directory by default, or S3 when ops
// points the journal there.
package journal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/focusdeck/focusdeck/internal/eventbus"
	"github.com/focusdeck/focusdeck/pkg/blob"
)

type Record struct {
	ID         string            `yaml:"id"`
	Type       string            `yaml:"type"`
	ResourceID string            `yaml:"resource_id"`
	Metadata   map[string]string `yaml:"metadata,omitempty"`
	CreatedAt  time.Time         `yaml:"created_at"`
}

type Journal struct {
	eventBus *eventbus.Bus
	store    blob.Store
}

func New(eventBus *eventbus.Bus, store blob.Store) *Journal {
	return &Journal{
		eventBus: eventBus,
		store:    store,
	}
}

func (j *Journal) Start(ctx context.Context) {
	subID, ch := j.eventBus.Subscribe(256)
	defer j.eventBus.Unsubscribe(subID)

	slog.Info("event journal started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("event journal stopped")
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if err := j.write(ctx, event); err != nil {
				slog.Error("journal: failed to write event", "event_id", event.ID, "error", err)
			}
		}
	}
}

func (j *Journal) write(ctx context.Context, event *eventbus.Event) error {
	rec := Record{
		ID:         event.ID,
		Type:       string(event.Type),
		ResourceID: event.ResourceID,
		Metadata:   event.Metadata,
		CreatedAt:  event.CreatedAt,
	}
	data, err := yaml.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	key := fmt.Sprintf("events/%s/%s.yaml", event.CreatedAt.Format("2006-01-02"), event.ID)
	return j.store.Write(ctx, key, data)
}
