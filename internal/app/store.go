package app

import (
	"context"
	"fmt"
	"time"

	"github.com/AaronLay10/SentientNarrative/internal/config"
	"github.com/AaronLay10/SentientNarrative/internal/events"
	"github.com/AaronLay10/SentientNarrative/internal/storage"
	"github.com/AaronLay10/SentientNarrative/internal/storage/postgres"
	"github.com/AaronLay10/SentientNarrative/internal/storage/sqlite"
)

// EventStore persists the event log and reads it back for restore.
type EventStore interface {
	events.Sink
	storage.EventQuerier
	Ping(ctx context.Context) error
	Close() error
}

// OpenEventStore opens the backend selected by SENTIENT_STORE. The memory
// backend has no store and returns nil.
func OpenEventStore(env *config.Env, storyID string) (EventStore, error) {
	switch env.Store {
	case config.StoreMemory:
		return nil, nil

	case config.StoreSQLite:
		s, err := sqlite.Open(env.SQLitePath, storyID)
		if err != nil {
			return nil, fmt.Errorf("open sqlite event store: %w", err)
		}
		return s, nil

	case config.StorePostgres:
		cfg, err := env.Postgres()
		if err != nil {
			return nil, err
		}
		c, err := postgres.New(cfg, storyID)
		if err != nil {
			return nil, fmt.Errorf("open postgres event store: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.Ping(ctx); err != nil {
			c.Close()
			return nil, err
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown event store %q", env.Store)
}
