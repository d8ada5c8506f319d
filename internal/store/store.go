// Package store provides message request storage backends for the
// dispatch engine.
package store

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/ssouza/wadispatch/internal/message"
)

// ErrNotFound is returned when a requested message does not exist.
var ErrNotFound = errors.New("store: message not found")

// MessageStore is the record of every submitted message and its lifecycle.
// The engine relies on it for id-based lookup and status mutation, both
// serialized by the caller.
type MessageStore interface {
	Put(ctx context.Context, req *message.Request) error
	Get(ctx context.Context, id string) (*message.Request, error)
	List(ctx context.Context) ([]*message.Request, error)
	UpdateStatus(ctx context.Context, id string, status message.Status) error
	// SetResults records the per-recipient outcomes together with the
	// final status of a completed dispatch.
	SetResults(ctx context.Context, id string, results []message.DeliveryResult, status message.Status) error
	Close()
}

// Config holds configuration for creating a MessageStore.
type Config struct {
	Type        string // "memory", "postgres" or "redis"
	PostgresURL string
	RedisAddr   string
	RedisDB     int
}

// New creates a MessageStore based on the provided configuration.
// If Type is empty or unsupported, it defaults to the in-memory store
// and logs a warning.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (MessageStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "postgres":
		return NewPostgresStore(ctx, cfg.PostgresURL)
	case "redis":
		return NewRedisStore(cfg.RedisAddr, cfg.RedisDB), nil
	default:
		logger.Warn().
			Str("type", cfg.Type).
			Msg("unsupported or empty store type, defaulting to memory")
		return NewMemoryStore(), nil
	}
}
