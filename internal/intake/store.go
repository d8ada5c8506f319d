// Package intake provides attachment storage backends for uploaded media.
//
// Files received with a message request are saved here under an opaque
// handle; the dispatch executor opens the handle again when the request is
// actually sent, which may be long after the upload for scheduled messages.
package intake

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"
)

// ErrNotFound is returned when a requested attachment does not exist.
var ErrNotFound = errors.New("intake: attachment not found")

// Store defines the interface for attachment storage backends.
type Store interface {
	// Save persists the attachment bytes and returns a unique handle.
	// filename is the client-supplied name, used only to preserve the
	// extension for media type classification.
	Save(ctx context.Context, filename string, r io.Reader) (string, error)
	// Open returns the attachment bytes for a previously saved handle.
	Open(ctx context.Context, handle string) (io.ReadCloser, error)
	// Remove deletes the attachment. Removing an unknown handle is a no-op.
	Remove(ctx context.Context, handle string) error
}

// Config holds configuration for creating a Store.
type Config struct {
	Type       string // "local" or "s3"
	Path       string // base directory for local storage
	S3Bucket   string
	S3Prefix   string
	S3Endpoint string
	S3Region   string
}

// New creates a Store based on the provided configuration.
// If Type is empty or unsupported, it defaults to local storage and logs a warning.
func New(cfg Config, logger zerolog.Logger) (Store, error) {
	switch cfg.Type {
	case "local":
		return NewLocalStore(cfg.Path)
	case "s3":
		return NewS3StoreFromConfig(cfg)
	default:
		logger.Warn().
			Str("type", cfg.Type).
			Msg("unsupported or empty intake store type, defaulting to local")
		return NewLocalStore(cfg.Path)
	}
}
