package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ssouza/wadispatch/internal/message"
)

const (
	redisMessageKeyPrefix = "wadispatch:msg:"
	redisIndexKey         = "wadispatch:msgs"
)

// RedisStore persists message requests as JSON documents in Redis, with a
// sorted set indexing ids by creation time for ordered listing.
//
// Status updates are read-modify-write; the engine guarantees a single
// writer per message id during dispatch.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a RedisStore backed by a new Redis client.
func NewRedisStore(addr string, db int) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: addr, DB: db}),
	}
}

func messageKey(id string) string { return redisMessageKeyPrefix + id }

// Put stores a request document and indexes its id.
func (s *RedisStore) Put(ctx context.Context, req *message.Request) error {
	doc, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("store: marshal request: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, messageKey(req.ID), doc, 0)
	pipe.ZAdd(ctx, redisIndexKey, redis.Z{
		Score:  float64(req.CreatedAt.UnixNano()),
		Member: req.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store: put message: %w", err)
	}
	return nil
}

// Get returns the stored request, or ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, id string) (*message.Request, error) {
	doc, err := s.client.Get(ctx, messageKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get message: %w", err)
	}
	return decodeRequest(doc)
}

// List returns all stored requests ordered by creation time.
func (s *RedisStore) List(ctx context.Context) ([]*message.Request, error) {
	ids, err := s.client.ZRange(ctx, redisIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("store: list message ids: %w", err)
	}

	out := make([]*message.Request, 0, len(ids))
	for _, id := range ids {
		req, err := s.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				// Document expired or deleted out of band; skip the
				// dangling index entry.
				continue
			}
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}

// UpdateStatus sets the status of an existing request.
func (s *RedisStore) UpdateStatus(ctx context.Context, id string, status message.Status) error {
	return s.mutate(ctx, id, func(req *message.Request) {
		req.Status = status
	})
}

// SetResults records delivery results and the final status.
func (s *RedisStore) SetResults(ctx context.Context, id string, results []message.DeliveryResult, status message.Status) error {
	return s.mutate(ctx, id, func(req *message.Request) {
		req.Results = append([]message.DeliveryResult(nil), results...)
		req.Status = status
	})
}

// Close releases the Redis client.
func (s *RedisStore) Close() {
	_ = s.client.Close()
}

func (s *RedisStore) mutate(ctx context.Context, id string, apply func(*message.Request)) error {
	req, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	apply(req)

	doc, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("store: marshal request: %w", err)
	}
	if err := s.client.Set(ctx, messageKey(id), doc, 0).Err(); err != nil {
		return fmt.Errorf("store: update message: %w", err)
	}
	return nil
}
