package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ssouza/wadispatch/internal/message"
	"github.com/ssouza/wadispatch/internal/metrics"
	"github.com/ssouza/wadispatch/internal/schedule"
	"github.com/ssouza/wadispatch/internal/store"
)

// ErrNotCancellable is returned when cancellation is requested for a
// request whose dispatch has already started or finished.
var ErrNotCancellable = errors.New("dispatch: request can no longer be cancelled")

// SubmitRequest is the engine's inbound contract: text and/or one
// attachment, a recipient list, and an optional future send time.
type SubmitRequest struct {
	Text        string
	Recipients  []message.Recipient
	Attachment  *message.Attachment
	ScheduledAt *time.Time
}

// Service is the dispatch engine façade. Immediate submissions run the
// executor synchronously; deferred submissions are armed on the scheduler
// and funnel into the same executor at fire time.
type Service struct {
	messages  store.MessageStore
	scheduler *schedule.Scheduler
	executor  *Executor
	log       zerolog.Logger
}

// NewService creates a Service.
func NewService(
	messages store.MessageStore,
	scheduler *schedule.Scheduler,
	executor *Executor,
	log zerolog.Logger,
) *Service {
	return &Service{
		messages:  messages,
		scheduler: scheduler,
		executor:  executor,
		log:       log,
	}
}

// Submit validates and records a request, then either dispatches it
// immediately or arms a scheduled job. Validation failures are returned
// before any side effect.
func (s *Service) Submit(ctx context.Context, sub SubmitRequest) (*message.Request, error) {
	req := &message.Request{
		ID:          uuid.New().String(),
		Text:        sub.Text,
		Recipients:  sub.Recipients,
		Attachment:  sub.Attachment,
		ScheduledAt: sub.ScheduledAt,
		Status:      message.StatusPending,
		CreatedAt:   time.Now(),
	}
	if err := req.Validate(time.Now()); err != nil {
		return nil, err
	}

	if err := s.messages.Put(ctx, req); err != nil {
		return nil, fmt.Errorf("dispatch: store request: %w", err)
	}
	metrics.MessagesSubmittedTotal.Inc()

	if req.ScheduledAt != nil {
		if err := s.messages.UpdateStatus(ctx, req.ID, message.StatusScheduled); err != nil {
			return nil, fmt.Errorf("dispatch: mark scheduled: %w", err)
		}
		req.Status = message.StatusScheduled

		if err := s.scheduler.Schedule(req.ID, *req.ScheduledAt, s.fire); err != nil {
			return nil, fmt.Errorf("dispatch: schedule: %w", err)
		}
		metrics.ScheduledJobsArmed.Inc()

		s.log.Info().
			Str("message_id", req.ID).
			Time("scheduled_at", *req.ScheduledAt).
			Int("recipients", len(req.Recipients)).
			Msg("message scheduled")
		return req, nil
	}

	return s.executor.Dispatch(ctx, req.ID)
}

// fire runs on the scheduler's timer goroutine. It receives only the
// message id and looks up the current request state at fire time.
func (s *Service) fire(messageID string) {
	metrics.ScheduledJobsArmed.Dec()

	if _, err := s.executor.Dispatch(context.Background(), messageID); err != nil {
		s.log.Error().
			Err(err).
			Str("message_id", messageID).
			Msg("scheduled dispatch failed")
	}
}

// Get returns one request by id.
func (s *Service) Get(ctx context.Context, id string) (*message.Request, error) {
	return s.messages.Get(ctx, id)
}

// List returns all known requests.
func (s *Service) List(ctx context.Context) ([]*message.Request, error) {
	return s.messages.List(ctx)
}

// Cancel stops a pending or scheduled request before dispatch begins.
// It returns store.ErrNotFound for unknown ids and ErrNotCancellable once
// dispatch has started or the request reached a terminal state; a cancel
// racing an in-flight fan-out never affects delivery.
func (s *Service) Cancel(ctx context.Context, id string) (*message.Request, error) {
	req, err := s.messages.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch req.Status {
	case message.StatusScheduled:
		// Disarm first: once Cancel returns true the job can never fire.
		if !s.scheduler.Cancel(id) {
			return nil, ErrNotCancellable
		}
		metrics.ScheduledJobsArmed.Dec()
	case message.StatusPending:
		if s.executor.InFlight(id) {
			return nil, ErrNotCancellable
		}
	default:
		return nil, ErrNotCancellable
	}

	if err := s.messages.UpdateStatus(ctx, id, message.StatusCancelled); err != nil {
		return nil, fmt.Errorf("dispatch: mark cancelled: %w", err)
	}
	req.Status = message.StatusCancelled

	s.log.Info().Str("message_id", id).Msg("message cancelled")
	return req, nil
}
