// Package dispatch turns submitted message requests into outbound gateway
// calls: the per-recipient fan-out, media upload with text fallback,
// pacing, and lifecycle bookkeeping.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ssouza/wadispatch/internal/gateway"
	"github.com/ssouza/wadispatch/internal/message"
	"github.com/ssouza/wadispatch/internal/metrics"
	"github.com/ssouza/wadispatch/internal/store"
)

// ErrDispatchInFlight is returned when a dispatch is already running for
// the same message id.
var ErrDispatchInFlight = errors.New("dispatch: already in flight for this message id")

// ErrNotDispatchable is returned when the request is not in a state that
// permits dispatch.
var ErrNotDispatchable = errors.New("dispatch: request is not pending or scheduled")

// AttachmentSource opens stored attachments for reading. Implemented by
// the intake store.
type AttachmentSource interface {
	Open(ctx context.Context, handle string) (io.ReadCloser, error)
}

// Config tunes executor behavior.
type Config struct {
	// Pacing is the mandatory delay between successive gateway sends.
	Pacing time.Duration
	// UploadFallback controls whether a failed media upload degrades the
	// request to a text-only send instead of failing it.
	UploadFallback bool
	// SendRetries is the number of times a transient send failure is
	// retried before being recorded. Zero preserves one-call-per-recipient
	// behavior.
	SendRetries int
}

const defaultPacing = 500 * time.Millisecond

// Executor fans a request out across its recipients sequentially, one
// gateway call at a time, and is non-reentrant per message id.
type Executor struct {
	gw          gateway.Client
	messages    store.MessageStore
	attachments AttachmentSource
	retry       *RetryStrategy
	cfg         Config
	log         zerolog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewExecutor creates an Executor. attachments may be nil when the
// deployment accepts text-only messages.
func NewExecutor(
	gw gateway.Client,
	messages store.MessageStore,
	attachments AttachmentSource,
	cfg Config,
	log zerolog.Logger,
) *Executor {
	if cfg.Pacing <= 0 {
		cfg.Pacing = defaultPacing
	}
	return &Executor{
		gw:          gw,
		messages:    messages,
		attachments: attachments,
		retry:       NewRetryStrategy(cfg.SendRetries),
		cfg:         cfg,
		log:         log,
		inFlight:    make(map[string]struct{}),
	}
}

// InFlight reports whether a dispatch is currently running for the id.
func (e *Executor) InFlight(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, running := e.inFlight[id]
	return running
}

// Dispatch executes the fan-out for the stored request with the given id
// and returns the updated record. The request state is read from the store
// at dispatch time, so a deferred send picks up the current record rather
// than a snapshot captured at schedule time.
func (e *Executor) Dispatch(ctx context.Context, id string) (*message.Request, error) {
	e.mu.Lock()
	if _, running := e.inFlight[id]; running {
		e.mu.Unlock()
		return nil, ErrDispatchInFlight
	}
	e.inFlight[id] = struct{}{}
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.inFlight, id)
		e.mu.Unlock()
	}()

	req, err := e.messages.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("dispatch: load request: %w", err)
	}
	if !req.Status.CanTransition(message.StatusSending) {
		return nil, fmt.Errorf("%w: status %s", ErrNotDispatchable, req.Status)
	}

	if err := e.messages.UpdateStatus(ctx, id, message.StatusSending); err != nil {
		return nil, fmt.Errorf("dispatch: mark sending: %w", err)
	}
	req.Status = message.StatusSending

	results, finalStatus := e.run(ctx, req)

	if err := e.messages.SetResults(ctx, id, results, finalStatus); err != nil {
		return nil, fmt.Errorf("dispatch: record results: %w", err)
	}
	req.Results = results
	req.Status = finalStatus

	metrics.MessagesDispatchedTotal.WithLabelValues(string(finalStatus)).Inc()

	e.log.Info().
		Str("message_id", id).
		Str("status", string(finalStatus)).
		Int("recipients", len(req.Recipients)).
		Msg("dispatch finished")
	return req, nil
}

// run performs the upload step and the paced per-recipient loop.
func (e *Executor) run(ctx context.Context, req *message.Request) ([]message.DeliveryResult, message.Status) {
	mediaID, kind, uploadErr := e.uploadOnce(ctx, req)
	if uploadErr != nil {
		if !e.cfg.UploadFallback || req.Text == "" {
			// Nothing sendable remains: fail every recipient up front.
			results := make([]message.DeliveryResult, 0, len(req.Recipients))
			for _, rcpt := range req.Recipients {
				results = append(results, message.DeliveryResult{
					Recipient: rcpt,
					Success:   false,
					Error:     fmt.Sprintf("media upload failed: %v", uploadErr),
				})
			}
			return results, message.StatusFailed
		}

		// Degrade gracefully: the request goes out as text only. This is
		// recorded, not silently swallowed.
		e.log.Warn().
			Err(uploadErr).
			Str("message_id", req.ID).
			Msg("media upload failed, falling back to text-only send")
		metrics.MediaUploadsTotal.WithLabelValues("failed").Inc()
		mediaID = ""
	} else if mediaID != "" {
		metrics.MediaUploadsTotal.WithLabelValues("uploaded").Inc()
	}

	// One token per pacing interval: the first send goes immediately and
	// no delay trails the final recipient.
	limiter := rate.NewLimiter(rate.Every(e.cfg.Pacing), 1)

	results := make([]message.DeliveryResult, 0, len(req.Recipients))
	for _, rcpt := range req.Recipients {
		if err := limiter.Wait(ctx); err != nil {
			results = append(results, message.DeliveryResult{
				Recipient: rcpt,
				Success:   false,
				Error:     err.Error(),
			})
			continue
		}
		results = append(results, e.sendOne(ctx, req, rcpt, mediaID, kind))
	}

	return results, message.Outcome(results)
}

// uploadOnce uploads the request's attachment, if any. The upload happens
// once per request, never once per recipient.
func (e *Executor) uploadOnce(ctx context.Context, req *message.Request) (string, gateway.MediaKind, error) {
	if req.Attachment == nil {
		return "", "", nil
	}
	if e.attachments == nil {
		return "", "", errors.New("dispatch: no attachment source configured")
	}

	kind := gateway.ClassifyMedia(req.Attachment.Filename)

	rc, err := e.attachments.Open(ctx, req.Attachment.Handle)
	if err != nil {
		return "", kind, fmt.Errorf("open attachment %s: %w", req.Attachment.Handle, err)
	}
	defer rc.Close()

	mediaID, err := e.gw.UploadMedia(ctx, req.Attachment.Filename, rc)
	if err != nil {
		return "", kind, err
	}

	e.log.Debug().
		Str("message_id", req.ID).
		Str("media_id", mediaID).
		Str("kind", string(kind)).
		Msg("media uploaded")
	return mediaID, kind, nil
}

// sendOne delivers to a single recipient and records the outcome. A
// failure here never aborts the remaining recipients.
func (e *Executor) sendOne(ctx context.Context, req *message.Request, rcpt message.Recipient, mediaID string, kind gateway.MediaKind) message.DeliveryResult {
	payload := gateway.BuildPayload(req.Text, mediaID, kind, rcpt.Number)

	start := time.Now()
	sendResult, err := e.sendWithRetry(ctx, payload)
	metrics.SendDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		e.log.Error().
			Err(err).
			Str("message_id", req.ID).
			Str("recipient", rcpt.Number).
			Msg("gateway send failed")
		metrics.SendsTotal.WithLabelValues("failure").Inc()
		return message.DeliveryResult{
			Recipient: rcpt,
			Success:   false,
			Error:     err.Error(),
		}
	}

	e.log.Info().
		Str("message_id", req.ID).
		Str("recipient", rcpt.Number).
		Str("gateway_message_id", sendResult.GatewayMessageID).
		Msg("message delivered")
	metrics.SendsTotal.WithLabelValues("success").Inc()
	return message.DeliveryResult{
		Recipient:        rcpt,
		Success:          true,
		GatewayMessageID: sendResult.GatewayMessageID,
	}
}

// sendWithRetry issues the gateway call, retrying transient failures per
// the configured budget. Permanent failures are never retried.
func (e *Executor) sendWithRetry(ctx context.Context, payload *gateway.Payload) (*gateway.SendResult, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		result, err := e.gw.Send(ctx, payload)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if gateway.IsPermanent(err) || !e.retry.ShouldRetry(attempt) {
			return nil, lastErr
		}

		backoff := e.retry.NextBackoff(attempt)
		e.log.Debug().
			Err(err).
			Str("recipient", payload.To).
			Int("attempt", attempt+2).
			Dur("backoff", backoff).
			Msg("send retry scheduled")

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
