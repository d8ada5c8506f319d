// Package message defines the dispatch domain model: requests, recipients,
// delivery results, and the message lifecycle state machine.
package message

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a message request.
type Status string

const (
	StatusPending       Status = "pending"
	StatusScheduled     Status = "scheduled"
	StatusSending       Status = "sending"
	StatusSent          Status = "sent"
	StatusPartiallySent Status = "partially_sent"
	StatusFailed        Status = "failed"
	StatusCancelled     Status = "cancelled"
)

// Terminal reports whether no further transitions may leave this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusSent, StatusPartiallySent, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is a legal lifecycle
// transition. Cancellation is only reachable before dispatch begins.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusScheduled || next == StatusSending || next == StatusCancelled
	case StatusScheduled:
		return next == StatusSending || next == StatusCancelled
	case StatusSending:
		return next == StatusSent || next == StatusPartiallySent || next == StatusFailed
	}
	return false
}

// Recipient identifies a single delivery target: a contact or a named
// group alias. Immutable once attached to a request.
type Recipient struct {
	ID     string `json:"id"`
	Number string `json:"number"`
}

// Attachment references an uploaded file held by the intake store.
type Attachment struct {
	Handle   string `json:"handle"`
	Filename string `json:"filename"`
}

// DeliveryResult records the outcome of one gateway send. Results are
// produced in recipient order and never mutated afterwards.
type DeliveryResult struct {
	Recipient        Recipient `json:"recipient"`
	Success          bool      `json:"success"`
	GatewayMessageID string    `json:"gatewayMessageId,omitempty"`
	Error            string    `json:"error,omitempty"`
}

// Request is a submitted message and its full dispatch lifecycle.
type Request struct {
	ID          string           `json:"id"`
	Text        string           `json:"text"`
	Recipients  []Recipient      `json:"recipients"`
	Attachment  *Attachment      `json:"attachment,omitempty"`
	ScheduledAt *time.Time       `json:"scheduledAt,omitempty"`
	Status      Status           `json:"status"`
	CreatedAt   time.Time        `json:"createdAt"`
	Results     []DeliveryResult `json:"results,omitempty"`
}

// Validation failures surfaced to the caller before any side effect.
var (
	ErrNoRecipients = errors.New("message: at least one recipient is required")
	ErrEmptyContent = errors.New("message: text or attachment is required")
	ErrPastSchedule = errors.New("message: schedule time is in the past")
)

// Validate enforces the request invariants: a non-empty recipient list,
// text or attachment present, and a schedule time (if any) in the future
// relative to now.
func (r *Request) Validate(now time.Time) error {
	if len(r.Recipients) == 0 {
		return ErrNoRecipients
	}
	if r.Text == "" && r.Attachment == nil {
		return ErrEmptyContent
	}
	if r.ScheduledAt != nil && !r.ScheduledAt.After(now) {
		return ErrPastSchedule
	}
	return nil
}

// IsValidationError reports whether err is one of the request validation
// failures, as opposed to an internal or gateway error.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrNoRecipients) ||
		errors.Is(err, ErrEmptyContent) ||
		errors.Is(err, ErrPastSchedule)
}

// Outcome classifies a completed fan-out: sent if every result succeeded,
// failed if every result failed (or none were produced), partially_sent
// otherwise.
func Outcome(results []DeliveryResult) Status {
	if len(results) == 0 {
		return StatusFailed
	}
	succeeded := 0
	for _, res := range results {
		if res.Success {
			succeeded++
		}
	}
	switch succeeded {
	case len(results):
		return StatusSent
	case 0:
		return StatusFailed
	default:
		return StatusPartiallySent
	}
}
