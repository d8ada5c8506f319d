// Package schedule holds deferred dispatches as one-shot timer jobs keyed
// by message id, with cancellation serialized against firing.
package schedule

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrPastFireTime is returned when a job's fire time is not in the future.
var ErrPastFireTime = errors.New("schedule: fire time is in the past")

// ErrAlreadyScheduled is returned when a job already exists for the id.
var ErrAlreadyScheduled = errors.New("schedule: job already scheduled for this id")

// FireFunc runs when a job fires. It receives only the message id; the
// current request state is looked up at fire time, not captured at
// schedule time.
type FireFunc func(messageID string)

type job struct {
	timer  *time.Timer
	fireAt time.Time
}

// Scheduler arms one timer per deferred message. A job either fires exactly
// once or is cancelled before firing; the registry mutex serializes the two
// so a cancelled job can never run.
type Scheduler struct {
	mu   sync.Mutex
	jobs map[string]*job
	log  zerolog.Logger
}

// New creates an empty Scheduler.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		jobs: make(map[string]*job),
		log:  log,
	}
}

// Schedule arms a job for messageID at fireAt. The fire callback runs on a
// timer goroutine; it is invoked exactly once unless Cancel wins first.
func (s *Scheduler) Schedule(messageID string, fireAt time.Time, onFire FireFunc) error {
	if !fireAt.After(time.Now()) {
		return ErrPastFireTime
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[messageID]; exists {
		return ErrAlreadyScheduled
	}

	j := &job{fireAt: fireAt}
	j.timer = time.AfterFunc(time.Until(fireAt), func() {
		s.fire(messageID, onFire)
	})
	s.jobs[messageID] = j

	s.log.Info().
		Str("message_id", messageID).
		Time("fire_at", fireAt).
		Msg("dispatch scheduled")
	return nil
}

// fire runs when a job's timer expires. The registry entry is re-checked
// under the mutex: a job cancelled after the timer expired but before this
// callback acquired the lock is a no-op.
func (s *Scheduler) fire(messageID string, onFire FireFunc) {
	s.mu.Lock()
	if _, armed := s.jobs[messageID]; !armed {
		s.mu.Unlock()
		return
	}
	delete(s.jobs, messageID)
	s.mu.Unlock()

	s.log.Info().Str("message_id", messageID).Msg("scheduled dispatch firing")
	onFire(messageID)
}

// Cancel disarms the job for messageID. It returns true if the job was
// still armed, guaranteeing the callback will not subsequently run. Cancel
// on an already-fired, already-cancelled, or unknown id returns false.
func (s *Scheduler) Cancel(messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, armed := s.jobs[messageID]
	if !armed {
		return false
	}
	j.timer.Stop()
	delete(s.jobs, messageID)

	s.log.Info().Str("message_id", messageID).Msg("scheduled dispatch cancelled")
	return true
}

// Armed reports whether a job is currently armed for messageID.
func (s *Scheduler) Armed(messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, armed := s.jobs[messageID]
	return armed
}

// Len returns the number of armed jobs.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Stop disarms every job. Used at shutdown; no callbacks run afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, j := range s.jobs {
		j.timer.Stop()
		delete(s.jobs, id)
	}
}
