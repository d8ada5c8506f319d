package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ssouza/wadispatch/internal/message"
	"github.com/ssouza/wadispatch/internal/schedule"
	"github.com/ssouza/wadispatch/internal/store"
)

func testService(t *testing.T, gw *fakeGateway) (*Service, *store.MemoryStore) {
	t.Helper()
	messages := store.NewMemoryStore()
	ex := NewExecutor(gw, messages, &fakeAttachments{}, Config{Pacing: time.Millisecond}, zerolog.Nop())
	sched := schedule.New(zerolog.Nop())
	t.Cleanup(sched.Stop)
	return NewService(messages, sched, ex, zerolog.Nop()), messages
}

func TestService_SubmitImmediate(t *testing.T) {
	gw := &fakeGateway{}
	svc, _ := testService(t, gw)

	req, err := svc.Submit(context.Background(), SubmitRequest{
		Text:       "hi",
		Recipients: recipients("111", "222"),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if req.ID == "" {
		t.Error("submitted request has no id")
	}
	if req.Status != message.StatusSent {
		t.Errorf("status = %s, want sent", req.Status)
	}
	if len(req.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(req.Results))
	}
	for i, res := range req.Results {
		if !res.Success {
			t.Errorf("results[%d] failed: %s", i, res.Error)
		}
	}

	stored, err := svc.Get(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != message.StatusSent {
		t.Errorf("stored status = %s, want sent", stored.Status)
	}
}

func TestService_SubmitValidation(t *testing.T) {
	gw := &fakeGateway{}
	svc, messages := testService(t, gw)

	past := time.Now().Add(-time.Minute)
	tests := []struct {
		name string
		sub  SubmitRequest
		want error
	}{
		{"no recipients", SubmitRequest{Text: "hi"}, message.ErrNoRecipients},
		{"no content", SubmitRequest{Recipients: recipients("111")}, message.ErrEmptyContent},
		{"past schedule", SubmitRequest{Text: "hi", Recipients: recipients("111"), ScheduledAt: &past}, message.ErrPastSchedule},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Submit(context.Background(), tt.sub)
			if !errors.Is(err, tt.want) {
				t.Errorf("Submit: got %v, want %v", err, tt.want)
			}
		})
	}

	// Rejected submissions must leave no record behind.
	all, err := messages.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("store holds %d records after rejected submissions, want 0", len(all))
	}
	if len(gw.sends) != 0 {
		t.Errorf("rejected submissions produced %d sends", len(gw.sends))
	}
}

func TestService_ScheduleThenCancel(t *testing.T) {
	gw := &fakeGateway{}
	svc, _ := testService(t, gw)

	at := time.Now().Add(time.Hour)
	req, err := svc.Submit(context.Background(), SubmitRequest{
		Text:        "later",
		Recipients:  recipients("111"),
		ScheduledAt: &at,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if req.Status != message.StatusScheduled {
		t.Fatalf("status = %s, want scheduled", req.Status)
	}

	cancelled, err := svc.Cancel(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != message.StatusCancelled {
		t.Errorf("status = %s, want cancelled", cancelled.Status)
	}
	if len(gw.sends) != 0 {
		t.Errorf("cancelled request produced %d sends", len(gw.sends))
	}

	// Cancellation is idempotent-hostile: a second cancel is rejected.
	if _, err := svc.Cancel(context.Background(), req.ID); !errors.Is(err, ErrNotCancellable) {
		t.Errorf("second Cancel: got %v, want ErrNotCancellable", err)
	}
}

func TestService_ScheduledFiresAndDelivers(t *testing.T) {
	gw := &fakeGateway{}
	svc, _ := testService(t, gw)

	at := time.Now().Add(30 * time.Millisecond)
	req, err := svc.Submit(context.Background(), SubmitRequest{
		Text:        "soon",
		Recipients:  recipients("111"),
		ScheduledAt: &at,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		got, err := svc.Get(context.Background(), req.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Status == message.StatusSent {
			if len(got.Results) != 1 || !got.Results[0].Success {
				t.Fatalf("unexpected results: %+v", got.Results)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatalf("scheduled message never sent, status %s", got.Status)
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	// Too late to cancel once the job has fired.
	if _, err := svc.Cancel(context.Background(), req.ID); !errors.Is(err, ErrNotCancellable) {
		t.Errorf("Cancel after fire: got %v, want ErrNotCancellable", err)
	}
}

func TestService_CancelUnknownID(t *testing.T) {
	svc, _ := testService(t, &fakeGateway{})
	if _, err := svc.Cancel(context.Background(), "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Cancel unknown id: got %v, want ErrNotFound", err)
	}
}
