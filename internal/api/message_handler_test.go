package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ssouza/wadispatch/internal/dispatch"
	"github.com/ssouza/wadispatch/internal/message"
	"github.com/ssouza/wadispatch/internal/store"
)

// fakeDispatcher implements Dispatcher for handler tests.
type fakeDispatcher struct {
	submitted  []dispatch.SubmitRequest
	submitResp *message.Request
	submitErr  error
	requests   map[string]*message.Request
	cancelErr  error
}

func (f *fakeDispatcher) Submit(_ context.Context, sub dispatch.SubmitRequest) (*message.Request, error) {
	f.submitted = append(f.submitted, sub)
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	if f.submitResp != nil {
		return f.submitResp, nil
	}
	req := &message.Request{
		ID:          "m1",
		Text:        sub.Text,
		Recipients:  sub.Recipients,
		Attachment:  sub.Attachment,
		ScheduledAt: sub.ScheduledAt,
		Status:      message.StatusSent,
		CreatedAt:   time.Now(),
	}
	if sub.ScheduledAt != nil {
		req.Status = message.StatusScheduled
	}
	return req, nil
}

func (f *fakeDispatcher) Get(_ context.Context, id string) (*message.Request, error) {
	req, ok := f.requests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return req, nil
}

func (f *fakeDispatcher) List(_ context.Context) ([]*message.Request, error) {
	out := make([]*message.Request, 0, len(f.requests))
	for _, req := range f.requests {
		out = append(out, req)
	}
	return out, nil
}

func (f *fakeDispatcher) Cancel(_ context.Context, id string) (*message.Request, error) {
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	req, ok := f.requests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	req.Status = message.StatusCancelled
	return req, nil
}

// fakeIntake implements intake.Store in memory.
type fakeIntake struct {
	saved map[string][]byte
}

func newFakeIntake() *fakeIntake {
	return &fakeIntake{saved: make(map[string][]byte)}
}

func (f *fakeIntake) Save(_ context.Context, filename string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	handle := fmt.Sprintf("h%d-%s", len(f.saved)+1, filename)
	f.saved[handle] = data
	return handle, nil
}

func (f *fakeIntake) Open(_ context.Context, handle string) (io.ReadCloser, error) {
	data, ok := f.saved[handle]
	if !ok {
		return nil, errors.New("not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeIntake) Remove(_ context.Context, handle string) error {
	delete(f.saved, handle)
	return nil
}

// multipartBody builds a multipart form with the given fields and an
// optional file part named "attachment".
func multipartBody(t *testing.T, fields map[string]string, filename string, fileContent []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField(%s): %v", k, err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("attachment", filename)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		fw.Write(fileContent)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestSubmitMessageHandler_TextOnly(t *testing.T) {
	fake := &fakeDispatcher{}
	handler := SubmitMessageHandler(fake, newFakeIntake(), 0)

	body, contentType := multipartBody(t, map[string]string{
		"message":    "hello",
		"recipients": `[{"id":"c1","number":"5511999990001"},{"id":"c2","number":"5511999990002"}]`,
	}, "", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(fake.submitted) != 1 {
		t.Fatalf("expected 1 submission, got %d", len(fake.submitted))
	}
	sub := fake.submitted[0]
	if sub.Text != "hello" {
		t.Errorf("Text = %q", sub.Text)
	}
	if len(sub.Recipients) != 2 || sub.Recipients[1].Number != "5511999990002" {
		t.Errorf("Recipients = %+v", sub.Recipients)
	}
	if sub.Attachment != nil {
		t.Error("text-only submission carried an attachment")
	}

	var resp message.Request
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != message.StatusSent {
		t.Errorf("response status = %s, want sent", resp.Status)
	}
}

func TestSubmitMessageHandler_WithAttachment(t *testing.T) {
	fake := &fakeDispatcher{}
	storage := newFakeIntake()
	handler := SubmitMessageHandler(fake, storage, 0)

	body, contentType := multipartBody(t, map[string]string{
		"message":    "see photo",
		"recipients": `[{"id":"c1","number":"111"}]`,
	}, "photo.png", []byte("png bytes"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	sub := fake.submitted[0]
	if sub.Attachment == nil {
		t.Fatal("attachment not propagated")
	}
	if sub.Attachment.Filename != "photo.png" {
		t.Errorf("Filename = %q", sub.Attachment.Filename)
	}
	if _, ok := storage.saved[sub.Attachment.Handle]; !ok {
		t.Errorf("handle %q not found in intake store", sub.Attachment.Handle)
	}
}

func TestSubmitMessageHandler_Scheduled(t *testing.T) {
	fake := &fakeDispatcher{}
	handler := SubmitMessageHandler(fake, newFakeIntake(), 0)

	at := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	body, contentType := multipartBody(t, map[string]string{
		"message":      "later",
		"recipients":   `[{"id":"c1","number":"111"}]`,
		"scheduleTime": at.Format(time.RFC3339),
	}, "", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 for scheduled", rec.Code)
	}
	sub := fake.submitted[0]
	if sub.ScheduledAt == nil || !sub.ScheduledAt.Equal(at) {
		t.Errorf("ScheduledAt = %v, want %v", sub.ScheduledAt, at)
	}
}

func TestSubmitMessageHandler_BadRequests(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
	}{
		{"malformed recipients", map[string]string{"message": "hi", "recipients": "not-json"}},
		{"malformed scheduleTime", map[string]string{"message": "hi", "recipients": `[{"id":"c1","number":"111"}]`, "scheduleTime": "tomorrow"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeDispatcher{}
			handler := SubmitMessageHandler(fake, newFakeIntake(), 0)

			body, contentType := multipartBody(t, tt.fields, "", nil)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if len(fake.submitted) != 0 {
				t.Errorf("bad request reached the service")
			}
		})
	}
}

func TestSubmitMessageHandler_ValidationErrorMapsTo400(t *testing.T) {
	fake := &fakeDispatcher{submitErr: message.ErrNoRecipients}
	handler := SubmitMessageHandler(fake, newFakeIntake(), 0)

	body, contentType := multipartBody(t, map[string]string{"message": "hi"}, "", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetMessageHandler(t *testing.T) {
	fake := &fakeDispatcher{requests: map[string]*message.Request{
		"m1": {ID: "m1", Text: "hi", Status: message.StatusSent},
	}}
	router := NewRouter(fake, newFakeIntake(), store.NewMemoryStore(), nil, zerolog.Nop(), 0)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/messages/m1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp message.Request
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != "m1" {
		t.Errorf("ID = %s", resp.ID)
	}
}

func TestGetMessageHandler_NotFound(t *testing.T) {
	fake := &fakeDispatcher{requests: map[string]*message.Request{}}
	router := NewRouter(fake, newFakeIntake(), store.NewMemoryStore(), nil, zerolog.Nop(), 0)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/messages/unknown", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCancelMessageHandler(t *testing.T) {
	fake := &fakeDispatcher{requests: map[string]*message.Request{
		"m1": {ID: "m1", Status: message.StatusScheduled},
	}}
	router := NewRouter(fake, newFakeIntake(), store.NewMemoryStore(), nil, zerolog.Nop(), 0)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/messages/m1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp message.Request
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != message.StatusCancelled {
		t.Errorf("status = %s, want cancelled", resp.Status)
	}
}

func TestCancelMessageHandler_Conflict(t *testing.T) {
	fake := &fakeDispatcher{
		requests:  map[string]*message.Request{"m1": {ID: "m1", Status: message.StatusSent}},
		cancelErr: dispatch.ErrNotCancellable,
	}
	router := NewRouter(fake, newFakeIntake(), store.NewMemoryStore(), nil, zerolog.Nop(), 0)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/messages/m1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestListMessagesHandler(t *testing.T) {
	fake := &fakeDispatcher{requests: map[string]*message.Request{
		"m1": {ID: "m1", Status: message.StatusSent},
		"m2": {ID: "m2", Status: message.StatusScheduled},
	}}
	router := NewRouter(fake, newFakeIntake(), store.NewMemoryStore(), nil, zerolog.Nop(), 0)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp []message.Request
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp) != 2 {
		t.Errorf("got %d messages, want 2", len(resp))
	}
}

func TestSubmitMessageHandler_NonMultipartRejected(t *testing.T) {
	fake := &fakeDispatcher{}
	handler := SubmitMessageHandler(fake, newFakeIntake(), 0)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for non-multipart body", rec.Code)
	}
}
