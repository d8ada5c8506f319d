package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ssouza/wadispatch/internal/dispatch"
	"github.com/ssouza/wadispatch/internal/intake"
	"github.com/ssouza/wadispatch/internal/logger"
	"github.com/ssouza/wadispatch/internal/message"
	"github.com/ssouza/wadispatch/internal/store"
)

// Dispatcher is the slice of the dispatch service the handlers need.
type Dispatcher interface {
	Submit(ctx context.Context, sub dispatch.SubmitRequest) (*message.Request, error)
	Get(ctx context.Context, id string) (*message.Request, error)
	List(ctx context.Context) ([]*message.Request, error)
	Cancel(ctx context.Context, id string) (*message.Request, error)
}

const defaultMaxUploadBytes = 25 << 20

// SubmitMessageHandler handles POST /api/v1/messages.
//
// The request is multipart form data: a "message" text field, a
// "recipients" field holding a JSON array of {id, number} objects, an
// optional "scheduleTime" RFC 3339 field, and an optional "attachment"
// file. Scheduled submissions return 201; immediate ones return 200 with
// the delivery results.
func SubmitMessageHandler(svc Dispatcher, attachments intake.Store, maxUploadBytes int64) http.HandlerFunc {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			respondError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}

		var recipients []message.Recipient
		if raw := r.FormValue("recipients"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &recipients); err != nil {
				respondError(w, http.StatusBadRequest, "recipients must be a JSON array of {id, number} objects")
				return
			}
		}

		sub := dispatch.SubmitRequest{
			Text:       r.FormValue("message"),
			Recipients: recipients,
		}

		if raw := r.FormValue("scheduleTime"); raw != "" {
			at, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				respondError(w, http.StatusBadRequest, "scheduleTime must be RFC 3339")
				return
			}
			sub.ScheduledAt = &at
		}

		file, header, err := r.FormFile("attachment")
		switch {
		case err == nil:
			handle, saveErr := attachments.Save(r.Context(), header.Filename, file)
			file.Close()
			if saveErr != nil {
				log.Error().Err(saveErr).Str("filename", header.Filename).Msg("attachment save failed")
				respondError(w, http.StatusInternalServerError, "failed to store attachment")
				return
			}
			sub.Attachment = &message.Attachment{Handle: handle, Filename: header.Filename}
		case errors.Is(err, http.ErrMissingFile):
			// text-only request
		default:
			respondError(w, http.StatusBadRequest, "invalid attachment")
			return
		}

		req, err := svc.Submit(r.Context(), sub)
		if err != nil {
			if message.IsValidationError(err) {
				respondError(w, http.StatusBadRequest, err.Error())
				return
			}
			log.Error().Err(err).Msg("submit failed")
			respondError(w, http.StatusInternalServerError, "failed to submit message")
			return
		}

		status := http.StatusOK
		if req.Status == message.StatusScheduled {
			status = http.StatusCreated
		}
		respondJSON(w, status, req)
	}
}

// ListMessagesHandler handles GET /api/v1/messages.
func ListMessagesHandler(svc Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqs, err := svc.List(r.Context())
		if err != nil {
			log := logger.FromContext(r.Context())
			log.Error().Err(err).Msg("list messages failed")
			respondError(w, http.StatusInternalServerError, "failed to list messages")
			return
		}
		respondJSON(w, http.StatusOK, reqs)
	}
}

// GetMessageHandler handles GET /api/v1/messages/{id}.
func GetMessageHandler(svc Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		req, err := svc.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondError(w, http.StatusNotFound, "message not found")
				return
			}
			log := logger.FromContext(r.Context())
			log.Error().Err(err).Str("message_id", id).Msg("get message failed")
			respondError(w, http.StatusInternalServerError, "failed to load message")
			return
		}
		respondJSON(w, http.StatusOK, req)
	}
}

// CancelMessageHandler handles DELETE /api/v1/messages/{id}.
// Cancellation succeeds only while the message is pending or scheduled;
// once dispatch has started the request is rejected with 409.
func CancelMessageHandler(svc Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		req, err := svc.Cancel(r.Context(), id)
		if err != nil {
			switch {
			case errors.Is(err, store.ErrNotFound):
				respondError(w, http.StatusNotFound, "message not found")
			case errors.Is(err, dispatch.ErrNotCancellable):
				respondError(w, http.StatusConflict, "message can no longer be cancelled")
			default:
				log := logger.FromContext(r.Context())
				log.Error().Err(err).Str("message_id", id).Msg("cancel failed")
				respondError(w, http.StatusInternalServerError, "failed to cancel message")
			}
			return
		}
		respondJSON(w, http.StatusOK, req)
	}
}
