// Package api exposes the dispatch engine over HTTP.
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ssouza/wadispatch/internal/directory"
	"github.com/ssouza/wadispatch/internal/intake"
	"github.com/ssouza/wadispatch/internal/store"
)

// NewRouter creates a chi.Mux with all routes, middleware, and handlers configured.
// The dir parameter is optional; when nil, contact book endpoints are not registered.
func NewRouter(
	svc Dispatcher,
	attachments intake.Store,
	messages store.MessageStore,
	dir directory.Directory,
	log zerolog.Logger,
	maxUploadBytes int64,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(CorrelationIDMiddleware)
	r.Use(LoggingMiddleware(log))
	r.Use(RecoverMiddleware(log))

	// Health and metrics endpoints
	r.Get("/healthz", HealthzHandler())
	r.Get("/readyz", ReadyzHandler(messages))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Messages
		r.Post("/messages", SubmitMessageHandler(svc, attachments, maxUploadBytes))
		r.Get("/messages", ListMessagesHandler(svc))
		r.Get("/messages/{id}", GetMessageHandler(svc))
		r.Delete("/messages/{id}", CancelMessageHandler(svc))

		// Contact book
		if dir != nil {
			r.Get("/contacts", ListContactsHandler(dir))
			r.Post("/contacts", CreateContactHandler(dir))
			r.Post("/contacts/import", ImportContactsHandler(dir))
			r.Get("/groups", ListGroupsHandler(dir))
		}
	})

	return r
}
