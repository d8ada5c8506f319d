package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ssouza/wadispatch/internal/directory"
	"github.com/ssouza/wadispatch/internal/logger"
)

// ListContactsHandler handles GET /api/v1/contacts.
func ListContactsHandler(dir directory.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contacts, err := dir.ListContacts(r.Context())
		if err != nil {
			log := logger.FromContext(r.Context())
			log.Error().Err(err).Msg("list contacts failed")
			respondError(w, http.StatusInternalServerError, "failed to list contacts")
			return
		}
		respondJSON(w, http.StatusOK, contacts)
	}
}

// ListGroupsHandler handles GET /api/v1/groups.
func ListGroupsHandler(dir directory.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groups, err := dir.ListGroups(r.Context())
		if err != nil {
			log := logger.FromContext(r.Context())
			log.Error().Err(err).Msg("list groups failed")
			respondError(w, http.StatusInternalServerError, "failed to list groups")
			return
		}
		respondJSON(w, http.StatusOK, groups)
	}
}

// createContactRequest is the JSON body for POST /api/v1/contacts.
type createContactRequest struct {
	Name   string `json:"name"`
	Number string `json:"number"`
}

// CreateContactHandler handles POST /api/v1/contacts.
func CreateContactHandler(dir directory.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createContactRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		contact, err := dir.AddContact(r.Context(), req.Name, req.Number)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondJSON(w, http.StatusCreated, contact)
	}
}

// importContactsResponse is the JSON response for a contact import.
type importContactsResponse struct {
	Imported int `json:"imported"`
}

// ImportContactsHandler handles POST /api/v1/contacts/import.
// The CSV can arrive either as a multipart "file" part or as the raw
// request body.
func ImportContactsHandler(dir directory.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		var src io.Reader = r.Body
		if file, _, err := r.FormFile("file"); err == nil {
			defer file.Close()
			src = file
		} else if !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart) {
			respondError(w, http.StatusBadRequest, "invalid upload")
			return
		}

		imported, err := dir.ImportContacts(r.Context(), src)
		if err != nil {
			log.Error().Err(err).Int("imported", imported).Msg("contact import failed")
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}

		log.Info().Int("imported", imported).Msg("contacts imported")
		respondJSON(w, http.StatusOK, importContactsResponse{Imported: imported})
	}
}
