package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/soroboxing/gymgate/auth"
	"github.com/soroboxing/gymgate/member"
)

const (
	maxAuthBodySize  = 4 << 10
	maxAdminBodySize = 16 << 10
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// decodeJSON reads a size-limited JSON body into T, writing a 400 on failure.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request, maxBytes int64) (T, bool) {
	var v T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBytes))
	if err := dec.Decode(&v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		case errors.Is(err, io.EOF):
			writeError(w, http.StatusBadRequest, "request body is required")
		default:
			writeError(w, http.StatusBadRequest, "invalid JSON body")
		}
		return v, false
	}
	return v, true
}

// mapError writes the response for an error returned by auth.Service. Store
// failures and anything unrecognised become a generic 500; the detail stays
// in the server log.
func (a *API) mapError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrMemberNotFound):
		writeError(w, http.StatusNotFound, "member not found")
	case errors.Is(err, auth.ErrMemberExists):
		writeError(w, http.StatusConflict, "a member with that identifier already exists")
	case errors.Is(err, auth.ErrInvalidIdentifier):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrAccountInactive):
		writeError(w, http.StatusBadRequest, "member is inactive")
	case errors.Is(err, auth.ErrAlreadyInactive):
		writeError(w, http.StatusBadRequest, "member is already inactive")
	case errors.Is(err, auth.ErrAlreadyActive):
		writeError(w, http.StatusBadRequest, "member is already active")
	case isValidationError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		a.writeInternalError(w, r, err)
	}
}

func (a *API) writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, auth.ErrStoreFailure) {
		a.events.logFailure(EventStoreFailure, r, "store failure", slog.String("error", err.Error()))
	} else {
		a.logger.ErrorContext(r.Context(), "internal error", "path", r.URL.Path, "error", err)
	}
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func isValidationError(err error) bool {
	var ve *member.ValidationError
	return errors.As(err, &ve)
}
