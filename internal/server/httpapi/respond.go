package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/slemarket/hybridstore/internal/common"
	"github.com/slemarket/hybridstore/internal/storage"
)

// envelope is the uniform response shape. Warning annotates degraded
// successes, where content was stored but indexing did not complete.
type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Warning string `json:"warning,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func writeSuccess(w http.ResponseWriter, status int, data any, warning string) {
	writeJSON(w, status, envelope{Success: true, Data: data, Warning: warning})
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), envelope{Success: false, Error: err.Error()})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, envelope{Success: false, Error: msg})
}

// statusFor maps service errors onto HTTP statuses by sentinel and
// adapter error kind, never by message text.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrorAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, common.ErrorMissingIdentity),
		errors.Is(err, common.ErrorIncorrectMetadata):
		return http.StatusBadRequest
	}

	if kind, ok := storage.ErrKind(err); ok {
		switch kind {
		case storage.KindInvalidPayload:
			return http.StatusBadRequest
		case storage.KindTimeout:
			return http.StatusGatewayTimeout
		default:
			return http.StatusBadGateway
		}
	}

	return http.StatusInternalServerError
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return false
	}
	return true
}
