package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/safar/go-shop-orders/internal/apperr"
)

// Envelope is the body of every response.
type Envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func respond(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

// respondError maps err onto its HTTP status. Errors without a domain code
// are logged and answered with a generic message.
func respondError(w http.ResponseWriter, logger *zerolog.Logger, err error) {
	e, ok := apperr.As(err)
	if !ok || e.Kind == apperr.KindInternal {
		logger.Error().Err(err).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, Envelope{
			Error:   apperr.CodeInternal,
			Message: "Something went wrong, please try again",
		})
		return
	}
	writeJSON(w, apperr.HTTPStatus(err), Envelope{Error: e.Code, Message: e.Message})
}
