package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type StatusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *StatusRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *StatusRecorder) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// Logger writes one line per request. Panics from the handler are logged
// with their stack and answered with a 500 envelope.
func Logger(logger *zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			recorder := &StatusRecorder{ResponseWriter: w}

			// Auth fills holder further down the chain.
			holder := &Principal{}
			r = r.WithContext(withPrincipalHolder(r.Context(), holder))

			defer func() {
				if rec := recover(); rec != nil {
					var msg string
					if e, ok := rec.(error); ok {
						msg = e.Error()
					} else {
						msg = fmt.Sprintf("%v", rec)
					}
					logger.Error().
						Str("request_id", RequestIDFrom(r.Context())).
						Str("user_id", userID(holder)).
						Str("method", r.Method).
						Str("url", r.URL.String()).
						Str("error", msg).
						Bytes("stack", debug.Stack()).
						Msg("request panicked")

					recorder.Header().Set("Content-Type", "application/json")
					recorder.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(recorder).Encode(map[string]any{
						"success": false,
						"error":   "InternalError",
						"message": "Internal Server Error",
					})
				}

				logger.Info().
					Str("request_id", RequestIDFrom(r.Context())).
					Str("user_id", userID(holder)).
					Str("method", r.Method).
					Str("url", r.URL.String()).
					Int("status", recorder.Status()).
					Msg("request completed")
			}()

			next.ServeHTTP(recorder, r)
		})
	}
}

func userID(p *Principal) string {
	if p.UserID == uuid.Nil {
		return "anonymous"
	}
	return p.UserID.String()
}
