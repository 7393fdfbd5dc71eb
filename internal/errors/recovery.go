package errors

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/copyleftdev/promptsearch/internal/logging"
)

// RecoveryMiddleware returns a middleware that recovers from panics.
func RecoveryMiddleware(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}

					logger.Error("Recovered from panic", map[string]interface{}{
						"panic":      rec,
						"stack":      string(debug.Stack()),
						"method":     r.Method,
						"path":       r.URL.Path,
						"query":      r.URL.RawQuery,
						"request_id": middleware.GetReqID(r.Context()),
					})

					WriteJSON(w, New(CodeInternal, http.StatusText(http.StatusInternalServerError)))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// WriteJSON writes err as {"error": message} with the status of its code.
func WriteJSON(w http.ResponseWriter, err error) {
	status := CodeOf(err).HTTPStatus()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": PublicMessage(err),
	})
}

// PublicMessage returns the client-facing message for err. Internal errors
// without a message of their own are reported by status text.
func PublicMessage(err error) string {
	if CodeOf(err) == CodeInternal {
		var e *Error
		if As(err, &e) && e.Message != "" {
			return e.Message
		}
		return http.StatusText(http.StatusInternalServerError)
	}
	return err.Error()
}
