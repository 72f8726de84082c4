package response

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ayush/bugdex-forum/backend/internal/apperr"
)

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "err", err)
	}
}

// Fail writes the {success:false, message} failure document.
func Fail(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]any{"success": false, "message": message})
}

// Error renders err. Errors without an apperr code are logged and reported
// as a generic server error.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	e, ok := apperr.As(err)
	if !ok {
		slog.Error("unhandled error", "method", r.Method, "path", r.URL.Path, "err", err)
		Fail(w, http.StatusInternalServerError, "internal server error")
		return
	}
	status := apperr.Status(e.Code)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "code", e.Code, "err", err)
	}
	Fail(w, status, e.Message)
}
