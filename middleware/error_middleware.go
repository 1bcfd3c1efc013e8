package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"accessmap-server/utils/errors"
)

// ErrorMiddleware recovers panics and answers them with a JSON 500.
func ErrorMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logrus.WithFields(logrus.Fields{
						"method":     r.Method,
						"path":       r.URL.Path,
						"request_id": RequestIDFromContext(r.Context()),
					}).Errorf("Panic recovered: %v", rec)
					WriteError(w, errors.ErrInternal)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// WriteError writes err as a JSON APIError response.
func WriteError(w http.ResponseWriter, err error) {
	apiErr := errors.From(err)
	if apiErr.Status >= 500 {
		logrus.WithField("details", apiErr.Details).Errorf("Server error %s", apiErr.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	if encErr := json.NewEncoder(w).Encode(apiErr); encErr != nil {
		logrus.WithError(encErr).Warn("Failed to encode error response")
	}
}
