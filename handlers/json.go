package handlers

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"accessmap-server/utils/errors"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Warn("Failed to encode response")
	}
}

// decodeJSON reads a single JSON object from the request body. Syntax and
// type errors are reported as validation failures on the offending field.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		var maxErr *http.MaxBytesError
		switch {
		case stderrors.Is(err, io.EOF):
			return errors.Validation("body", "request body is empty")
		case stderrors.As(err, &syntaxErr):
			return errors.Validation("body", fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset))
		case stderrors.As(err, &typeErr):
			field := typeErr.Field
			if field == "" {
				field = "body"
			}
			return errors.Validation(field, fmt.Sprintf("must be %s", typeErr.Type))
		case stderrors.As(err, &maxErr):
			return errors.Validation("body", fmt.Sprintf("must not exceed %d bytes", maxErr.Limit))
		case errors.IsValidation(err):
			return err
		}
		return errors.Validation("body", err.Error())
	}
	if dec.More() {
		return errors.Validation("body", "must contain a single JSON object")
	}
	return nil
}
