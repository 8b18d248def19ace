// Package handlers provides the localhost REST API used by the desktop shell.
package handlers

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	apperrors "github.com/kimhsiao/shopfloor/backend/internal/errors"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps an application error code to an HTTP status.
func writeError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case apperrors.ErrValidation:
		status = http.StatusBadRequest
	case apperrors.ErrUnauthenticated:
		status = http.StatusUnauthorized
	case apperrors.ErrNotFound:
		status = http.StatusNotFound
	case apperrors.ErrDowntimeAlreadyOpen, apperrors.ErrDowntimeAlreadyClosed, apperrors.ErrInvalidTransition:
		status = http.StatusConflict
	case apperrors.ErrSyncOffline:
		status = http.StatusServiceUnavailable
	case apperrors.ErrTransport, apperrors.ErrSyncFailed:
		status = http.StatusBadGateway
	}

	message := err.Error()
	var appErr *apperrors.AppError
	if stderrors.As(err, &appErr) {
		message = appErr.Message
	}
	writeJSON(w, status, errorResponse{Code: string(code), Message: message})
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil
		}
		return apperrors.Wrap(apperrors.ErrValidation, "invalid request body", err)
	}
	return nil
}
