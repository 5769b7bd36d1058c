package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/and161185/playlister/internal/errs"
)

// Messages returned for non-validation failures. Raw error text never leaves the server.
const (
	msgWrongCredentials = "Wrong email or password provided."
	msgUnauthorized     = "Unauthorized"
	msgForbidden        = "You do not have access to this playlist."
	msgNotFound         = "Playlist not found."
	msgRateLimited      = "Too many attempts. Please try again later."
	msgBadBody          = "Invalid request body."
	msgInternal         = "Something went wrong. Please try again."
)

type errorBody struct {
	Success      bool   `json:"success"`
	ErrorMessage string `json:"errorMessage"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Success: false, ErrorMessage: msg})
}

// statusFor maps an error kind to its status code and user-facing message.
func statusFor(err error) (int, string) {
	var ve *errs.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Message
	case errors.Is(err, errs.ErrInvalidCredentials):
		return http.StatusUnauthorized, msgWrongCredentials
	case errors.Is(err, errs.ErrRateLimited):
		return http.StatusTooManyRequests, msgRateLimited
	case errors.Is(err, errs.ErrForbidden):
		return http.StatusForbidden, msgForbidden
	case errs.IsNotFound(err):
		return http.StatusNotFound, msgNotFound
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

// writeError encodes err and logs server-side failures with the request id.
func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("request_id", RequestIDFromCtx(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeMessage(w, status, msg)
}

// decode reads a JSON body capped at maxBytes.
func decode(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) bool {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeMessage(w, http.StatusRequestEntityTooLarge, msgBadBody)
			return false
		}
		writeMessage(w, http.StatusBadRequest, msgBadBody)
		return false
	}
	return true
}
