package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	doora "github.com/doora-app/doora"
)

type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func writeEnvelope(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Code: status, Message: message, Data: data})
}

// writeError maps engine errors onto the status envelope. Refresh reuse
// renders the same body as an invalid refresh token so reuse detection is
// not observable from outside.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, doora.ErrValidation), errors.Is(err, doora.ErrPasswordPolicy):
		writeEnvelope(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, doora.ErrInvalidCredentials):
		writeEnvelope(w, http.StatusUnauthorized, "invalid credentials", nil)
	case errors.Is(err, doora.ErrRefreshInvalid), errors.Is(err, doora.ErrRefreshReuse):
		writeEnvelope(w, http.StatusUnauthorized, "refresh token expired or used", nil)
	case errors.Is(err, doora.ErrTokenInvalid):
		writeEnvelope(w, http.StatusUnauthorized, "invalid token", nil)
	case errors.Is(err, doora.ErrUnauthorized):
		writeEnvelope(w, http.StatusUnauthorized, "unauthorized", nil)
	case errors.Is(err, doora.ErrUserNotFound):
		writeEnvelope(w, http.StatusNotFound, "user not found", nil)
	case errors.Is(err, doora.ErrAccountExists):
		writeEnvelope(w, http.StatusConflict, "user already exists", nil)
	case errors.Is(err, doora.ErrAlreadyVerified):
		writeEnvelope(w, http.StatusConflict, "email already verified", nil)
	case errors.Is(err, doora.ErrUpload):
		writeEnvelope(w, http.StatusBadGateway, "failed to upload avatar", nil)
	case errors.Is(err, doora.ErrVerificationDispatch), errors.Is(err, doora.ErrResetDispatch):
		writeEnvelope(w, http.StatusBadGateway, "failed to send email", nil)
	default:
		writeEnvelope(w, http.StatusInternalServerError, "internal error", nil)
	}
}
