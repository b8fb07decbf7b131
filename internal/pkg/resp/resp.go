/*
Package resp provides helpers for writing JSON HTTP responses.

Success bodies are written as-is. Error bodies use the `{detail, code}` envelope
built from an errs.CustomError.
*/
package resp

import (
	"encoding/json"
	"net/http"

	"flipside/internal/pkg/errs"
	"flipside/internal/pkg/logx"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	// Detail is the client-facing error message.
	Detail string `json:"detail"`

	// Code is the business error code (see errs package).
	Code int `json:"code"`
}

// RespondJSON sets the content headers, writes httpStatus and the encoded payload.
func RespondJSON(w http.ResponseWriter, r *http.Request, httpStatus int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	body, err := json.Marshal(payload)
	if err != nil {
		logx.Error(err, "Error encoding JSON response", "http_status", httpStatus)
		http.Error(w, "Error encoding JSON response", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(httpStatus)
	if _, err := w.Write(body); err != nil {
		logx.Warn("Failed to write response body", "error", err.Error())
	}
}

// RespondSuccess writes data with the given 2xx status.
func RespondSuccess(w http.ResponseWriter, r *http.Request, httpStatus int, data any) {
	RespondJSON(w, r, httpStatus, data)
}

// RespondStatus writes a bodiless response, used by HEAD probes and empty 200s.
func RespondStatus(w http.ResponseWriter, httpStatus int) {
	w.WriteHeader(httpStatus)
}

// RespondError writes customErr using its own HTTP status. A nil error becomes ErrUnknown.
func RespondError(w http.ResponseWriter, r *http.Request, customErr *errs.CustomError) {
	if customErr == nil {
		customErr = errs.NewError(errs.ErrUnknown)
	}

	if customErr.Status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}

	RespondJSON(w, r, customErr.Status, ErrorResponse{
		Detail: customErr.Message,
		Code:   customErr.Code,
	})
}
