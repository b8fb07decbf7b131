/*
Package errs provides the application error type and its error code constants.

This file defines CustomError, which implements the error interface and carries a
business code, a client-facing message and the HTTP status used at the boundary.
*/
package errs

import (
	"errors"
	"fmt"
	"net/http"

	"flipside/internal/pkg/logx"
)

// CustomError is the error structure shared by services and handlers.
type CustomError struct {
	// Code is the business error code (see constants).
	Code int

	// Message is the client-facing description.
	Message string

	// Status is the HTTP status code for this error.
	Status int
}

// Error implements the error interface.
func (e CustomError) Error() string {
	return fmt.Sprintf("Error Code %d (HTTP %d): %s", e.Code, e.Status, e.Message)
}

// NewError returns a fresh *CustomError for a known code. An unknown code is logged
// and mapped to ErrUnknown. For ErrUnknown the optional cause is logged, never exposed.
func NewError(code int, cause ...error) *CustomError {
	template, ok := errorMap[code]
	if !ok {
		logx.Error(
			fmt.Errorf("unknown error code %d", code),
			"Unknown error code requested",
			"requested_code", code,
		)
		template = errorMap[ErrUnknown]
	}

	if template.Status == 0 {
		template.Status = http.StatusBadRequest
	}

	if template.Code == ErrUnknown && len(cause) > 0 && cause[0] != nil {
		logx.Error(cause[0], "Handling ErrUnknown with underlying error")
	}

	return &template
}

// Is reports whether err is a CustomError with the given code.
func Is(err error, code int) bool {
	var customErr *CustomError
	if errors.As(err, &customErr) {
		return customErr.Code == code
	}
	return false
}
