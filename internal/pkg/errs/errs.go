/*
Package errs provides custom error types and application-level error code constants.

This file defines the CustomError struct, which implements the standard Go error interface
and includes a business code, a user-facing message, and an HTTP status code for unified error reporting.
*/
package errs

import (
	"fmt"
	"net/http"
	"strings"

	"strangerchat/internal/pkg/logx"
)

// CustomError is the custom error structure used throughout the application.
type CustomError struct {
	// Code is the business error code (see constants definition).
	Code int

	// Message is the user-facing error description. It is the text carried by error events.
	Message string

	// Status is the HTTP status code used when the error is returned by an HTTP handler.
	Status int
}

// Error implements the standard Go error interface.
func (e CustomError) Error() string {
	return fmt.Sprintf("error code %d (HTTP %d): %s", e.Code, e.Status, e.Message)
}

// NewError constructs a new *CustomError from a predefined error code.
// Optional details are applied printf-style to message templates containing a verb.
// Unknown codes fall back to ErrUnknown.
func NewError(code int, details ...any) *CustomError {
	templateErr, ok := errorMap[code]
	if !ok {
		logx.Error(
			fmt.Errorf("unknown error code %d", code),
			"Unknown error code requested",
			"requested_code", code,
		)

		unknownErr := errorMap[ErrUnknown]
		return &unknownErr
	}

	customErr := templateErr

	if customErr.Status == 0 {
		customErr.Status = http.StatusOK
	}

	if len(details) > 0 {
		if strings.Contains(customErr.Message, "%") {
			customErr.Message = fmt.Sprintf(customErr.Message, details...)
		} else if cause, ok := details[0].(error); ok {
			logx.Error(cause, "Error created with underlying cause", "code", code)
		}
	}

	return &customErr
}
