/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to standardize
error events, HTTP responses and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the CustomError template for every application error code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:     {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrInvalidJSONFormat: {Code: ErrInvalidJSONFormat, Message: "Invalid JSON", Status: http.StatusBadRequest},
	ErrRateLimitExceeded: {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Event Protocol Errors
	ErrUnknownEventType:      {Code: ErrUnknownEventType, Message: "Unknown type"},
	ErrMissingJoinFields:     {Code: ErrMissingJoinFields, Message: "Missing userId/avatar"},
	ErrMissingUserID:         {Code: ErrMissingUserID, Message: "Missing userId"},
	ErrNotJoined:             {Code: ErrNotJoined, Message: "Not joined"},
	ErrMessageContentTooLong: {Code: ErrMessageContentTooLong, Message: "Message is too long (max %d bytes)."},

	// 3xxx: Admin Errors
	ErrUnauthorized:  {Code: ErrUnauthorized, Message: "Admin authorization required.", Status: http.StatusUnauthorized},
	ErrTokenNotFound: {Code: ErrTokenNotFound, Message: "Push token not found.", Status: http.StatusNotFound},

	// 5xxx: Internal System Errors
	ErrUnknown:          {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrTokenStoreFailed: {Code: ErrTokenStoreFailed, Message: "Token store is unavailable.", Status: http.StatusServiceUnavailable},
}
