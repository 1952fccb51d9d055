/*
Package errs provides custom error types and application-level error code constants.

These error codes identify protocol, admin and system failures both inside the server
and in the error events and HTTP envelopes returned to clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrInvalidJSONFormat indicates that the payload could not be parsed as JSON.
	ErrInvalidJSONFormat = 1003

	// ErrRateLimitExceeded indicates that the request or event rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007
)

// 2xxx: Event Protocol Errors
const (
	// ErrUnknownEventType indicates that an inbound event carried an unrecognized type.
	ErrUnknownEventType = 2001

	// ErrMissingJoinFields indicates that a join_queue event lacked userId or avatar.
	ErrMissingJoinFields = 2002

	// ErrMissingUserID indicates that a reconnect event lacked userId.
	ErrMissingUserID = 2003

	// ErrNotJoined indicates a room event sent before the connection joined the queue.
	ErrNotJoined = 2004

	// ErrMessageContentTooLong indicates that the message text exceeded the maximum length limit.
	ErrMessageContentTooLong = 2201
)

// 3xxx: Admin Errors
const (
	// ErrUnauthorized indicates a missing or invalid admin bearer token.
	ErrUnauthorized = 3001

	// ErrTokenNotFound indicates that the push token addressed by an admin call does not exist.
	ErrTokenNotFound = 3101
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrTokenStoreFailed indicates that the push token store could not serve the request.
	ErrTokenStoreFailed = 5101
)
