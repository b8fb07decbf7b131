/*
Package errs provides the application error type and its error code constants.

Codes identify a failure both in logs and in the structured `{detail, code}` body
returned to clients. Authentication related codes are deliberately coarse: a client
can never tell which individual check failed.
*/
package errs

// 1xxx: General request handling errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body is not valid JSON.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates extra content after the JSON document.
	ErrExtraContentInBody = 1004

	// ErrFileTooLarge indicates an upload above the size limit.
	ErrFileTooLarge = 1005

	// ErrRateLimitExceeded indicates that the caller exceeded its request budget.
	ErrRateLimitExceeded = 1007
)

// 3xxx: Authentication errors
const (
	// ErrInvalidCredentials indicates a missing or unusable bearer credential.
	ErrInvalidCredentials = 3001

	// ErrInvalidToken covers malformed, badly signed, expired and cross-kind tokens alike.
	ErrInvalidToken = 3002

	// ErrInvalidCode covers absent, expired and mismatched verification codes alike.
	ErrInvalidCode = 3003
)

// 4xxx: Resource errors
const (
	// ErrNotFound indicates a generic missing resource.
	ErrNotFound = 4004

	// ErrUserAlreadyExists indicates a uniqueness violation on signup.
	ErrUserAlreadyExists = 4009

	// ErrCustomerAlreadyExists indicates the caller already owns a customer profile.
	ErrCustomerAlreadyExists = 4010
)

// 5xxx: Internal system errors
const (
	// ErrUnknown represents an unclassified internal error.
	ErrUnknown = 5000

	// ErrFileStorageFailed indicates the object storage collaborator failed.
	ErrFileStorageFailed = 5001
)
