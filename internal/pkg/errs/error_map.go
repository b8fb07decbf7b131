package errs

import "net/http"

// errorMap holds the template CustomError for every known code.
var errorMap = map[int]CustomError{
	// 1xxx
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrFileTooLarge:         {Code: ErrFileTooLarge, Message: "File size exceeds the allowed limit.", Status: http.StatusRequestEntityTooLarge},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 3xxx
	ErrInvalidCredentials: {Code: ErrInvalidCredentials, Message: "Invalid credentials", Status: http.StatusUnauthorized},
	ErrInvalidToken:       {Code: ErrInvalidToken, Message: "Token is invalid or expired", Status: http.StatusBadRequest},
	ErrInvalidCode:        {Code: ErrInvalidCode, Message: "Code is invalid or expired", Status: http.StatusBadRequest},

	// 4xxx
	ErrNotFound:              {Code: ErrNotFound, Message: "Requested resource cannot be found", Status: http.StatusNotFound},
	ErrUserAlreadyExists:     {Code: ErrUserAlreadyExists, Message: "User with this email or phone number already exists", Status: http.StatusConflict},
	ErrCustomerAlreadyExists: {Code: ErrCustomerAlreadyExists, Message: "Customer profile already exists", Status: http.StatusConflict},

	// 5xxx
	ErrUnknown:           {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrFileStorageFailed: {Code: ErrFileStorageFailed, Message: "File upload failed. Please try again.", Status: http.StatusBadGateway},
}
