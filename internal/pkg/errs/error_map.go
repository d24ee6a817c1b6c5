/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to standardize
HTTP responses and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the detailed CustomError struct corresponding to every application error code.
// The key is the error code (int), and the value contains the user message and HTTP status code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Consultation, Medicine, and Prescription Business Errors
	ErrConsultationNotFound:  {Code: ErrConsultationNotFound, Message: "Consultation not found.", Status: http.StatusNotFound},
	ErrConsultationFull:      {Code: ErrConsultationFull, Message: "This consultation already has both participants."},
	ErrJoinCodeInvalid:       {Code: ErrJoinCodeInvalid, Message: "Invalid consultation join code.", Status: http.StatusBadRequest},
	ErrSearchQueryTooShort:   {Code: ErrSearchQueryTooShort, Message: "Search query must be at least 2 characters.", Status: http.StatusBadRequest},
	ErrPrescriptionInvalid:   {Code: ErrPrescriptionInvalid, Message: "Prescription is missing required fields or medicines.", Status: http.StatusBadRequest},
	ErrPrescriptionNotFound:  {Code: ErrPrescriptionNotFound, Message: "Prescription not found.", Status: http.StatusNotFound},
	ErrMessageContentTooLong: {Code: ErrMessageContentTooLong, Message: "Message is too long."},

	// 3xxx: Doctor Account, Session, and Security Errors
	ErrInvalidEmail:        {Code: ErrInvalidEmail, Message: "Invalid email address.", Status: http.StatusBadRequest},
	ErrInvalidPassword:     {Code: ErrInvalidPassword, Message: "Invalid password.", Status: http.StatusBadRequest},
	ErrDoctorAlreadyExists: {Code: ErrDoctorAlreadyExists, Message: "An account with this email already exists."},
	ErrInvalidCredentials:  {Code: ErrInvalidCredentials, Message: "Incorrect email or password."},
	ErrDoctorNotFound:      {Code: ErrDoctorNotFound, Message: "Account not found.", Status: http.StatusNotFound},
	ErrOldPasswordInvalid:  {Code: ErrOldPasswordInvalid, Message: "Current password is incorrect."},
	ErrAlreadyLoggedIn:     {Code: ErrAlreadyLoggedIn, Message: "You are already signed in."},
	ErrUnauthorized:        {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrForbidden:           {Code: ErrForbidden, Message: "You do not have permission to do that.", Status: http.StatusForbidden},

	// 4xxx: Video Session Token Errors
	ErrVideoTokenRequest:  {Code: ErrVideoTokenRequest, Message: "Missing required fields: %s", Status: http.StatusBadRequest},
	ErrVideoConfiguration: {Code: ErrVideoConfiguration, Message: "Video service configuration error.", Status: http.StatusInternalServerError},
	ErrVideoKeyLoad:       {Code: ErrVideoKeyLoad, Message: "Video service is temporarily unavailable.", Status: http.StatusInternalServerError},

	// 5xxx: Internal System Errors
	ErrUnknown:           {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrFileStorageFailed: {Code: ErrFileStorageFailed, Message: "File upload failed. Please try again.", Status: http.StatusInternalServerError},
}
