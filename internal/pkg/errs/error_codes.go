/*
Package errs provides custom error types and application-level error code constants.

These error codes are used to clearly identify specific business or system errors
both internally within the server and in communication with clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect (e.g., syntax error).
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1005
)

// 2xxx: Consultation, Medicine, and Prescription Business Errors
const (
	// ErrConsultationNotFound indicates that the referenced consultation room does not exist.
	ErrConsultationNotFound = 2101

	// ErrConsultationFull indicates that the consultation room already has both participants.
	ErrConsultationFull = 2102

	// ErrJoinCodeInvalid indicates that the patient join code is malformed or does not match.
	ErrJoinCodeInvalid = 2103

	// ErrSearchQueryTooShort indicates that a medicine search query is below the minimum length.
	ErrSearchQueryTooShort = 2201

	// ErrPrescriptionInvalid indicates that a prescription is missing required fields or medicines.
	ErrPrescriptionInvalid = 2301

	// ErrPrescriptionNotFound indicates that the referenced prescription does not exist.
	ErrPrescriptionNotFound = 2302

	// ErrMessageContentTooLong indicates that a chat message exceeded the maximum length limit.
	ErrMessageContentTooLong = 2401
)

// 3xxx: Doctor Account, Session, and Security Errors
const (
	// ErrInvalidEmail indicates that the supplied email address is malformed.
	ErrInvalidEmail = 3001

	// ErrInvalidPassword indicates that the supplied password fails the length policy.
	ErrInvalidPassword = 3002

	// ErrDoctorAlreadyExists indicates that a doctor account with the email already exists.
	ErrDoctorAlreadyExists = 3003

	// ErrInvalidCredentials indicates that email/password verification failed.
	ErrInvalidCredentials = 3004

	// ErrDoctorNotFound indicates that the referenced doctor account does not exist.
	ErrDoctorNotFound = 3005

	// ErrOldPasswordInvalid indicates that the current password supplied for a change is wrong.
	ErrOldPasswordInvalid = 3006

	// ErrAlreadyLoggedIn indicates that an authenticated caller attempted register/login again.
	ErrAlreadyLoggedIn = 3007

	// ErrUnauthorized indicates that the caller has no valid session.
	ErrUnauthorized = 3008

	// ErrForbidden indicates that the caller's role does not permit the operation.
	ErrForbidden = 3009
)

// 4xxx: Video Session Token Errors
const (
	// ErrVideoTokenRequest indicates that the token request is missing required fields.
	ErrVideoTokenRequest = 4001

	// ErrVideoConfiguration indicates that the video token signing configuration is incomplete.
	ErrVideoConfiguration = 4002

	// ErrVideoKeyLoad indicates that the video signing key could not be read or parsed.
	ErrVideoKeyLoad = 4003
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrFileStorageFailed indicates a failure interacting with the object storage backend.
	ErrFileStorageFailed = 5001
)
