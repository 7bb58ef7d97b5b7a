package auth

import "errors"

// Failure taxonomy. The HTTP layer maps these to status codes; cryptographic
// failures are collapsed before they reach a client so the error channel
// cannot be used as a verification oracle.
var (
	ErrInvalidCredentials    = errors.New("auth: invalid credentials")
	ErrOrganizationSuspended = errors.New("auth: organization suspended")

	ErrInvalidSignature = errors.New("auth: invalid token signature")
	ErrExpired          = errors.New("auth: token expired")
	ErrMalformedToken   = errors.New("auth: malformed token")

	ErrUnknownToken  = errors.New("auth: unknown refresh token")
	ErrReuseDetected = errors.New("auth: refresh token reuse detected")

	ErrPermissionDenied = errors.New("auth: permission denied")

	ErrNotFound = errors.New("auth: not found")
	ErrConflict = errors.New("auth: resource conflict")
)
