package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Authentication errors
	ErrAuthFailure        = fmt.Errorf("authentication failed")
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrAuthFailure)
	ErrProviderRejected   = fmt.Errorf("%w: rejected by identity provider", ErrAuthFailure)
	ErrNotAuthenticated   = fmt.Errorf("not authenticated")

	// Transport and payload errors
	ErrNetworkFailure     = fmt.Errorf("network failure")
	ErrParseFailure       = fmt.Errorf("malformed detection payload")
	ErrServiceUnavailable = fmt.Errorf("%w: service unavailable", ErrNetworkFailure)
	ErrRequestRejected    = fmt.Errorf("request rejected")

	// Input validation errors
	ErrValidation      = fmt.Errorf("validation failed")
	ErrEmptyAddress    = fmt.Errorf("%w: server address is required", ErrValidation)
	ErrMissingArgument = fmt.Errorf("%w: missing required argument", ErrValidation)
	ErrInvalidArgument = fmt.Errorf("%w: invalid argument", ErrValidation)
)
