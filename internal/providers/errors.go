package providers

import (
	"errors"
	"fmt"
)

// Error categories a caller can match with errors.Is. Each APIError wraps
// exactly one of these based on the HTTP status the provider returned.
var (
	ErrAuthentication      = errors.New("authentication failed")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrBadResponse         = errors.New("invalid response format")
)

// APIError is an error returned by a provider API.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s api error %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s api error: %s", e.Provider, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrAuthentication:
		return e.StatusCode == 401 || e.StatusCode == 403
	case ErrInsufficientCredits:
		return e.StatusCode == 402
	case ErrRateLimited:
		return e.StatusCode == 429
	}
	return false
}

// NewAPIError builds an APIError from a provider response status.
func NewAPIError(provider string, status int, message string) *APIError {
	return &APIError{Provider: provider, StatusCode: status, Message: message}
}

// ValidationError reports an invalid request parameter before any call is made.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s=%s: %s", e.Field, e.Value, e.Message)
}
