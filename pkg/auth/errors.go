package auth

import "fmt"

// AuthError is returned when a token could not be obtained.
type AuthError struct {
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode != 0:
		return fmt.Sprintf("auth error (status %d): %s: %v", e.StatusCode, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("auth error: %s: %v", e.Message, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("auth error (status %d): %s", e.StatusCode, e.Message)
	default:
		return "auth error: " + e.Message
	}
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *AuthError) Unwrap() error {
	return e.Err
}
