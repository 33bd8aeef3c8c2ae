package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrSessionExpired     = errors.New("session expired, sign in again")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrTwoFactorRequired  = errors.New("two-factor code required")
	ErrAccountLocked      = errors.New("account is temporarily locked")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrForbidden          = errors.New("forbidden")
	ErrRateLimited        = errors.New("rate limit exceeded")
)

// APIError is a failure envelope returned by the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

// Unwrap exposes the matching sentinel so callers can use errors.Is.
func (e *APIError) Unwrap() error {
	switch {
	case e.Code == "two_factor_required":
		return ErrTwoFactorRequired
	case e.Code == "account_disabled":
		return ErrAccountDisabled
	case e.StatusCode == http.StatusUnauthorized:
		return ErrInvalidCredentials
	case e.StatusCode == http.StatusLocked:
		return ErrAccountLocked
	case e.StatusCode == http.StatusForbidden:
		return ErrForbidden
	case e.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return nil
}
