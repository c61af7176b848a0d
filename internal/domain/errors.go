package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy. The HTTP layer maps these onto status codes:
// ErrNotConfigured -> 500, ErrLocationNotFound / ErrUnsupportedRegion -> 400,
// ErrAuthDenied and *UpstreamError -> 502.
var (
	ErrNotConfigured     = errors.New("required credential is not configured")
	ErrLocationNotFound  = errors.New("location could not be resolved")
	ErrUnsupportedRegion = errors.New("location is outside the supported region")
	ErrAuthDenied        = errors.New("provider rejected credentials")
)

// UpstreamError wraps a transport or HTTP failure from an external provider.
type UpstreamError struct {
	Service string
	Status  int // 0 when the request never got a response
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: upstream status %d: %v", e.Service, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: upstream failure: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Upstream builds an UpstreamError; auth rejections carry ErrAuthDenied so
// callers can match the subtype with errors.Is.
func Upstream(service string, status int, err error) *UpstreamError {
	return &UpstreamError{Service: service, Status: status, Err: err}
}

// IsValidation reports whether err is caused by bad user input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrLocationNotFound) || errors.Is(err, ErrUnsupportedRegion)
}
