package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrUnauthenticated indicates the request carries no live session.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrTenantMismatch occurs when a request names a tenant or user other than the session's.
	ErrTenantMismatch = errors.New("session does not match requested tenant")
)
