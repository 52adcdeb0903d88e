package tenant

import "errors"

var (
	// ErrTenantNotFound is returned when no active tenant matches a subdomain.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrInvalidSubdomain is returned when the host does not contain a
	// well-formed subdomain candidate.
	ErrInvalidSubdomain = errors.New("invalid subdomain")

	// ErrNoTenantInContext is returned when a tenant context is required but absent.
	ErrNoTenantInContext = errors.New("no tenant in context")

	// ErrInactiveTenant is returned when the resolved tenant is deactivated.
	ErrInactiveTenant = errors.New("tenant is inactive")

	// ErrDecryptionFailed is returned when the stored connection target cannot
	// be decrypted. This is an internal error and is never retried.
	ErrDecryptionFailed = errors.New("connection target decryption failed")
)
