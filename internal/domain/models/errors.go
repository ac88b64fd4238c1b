package models

import "errors"

var (
	// ErrAuthRequired marks failures caused by a missing or rejected
	// credential, so callers can message it distinctly from connectivity.
	ErrAuthRequired = errors.New("authentication required")

	// ErrCatalogFull is returned when creating a new group would exceed
	// the catalog product cap. Existing groups may still be refreshed.
	ErrCatalogFull = errors.New("catalog product limit reached")

	// ErrThrottled is returned when session starts for a query exceed the
	// configured rate.
	ErrThrottled = errors.New("session start throttled")

	ErrProductNotFound = errors.New("product not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrGroupNotFound   = errors.New("group not found")
)
