// Package common defines sentinel errors shared by the catalog, queue, worker
// and retention layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Queue errors.
	ErrMalformedJob     = errors.New("malformed job")
	ErrQueueUnavailable = errors.New("queue unavailable")

	// Producer errors.
	ErrRateLimited = errors.New("rate limit exceeded")
	ErrStorageFull = errors.New("storage limit reached")

	// Delivery errors.
	ErrDeliveryDisabled = errors.New("delivery disabled")
)
