package transport

import "errors"

// Sentinel errors for delivery.
var (
	// ErrDelivery indicates a retryable delivery failure (network error,
	// timeout, 5xx or 429 reply).
	ErrDelivery = errors.New("transport: delivery failed")

	// ErrRejected indicates the endpoint refused the packet for good.
	ErrRejected = errors.New("transport: packet rejected")
)
