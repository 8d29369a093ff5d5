package publisher

import "errors"

// Sentinel errors for the AMQP publisher.
var (
	ErrNoURL  = errors.New("amqp url is required")
	ErrClosed = errors.New("publisher closed")
)
