package mqtt

import "errors"

var (
	// ErrNotConnected is returned while the broker connection is down.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed is returned when the first connection attempt fails.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed wraps broker-side or timeout failures of Publish.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrInvalidMessage is returned for an empty or wildcard topic, a QoS
	// above 2 or an oversized payload.
	ErrInvalidMessage = errors.New("mqtt: invalid message")
)
