package influxdb

import "errors"

var (
	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrConnectionFailed wraps ping failures during Connect.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected is returned by operations on a closed or zero Client.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrQueryFailed wraps Flux query and result decoding failures.
	ErrQueryFailed = errors.New("influxdb: history query failed")
)
