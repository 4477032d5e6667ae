package constant

import "errors"

// Error taxonomy. Concrete failures wrap one of these with %w so callers can
// classify them with errors.Is.
var (
	// ErrConfig is a missing or unparseable definition. Fatal at startup,
	// recoverable at reload by keeping the previous value.
	ErrConfig = errors.New("configuration error")
	// ErrTransport covers link-open failures, timeouts and malformed frames.
	ErrTransport = errors.New("transport error")
	// ErrProtocol is a negative (exception) response from the device.
	ErrProtocol = errors.New("protocol exception")
	// ErrDecode is a register count that does not fit the decode type.
	ErrDecode = errors.New("decode error")
	// ErrSinkWrite is an opaque failure of a downstream sink.
	ErrSinkWrite = errors.New("sink write error")
	// ErrCycle is anything else escaping one poll cycle.
	ErrCycle = errors.New("cycle error")
)

var (
	ErrDeviceType      = errors.New("unsupported transport")
	ErrSinkType        = errors.New("unsupported sink type")
	ErrSessionClosed   = errors.New("session closed")
	ErrLinkBusy        = errors.New("link already held by another session")
	ErrSinkWriteActive = errors.New("previous write still in flight")
)

