// Package device provides the low-level transports used to reach an AD2
// adapter: a local serial port or a TCP socket (ser2sock). Both expose
// the same line-oriented contract consumed by the decoder.
package device

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoDevice indicates the device could not be located or opened.
	ErrNoDevice = errors.New("no device available")

	// ErrTimeout indicates a bounded read elapsed without producing a
	// full line. It is retryable, unlike a CommError.
	ErrTimeout = errors.New("timeout waiting for data")
)

// CommError wraps an underlying transport I/O failure. It is typically
// fatal to the session.
type CommError struct {
	Op  string
	Err error
}

func (e *CommError) Error() string {
	return fmt.Sprintf("communication error during %s: %v", e.Op, e.Err)
}

func (e *CommError) Unwrap() error {
	return e.Err
}

// Device is the transport contract consumed by the decoder. ReadLine and
// Write are independent directions; only one reader loop may exist per
// open device.
type Device interface {
	// ID identifies the device, e.g. a port path or host:port.
	ID() string

	// Open establishes the connection. Returns ErrNoDevice (possibly
	// wrapped) when the device cannot be reached.
	Open() error

	// Close tears the connection down. Safe to call more than once.
	Close() error

	// Write sends raw bytes to the adapter and reports how many were
	// written.
	Write(data []byte) (int, error)

	// Read returns a single character, or an empty string when no data
	// is ready within the poll interval.
	Read() (string, error)

	// ReadLine blocks up to timeout for a complete CR/LF-terminated
	// line and returns it with the terminator stripped. A timeout of
	// zero waits indefinitely. purge discards any partially
	// accumulated line first. Returns ErrTimeout when the deadline
	// elapses, or a *CommError on I/O failure.
	ReadLine(timeout time.Duration, purge bool) (string, error)

	// Purge discards buffered input and output.
	Purge() error
}

// pollInterval bounds each individual blocking read so that timeouts and
// shutdown are observed promptly.
const pollInterval = 500 * time.Millisecond

// keepByte reports whether a protocol stream byte should be kept. The
// adapter occasionally emits control characters that are not part of any
// message.
func keepByte(b byte) bool {
	return b >= 0x20 && b != 0x7F
}
