package types

// Error represents an error in the yutcp error space. Using a special type
// ensures that errors outside of this space are not accidentally introduced
type Error struct {
	string
}

// Error implements error.Error
func (e *Error) Error() string {
	return e.string
}

// Errors that can be returned by the IP layer, the TCP engine, and the ICMP
// receiver
var (
	ErrUnknownProtocol      = &Error{"unknown protocol"}
	ErrDuplicateNicId       = &Error{"duplicate nic id"}
	ErrUnknownNicId         = &Error{"unknown nic id"}
	ErrDuplicateAddress     = &Error{"duplicate address"}
	ErrNoRoute              = &Error{"no route"}
	ErrBadLinkEndpoint      = &Error{"bad link layer endpoint"}
	ErrBadLocalAddress      = &Error{"bad local address"}

	ErrNoFreePCB            = &Error{"no free pcb"}
	ErrBadDescriptor        = &Error{"bad descriptor"}
	ErrPortInUse            = &Error{"local/remote endpoint pair already in use"}
	ErrNoPortAvailable      = &Error{"no dynamic port available"}
	ErrInvalidEndpointState = &Error{"pcb is in an invalid state for this operation"}
	ErrConnectionRefused    = &Error{"connection was refused"}
	ErrDeadlineExceeded     = &Error{"retransmission deadline exceeded"}
	ErrAborted              = &Error{"operation interrupted"}
	ErrInterrupted          = &Error{"operation interrupted by signal (EINTR)"}
	ErrInvalidSegment       = &Error{"segment is malformed or fails checksum"}
)
