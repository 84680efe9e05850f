package tcp

import "time"

const (
	// pcbTableSize is the fixed number of connection control blocks
	pcbTableSize = 16

	// dynamicPortMin and dynamicPortMax bound the range scanned for an
	// unspecified local port on an active open
	dynamicPortMin = 49152
	dynamicPortMax = 65535

	// recvBufSize is the size, in bytes, of each PCB's receive buffer
	recvBufSize = 65535

	// initialRTO is the retransmission timeout assigned to a newly queued
	// segment
	initialRTO = 200 * time.Millisecond

	// retransDeadline is the total time a queue entry may go unacknowledged
	// before the connection is forced closed
	retransDeadline = 12 * time.Second

	// tickInterval is the period of the retransmission timer
	tickInterval = 100 * time.Millisecond

	// ipHeaderMinSize and tcpHeaderMinSize are used to compute MSS on
	// transition to ESTABLISHED
	ipHeaderMinSize  = 20
	tcpHeaderMinSize = 20
)
