// internal/poller/types.go
package poller

import "time"

// Source is the one register the poller reads.
// Reading acknowledges: bits returned once are not returned again.
type Source interface {
	HostMessages() (uint64, error)
}

// PollResult is a snapshot produced by one poll cycle.
type PollResult struct {
	PortID string
	At     time.Time

	// Bits are the host message bits latched since the last poll.
	// Zero means nothing pending.
	Bits uint64

	Err error // non-nil means the poll cycle failed
}
