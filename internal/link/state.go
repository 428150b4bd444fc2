// Package link brings a fabric port from down to active: the host link
// state machine, verify-capability negotiation, and the handlers for the
// co-processor's host messages.
package link

import "fmt"

// LinkState is the host's view of the port. Exactly one is current.
type LinkState int32

const (
	UpInit LinkState = iota
	UpArmed
	UpActive
	DownDefault
	DownPoll
	DownDisable
	DownOffline
	VerifyCap
	GoingUp
	GoingOffline
	LinkCooldown
)

var stateNames = [...]string{
	UpInit:       "UpInit",
	UpArmed:      "UpArmed",
	UpActive:     "UpActive",
	DownDefault:  "DownDefault",
	DownPoll:     "DownPoll",
	DownDisable:  "DownDisable",
	DownOffline:  "DownOffline",
	VerifyCap:    "VerifyCap",
	GoingUp:      "GoingUp",
	GoingOffline: "GoingOffline",
	LinkCooldown: "LinkCooldown",
}

// AllStates lists every LinkState.
var AllStates = []LinkState{
	UpInit, UpArmed, UpActive,
	DownDefault, DownPoll, DownDisable, DownOffline,
	VerifyCap, GoingUp, GoingOffline, LinkCooldown,
}

func (s LinkState) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("LinkState(%d)", int32(s))
}

// IsUp reports whether the logical link is up.
func IsUp(s LinkState) bool {
	switch s {
	case UpInit, UpArmed, UpActive:
		return true
	}
	return false
}

// IsDown reports whether the link is in one of the settled down states.
func IsDown(s LinkState) bool {
	switch s {
	case DownDefault, DownPoll, DownDisable, DownOffline:
		return true
	}
	return false
}

// legal reports whether target may be requested from cur. direct allows
// UpInit straight from DownPoll. Re-entry is handled by the caller.
func legal(cur, target LinkState, direct bool) bool {
	switch target {
	case DownOffline, DownDefault:
		return true
	case DownPoll:
		return cur == DownOffline || cur == DownDisable || cur == DownPoll
	case DownDisable:
		return cur == DownOffline || cur == DownDisable
	case VerifyCap:
		return cur == DownPoll
	case GoingUp:
		return cur == VerifyCap
	case UpInit:
		return cur == GoingUp || (direct && cur == DownPoll)
	case UpArmed:
		return cur == UpInit
	case UpActive:
		return cur == UpArmed
	}
	// GoingOffline and LinkCooldown are only passed through by the offline
	// sequence.
	return false
}

// PhysState is the physical port state reported to upper layers.
type PhysState uint8

const (
	PhysUnknown       PhysState = 0
	PhysSleep         PhysState = 1
	PhysPolling       PhysState = 2
	PhysDisabled      PhysState = 3
	PhysTraining      PhysState = 4
	PhysLinkUp        PhysState = 5
	PhysErrorRecovery PhysState = 6
	PhysOffline       PhysState = 9
)

func (p PhysState) String() string {
	switch p {
	case PhysSleep:
		return "sleep"
	case PhysPolling:
		return "polling"
	case PhysDisabled:
		return "disabled"
	case PhysTraining:
		return "training"
	case PhysLinkUp:
		return "linkup"
	case PhysErrorRecovery:
		return "error recovery"
	case PhysOffline:
		return "offline"
	}
	return "unknown"
}

// LogState is the logical port state reported to upper layers.
type LogState uint8

const (
	LogDown   LogState = 1
	LogInit   LogState = 2
	LogArmed  LogState = 3
	LogActive LogState = 4
)

func (l LogState) String() string {
	switch l {
	case LogDown:
		return "down"
	case LogInit:
		return "init"
	case LogArmed:
		return "armed"
	case LogActive:
		return "active"
	}
	return fmt.Sprintf("LogState(%d)", uint8(l))
}

// physFor maps a host link state to the physical state upper layers see.
func physFor(s LinkState) PhysState {
	switch s {
	case UpInit, UpArmed, UpActive:
		return PhysLinkUp
	case DownPoll:
		return PhysPolling
	case DownDisable:
		return PhysDisabled
	case DownOffline, GoingOffline, LinkCooldown:
		return PhysOffline
	case VerifyCap, GoingUp:
		return PhysTraining
	}
	return PhysUnknown
}

func logFor(s LinkState) LogState {
	switch s {
	case UpInit:
		return LogInit
	case UpArmed:
		return LogArmed
	case UpActive:
		return LogActive
	}
	return LogDown
}
