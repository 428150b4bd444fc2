// internal/writer/types.go
package writer

import "github.com/tamzrod/lnictl/internal/status"

// StatusPlan locates one port's block inside status memory.
type StatusPlan struct {
	Endpoint   string
	UnitID     uint8
	BaseSlot   uint16
	DeviceName string
}

// Plan is the fully-built write plan for one port.
type Plan struct {
	PortID string
	Status *StatusPlan // nil: status memory disabled for this port
}

// StatusWriter is the delivery-only contract for port status.
// It receives a snapshot and writes it verbatim.
// No logic, no interpretation.
type StatusWriter interface {
	WriteStatus(s status.Snapshot) error
}
