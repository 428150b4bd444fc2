package link

import "sync"

// Link down reason codes. Zero means none.
const (
	ReasonNone            uint8 = 0
	ReasonNeighborUnknown uint8 = 40
	ReasonSpeedPolicy     uint8 = 57
	ReasonWidthPolicy     uint8 = 58
	ReasonTransient       uint8 = 63
)

// Link init reason codes. Codes at or above LinkInitClear are transient and
// revert to LinkInitLinkUp when the link next comes up.
const (
	LinkInitNone   uint8 = 0
	LinkInitLinkUp uint8 = 1
	LinkInitClear  uint8 = 8
)

// LinkDownReason records why the link last went down. Local and Neighbor
// latch: once either is set, later reports are dropped until Clear.
type LinkDownReason struct {
	Local        uint8
	Neighbor     uint8
	RemoteToSend uint8 // carried with the next offline request
	LatestLocal  uint8
}

// Set records a link down. LatestLocal always follows local.
func (r *LinkDownReason) Set(local, neighbor, remote uint8) {
	r.LatestLocal = local
	if r.Local != 0 || r.Neighbor != 0 {
		return
	}
	r.Local = local
	r.Neighbor = neighbor
	r.RemoteToSend = remote
}

// Clear drops the latched reasons.
func (r *LinkDownReason) Clear() {
	r.Local = 0
	r.Neighbor = 0
}

// reasonBox guards a LinkDownReason for readers outside the transition
// lock.
type reasonBox struct {
	mu sync.Mutex
	r  LinkDownReason
}

func (b *reasonBox) update(fn func(*LinkDownReason)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(&b.r)
}

func (b *reasonBox) get() LinkDownReason {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.r
}
