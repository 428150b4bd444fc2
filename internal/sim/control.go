package sim

import (
	"github.com/tamzrod/lnictl/internal/csr"
	"github.com/tamzrod/lnictl/internal/firmware"
)

// Raise sets host message bits as the co-processor would.
func (a *Adapter) Raise(bits uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.raise(bits)
}

// Stall makes the next n commands never complete.
func (a *Adapter) Stall(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stall = n
}

// Busy makes the next n idle sends report flow-control busy.
func (a *Adapter) Busy(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.busy = n
}

// Freeze keeps the physical state where it is regardless of requests.
func (a *Adapter) Freeze(on bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.frozen = on
}

// SetFirmwareReady drives the firmware-ready bit. While cleared, a
// co-processor release does not bring it back.
func (a *Adapter) SetFirmwareReady(ready bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.notReady = !ready
	a.mem.Update(csr.RegCoreStatus, func(s uint64) uint64 {
		if ready && !a.held {
			return s | csr.CoreFirmwareReady
		}
		return s &^ csr.CoreFirmwareReady
	})
}

func (a *Adapter) SetCable(present bool) {
	a.mem.Update(csr.RegCoreStatus, func(s uint64) uint64 {
		if present {
			return s | csr.CoreCablePresent
		}
		return s &^ csr.CoreCablePresent
	})
}

func (a *Adapter) SetPartner(p Partner) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.partner = p
}

func (a *Adapter) SetPhysical(p csr.PhysCode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.setPhys(p)
}

func (a *Adapter) SetLogical(l csr.LogCode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.setLogical(l)
}

func (a *Adapter) SetActiveWidths(w firmware.ActiveWidths) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.widths = w
}

// SetDownReasons sets what the co-processor reports after a link down.
func (a *Adapter) SetDownReasons(r firmware.DownReasons, planned uint8) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reasons = r
	a.planned = planned
}

// SetIdle stores the last idle message of its type received from the
// partner.
func (a *Adapter) SetIdle(typ firmware.IdleType, payload uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.idle[typ] = firmware.EncodeIdle(typ, payload)
}

func (a *Adapter) SetLinkCSR(regno uint8, v uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.linkCSR[regno] = v
}

// ---- observation ----

func (a *Adapter) LinkCSR(regno uint8) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.linkCSR[regno]
}

// Config returns a field the host loaded with LoadConfig.
func (a *Adapter) Config(f firmware.Field) (uint32, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	v, ok := a.config[configKey{field: f, lane: firmware.LaneGeneral}]
	return v, ok
}

// Requests returns the physical state requests seen so far.
func (a *Adapter) Requests() []firmware.PhysRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]firmware.PhysRequest(nil), a.requests...)
}

// Commands returns the kinds of all commands staged so far, including
// stalled ones.
func (a *Adapter) Commands() []firmware.Kind {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]firmware.Kind(nil), a.commands...)
}

// SentIdle returns the idle messages the host sent.
func (a *Adapter) SentIdle() []uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]uint64(nil), a.sentIdle...)
}

// OfflineReason is the reason carried by the last offline request.
func (a *Adapter) OfflineReason() uint8 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.offline
}

// Held reports whether the co-processor is held in reset.
func (a *Adapter) Held() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.held
}
