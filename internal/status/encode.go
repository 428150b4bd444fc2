// internal/status/encode.go
package status

// Encode converts a Snapshot into a full port status block.
// Layout is protocol-locked. Name slots are left zero.
// No IO. No side effects.
func Encode(s Snapshot) []uint16 {
	regs := make([]uint16, SlotsPerPort)

	regs[SlotHealthCode] = s.Health
	regs[SlotLastErrorCode] = s.LastErrorCode
	regs[SlotSecondsInError] = s.SecondsInError
	regs[SlotLinkState] = s.LinkState
	regs[SlotPhysState] = s.PhysState
	regs[SlotLogState] = s.LogState
	regs[SlotSpeed] = s.Speed
	regs[SlotWidths] = s.Widths
	regs[SlotCRCMode] = s.CRCMode
	regs[SlotNeighborReason] = s.NeighborReason
	regs[SlotChannelHealth] = s.ChannelHealth
	regs[SlotLinkUps] = s.LinkUps
	regs[SlotLinkDowns] = s.LinkDowns

	return regs
}

// EncodeName packs up to 16 ASCII characters into the 8 name registers.
// Each register stores two ASCII bytes in big-endian order.
func EncodeName(name string) []uint16 {
	out := make([]uint16, SlotDeviceNameSlots)

	b := []byte(name)
	if len(b) > DeviceNameMaxChars {
		b = b[:DeviceNameMaxChars]
	}

	// sanitize to printable ASCII
	for i := 0; i < len(b); i++ {
		if b[i] < 0x20 || b[i] > 0x7E {
			b[i] = '?'
		}
	}

	for i := 0; i < DeviceNameMaxChars; i += 2 {
		var hi, lo byte
		if i < len(b) {
			hi = b[i]
		}
		if i+1 < len(b) {
			lo = b[i+1]
		}
		out[i/2] = uint16(hi)<<8 | uint16(lo)
	}

	return out
}
