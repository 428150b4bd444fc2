package firmware

import "fmt"

// Field is a configuration field index understood by LoadConfig/ReadConfig.
type Field uint8

const (
	FieldTxSettings        Field = 0x06
	FieldLocalFabric       Field = 0x08
	FieldLocalLinkMode     Field = 0x09
	FieldLocalDeviceID     Field = 0x0a
	FieldRemotePhy         Field = 0x0b
	FieldRemoteFabric      Field = 0x0c
	FieldRemoteLinkWidth   Field = 0x0d
	FieldRemoteDeviceID    Field = 0x0e
	FieldCreditAllocation  Field = 0x0f
	FieldActiveWidths      Field = 0x10
	FieldLinkDownReason    Field = 0x11
	FieldPlannedDownReason Field = 0x12
)

// CRCMask is a set of CRC modes a port can run.
type CRCMask uint8

const (
	CRC14B     CRCMask = 1 << 0
	CRC48B     CRCMask = 1 << 1
	CRCPerLane CRCMask = 1 << 2
	CRC16B     CRCMask = 1 << 3
)

// CRCMode is the CRC mode selected for the active link.
type CRCMode uint8

const (
	CRCMode16B     CRCMode = 0
	CRCMode14B     CRCMode = 1
	CRCMode48B     CRCMode = 2
	CRCModePerLane CRCMode = 3
)

func (m CRCMode) String() string {
	switch m {
	case CRCMode16B:
		return "16b"
	case CRCMode14B:
		return "14b"
	case CRCMode48B:
		return "48b"
	case CRCModePerLane:
		return "per-lane"
	}
	return fmt.Sprintf("crc(%d)", uint8(m))
}

// Mask returns the single-mode mask for m.
func (m CRCMode) Mask() CRCMask {
	switch m {
	case CRCMode14B:
		return CRC14B
	case CRCMode48B:
		return CRC48B
	case CRCModePerLane:
		return CRCPerLane
	}
	return CRC16B
}

// SpeedMask is a set of lane rates.
type SpeedMask uint8

const (
	Speed12G5 SpeedMask = 1 << 0
	Speed25G  SpeedMask = 1 << 1
	Speed50G  SpeedMask = 1 << 2
)

func (s SpeedMask) String() string {
	switch s {
	case Speed12G5:
		return "12.5G"
	case Speed25G:
		return "25G"
	case Speed50G:
		return "50G"
	case 0:
		return "none"
	}
	return fmt.Sprintf("speeds(0x%x)", uint8(s))
}

// WidthMask is a set of lane widths.
type WidthMask uint8

const (
	Width1X WidthMask = 1 << 0
	Width2X WidthMask = 1 << 1
	Width3X WidthMask = 1 << 2
	Width4X WidthMask = 1 << 3

	WidthAll = Width1X | Width2X | Width3X | Width4X
)

// Lanes returns the lane count of the widest width in w.
func (w WidthMask) Lanes() int {
	for i := 3; i >= 0; i-- {
		if w&(1<<i) != 0 {
			return i + 1
		}
	}
	return 0
}

// Fabric is the fabric parameter frame exchanged during verify-capability.
type Fabric struct {
	VAU         uint8   // allocation unit, 3 bits
	Z           bool    // shared credit limit applies
	VCU         uint8   // credit unit, 3 bits
	VL15Credits uint16  // 12 bits
	CRC         CRCMask // supported or enabled modes, 4 bits
}

// Pack lays f out as vau 0..2, z 3, vcu 4..6, vl15 8..19, crc 20..23.
func (f Fabric) Pack() uint32 {
	return uint32(f.VAU&0x7) |
		b2u(f.Z)<<3 |
		uint32(f.VCU&0x7)<<4 |
		uint32(f.VL15Credits&0xfff)<<8 |
		uint32(f.CRC&0xf)<<20
}

func UnpackFabric(v uint32) Fabric {
	return Fabric{
		VAU:         uint8(v & 0x7),
		Z:           v>>3&1 != 0,
		VCU:         uint8(v >> 4 & 0x7),
		VL15Credits: uint16(v >> 8 & 0xfff),
		CRC:         CRCMask(v >> 20 & 0xf),
	}
}

// LinkModeFlags are the feature bits carried in link mode frames.
type LinkModeFlags uint8

const (
	FlagRoundTripLTP LinkModeFlags = 1 << 0
)

// LinkMode is the link-width/rate frame. The local frame leaves MaxRate
// zero; the remote reports its fastest rate there, 0 meaning 50G.
type LinkMode struct {
	MaxRate uint8
	Flags   LinkModeFlags
	Widths  WidthMask
}

func (m LinkMode) Pack() uint32 {
	return uint32(m.MaxRate&0xf) | uint32(m.Flags)<<8 | uint32(m.Widths&0xf)<<16
}

func UnpackLinkMode(v uint32) LinkMode {
	return LinkMode{
		MaxRate: uint8(v & 0xf),
		Flags:   LinkModeFlags(v >> 8),
		Widths:  WidthMask(v >> 16 & 0xf),
	}
}

// DeviceID identifies a link partner.
type DeviceID struct {
	ID  uint16
	Rev uint8
}

func (d DeviceID) String() string { return fmt.Sprintf("0x%04x rev %d", d.ID, d.Rev) }

func (d DeviceID) Pack() uint32 { return uint32(d.ID)<<8 | uint32(d.Rev) }

func UnpackDeviceID(v uint32) DeviceID {
	return DeviceID{ID: uint16(v >> 8), Rev: uint8(v)}
}

// ActiveWidths is the lane-width report after link up or a downgrade.
type ActiveWidths struct {
	Tx, Rx                   WidthMask
	DowngradeTx, DowngradeRx WidthMask
}

func (a ActiveWidths) Pack() uint32 {
	return uint32(a.Tx&0xf) | uint32(a.Rx&0xf)<<8 |
		uint32(a.DowngradeTx&0xf)<<16 | uint32(a.DowngradeRx&0xf)<<24
}

func UnpackActiveWidths(v uint32) ActiveWidths {
	return ActiveWidths{
		Tx:          WidthMask(v & 0xf),
		Rx:          WidthMask(v >> 8 & 0xf),
		DowngradeTx: WidthMask(v >> 16 & 0xf),
		DowngradeRx: WidthMask(v >> 24 & 0xf),
	}
}

// CreditAllocation programs the VL15 buffer and remote credit table.
type CreditAllocation struct {
	VAU, VCU    uint8
	Z           bool
	VL15Credits uint16
}

// Pack lays c out as vl15 0..11, vau 12..14, z 15, vcu 16..18.
func (c CreditAllocation) Pack() uint32 {
	return uint32(c.VL15Credits&0xfff) | uint32(c.VAU&0x7)<<12 | b2u(c.Z)<<15 | uint32(c.VCU&0x7)<<16
}

func UnpackCreditAllocation(v uint32) CreditAllocation {
	return CreditAllocation{
		VL15Credits: uint16(v & 0xfff),
		VAU:         uint8(v >> 12 & 0x7),
		Z:           v>>15&1 != 0,
		VCU:         uint8(v >> 16 & 0x7),
	}
}

// TxSettings carries the enabled speeds in the low byte and the enabled CRC
// modes in the next.
type TxSettings struct {
	Speeds SpeedMask
	CRC    CRCMask
}

func (t TxSettings) Pack() uint32 { return uint32(t.Speeds&0x7) | uint32(t.CRC&0xf)<<8 }

func UnpackTxSettings(v uint32) TxSettings {
	return TxSettings{Speeds: SpeedMask(v & 0x7), CRC: CRCMask(v >> 8 & 0xf)}
}

// DownReasons is the link down reason frame: local in the low byte,
// neighbor in the next.
type DownReasons struct {
	Local, Neighbor uint8
}

func (r DownReasons) Pack() uint32 { return uint32(r.Local) | uint32(r.Neighbor)<<8 }

func UnpackDownReasons(v uint32) DownReasons {
	return DownReasons{Local: uint8(v), Neighbor: uint8(v >> 8)}
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
