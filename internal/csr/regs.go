// Package csr is the adapter register map seen by the link layer: the
// co-processor command registers, link state registers, host message
// register and the few status bits the link layer consults.
package csr

import "fmt"

// Register offsets.
const (
	RegCmdStage   uint32 = 0x00 // host command stage
	RegCmdStatus  uint32 = 0x01 // co-processor command completion
	RegCmdExtIn   uint32 = 0x02 // high input bits for wide writes
	RegCmdExtOut  uint32 = 0x03 // high response bits for wide reads
	RegPhysState  uint32 = 0x04
	RegLogState   uint32 = 0x05 // read: current; write: requested
	RegHostMsg    uint32 = 0x06 // write 1 to clear
	RegCoreReset  uint32 = 0x07
	RegCoreStatus uint32 = 0x08
)

// RegCmdStage layout.
const (
	StageTypeMask  = 0xff
	StageNew       = 1 << 8
	StageDataShift = 16
	StageDataMask  = 1<<48 - 1
)

// RegCmdStatus layout.
const (
	StatusCompleted = 1 << 0
	StatusCodeShift = 8
	StatusCodeMask  = 0xff
	StatusDataShift = 16
	StatusDataMask  = 1<<48 - 1
)

// Wide link CSR transfers carry their top bits in the extension registers.
const (
	ExtOutShift = 48
	ExtOutMask  = 0xffff
)

// RegCoreReset and RegCoreStatus bits.
const (
	CoreHoldReset     = 1 << 0
	CoreFirmwareReady = 1 << 0
	CoreCablePresent  = 1 << 1
)

// PhysCode is the physical link state reported by the co-processor.
type PhysCode uint8

const (
	PhysPolling     PhysCode = 0x20
	PhysDisabled    PhysCode = 0x30
	PhysTraining    PhysCode = 0x40
	PhysVerifyCap   PhysCode = 0x44 // waiting for verify-capability frames
	PhysLinkUp      PhysCode = 0x50
	PhysErrRecovery PhysCode = 0x60
	PhysOffline     PhysCode = 0x90
)

// Major strips the substate nibble. Polling, Training and Offline
// report substates in the low nibble.
func (p PhysCode) Major() PhysCode {
	if p == PhysVerifyCap {
		return p
	}
	return p & 0xf0
}

// LogCode is the logical port state.
type LogCode uint8

const (
	LogDown   LogCode = 1
	LogInit   LogCode = 2
	LogArmed  LogCode = 3
	LogActive LogCode = 4
)

func (l LogCode) String() string {
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
	return fmt.Sprintf("logical(%d)", uint8(l))
}

// Host message bits raised by the co-processor in RegHostMsg.
const (
	MsgHostReqDone         uint64 = 1 << 0
	MsgSMA                 uint64 = 1 << 1
	MsgLinkupAchieved      uint64 = 1 << 2
	MsgExtDeviceCfgReq     uint64 = 1 << 3
	MsgVerifyCapFrame      uint64 = 1 << 4
	MsgLinkGoingDown       uint64 = 1 << 5
	MsgLinkWidthDowngraded uint64 = 1 << 6
	MsgFailedLNI           uint64 = 1 << 16
)

// Link-layer registers owned by the co-processor, reached through the
// ReadLinkCSR/WriteLinkCSR commands.
const (
	LCBCRCMode      uint8 = 0x10
	LCBRoundTripLTP uint8 = 0x21
)
