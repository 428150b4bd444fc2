// Package sim models an adapter at register level: the co-processor
// answering host commands, the link state registers, and a link partner
// whose capabilities feed verify-capability. Ports configured with the
// "sim" endpoint and the link tests run against it.
package sim

import (
	"log/slog"
	"sync"

	"github.com/tamzrod/lnictl/internal/csr"
	"github.com/tamzrod/lnictl/internal/firmware"
	"github.com/tamzrod/lnictl/internal/regbus"
)

// Partner is what the far end of the link advertises.
type Partner struct {
	Fabric   firmware.Fabric
	LinkMode firmware.LinkMode
	DeviceID firmware.DeviceID
	PhyRev   uint32
}

// DefaultPartner advertises every CRC mode, 50G and all widths.
func DefaultPartner() Partner {
	return Partner{
		Fabric: firmware.Fabric{
			VAU:         3,
			VCU:         0,
			VL15Credits: 0x40,
			CRC:         firmware.CRC14B | firmware.CRC48B | firmware.CRC16B,
		},
		LinkMode: firmware.LinkMode{
			MaxRate: 0,
			Widths:  firmware.WidthAll,
			Flags:   firmware.FlagRoundTripLTP,
		},
		DeviceID: firmware.DeviceID{ID: 0x24f0, Rev: 1},
		PhyRev:   0x0102,
	}
}

// Options configure a new Adapter.
type Options struct {
	Partner Partner
	// AutoTrain walks the physical link through training on its own:
	// Polling reaches VerifyCap and raises VerifyCapFrame, a LinkUp request
	// reaches LinkUp/Init and raises LinkupAchieved.
	AutoTrain bool
	// NoCable starts the adapter with the module-present bit clear.
	NoCable bool
	Log     *slog.Logger
}

type configKey struct {
	field firmware.Field
	lane  uint8
}

// Adapter is a simulated adapter. All register traffic goes through Bus.
type Adapter struct {
	mem *regbus.Memory
	log *slog.Logger

	mu        sync.Mutex
	partner   Partner
	autoTrain bool
	config    map[configKey]uint32
	linkCSR   map[uint8]uint64
	idle      map[firmware.IdleType]uint64
	sentIdle  []uint64
	requests  []firmware.PhysRequest
	commands  []firmware.Kind
	widths    firmware.ActiveWidths
	reasons   firmware.DownReasons
	planned   uint8
	offline   uint8 // reason sent with the last offline request
	pending   uint64
	logical   csr.LogCode
	stall     int
	busy      int
	frozen    bool
	held      bool
	notReady  bool
}

func New(opts Options) *Adapter {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	a := &Adapter{
		mem:       regbus.NewMemory(),
		log:       log.With("component", "sim"),
		partner:   opts.Partner,
		autoTrain: opts.AutoTrain,
		config:    make(map[configKey]uint32),
		linkCSR:   make(map[uint8]uint64),
		idle:      make(map[firmware.IdleType]uint64),
		logical:   csr.LogDown,
		widths: firmware.ActiveWidths{
			Tx: firmware.Width4X,
			Rx: firmware.Width4X,
		},
	}
	if a.partner == (Partner{}) {
		a.partner = DefaultPartner()
	}

	a.mem.Poke(csr.RegPhysState, uint64(csr.PhysOffline))
	a.mem.Poke(csr.RegLogState, uint64(csr.LogDown))
	status := uint64(csr.CoreFirmwareReady)
	if !opts.NoCable {
		status |= csr.CoreCablePresent
	}
	a.mem.Poke(csr.RegCoreStatus, status)

	a.mem.OnWrite(csr.RegCmdStage, a.onStage)
	a.mem.OnWrite(csr.RegLogState, a.onLogState)
	a.mem.OnWrite(csr.RegHostMsg, a.onHostMsg)
	a.mem.OnWrite(csr.RegCoreReset, a.onCoreReset)
	return a
}

// Bus returns the adapter's register file.
func (a *Adapter) Bus() regbus.Bus { return a.mem }

// Memory exposes the register file for direct inspection.
func (a *Adapter) Memory() *regbus.Memory { return a.mem }

// ---- register hooks ----

func (a *Adapter) onStage(m *regbus.Memory, _ uint32, v uint64) {
	if v&csr.StageNew == 0 {
		m.Poke(csr.RegCmdStatus, 0)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	kind := firmware.Kind(v & csr.StageTypeMask)
	in := v >> csr.StageDataShift & csr.StageDataMask
	a.commands = append(a.commands, kind)

	if a.held {
		return
	}
	if a.stall > 0 {
		a.stall--
		a.log.Debug("stalling command", "kind", kind)
		return
	}

	code, out := a.execute(kind, in)
	a.log.Debug("command", "kind", kind, "in", in, "code", code, "out", out)
	if kind == firmware.KindReadLinkCSR {
		m.Poke(csr.RegCmdExtOut, out>>csr.ExtOutShift&csr.ExtOutMask)
	}
	m.Poke(csr.RegCmdStatus, csr.StatusCompleted|
		uint64(code)<<csr.StatusCodeShift|
		(out&csr.StatusDataMask)<<csr.StatusDataShift)
}

func (a *Adapter) onLogState(m *regbus.Memory, _ uint32, v uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	want := csr.LogCode(v & 0x7)
	switch {
	case want == csr.LogDown:
		a.logical = csr.LogDown
	case want == csr.LogArmed && a.logical == csr.LogInit:
		a.logical = csr.LogArmed
	case want == csr.LogActive && a.logical == csr.LogArmed:
		a.logical = csr.LogActive
	}
	m.Poke(csr.RegLogState, uint64(a.logical))
}

func (a *Adapter) onHostMsg(m *regbus.Memory, _ uint32, v uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending &^= v
	m.Poke(csr.RegHostMsg, a.pending)
}

func (a *Adapter) onCoreReset(m *regbus.Memory, _ uint32, v uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.held = v&csr.CoreHoldReset != 0
	ready := !a.held && !a.notReady
	m.Update(csr.RegCoreStatus, func(s uint64) uint64 {
		if ready {
			return s | csr.CoreFirmwareReady
		}
		return s &^ csr.CoreFirmwareReady
	})
}

// ---- co-processor model ----

func (a *Adapter) execute(kind firmware.Kind, in uint64) (firmware.ReturnCode, uint64) {
	switch kind {
	case firmware.KindLoadConfig:
		k := configKey{field: firmware.Field(in >> 40), lane: uint8(in >> 32)}
		a.config[k] = uint32(in)
		return firmware.RetSuccess, 0

	case firmware.KindReadConfig:
		v, ok := a.readConfig(firmware.Field(in>>40), uint8(in>>32))
		if !ok {
			return firmware.RetInvalidArgs, 0
		}
		return firmware.RetSuccess, uint64(v)

	case firmware.KindChangePhyState:
		req := firmware.PhysRequest(in & 0xff)
		a.requests = append(a.requests, req)
		if req == firmware.ReqOffline {
			a.offline = uint8(in >> 8)
		}
		if !a.frozen {
			a.changePhys(req)
		}
		return firmware.RetSuccess, 0

	case firmware.KindSendIdle:
		if a.busy > 0 {
			a.busy--
			return firmware.RetFlowControlBusy, 0
		}
		a.sentIdle = append(a.sentIdle, in)
		return firmware.RetSuccess, 0

	case firmware.KindReadIdle:
		return firmware.RetSuccess, a.idle[firmware.IdleType(in&0xff)]

	case firmware.KindReadLinkCSR:
		return firmware.RetSuccess, a.linkCSR[uint8(in)]

	case firmware.KindWriteLinkCSR:
		ext := a.mem.Peek(csr.RegCmdExtIn)
		a.linkCSR[uint8(in)] = in>>8&(1<<40-1) | ext<<40
		return firmware.RetSuccess, 0

	case firmware.KindMisc, firmware.KindInterfaceTest:
		return firmware.RetSuccess, 0
	}
	return firmware.RetNotSupported, 0
}

func (a *Adapter) readConfig(f firmware.Field, lane uint8) (uint32, bool) {
	switch f {
	case firmware.FieldRemoteFabric:
		return a.partner.Fabric.Pack(), true
	case firmware.FieldRemoteLinkWidth:
		return a.partner.LinkMode.Pack(), true
	case firmware.FieldRemoteDeviceID:
		return a.partner.DeviceID.Pack(), true
	case firmware.FieldRemotePhy:
		return a.partner.PhyRev, true
	case firmware.FieldActiveWidths:
		return a.widths.Pack(), true
	case firmware.FieldLinkDownReason:
		return a.reasons.Pack(), true
	case firmware.FieldPlannedDownReason:
		return uint32(a.planned), true
	}
	v, ok := a.config[configKey{field: f, lane: lane}]
	return v, ok
}

func (a *Adapter) changePhys(req firmware.PhysRequest) {
	switch req {
	case firmware.ReqOffline:
		a.setPhys(csr.PhysOffline)
		a.setLogical(csr.LogDown)
	case firmware.ReqDisabled:
		a.setPhys(csr.PhysDisabled)
	case firmware.ReqPolling:
		a.setPhys(csr.PhysPolling)
		if a.autoTrain {
			a.setPhys(csr.PhysVerifyCap)
			a.raise(csr.MsgVerifyCapFrame)
		}
	case firmware.ReqLinkUp:
		if a.autoTrain {
			a.setPhys(csr.PhysLinkUp)
			a.setLogical(csr.LogInit)
			a.raise(csr.MsgLinkupAchieved)
		} else {
			a.setPhys(csr.PhysTraining)
		}
	case firmware.ReqQuickLinkUp:
		a.setPhys(csr.PhysLinkUp)
		a.setLogical(csr.LogInit)
	}
}

func (a *Adapter) setPhys(p csr.PhysCode) { a.mem.Poke(csr.RegPhysState, uint64(p)) }

func (a *Adapter) setLogical(l csr.LogCode) {
	a.logical = l
	a.mem.Poke(csr.RegLogState, uint64(l))
}

func (a *Adapter) raise(bits uint64) {
	a.pending |= bits
	a.mem.Poke(csr.RegHostMsg, a.pending)
}
