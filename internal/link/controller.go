package link

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/tamzrod/lnictl/internal/csr"
	"github.com/tamzrod/lnictl/internal/firmware"
)

// Hardware is the register-level view of the port the controller waits on.
// *csr.Device implements it.
type Hardware interface {
	PhysicalState() (csr.PhysCode, error)
	LogicalState() (csr.LogCode, error)
	SetLogicalState(csr.LogCode) error
	ForceLogicalDown() error
	CablePresent() (bool, error)
	// Ready reports the firmware-ready bit.
	Ready() (bool, error)
}

// Sink receives port events for the upper layers.
type Sink interface {
	OnLinkUp(Capabilities)
	OnPortActive()
	OnPortError(LinkDownReason)
}

// VLChecker is implemented by sinks that know whether the data VLs are
// configured. Without one the VLs are assumed operational.
type VLChecker interface {
	DataVLsOperational() bool
}

// NopSink ignores all events.
type NopSink struct{}

func (NopSink) OnLinkUp(Capabilities)      {}
func (NopSink) OnPortActive()              {}
func (NopSink) OnPortError(LinkDownReason) {}

// Controller is the host link state machine of one port.
type Controller struct {
	cfg  Config
	hw   Hardware
	ch   *firmware.Channel
	cw   *firmware.ConfigWriter
	cr   *firmware.ConfigReader
	idle *firmware.IdleMessenger
	neg  *negotiator
	sink Sink
	log  *slog.Logger

	// mu serializes transitions. It may be held while waiting on the
	// channel lock, never the other way round.
	mu    sync.Mutex
	state atomic.Int32
	prev  atomic.Int32

	reason         reasonBox
	linkInitReason atomic.Uint32
	neighborNormal atomic.Bool

	capsMu sync.Mutex
	caps   Capabilities

	linkUps   atomic.Uint64
	linkDowns atomic.Uint64
}

// New builds a controller in DownOffline. log should carry the port.
func New(hw Hardware, ch *firmware.Channel, cfg Config, sink Sink, log *slog.Logger) *Controller {
	cfg = cfg.withDefaults()
	if sink == nil {
		sink = NopSink{}
	}
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "link")

	c := &Controller{
		cfg:  cfg,
		hw:   hw,
		ch:   ch,
		cw:   firmware.NewConfigWriter(ch),
		cr:   firmware.NewConfigReader(ch),
		idle: firmware.NewIdleMessenger(ch, cfg.Timeouts.IdleBudget, log),
		sink: sink,
		log:  log,
	}
	c.neg = &negotiator{cfg: cfg, hw: hw, ch: ch, reader: c.cr, writer: c.cw, log: log}
	c.state.Store(int32(DownOffline))
	c.prev.Store(int32(DownOffline))
	c.linkInitReason.Store(uint32(LinkInitLinkUp))
	return c
}

// State returns the current host link state without waiting for a
// transition in progress.
func (c *Controller) State() LinkState { return LinkState(c.state.Load()) }

// PrevState returns the state the last successful SetState left.
func (c *Controller) PrevState() LinkState { return LinkState(c.prev.Load()) }

func (c *Controller) setState(s LinkState) { c.state.Store(int32(s)) }

// DriverPhysicalState is the physical state reported to upper layers.
// DownDefault has none and reports PhysUnknown quietly; status refreshes
// read it every second.
func (c *Controller) DriverPhysicalState() PhysState {
	s := c.State()
	p := physFor(s)
	if p == PhysUnknown && s != DownDefault {
		c.log.Warn("no physical state for host link state", "state", s)
	}
	return p
}

// DriverLogicalState is the logical state reported to upper layers.
func (c *Controller) DriverLogicalState() LogState { return logFor(c.State()) }

// Capabilities returns the last negotiated link parameters.
func (c *Controller) Capabilities() Capabilities {
	c.capsMu.Lock()
	defer c.capsMu.Unlock()
	return c.caps
}

func (c *Controller) updateCaps(fn func(*Capabilities)) {
	c.capsMu.Lock()
	defer c.capsMu.Unlock()
	fn(&c.caps)
}

// DownReason returns the recorded link down reasons.
func (c *Controller) DownReason() LinkDownReason { return c.reason.get() }

// SetDownReason records why the link is going down. Local and neighbor
// latch until the link next comes up.
func (c *Controller) SetDownReason(local, neighbor, remote uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reason.update(func(r *LinkDownReason) { r.Set(local, neighbor, remote) })
}

// LinkInitReason returns the reason reported with the next link init.
func (c *Controller) LinkInitReason() uint8 { return uint8(c.linkInitReason.Load()) }

// SetLinkInitReason sets the reason reported with the next link init.
// Reasons at or above LinkInitClear are replaced on link up.
func (c *Controller) SetLinkInitReason(r uint8) { c.linkInitReason.Store(uint32(r)) }

// NeighborNormal reports whether the neighbor has signalled it is ready
// for traffic.
func (c *Controller) NeighborNormal() bool { return c.neighborNormal.Load() }

// Counters returns how many times the link came up and went down.
func (c *Controller) Counters() (ups, downs uint64) {
	return c.linkUps.Load(), c.linkDowns.Load()
}

// ChannelHealth returns the co-processor channel health.
func (c *Controller) ChannelHealth() firmware.Health { return c.ch.Health() }

// ---- transitions ----

// StartLink begins link negotiation by entering DownPoll.
func (c *Controller) StartLink() error {
	return c.SetState(DownPoll)
}

// RequestBounce takes the link offline and starts it again.
func (c *Controller) RequestBounce() error {
	if err := c.SetState(DownOffline); err != nil {
		return err
	}
	return c.StartLink()
}

// SendSMA sends an SMA idle message to the neighbor.
func (c *Controller) SendSMA(msg uint64) error {
	return c.idle.SendSMA(msg)
}

// SetState moves the port to target. Requesting the current state does
// nothing, except DownPoll which restarts polling.
func (c *Controller) SetState(target LinkState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setStateLocked(target)
}

func (c *Controller) setStateLocked(target LinkState) error {
	cur := c.State()
	if target == cur && target != DownPoll {
		c.log.Debug("already in state", "state", cur)
		return nil
	}
	if !legal(cur, target, c.cfg.QuickLinkup || c.cfg.Simulator) {
		err := &TransitionError{From: cur, To: target}
		c.log.Error("unexpected state transition", "from", cur, "to", target)
		return err
	}

	c.log.Info("state change", "from", cur, "to", target)

	var err error
	switch target {
	case DownDefault:
		c.setState(DownDefault)
	case DownOffline:
		err = c.enterOffline(cur)
	case DownPoll:
		err = c.enterPoll(cur)
	case DownDisable:
		err = c.enterDisable(cur)
	case VerifyCap:
		c.setState(VerifyCap)
	case GoingUp:
		err = c.enterGoingUp()
	case UpInit:
		err = c.enterUpInit(cur)
	case UpArmed:
		err = c.enterUpArmed()
	case UpActive:
		err = c.enterUpActive()
	}

	if err != nil {
		c.log.Error("state change failed", "from", cur, "to", target, "now", c.State(), "err", err)
		return err
	}
	c.prev.Store(int32(cur))
	return nil
}

func (c *Controller) enterOffline(cur LinkState) error {
	if cur == DownDisable || c.ch.IsShutDown() {
		if err := c.ch.Start(); err != nil {
			return fmt.Errorf("start co-processor: %w", err)
		}
	}
	if err := c.gotoOffline(c.reason.get().RemoteToSend); err != nil {
		return err
	}
	c.reason.update(func(r *LinkDownReason) { r.RemoteToSend = 0 })
	return nil
}

// gotoOffline runs the offline sequence. reason is sent to the neighbor.
func (c *Controller) gotoOffline(reason uint8) error {
	prev := c.State()
	wasUp := IsUp(prev)

	c.setState(GoingOffline)
	if err := c.ch.ChangePhysicalState(firmware.ReqOffline, reason); err != nil {
		c.setState(prev)
		return fmt.Errorf("offline request: %w", err)
	}

	if err := c.waitPhysical(csr.PhysOffline, c.cfg.Timeouts.Offline); err != nil {
		c.setState(prev)
		return err
	}

	if err := c.waitLogical(csr.LogDown, c.cfg.Timeouts.Logical); err != nil {
		c.log.Warn("logical state not down after offline, forcing", "err", err)
		if err := c.hw.ForceLogicalDown(); err != nil {
			c.log.Error("force logical down", "err", err)
		}
	}

	c.setState(LinkCooldown)
	if err := c.waitFirmwareReady(c.cfg.Timeouts.FirmwareReady); err != nil {
		// keep software in step with the hardware, which is offline
		c.setState(DownOffline)
		c.log.Error("co-processor not ready after going offline", "err", err)
		c.afterOffline(wasUp)
		return err
	}
	c.setState(DownOffline)
	c.afterOffline(wasUp)
	return nil
}

func (c *Controller) afterOffline(wasUp bool) {
	c.neighborNormal.Store(false)
	c.updateCaps(func(caps *Capabilities) {
		caps.WidthTx, caps.WidthRx = 0, 0
		caps.DowngradeTx, caps.DowngradeRx = 0, 0
	})
	if wasUp {
		c.linkDowns.Add(1)
		c.sink.OnPortError(c.reason.get())
	}
}

func (c *Controller) enterPoll(cur LinkState) error {
	if cur == DownDisable || c.ch.IsShutDown() {
		if err := c.ch.Start(); err != nil {
			return fmt.Errorf("start co-processor: %w", err)
		}
	}
	if c.State() != DownOffline {
		if err := c.gotoOffline(c.reason.get().RemoteToSend); err != nil {
			return err
		}
		c.reason.update(func(r *LinkDownReason) { r.RemoteToSend = 0 })
	}

	err := c.writeLocalAttributes()
	if err == nil {
		if c.cfg.QuickLinkup {
			err = c.quickLinkup()
		} else {
			err = c.startPolling()
		}
	}
	if err != nil {
		if oerr := c.gotoOffline(0); oerr != nil {
			c.log.Error("going offline after failed poll", "err", oerr)
		}
		return err
	}
	return nil
}

func (c *Controller) writeLocalAttributes() error {
	cfg := c.cfg
	if err := c.cw.WriteTxSettings(cfg.Speeds, cfg.CRC); err != nil {
		return fmt.Errorf("write tx settings: %w", err)
	}
	if err := c.cw.WriteLocalFabric(cfg.VAU, cfg.Z, cfg.VCU, cfg.VL15Credits, cfg.CRC); err != nil {
		return fmt.Errorf("write local fabric: %w", err)
	}
	if err := c.cw.WriteLocalLinkWidthPolicy(cfg.Widths, firmware.FlagRoundTripLTP); err != nil {
		return fmt.Errorf("write link width policy: %w", err)
	}
	if err := c.cw.WriteLocalDeviceID(cfg.DeviceID, cfg.DeviceRev); err != nil {
		return fmt.Errorf("write device id: %w", err)
	}
	return nil
}

func (c *Controller) startPolling() error {
	if err := c.ch.ChangePhysicalState(firmware.ReqPolling, 0); err != nil {
		return fmt.Errorf("polling request: %w", err)
	}
	if err := c.waitOutOfOffline(c.cfg.Timeouts.OutOfOffline); err != nil {
		return err
	}
	c.setState(DownPoll)
	return nil
}

// quickLinkup goes straight to UpInit. The partner is assumed to match the
// local configuration.
func (c *Controller) quickLinkup() error {
	c.setState(UpInit)
	if err := c.ch.ChangePhysicalState(firmware.ReqQuickLinkUp, 0); err != nil {
		c.setState(DownPoll)
		return fmt.Errorf("quick linkup request: %w", err)
	}
	if err := c.waitLogical(csr.LogInit, c.cfg.Timeouts.Logical); err != nil {
		c.setState(DownPoll)
		return err
	}
	caps := localCapabilities(c.cfg)
	c.updateCaps(func(cp *Capabilities) { *cp = caps })
	c.linkUp()
	return nil
}

func (c *Controller) enterDisable(cur LinkState) error {
	if cur != DownOffline {
		if err := c.gotoOffline(c.reason.get().RemoteToSend); err != nil {
			return err
		}
		c.reason.update(func(r *LinkDownReason) { r.RemoteToSend = 0 })
	}
	if !c.ch.IsShutDown() {
		if err := c.ch.ChangePhysicalState(firmware.ReqDisabled, 0); err != nil {
			return fmt.Errorf("disable request: %w", err)
		}
		if err := c.waitPhysical(csr.PhysDisabled, c.cfg.Timeouts.Disable); err != nil {
			return err
		}
		if err := c.ch.Shutdown(); err != nil {
			return err
		}
	}
	c.setState(DownDisable)
	return nil
}

func (c *Controller) enterGoingUp() error {
	if err := c.ch.ChangePhysicalState(firmware.ReqLinkUp, 0); err != nil {
		return fmt.Errorf("linkup request: %w", err)
	}
	c.setState(GoingUp)
	return nil
}

func (c *Controller) enterUpInit(cur LinkState) error {
	if cur == GoingUp {
		if err := c.waitPhysical(csr.PhysLinkUp, c.cfg.Timeouts.LinkUp); err != nil {
			return err
		}
	}
	if err := c.waitLogical(csr.LogInit, c.cfg.Timeouts.Logical); err != nil {
		return err
	}
	if cur == DownPoll {
		// simulator link up skips verify-cap, like quick linkup
		caps := localCapabilities(c.cfg)
		c.updateCaps(func(cp *Capabilities) { *cp = caps })
	}
	c.setState(UpInit)
	c.linkUp()
	return nil
}

// linkUp runs the bookkeeping common to every way into UpInit.
func (c *Controller) linkUp() {
	if c.LinkInitReason() >= LinkInitClear {
		c.SetLinkInitReason(LinkInitLinkUp)
	}
	c.reason.update(func(r *LinkDownReason) { r.Clear() })

	if w, err := c.cr.ActiveWidths(); err != nil {
		c.log.Warn("read active widths", "err", err)
	} else {
		c.updateCaps(func(caps *Capabilities) {
			caps.WidthTx, caps.WidthRx = w.Tx, w.Rx
			caps.DowngradeTx, caps.DowngradeRx = w.DowngradeTx, w.DowngradeRx
		})
	}

	c.linkUps.Add(1)
	caps := c.Capabilities()
	c.log.Info("link up",
		"crc", caps.CRC,
		"speed", caps.Speed,
		"width_tx", caps.WidthTx.Lanes(),
		"width_rx", caps.WidthRx.Lanes(),
	)
	c.sink.OnLinkUp(caps)
}

func (c *Controller) enterUpArmed() error {
	if vc, ok := c.sink.(VLChecker); ok && !vc.DataVLsOperational() {
		return ErrVLsNotReady
	}
	if err := c.hw.SetLogicalState(csr.LogArmed); err != nil {
		return fmt.Errorf("request armed: %w", err)
	}
	if err := c.waitLogical(csr.LogArmed, c.cfg.Timeouts.Logical); err != nil {
		return err
	}
	c.setState(UpArmed)
	return nil
}

func (c *Controller) enterUpActive() error {
	if err := c.hw.SetLogicalState(csr.LogActive); err != nil {
		return fmt.Errorf("request active: %w", err)
	}
	if err := c.waitLogical(csr.LogActive, c.cfg.Timeouts.Logical); err != nil {
		return err
	}
	c.setState(UpActive)
	c.sink.OnPortActive()
	return nil
}

// IsTimeout reports whether err came from a bounded wait or a co-processor
// timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrWaitTimeout) || errors.Is(err, firmware.ErrChannelTimeout)
}
