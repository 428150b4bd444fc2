package csr

import (
	"fmt"
	"time"

	"github.com/tamzrod/lnictl/internal/firmware"
	"github.com/tamzrod/lnictl/internal/regbus"
)

// Options tune register access for one port.
type Options struct {
	// FlushWrites echoes every write with a read of the same register.
	FlushWrites bool
	// PollInterval is the completion poll period; default 100µs.
	PollInterval time.Duration
}

// Device is one port's view of the adapter registers.
type Device struct {
	bus   regbus.Bus
	flush bool
	poll  time.Duration
}

func New(bus regbus.Bus, opts Options) *Device {
	d := &Device{bus: bus, flush: opts.FlushWrites, poll: opts.PollInterval}
	if d.poll <= 0 {
		d.poll = 100 * time.Microsecond
	}
	return d
}

func (d *Device) write(off uint32, v uint64) error {
	return regbus.WriteFlush(d.bus, off, v, d.flush)
}

// ---- co-processor command primitive ----

// Do runs one host command. The stage register is written twice: first the
// type and data, then the same value with the NEW bit, so the co-processor
// samples a stable request. The caller serializes commands.
func (d *Device) Do(cmd *firmware.Command, timeout time.Duration) error {
	if cmd.Kind == firmware.KindWriteLinkCSR {
		if err := d.write(RegCmdExtIn, cmd.Ext); err != nil {
			return fmt.Errorf("csr: stage ext: %w", err)
		}
	}

	stage := uint64(cmd.Kind)&StageTypeMask | (cmd.In&StageDataMask)<<StageDataShift
	if err := d.write(RegCmdStage, stage); err != nil {
		return fmt.Errorf("csr: stage: %w", err)
	}
	if err := d.write(RegCmdStage, stage|StageNew); err != nil {
		return fmt.Errorf("csr: stage new: %w", err)
	}

	start := time.Now()
	var status uint64
	for {
		var err error
		status, err = d.bus.Read(RegCmdStatus)
		if err != nil {
			return fmt.Errorf("csr: status: %w", err)
		}
		if status&StatusCompleted != 0 {
			break
		}
		if time.Since(start) > timeout {
			return firmware.ErrNoCompletion
		}
		time.Sleep(d.poll)
	}

	cmd.Code = firmware.ReturnCode(status >> StatusCodeShift & StatusCodeMask)
	cmd.Out = status >> StatusDataShift & StatusDataMask

	if cmd.Kind == firmware.KindReadLinkCSR && cmd.Code == firmware.RetSuccess {
		ext, err := d.bus.Read(RegCmdExtOut)
		if err != nil {
			return fmt.Errorf("csr: ext out: %w", err)
		}
		cmd.Out |= (ext & ExtOutMask) << ExtOutShift
	}

	// clear the command for the next user
	if err := d.write(RegCmdStage, 0); err != nil {
		return fmt.Errorf("csr: clear stage: %w", err)
	}
	return nil
}

// Halt holds the co-processor in reset.
func (d *Device) Halt() error {
	return d.write(RegCoreReset, CoreHoldReset)
}

// Release lets the co-processor run; its firmware reports ready when done
// initializing.
func (d *Device) Release() error {
	return d.write(RegCoreReset, 0)
}

func (d *Device) Ready() (bool, error) {
	v, err := d.bus.Read(RegCoreStatus)
	return v&CoreFirmwareReady != 0, err
}

// ---- link state ----

func (d *Device) PhysicalState() (PhysCode, error) {
	v, err := d.bus.Read(RegPhysState)
	return PhysCode(v), err
}

func (d *Device) LogicalState() (LogCode, error) {
	v, err := d.bus.Read(RegLogState)
	return LogCode(v & 0x7), err
}

// SetLogicalState requests a logical port state.
func (d *Device) SetLogicalState(s LogCode) error {
	return d.write(RegLogState, uint64(s))
}

// ForceLogicalDown moves the logical state to Down without waiting for the
// co-processor.
func (d *Device) ForceLogicalDown() error {
	return d.write(RegLogState, uint64(LogDown))
}

func (d *Device) CablePresent() (bool, error) {
	v, err := d.bus.Read(RegCoreStatus)
	return v&CoreCablePresent != 0, err
}

// HostMessages reads and acknowledges the pending host message bits.
func (d *Device) HostMessages() (uint64, error) {
	v, err := d.bus.Read(RegHostMsg)
	if err != nil || v == 0 {
		return 0, err
	}
	if err := d.write(RegHostMsg, v); err != nil {
		return 0, fmt.Errorf("csr: ack host messages: %w", err)
	}
	return v, nil
}
