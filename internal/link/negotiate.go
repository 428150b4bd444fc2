package link

import (
	"fmt"
	"log/slog"

	"github.com/tamzrod/lnictl/internal/csr"
	"github.com/tamzrod/lnictl/internal/firmware"
)

// Capabilities are the link parameters settled by verify-capability. They
// hold until the next link down.
type Capabilities struct {
	VAU         uint8
	Z           bool
	VCU         uint8
	VL15Credits uint16

	CRC   firmware.CRCMode
	Speed firmware.SpeedMask
	// SpeedMismatch is set when no enabled speed was common with the
	// partner and Speed fell back to 50G.
	SpeedMismatch bool

	WidthTx, WidthRx         firmware.WidthMask
	DowngradeTx, DowngradeRx firmware.WidthMask

	RemoteWidths firmware.WidthMask
	RemoteDevice firmware.DeviceID
	RemotePhy    uint32 // partner firmware revision, zero if unread
	RoundTripLTP uint64
}

// crcOrder is the CRC selection priority. 16B is mandatory and always last.
var crcOrder = []firmware.CRCMode{
	firmware.CRCMode14B,
	firmware.CRCMode48B,
	firmware.CRCModePerLane,
}

// ChooseCRC picks the first mode in priority order enabled locally and
// supported by the partner.
func ChooseCRC(local, remote firmware.CRCMask) firmware.CRCMode {
	common := local & remote
	for _, m := range crcOrder {
		if common&m.Mask() != 0 {
			return m
		}
	}
	return firmware.CRCMode16B
}

// speedOrder lists speeds fastest first.
var speedOrder = []firmware.SpeedMask{firmware.Speed50G, firmware.Speed25G, firmware.Speed12G5}

// remoteSpeeds maps the partner's maximum rate code to the speeds it can
// run. A 50G partner supports the lower rates too.
func remoteSpeeds(maxRate uint8) firmware.SpeedMask {
	if maxRate == 0 {
		return firmware.Speed50G | firmware.Speed25G | firmware.Speed12G5
	}
	return firmware.Speed25G | firmware.Speed12G5
}

// ChooseSpeed picks the fastest speed enabled locally and supported by the
// partner. With nothing in common it returns 50G and mismatch set.
func ChooseSpeed(remoteMaxRate uint8, local firmware.SpeedMask) (speed firmware.SpeedMask, mismatch bool) {
	common := remoteSpeeds(remoteMaxRate) & local
	for _, s := range speedOrder {
		if common&s != 0 {
			return s, false
		}
	}
	return firmware.Speed50G, true
}

func fastest(m firmware.SpeedMask) firmware.SpeedMask {
	for _, s := range speedOrder {
		if m&s != 0 {
			return s
		}
	}
	return 0
}

// negotiator runs verify-capability for one port.
type negotiator struct {
	cfg    Config
	hw     Hardware
	ch     *firmware.Channel
	reader *firmware.ConfigReader
	writer *firmware.ConfigWriter
	log    *slog.Logger
}

// pending reports whether the co-processor is waiting on verify-capability.
func (n *negotiator) pending() (bool, csr.PhysCode, error) {
	p, err := n.hw.PhysicalState()
	if err != nil {
		return false, 0, err
	}
	return p.Major() == csr.PhysVerifyCap, p, nil
}

// negotiate reads the partner's frames and programs the result.
func (n *negotiator) negotiate() (Capabilities, error) {
	var caps Capabilities

	fabric, err := n.reader.RemoteFabric()
	if err != nil {
		return caps, fmt.Errorf("read remote fabric: %w", err)
	}
	mode, err := n.reader.RemoteLinkMode()
	if err != nil {
		return caps, fmt.Errorf("read remote link width: %w", err)
	}
	dev, err := n.reader.RemoteDeviceID()
	if err != nil {
		return caps, fmt.Errorf("read remote device id: %w", err)
	}
	if phy, err := n.reader.RemotePhy(); err != nil {
		n.log.Warn("read remote phy revision", "err", err)
	} else {
		caps.RemotePhy = phy
	}
	n.log.Info("peer capabilities",
		"device", dev,
		"vau", fabric.VAU, "z", fabric.Z, "vcu", fabric.VCU,
		"vl15", fabric.VL15Credits,
		"crc", fmt.Sprintf("0x%x", uint8(fabric.CRC)),
		"max_rate", mode.MaxRate,
		"widths", fmt.Sprintf("0x%x", uint8(mode.Widths)),
	)

	caps.CRC = ChooseCRC(n.cfg.CRC, fabric.CRC|firmware.CRC16B)
	if err := n.ch.WriteLinkCSR(csr.LCBCRCMode, uint64(caps.CRC)); err != nil {
		return caps, fmt.Errorf("program crc mode: %w", err)
	}

	caps.VAU, caps.Z, caps.VCU, caps.VL15Credits = fabric.VAU, fabric.Z, fabric.VCU, fabric.VL15Credits
	err = n.writer.WriteCreditAllocation(firmware.CreditAllocation{
		VAU:         fabric.VAU,
		VCU:         fabric.VCU,
		Z:           fabric.Z,
		VL15Credits: fabric.VL15Credits,
	})
	if err != nil {
		return caps, fmt.Errorf("program credits: %w", err)
	}

	caps.Speed, caps.SpeedMismatch = ChooseSpeed(mode.MaxRate, n.cfg.Speeds)
	if caps.SpeedMismatch {
		n.log.Warn("no common link speed, using 50G",
			"err", ErrNegotiationMismatch,
			"local", fmt.Sprintf("0x%x", uint8(n.cfg.Speeds)),
			"remote_max_rate", mode.MaxRate,
		)
	}

	caps.RemoteWidths = mode.Widths
	caps.RemoteDevice = dev
	n.log.Debug("peer firmware", "phy", fmt.Sprintf("0x%x", caps.RemotePhy))
	return caps, nil
}

// localCapabilities is what quick linkup assumes of the partner.
func localCapabilities(cfg Config) Capabilities {
	return Capabilities{
		VAU:          cfg.VAU,
		Z:            cfg.Z,
		VCU:          cfg.VCU,
		VL15Credits:  cfg.VL15Credits,
		CRC:          ChooseCRC(cfg.CRC, cfg.CRC),
		Speed:        fastest(cfg.Speeds),
		RemoteWidths: cfg.Widths,
		RemoteDevice: firmware.DeviceID{ID: cfg.DeviceID, Rev: cfg.DeviceRev},
	}
}
