package link

import (
	"time"

	"github.com/tamzrod/lnictl/internal/firmware"
)

// Timeouts bound every hardware wait done by the controller.
type Timeouts struct {
	Offline       time.Duration // physical Offline after an offline request
	Disable       time.Duration // physical Disabled after a disable request
	LinkUp        time.Duration // physical LinkUp when entering UpInit
	Logical       time.Duration // each logical state change
	FirmwareReady time.Duration // firmware ready after going offline
	OutOfOffline  time.Duration // physical state leaving Offline after Polling
	IdleBudget    time.Duration // idle message busy retries
	Poll          time.Duration // state poll period
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		Offline:       10 * time.Second,
		Disable:       10 * time.Second,
		LinkUp:        time.Second,
		Logical:       time.Second,
		FirmwareReady: 3 * time.Second,
		OutOfOffline:  3 * time.Second,
		IdleBudget:    250 * time.Millisecond,
		Poll:          2 * time.Millisecond,
	}
}

// Config is the per-port link configuration. Nothing here is shared
// between ports.
type Config struct {
	// QuickLinkup skips polling and verify-capability and brings the link
	// straight to UpInit, assuming the partner matches the local settings.
	QuickLinkup bool
	// Simulator allows UpInit directly from DownPoll.
	Simulator bool
	// ActiveOptimize moves Armed to Active when the neighbor signals Active.
	ActiveOptimize bool

	Speeds firmware.SpeedMask
	CRC    firmware.CRCMask
	Widths firmware.WidthMask
	// DowngradeWidths are the widths the link may degrade to before it is
	// bounced.
	DowngradeWidths firmware.WidthMask

	VAU         uint8
	Z           bool
	VCU         uint8
	VL15Credits uint16

	DeviceID  uint16
	DeviceRev uint8

	Timeouts Timeouts
}

func DefaultConfig() Config {
	return Config{
		Speeds:          firmware.Speed25G | firmware.Speed12G5,
		CRC:             firmware.CRC14B | firmware.CRC16B,
		Widths:          firmware.WidthAll,
		DowngradeWidths: firmware.WidthAll,
		VAU:             3,
		VL15Credits:     0x40,
		Timeouts:        DefaultTimeouts(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultTimeouts()
	t := &c.Timeouts
	for _, p := range []struct {
		v *time.Duration
		d time.Duration
	}{
		{&t.Offline, d.Offline},
		{&t.Disable, d.Disable},
		{&t.LinkUp, d.LinkUp},
		{&t.Logical, d.Logical},
		{&t.FirmwareReady, d.FirmwareReady},
		{&t.OutOfOffline, d.OutOfOffline},
		{&t.IdleBudget, d.IdleBudget},
		{&t.Poll, d.Poll},
	} {
		if *p.v <= 0 {
			*p.v = p.d
		}
	}
	if c.Widths == 0 {
		c.Widths = firmware.WidthAll
	}
	// 16B is mandatory
	c.CRC |= firmware.CRC16B
	return c
}
