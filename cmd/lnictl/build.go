// cmd/lnictl/build.go
package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tamzrod/lnictl/internal/config"
	"github.com/tamzrod/lnictl/internal/firmware"
	"github.com/tamzrod/lnictl/internal/link"
	"github.com/tamzrod/lnictl/internal/regbus"
	rmodbus "github.com/tamzrod/lnictl/internal/regbus/modbus"
	"github.com/tamzrod/lnictl/internal/sim"
)

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// openBus connects a port's register bus. "sim" builds a simulated adapter
// with a default partner that trains on its own.
func openBus(id string, b config.BusConfig, log *slog.Logger) (regbus.Bus, func() error, error) {
	if b.Endpoint == "sim" {
		a := sim.New(sim.Options{
			Partner:   sim.DefaultPartner(),
			AutoTrain: true,
			Log:       log,
		})
		return a.Bus(), func() error { return nil }, nil
	}

	c, err := rmodbus.New(rmodbus.Config{
		Endpoint: b.Endpoint,
		UnitID:   b.UnitID,
		Timeout:  ms(b.TimeoutMs),
		Base:     b.BaseAddress,
		BaudRate: b.BaudRate,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("port %s: bus %s: %w", id, b.Endpoint, err)
	}
	return c, c.Close, nil
}

// linkConfig converts YAML link options. Empty lists keep the defaults.
func linkConfig(l config.LinkConfig) link.Config {
	c := link.DefaultConfig()

	c.QuickLinkup = l.QuickLinkup
	c.Simulator = l.Simulator
	c.ActiveOptimize = l.ActiveOptimize

	if len(l.Speeds) > 0 {
		c.Speeds = 0
		for _, s := range l.Speeds {
			c.Speeds |= speedMask(s)
		}
	}
	if len(l.CRCModes) > 0 {
		c.CRC = 0
		for _, m := range l.CRCModes {
			c.CRC |= crcMask(m)
		}
	}
	if len(l.Widths) > 0 {
		c.Widths = widthMask(l.Widths)
	}
	if len(l.DowngradeWidths) > 0 {
		c.DowngradeWidths = widthMask(l.DowngradeWidths)
	}

	if l.VAU != 0 {
		c.VAU = l.VAU
	}
	c.Z = l.Z
	c.VCU = l.VCU
	if l.VL15Credits != 0 {
		c.VL15Credits = l.VL15Credits
	}
	c.DeviceID = l.DeviceID
	c.DeviceRev = l.DeviceRev

	t := l.Timeouts
	c.Timeouts = link.Timeouts{
		Offline:       ms(t.Offline),
		Disable:       ms(t.Disable),
		LinkUp:        ms(t.LinkUp),
		Logical:       ms(t.Logical),
		FirmwareReady: ms(t.FirmwareReady),
		OutOfOffline:  ms(t.OutOfOffline),
		IdleBudget:    ms(t.IdleBudget),
		Poll:          ms(t.Poll),
	}

	return c
}

// channelConfig converts the command channel timeouts. Zero keeps the default.
func channelConfig(t config.TimeoutsConfig) firmware.ChannelConfig {
	return firmware.ChannelConfig{
		CommandTimeout: ms(t.Command),
		StartTimeout:   ms(t.Start),
		PollInterval:   ms(t.Poll),
	}
}

func speedMask(s string) firmware.SpeedMask {
	switch s {
	case "12.5G":
		return firmware.Speed12G5
	case "25G":
		return firmware.Speed25G
	case "50G":
		return firmware.Speed50G
	}
	return 0
}

func crcMask(s string) firmware.CRCMask {
	switch strings.ToLower(s) {
	case "14b":
		return firmware.CRC14B
	case "48b":
		return firmware.CRC48B
	case "per-lane":
		return firmware.CRCPerLane
	case "16b":
		return firmware.CRC16B
	}
	return 0
}

func widthMask(lanes []int) firmware.WidthMask {
	var m firmware.WidthMask
	for _, n := range lanes {
		if n >= 1 && n <= 4 {
			m |= firmware.WidthMask(1) << (n - 1)
		}
	}
	return m
}
