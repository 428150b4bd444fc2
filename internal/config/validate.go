// internal/config/validate.go
package config

import (
	"fmt"
	"strings"
)

// Accepted spellings for link options.
var (
	validSpeeds    = map[string]bool{"12.5G": true, "25G": true, "50G": true}
	validCRCModes  = map[string]bool{"14b": true, "48b": true, "per-lane": true, "16b": true}
	validLogLevels = map[string]bool{"": true, "trace": true, "debug": true, "info": true, "warn": true, "error": true}
	validFormats   = map[string]bool{"": true, "text": true, "json": true}
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}
	c := &cfg.Lnictl

	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("log: unknown level %q", c.Log.Level)
	}
	if !validFormats[strings.ToLower(c.Log.Format)] {
		return fmt.Errorf("log: unknown format %q", c.Log.Format)
	}

	if c.Redis != nil && c.Redis.Address == "" {
		return fmt.Errorf("redis: address required")
	}
	if c.StatusMemory != nil && c.StatusMemory.Endpoint == "" {
		return fmt.Errorf("status_memory: endpoint required")
	}

	if len(c.Ports) == 0 {
		return fmt.Errorf("ports: at least one port required")
	}

	// ------------------------------------------------------------
	// PORT IDENTITY + BUS
	// ------------------------------------------------------------

	// key = bus endpoint | unit_id | base_address
	busOwner := make(map[string]string)
	ids := make(map[string]bool)

	for _, p := range c.Ports {
		if p.ID == "" {
			return fmt.Errorf("port: id required")
		}
		if ids[p.ID] {
			return fmt.Errorf("port %q: duplicate id", p.ID)
		}
		ids[p.ID] = true

		if p.Bus.Endpoint == "" {
			return fmt.Errorf("port %q: bus.endpoint required", p.ID)
		}
		if p.Bus.TimeoutMs < 0 || p.Poll.IntervalMs < 0 {
			return fmt.Errorf("port %q: negative timeout or poll interval", p.ID)
		}

		if p.Bus.Endpoint != "sim" {
			key := fmt.Sprintf("%s|%d|%d", p.Bus.Endpoint, p.Bus.UnitID, p.Bus.BaseAddress)
			if prev, exists := busOwner[key]; exists {
				return fmt.Errorf(
					"bus collision: endpoint=%s unit_id=%d base_address=%d used by ports %q and %q",
					p.Bus.Endpoint,
					p.Bus.UnitID,
					p.Bus.BaseAddress,
					prev,
					p.ID,
				)
			}
			busOwner[key] = p.ID
		}

		if err := validateLink(p.ID, p.Link); err != nil {
			return err
		}
	}

	// ------------------------------------------------------------
	// PORT STATUS BLOCK VALIDATION (OPT-IN)
	// ------------------------------------------------------------

	// key = status_slot
	statusOwner := make(map[uint16]string)

	for _, p := range c.Ports {
		// device_name sanity (ASCII only)
		for i := 0; i < len(p.DeviceName); i++ {
			if p.DeviceName[i] > 0x7F {
				return fmt.Errorf(
					"port %q: device_name must contain ASCII characters only",
					p.ID,
				)
			}
		}

		// status is opt-in
		if p.StatusSlot == nil {
			continue
		}

		if c.StatusMemory == nil {
			return fmt.Errorf(
				"port %q: status_slot is set but no status_memory is defined",
				p.ID,
			)
		}

		slot := *p.StatusSlot
		if prev, exists := statusOwner[slot]; exists {
			return fmt.Errorf(
				"status_slot collision: endpoint=%s unit_id=%d slot=%d used by ports %q and %q",
				c.StatusMemory.Endpoint,
				c.StatusMemory.UnitID,
				slot,
				prev,
				p.ID,
			)
		}
		statusOwner[slot] = p.ID
	}

	return nil
}

func validateLink(id string, l LinkConfig) error {
	if l.QuickLinkup && l.Simulator {
		return fmt.Errorf("port %q: quick_linkup and simulator are exclusive", id)
	}
	for _, s := range l.Speeds {
		if !validSpeeds[s] {
			return fmt.Errorf("port %q: unknown speed %q", id, s)
		}
	}
	for _, m := range l.CRCModes {
		if !validCRCModes[strings.ToLower(m)] {
			return fmt.Errorf("port %q: unknown crc mode %q", id, m)
		}
	}
	for _, w := range append(append([]int(nil), l.Widths...), l.DowngradeWidths...) {
		if w < 1 || w > 4 {
			return fmt.Errorf("port %q: width %d outside 1..4", id, w)
		}
	}
	if l.VAU > 7 || l.VCU > 7 {
		return fmt.Errorf("port %q: vau and vcu are 3-bit fields", id)
	}
	if l.VL15Credits > 0xfff {
		return fmt.Errorf("port %q: vl15_credits %d exceeds 12 bits", id, l.VL15Credits)
	}

	t := l.Timeouts
	for _, v := range []int{
		t.Command, t.Start, t.Offline, t.Disable, t.LinkUp,
		t.Logical, t.FirmwareReady, t.OutOfOffline, t.IdleBudget, t.Poll,
	} {
		if v < 0 {
			return fmt.Errorf("port %q: negative timeout", id)
		}
	}
	return nil
}
