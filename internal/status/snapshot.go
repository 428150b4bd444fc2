// internal/status/snapshot.go
package status

import (
	"github.com/tamzrod/lnictl/internal/firmware"
	"github.com/tamzrod/lnictl/internal/link"
)

// Snapshot represents exactly what the writers are allowed to deliver.
// It contains no logic and no memory of the past beyond current state.
// Field tags name the redis hash fields.
type Snapshot struct {
	Health         uint16 `redis:"health"`
	LastErrorCode  uint16 `redis:"last_error"`
	SecondsInError uint16 `redis:"seconds_in_error"`

	LinkState      uint16 `redis:"link_state"`
	PhysState      uint16 `redis:"phys_state"`
	LogState       uint16 `redis:"log_state"`
	Speed          uint16 `redis:"speed"`
	Widths         uint16 `redis:"widths"`
	CRCMode        uint16 `redis:"crc_mode"`
	NeighborReason uint16 `redis:"neighbor_reason"`
	ChannelHealth  uint16 `redis:"channel_health"`
	LinkUps        uint16 `redis:"link_ups"`
	LinkDowns      uint16 `redis:"link_downs"`
}

// Port is the read-only view of a link controller a snapshot is taken from.
type Port interface {
	State() link.LinkState
	DriverPhysicalState() link.PhysState
	DriverLogicalState() link.LogState
	Capabilities() link.Capabilities
	DownReason() link.LinkDownReason
	Counters() (ups, downs uint64)
	ChannelHealth() firmware.Health
}

// Capture reads the port's current state into a Snapshot.
// pollErr is the latest host-message poll result. SecondsInError is left
// to the caller, which owns the clock.
func Capture(p Port, pollErr error) Snapshot {
	st := p.State()
	reason := p.DownReason()
	ups, downs := p.Counters()
	chHealth := p.ChannelHealth()

	s := Snapshot{
		LastErrorCode:  uint16(reason.Local),
		LinkState:      uint16(st),
		PhysState:      uint16(p.DriverPhysicalState()),
		LogState:       uint16(p.DriverLogicalState()),
		NeighborReason: uint16(reason.Neighbor),
		ChannelHealth:  uint16(chHealth),
		LinkUps:        saturate(ups),
		LinkDowns:      saturate(downs),
	}

	if link.IsUp(st) {
		caps := p.Capabilities()
		s.Speed = SpeedUnits(caps.Speed)
		s.Widths = uint16(caps.WidthTx)<<8 | uint16(caps.WidthRx)
		s.CRCMode = uint16(caps.CRC)
	}

	switch {
	case pollErr != nil:
		s.Health = HealthStale
	case chHealth == firmware.Dead:
		s.Health = HealthError
	case st == link.UpActive:
		s.Health = HealthOK
	case st == link.DownDisable:
		s.Health = HealthDisabled
	case link.IsDown(st) && reason.Local != link.ReasonNone:
		s.Health = HealthError
	default:
		s.Health = HealthLinking
	}

	return s
}

// SpeedUnits converts a single-speed mask to units of 100 Mb/s.
func SpeedUnits(m firmware.SpeedMask) uint16 {
	switch m {
	case firmware.Speed12G5:
		return 125
	case firmware.Speed25G:
		return 250
	case firmware.Speed50G:
		return 500
	default:
		return 0
	}
}

func saturate(v uint64) uint16 {
	if v > 0xffff {
		return 0xffff
	}
	return uint16(v)
}
