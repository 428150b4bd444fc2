// internal/config/validate_test.go
package config

import "testing"

// helper to build a port quickly
func port(id string, endpoint string, unitID uint8, base uint16) PortConfig {
	return PortConfig{
		ID: id,
		Bus: BusConfig{
			Endpoint:    endpoint,
			UnitID:      unitID,
			BaseAddress: base,
		},
		Link: LinkConfig{
			Speeds:   []string{"25G", "12.5G"},
			CRCModes: []string{"14b", "16b"},
			Widths:   []int{1, 2, 3, 4},
		},
	}
}

func slot(v uint16) *uint16 { return &v }

// ---- tests ----

func TestValidate_DistinctBusesAllowed(t *testing.T) {
	cfg := &Config{
		Lnictl: LnictlConfig{
			Ports: []PortConfig{
				port("p1", "10.0.0.1:502", 1, 0),
				port("p2", "10.0.0.1:502", 2, 0),
				port("p3", "10.0.0.1:502", 1, 100),
			},
		},
	}

	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_SimPortsNeverCollide(t *testing.T) {
	cfg := &Config{
		Lnictl: LnictlConfig{
			Ports: []PortConfig{
				port("p1", "sim", 0, 0),
				port("p2", "sim", 0, 0),
			},
		},
	}

	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_BusCollisionDetected(t *testing.T) {
	cfg := &Config{
		Lnictl: LnictlConfig{
			Ports: []PortConfig{
				port("p1", "10.0.0.1:502", 1, 0),
				port("p2", "10.0.0.1:502", 1, 0),
			},
		},
	}

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected bus collision error, got nil")
	}
}

func TestValidate_DuplicatePortID(t *testing.T) {
	cfg := &Config{
		Lnictl: LnictlConfig{
			Ports: []PortConfig{
				port("p1", "sim", 0, 0),
				port("p1", "sim", 0, 0),
			},
		},
	}

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected duplicate id error, got nil")
	}
}

func TestValidate_NoPorts(t *testing.T) {
	if err := Validate(&Config{}); err == nil {
		t.Fatalf("expected error for empty port list, got nil")
	}
}

func TestValidate_UnknownLinkOptions(t *testing.T) {
	cases := map[string]func(p *PortConfig){
		"speed":     func(p *PortConfig) { p.Link.Speeds = []string{"100G"} },
		"crc":       func(p *PortConfig) { p.Link.CRCModes = []string{"32b"} },
		"width":     func(p *PortConfig) { p.Link.Widths = []int{5} },
		"downgrade": func(p *PortConfig) { p.Link.DowngradeWidths = []int{0} },
		"vau":       func(p *PortConfig) { p.Link.VAU = 8 },
		"vl15":      func(p *PortConfig) { p.Link.VL15Credits = 0x1000 },
		"timeout":   func(p *PortConfig) { p.Link.Timeouts.Offline = -1 },
		"exclusive": func(p *PortConfig) { p.Link.QuickLinkup = true; p.Link.Simulator = true },
	}

	for name, mutate := range cases {
		p := port("p1", "sim", 0, 0)
		mutate(&p)
		cfg := &Config{Lnictl: LnictlConfig{Ports: []PortConfig{p}}}

		if err := Validate(cfg); err == nil {
			t.Fatalf("%s: expected error, got nil", name)
		}
	}
}

func TestValidate_StatusSlotRequiresMemory(t *testing.T) {
	p := port("p1", "sim", 0, 0)
	p.StatusSlot = slot(0)

	cfg := &Config{Lnictl: LnictlConfig{Ports: []PortConfig{p}}}

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected missing status_memory error, got nil")
	}
}

func TestValidate_StatusSlotCollision(t *testing.T) {
	p1 := port("p1", "sim", 0, 0)
	p1.StatusSlot = slot(3)
	p2 := port("p2", "sim", 0, 0)
	p2.StatusSlot = slot(3)

	cfg := &Config{
		Lnictl: LnictlConfig{
			StatusMemory: &StatusMemoryConfig{Endpoint: "127.0.0.1:1502", UnitID: 1},
			Ports:        []PortConfig{p1, p2},
		},
	}

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected status_slot collision error, got nil")
	}
}

func TestValidate_DeviceNameASCII(t *testing.T) {
	p := port("p1", "sim", 0, 0)
	p.DeviceName = "pörtA"

	cfg := &Config{Lnictl: LnictlConfig{Ports: []PortConfig{p}}}

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected ASCII error, got nil")
	}
}

func TestValidate_RedisAddressRequired(t *testing.T) {
	cfg := &Config{
		Lnictl: LnictlConfig{
			Redis: &RedisConfig{},
			Ports: []PortConfig{port("p1", "sim", 0, 0)},
		},
	}

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected redis address error, got nil")
	}
}

func TestNormalize_Defaults(t *testing.T) {
	p := port("a-very-long-port-identifier", "sim", 0, 0)
	cfg := &Config{
		Lnictl: LnictlConfig{
			Redis: &RedisConfig{Address: "127.0.0.1:6379"},
			Ports: []PortConfig{p},
		},
	}

	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	Normalize(cfg)

	got := cfg.Lnictl.Ports[0]
	if got.Poll.IntervalMs != DefaultPollIntervalMs {
		t.Fatalf("poll interval = %d, want %d", got.Poll.IntervalMs, DefaultPollIntervalMs)
	}
	if got.DeviceName != "a-very-long-port" {
		t.Fatalf("device name = %q, want truncated id", got.DeviceName)
	}
	if cfg.Lnictl.Redis.Prefix != DefaultRedisPrefix {
		t.Fatalf("redis prefix = %q", cfg.Lnictl.Redis.Prefix)
	}
	if cfg.Lnictl.Log.Level != "info" || cfg.Lnictl.Log.Format != "text" {
		t.Fatalf("log defaults = %+v", cfg.Lnictl.Log)
	}
}
