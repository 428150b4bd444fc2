// internal/config/config.go
package config

type Config struct {
	Lnictl LnictlConfig `yaml:"lnictl"`
}

type LnictlConfig struct {
	Log          LogConfig           `yaml:"log"`
	Redis        *RedisConfig        `yaml:"redis"`         // optional
	StatusMemory *StatusMemoryConfig `yaml:"status_memory"` // optional
	Ports        []PortConfig        `yaml:"ports"`
}

// ---- LOG ----

type LogConfig struct {
	Level  string `yaml:"level"`  // trace|debug|info|warn|error
	Format string `yaml:"format"` // text|json
}

// ---- STATUS TARGETS ----

type RedisConfig struct {
	Address   string `yaml:"address"`
	Prefix    string `yaml:"prefix"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

type StatusMemoryConfig struct {
	Endpoint  string `yaml:"endpoint"`
	UnitID    uint8  `yaml:"unit_id"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// ---- PORT ----

type PortConfig struct {
	ID   string     `yaml:"id"`
	Bus  BusConfig  `yaml:"bus"`
	Poll PollConfig `yaml:"poll"`
	Link LinkConfig `yaml:"link"`

	// Port status block (optional, opt-in)
	StatusSlot *uint16 `yaml:"status_slot"`
	DeviceName string  `yaml:"device_name"`
}

// ---- REGISTER BUS ----

// BusConfig selects how the adapter registers are reached.
// endpoint: "host:port" (Modbus TCP), "rtu:/dev/ttyX" (Modbus RTU) or "sim".
type BusConfig struct {
	Endpoint    string `yaml:"endpoint"`
	UnitID      uint8  `yaml:"unit_id"`
	TimeoutMs   int    `yaml:"timeout_ms"`
	BaseAddress uint16 `yaml:"base_address"`
	BaudRate    int    `yaml:"baud_rate"`
	FlushWrites bool   `yaml:"flush_writes"`
}

// ---- POLL ----

type PollConfig struct {
	IntervalMs int `yaml:"interval_ms"`
}

// ---- LINK ----

type LinkConfig struct {
	QuickLinkup    bool `yaml:"quick_linkup"`
	Simulator      bool `yaml:"simulator"`
	ActiveOptimize bool `yaml:"active_optimize"`
	// AutoActivate drives UpInit to UpActive once the link is up, for
	// fabrics without a subnet manager.
	AutoActivate bool `yaml:"auto_activate"`

	Speeds          []string `yaml:"speeds"`    // "12.5G", "25G", "50G"
	CRCModes        []string `yaml:"crc_modes"` // "14b", "48b", "per-lane", "16b"
	Widths          []int    `yaml:"widths"`    // lane counts 1..4
	DowngradeWidths []int    `yaml:"downgrade_widths"`

	VAU         uint8  `yaml:"vau"`
	Z           bool   `yaml:"z"`
	VCU         uint8  `yaml:"vcu"`
	VL15Credits uint16 `yaml:"vl15_credits"`

	DeviceID  uint16 `yaml:"device_id"`
	DeviceRev uint8  `yaml:"device_rev"`

	Timeouts TimeoutsConfig `yaml:"timeouts_ms"`
}

// TimeoutsConfig holds bounded waits in milliseconds; zero means default.
type TimeoutsConfig struct {
	Command       int `yaml:"command"`
	Start         int `yaml:"start"`
	Offline       int `yaml:"offline"`
	Disable       int `yaml:"disable"`
	LinkUp        int `yaml:"link_up"`
	Logical       int `yaml:"logical"`
	FirmwareReady int `yaml:"firmware_ready"`
	OutOfOffline  int `yaml:"out_of_offline"`
	IdleBudget    int `yaml:"idle_budget"`
	Poll          int `yaml:"poll"`
}
