// internal/config/normalize.go
package config

import "github.com/tamzrod/lnictl/internal/status"

// Default values applied by Normalize.
const (
	DefaultPollIntervalMs = 10
	DefaultBusTimeoutMs   = 1000
	DefaultRedisPrefix    = "lnictl"
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	c := &cfg.Lnictl

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Redis != nil {
		if c.Redis.Prefix == "" {
			c.Redis.Prefix = DefaultRedisPrefix
		}
		if c.Redis.TimeoutMs == 0 {
			c.Redis.TimeoutMs = DefaultBusTimeoutMs
		}
	}
	if c.StatusMemory != nil && c.StatusMemory.TimeoutMs == 0 {
		c.StatusMemory.TimeoutMs = DefaultBusTimeoutMs
	}

	for pi := range c.Ports {
		p := &c.Ports[pi]

		if p.Bus.TimeoutMs == 0 {
			p.Bus.TimeoutMs = DefaultBusTimeoutMs
		}
		if p.Poll.IntervalMs == 0 {
			p.Poll.IntervalMs = DefaultPollIntervalMs
		}

		// Normalize device_name:
		// - ASCII already validated
		// - Truncate to the status block name field
		if p.DeviceName == "" {
			p.DeviceName = p.ID
		}
		if len(p.DeviceName) > status.DeviceNameMaxChars {
			p.DeviceName = p.DeviceName[:status.DeviceNameMaxChars]
		}
	}
}
