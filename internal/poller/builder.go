// internal/poller/builder.go
package poller

import (
	"time"

	cfg "github.com/tamzrod/lnictl/internal/config"
)

// Build constructs a Poller for one port.
// The source is the port's register device; its lifecycle is owned by the caller.
// No retries, no loops, no semantics.
func Build(p cfg.PortConfig, source Source) (*Poller, error) {
	return New(
		Config{
			PortID:   p.ID,
			Interval: time.Duration(p.Poll.IntervalMs) * time.Millisecond,
		},
		source,
	)
}
