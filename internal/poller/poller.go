// internal/poller/poller.go
package poller

import (
	"errors"
	"time"

	"github.com/jpillora/backoff"
)

// MaxBackoff caps the wait between polls of a failing bus.
const MaxBackoff = 5 * time.Second

// Config is the minimal runtime config the poller needs.
type Config struct {
	PortID   string
	Interval time.Duration
}

// Poller is a dumb, clock-driven reader.
type Poller struct {
	cfg    Config
	source Source

	// failing bus: stretch the interval up to MaxBackoff
	retry *backoff.Backoff
}

// New creates a poller with immutable config.
func New(cfg Config, source Source) (*Poller, error) {
	if cfg.PortID == "" {
		return nil, errors.New("poller: port id required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if source == nil {
		return nil, errors.New("poller: source required")
	}

	ceiling := MaxBackoff
	if cfg.Interval > ceiling {
		ceiling = cfg.Interval
	}

	return &Poller{
		cfg:    cfg,
		source: source,
		retry: &backoff.Backoff{
			Min:    cfg.Interval,
			Max:    ceiling,
			Factor: 2,
			Jitter: true,
		},
	}, nil
}

// PollOnce performs exactly one poll cycle.
func (p *Poller) PollOnce() PollResult {
	res := PollResult{
		PortID: p.cfg.PortID,
		At:     time.Now(),
	}

	bits, err := p.source.HostMessages()
	if err != nil {
		res.Err = err
		return res
	}

	res.Bits = bits
	return res
}

// next returns the delay before the poll after res.
func (p *Poller) next(res PollResult) time.Duration {
	if res.Err == nil {
		p.retry.Reset()
		return p.cfg.Interval
	}
	return p.retry.Duration()
}
