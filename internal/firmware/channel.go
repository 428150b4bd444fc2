package firmware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tamzrod/lnictl/internal/logging"
)

// Health is the channel's view of the co-processor.
type Health int

const (
	Healthy  Health = iota
	Degraded        // one command timed out; recover before the next one
	Dead            // two consecutive timeouts; refuse everything
)

func (h Health) String() string {
	switch h {
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	case Dead:
		return "dead"
	}
	return fmt.Sprintf("Health(%d)", int(h))
}

// ChannelConfig bounds the waits done by the channel.
type ChannelConfig struct {
	CommandTimeout time.Duration // completion wait per command
	StartTimeout   time.Duration // firmware-ready wait after a restart
	PollInterval   time.Duration // firmware-ready poll period
}

func (c ChannelConfig) withDefaults() ChannelConfig {
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = 3 * time.Second
	}
	if c.StartTimeout <= 0 {
		c.StartTimeout = 5 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Millisecond
	}
	return c
}

// Channel serializes commands to one port's co-processor.
type Channel struct {
	mu  sync.Mutex
	hw  Hardware
	cfg ChannelConfig
	log *slog.Logger

	health   Health
	timeouts int
	shutdown bool
}

func NewChannel(hw Hardware, cfg ChannelConfig, log *slog.Logger) *Channel {
	if log == nil {
		log = slog.Default()
	}
	return &Channel{
		hw:  hw,
		cfg: cfg.withDefaults(),
		log: log.With("component", "firmware"),
	}
}

// Health returns the current channel health.
func (c *Channel) Health() Health {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.health
}

// IsShutDown reports whether the co-processor is administratively down.
func (c *Channel) IsShutDown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shutdown
}

// Execute runs one command and returns its response data.
func (c *Channel) Execute(kind Kind, in uint64) (uint64, error) {
	cmd := Command{Kind: kind, In: in}
	err := c.Run(&cmd)
	return cmd.Out, err
}

// Run executes cmd in place. A non-success completion code is returned as
// *CommandError with cmd.Out still filled in.
func (c *Channel) Run(cmd *Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.shutdown {
		return fmt.Errorf("%s: %w", cmd.Kind, ErrShutDown)
	}

	switch c.health {
	case Dead:
		c.log.Error("previous command timed out twice, skipping", "kind", cmd.Kind)
		return fmt.Errorf("%s: %w", cmd.Kind, ErrChannelDead)
	case Degraded:
		c.log.Warn("restarting co-processor after command timeout")
		if err := c.restart(); err != nil {
			// Try the command anyway; a second timeout marks the channel dead.
			c.log.Error("co-processor restart failed", "err", err)
		}
	}

	err := c.hw.Do(cmd, c.cfg.CommandTimeout)
	c.log.Log(context.Background(), logging.LevelTrace.ToSlog(), "command",
		"kind", cmd.Kind,
		"in", fmt.Sprintf("0x%x", cmd.In),
		"out", fmt.Sprintf("0x%x", cmd.Out),
		"code", cmd.Code,
		"err", err,
	)
	if errors.Is(err, ErrNoCompletion) {
		c.timeouts++
		if c.timeouts > 1 {
			c.health = Dead
		} else {
			c.health = Degraded
		}
		c.log.Error("command timed out",
			"kind", cmd.Kind,
			"timeout", c.cfg.CommandTimeout,
			"health", c.health,
		)
		return fmt.Errorf("%s: %w", cmd.Kind, ErrChannelTimeout)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", cmd.Kind, err)
	}

	c.timeouts = 0
	c.health = Healthy

	if cmd.Code != RetSuccess {
		return &CommandError{Kind: cmd.Kind, Code: cmd.Code}
	}
	return nil
}

// Shutdown holds the co-processor in reset. Commands fail with ErrShutDown
// until Start.
func (c *Channel) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.shutdown {
		return nil
	}
	c.shutdown = true
	if err := c.hw.Halt(); err != nil {
		return fmt.Errorf("firmware: halt: %w", err)
	}
	return nil
}

// Start releases an administratively shut down co-processor and waits for
// its firmware to report ready.
func (c *Channel) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.shutdown {
		return nil
	}
	if err := c.hw.Release(); err != nil {
		return fmt.Errorf("firmware: release: %w", err)
	}
	if err := c.waitReady(); err != nil {
		c.log.Error("timeout starting co-processor firmware")
		return err
	}
	c.shutdown = false
	return nil
}

// Revive clears a dead channel. It is the operator's explicit reset and is
// never invoked by the link state machine itself.
func (c *Channel) Revive() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.restart()
	c.timeouts = 0
	c.health = Healthy
	return err
}

func (c *Channel) restart() error {
	if err := c.hw.Halt(); err != nil {
		return fmt.Errorf("firmware: halt: %w", err)
	}
	if err := c.hw.Release(); err != nil {
		return fmt.Errorf("firmware: release: %w", err)
	}
	return c.waitReady()
}

func (c *Channel) waitReady() error {
	deadline := time.Now().Add(c.cfg.StartTimeout)
	for {
		ok, err := c.hw.Ready()
		if err != nil {
			return fmt.Errorf("firmware: ready: %w", err)
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("firmware: not ready after %s: %w", c.cfg.StartTimeout, ErrChannelTimeout)
		}
		time.Sleep(c.cfg.PollInterval)
	}
}

// ---- typed command helpers ----

// LaneGeneral addresses configuration fields that are not per lane.
const LaneGeneral uint8 = 4

func configAddress(field Field, lane uint8) uint64 {
	return uint64(field)<<40 | uint64(lane)<<32
}

// LoadConfig writes one 32-bit configuration field.
func (c *Channel) LoadConfig(field Field, lane uint8, data uint32) error {
	_, err := c.Execute(KindLoadConfig, configAddress(field, lane)|uint64(data))
	return err
}

// ReadConfig reads one 32-bit configuration field.
func (c *Channel) ReadConfig(field Field, lane uint8) (uint32, error) {
	out, err := c.Execute(KindReadConfig, configAddress(field, lane))
	return uint32(out), err
}

// ChangePhysicalState asks the co-processor to move the physical link.
// reason is carried with offline requests and sent to the neighbor.
func (c *Channel) ChangePhysicalState(req PhysRequest, reason uint8) error {
	_, err := c.Execute(KindChangePhyState, uint64(reason)<<8|uint64(req))
	return err
}

// ReadLinkCSR reads a 64-bit link-layer register owned by the co-processor.
func (c *Channel) ReadLinkCSR(regno uint8) (uint64, error) {
	return c.Execute(KindReadLinkCSR, uint64(regno))
}

// WriteLinkCSR writes a 64-bit link-layer register owned by the co-processor.
// The low 40 data bits ride in the request, the rest in the extension word.
func (c *Channel) WriteLinkCSR(regno uint8, v uint64) error {
	cmd := Command{
		Kind: KindWriteLinkCSR,
		In:   uint64(regno) | (v&(1<<40-1))<<8,
		Ext:  v >> 40,
	}
	return c.Run(&cmd)
}

// PhysRequest is a physical state the host may request.
type PhysRequest uint8

const (
	ReqPolling     PhysRequest = 0x20
	ReqDisabled    PhysRequest = 0x30
	ReqLinkUp      PhysRequest = 0x50
	ReqOffline     PhysRequest = 0x90
	ReqQuickLinkUp PhysRequest = 0xe0
)

func (r PhysRequest) String() string {
	switch r {
	case ReqPolling:
		return "polling"
	case ReqDisabled:
		return "disabled"
	case ReqLinkUp:
		return "linkup"
	case ReqOffline:
		return "offline"
	case ReqQuickLinkUp:
		return "quick linkup"
	}
	return fmt.Sprintf("request 0x%02x", uint8(r))
}
