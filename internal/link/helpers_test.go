package link

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tamzrod/lnictl/internal/csr"
	"github.com/tamzrod/lnictl/internal/firmware"
	"github.com/tamzrod/lnictl/internal/sim"
)

type recordingSink struct {
	mu       sync.Mutex
	ups      []Capabilities
	actives  int
	errors   []LinkDownReason
	vlsReady bool
}

func (s *recordingSink) OnLinkUp(c Capabilities) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ups = append(s.ups, c)
}

func (s *recordingSink) OnPortActive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actives++
}

func (s *recordingSink) OnPortError(r LinkDownReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, r)
}

func (s *recordingSink) DataVLsOperational() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vlsReady
}

func (s *recordingSink) counts() (ups, actives, errors int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ups), s.actives, len(s.errors)
}

type port struct {
	sim  *sim.Adapter
	dev  *csr.Device
	ch   *firmware.Channel
	c    *Controller
	d    *Dispatcher
	sink *recordingSink
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Timeouts = Timeouts{
		Offline:       60 * time.Millisecond,
		Disable:       60 * time.Millisecond,
		LinkUp:        40 * time.Millisecond,
		Logical:       40 * time.Millisecond,
		FirmwareReady: 40 * time.Millisecond,
		OutOfOffline:  40 * time.Millisecond,
		IdleBudget:    20 * time.Millisecond,
		Poll:          time.Millisecond,
	}
	return cfg
}

func newPort(t *testing.T, opts sim.Options, mod func(*Config)) *port {
	t.Helper()

	a := sim.New(opts)
	dev := csr.New(a.Bus(), csr.Options{PollInterval: 20 * time.Microsecond})
	ch := firmware.NewChannel(dev, firmware.ChannelConfig{
		CommandTimeout: 10 * time.Millisecond,
		StartTimeout:   20 * time.Millisecond,
		PollInterval:   time.Millisecond,
	}, quiet())

	cfg := testConfig()
	if mod != nil {
		mod(&cfg)
	}
	sink := &recordingSink{vlsReady: true}
	c := New(dev, ch, cfg, sink, quiet())
	return &port{sim: a, dev: dev, ch: ch, c: c, d: NewDispatcher(c, quiet()), sink: sink}
}

// deliver reads the host message register into the dispatcher.
func (p *port) deliver(t *testing.T) uint64 {
	t.Helper()
	bits, err := p.dev.HostMessages()
	require.NoError(t, err)
	p.d.OnInterruptMessage(bits)
	return bits
}

// step runs the next queued event on the calling goroutine.
func (p *port) step(t *testing.T) Event {
	t.Helper()
	select {
	case e := <-p.d.queue:
		p.d.run(e)
		return e
	default:
		t.Fatal("no event queued")
		return 0
	}
}

// bringUp drives the port from DownOffline to UpInit through the normal
// negotiation path.
func (p *port) bringUp(t *testing.T) {
	t.Helper()
	require.NoError(t, p.c.StartLink())
	require.Equal(t, DownPoll, p.c.State())

	p.deliver(t)
	require.Equal(t, EventVerifyCap, p.step(t))
	require.Equal(t, GoingUp, p.c.State())

	p.deliver(t)
	require.Equal(t, EventLinkUp, p.step(t))
	require.Equal(t, UpInit, p.c.State())
}

func countRequests(reqs []firmware.PhysRequest, want firmware.PhysRequest) int {
	n := 0
	for _, r := range reqs {
		if r == want {
			n++
		}
	}
	return n
}
