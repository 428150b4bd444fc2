package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/lnictl/internal/config"
	"github.com/tamzrod/lnictl/internal/firmware"
	"github.com/tamzrod/lnictl/internal/link"
	"github.com/tamzrod/lnictl/internal/logging"
	"github.com/tamzrod/lnictl/internal/sim"
	"github.com/tamzrod/lnictl/internal/status"
	"github.com/tamzrod/lnictl/internal/writer"
)

type recordingWriter struct {
	mu   sync.Mutex
	last status.Snapshot
	n    int
}

func (r *recordingWriter) WriteStatus(s status.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = s
	r.n++
	return nil
}

func (r *recordingWriter) snapshot() (status.Snapshot, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.n
}

func simPort(autoActivate bool) config.PortConfig {
	return config.PortConfig{
		ID:   "sim0",
		Bus:  config.BusConfig{Endpoint: "sim"},
		Poll: config.PollConfig{IntervalMs: 1},
		Link: config.LinkConfig{
			AutoActivate: autoActivate,
			Timeouts:     config.TimeoutsConfig{Poll: 1},
		},
	}
}

func startPort(t *testing.T, p config.PortConfig) (*portRuntime, *recordingWriter, func()) {
	t.Helper()

	rt, err := buildPort(p, writer.Plan{PortID: p.ID}, nil, nil, logging.Discard())
	require.NoError(t, err)
	return runPort(t, rt)
}

func runPort(t *testing.T, rt *portRuntime) (*portRuntime, *recordingWriter, func()) {
	t.Helper()

	rec := &recordingWriter{}
	rt.status = rec

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		rt.run(ctx, &wg)
	}()

	return rt, rec, func() {
		cancel()
		wg.Wait()
		_ = rt.closeBus()
	}
}

func TestPort_SimBringUpToActive(t *testing.T) {
	rt, rec, stop := startPort(t, simPort(true))
	defer stop()

	require.Eventually(t, func() bool {
		return rt.ctrl.State() == link.UpActive
	}, 3*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		s, _ := rec.snapshot()
		return s.Health == status.HealthOK
	}, 3*time.Second, 5*time.Millisecond)

	s, _ := rec.snapshot()
	assert.Equal(t, uint16(link.UpActive), s.LinkState)
	assert.NotZero(t, s.Speed)
	assert.Equal(t, uint16(1), s.LinkUps)
	assert.Zero(t, s.SecondsInError)
}

func TestPort_WithoutAutoActivateStopsAtInit(t *testing.T) {
	rt, rec, stop := startPort(t, simPort(false))
	defer stop()

	require.Eventually(t, func() bool {
		return rt.ctrl.State() == link.UpInit
	}, 3*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		s, _ := rec.snapshot()
		return s.LinkState == uint16(link.UpInit)
	}, 3*time.Second, 5*time.Millisecond)

	s, _ := rec.snapshot()
	assert.Equal(t, status.HealthLinking, s.Health)
}

func TestEventSink_DropsWhenFull(t *testing.T) {
	s := &eventSink{events: make(chan portEvent, 1), log: logging.Discard()}

	s.OnPortActive()
	s.OnPortActive()

	assert.Len(t, s.events, 1)
}

func TestPort_ReviveRecoversDeadChannel(t *testing.T) {
	p := simPort(true)
	p.Link.Timeouts.Command = 20

	a := sim.New(sim.Options{Partner: sim.DefaultPartner(), AutoTrain: true})
	rt, err := buildPortOnBus(p, a.Bus(), func() error { return nil },
		writer.Plan{PortID: p.ID}, nil, nil, logging.Discard())
	require.NoError(t, err)

	rt, _, stop := runPort(t, rt)
	defer stop()

	require.Eventually(t, func() bool {
		return rt.ctrl.State() == link.UpActive
	}, 3*time.Second, 5*time.Millisecond)

	// a healthy channel is left alone
	rt.requestRevive()
	time.Sleep(20 * time.Millisecond)
	ups, _ := rt.ctrl.Counters()
	assert.Equal(t, uint64(1), ups)

	a.Stall(2)
	assert.Error(t, rt.ctrl.SendSMA(1))
	assert.ErrorIs(t, rt.ctrl.SendSMA(1), firmware.ErrChannelTimeout)
	require.Equal(t, firmware.Dead, rt.ch.Health())
	assert.ErrorIs(t, rt.ctrl.SendSMA(1), firmware.ErrChannelDead)

	rt.requestRevive()
	require.Eventually(t, func() bool {
		ups, _ := rt.ctrl.Counters()
		return ups == 2 && rt.ctrl.State() == link.UpActive
	}, 3*time.Second, 5*time.Millisecond)
	assert.Equal(t, firmware.Healthy, rt.ch.Health())
}

func TestRequestRevive_Merges(t *testing.T) {
	rt := &portRuntime{revives: make(chan struct{}, 1)}
	rt.requestRevive()
	rt.requestRevive()
	assert.Len(t, rt.revives, 1)
}
