// cmd/lnictl/port.go
package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tamzrod/lnictl/internal/config"
	"github.com/tamzrod/lnictl/internal/csr"
	"github.com/tamzrod/lnictl/internal/firmware"
	"github.com/tamzrod/lnictl/internal/link"
	"github.com/tamzrod/lnictl/internal/poller"
	"github.com/tamzrod/lnictl/internal/regbus"
	"github.com/tamzrod/lnictl/internal/status"
	"github.com/tamzrod/lnictl/internal/writer"
	wredis "github.com/tamzrod/lnictl/internal/writer/redis"
)

// portEvent is a controller callback handed to the orchestrator.
type portEvent struct {
	kind   string
	caps   link.Capabilities
	reason link.LinkDownReason
}

// eventSink forwards controller callbacks without blocking the controller.
type eventSink struct {
	events chan portEvent
	log    *slog.Logger
}

func (s *eventSink) send(ev portEvent) {
	select {
	case s.events <- ev:
	default:
		s.log.Warn("event dropped, orchestrator busy", "event", ev.kind)
	}
}

func (s *eventSink) OnLinkUp(c link.Capabilities) {
	s.send(portEvent{kind: wredis.EventLinkUp, caps: c})
}

func (s *eventSink) OnPortActive() {
	s.send(portEvent{kind: wredis.EventPortActive})
}

func (s *eventSink) OnPortError(r link.LinkDownReason) {
	s.send(portEvent{kind: wredis.EventPortError, reason: r})
}

// portRuntime is one port's pipeline:
// bus -> device -> channel -> controller -> dispatcher, fed by a poller.
type portRuntime struct {
	id           string
	autoActivate bool
	log          *slog.Logger

	ch      *firmware.Channel
	ctrl    *link.Controller
	disp    *link.Dispatcher
	poller  *poller.Poller
	events  chan portEvent
	revives chan struct{}

	status    writer.StatusWriter // nil: no status targets
	publisher *wredis.PortWriter  // nil: redis disabled

	closeBus func() error
}

func buildPort(
	p config.PortConfig,
	plan writer.Plan,
	statusClients writer.EndpointClients,
	pub *wredis.Publisher,
	log *slog.Logger,
) (*portRuntime, error) {
	log = log.With("port", p.ID)

	bus, closeBus, err := openBus(p.ID, p.Bus, log)
	if err != nil {
		return nil, err
	}
	return buildPortOnBus(p, bus, closeBus, plan, statusClients, pub, log)
}

// buildPortOnBus assembles the pipeline over an open bus. log already
// carries the port.
func buildPortOnBus(
	p config.PortConfig,
	bus regbus.Bus,
	closeBus func() error,
	plan writer.Plan,
	statusClients writer.EndpointClients,
	pub *wredis.Publisher,
	log *slog.Logger,
) (*portRuntime, error) {
	dev := csr.New(bus, csr.Options{FlushWrites: p.Bus.FlushWrites})
	ch := firmware.NewChannel(dev, channelConfig(p.Link.Timeouts), log)

	events := make(chan portEvent, 16)
	sink := &eventSink{events: events, log: log}

	ctrl := link.New(dev, ch, linkConfig(p.Link), sink, log)
	disp := link.NewDispatcher(ctrl, log)

	pl, err := poller.Build(p, dev)
	if err != nil {
		_ = closeBus()
		return nil, err
	}

	rt := &portRuntime{
		id:           p.ID,
		autoActivate: p.Link.AutoActivate,
		log:          log,
		ch:           ch,
		ctrl:         ctrl,
		disp:         disp,
		poller:       pl,
		events:       events,
		revives:      make(chan struct{}, 1),
		closeBus:     closeBus,
	}

	var targets []writer.StatusWriter
	if sw, enabled := writer.NewDeviceStatusWriter(plan, statusClients); enabled {
		targets = append(targets, sw)
	}
	if pub != nil {
		rt.publisher = pub.Port(p.ID)
		targets = append(targets, rt.publisher)
	}
	if len(targets) > 0 {
		rt.status = writer.New(targets...)
	}

	return rt, nil
}

// run starts the dispatcher worker and the poller, brings the link up and
// then owns the status snapshot until ctx ends.
func (rt *portRuntime) run(ctx context.Context, wg *sync.WaitGroup) {
	polls := make(chan poller.PollResult)

	wg.Add(2)
	go func() {
		defer wg.Done()
		rt.disp.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		rt.poller.Run(ctx, polls)
	}()

	if err := rt.ctrl.StartLink(); err != nil {
		rt.log.Error("start link failed", "err", err)
	}

	rt.orchestrate(ctx, polls)
}

// orchestrate is the runner-owned state + 1Hz seconds ticker.
func (rt *portRuntime) orchestrate(ctx context.Context, polls <-chan poller.PollResult) {
	var (
		pollErr error
		seconds uint16
		health  = status.HealthUnknown
		last    status.Snapshot
		written bool
	)

	secTicker := time.NewTicker(time.Second)
	defer secTicker.Stop()

	refresh := func() {
		snap := status.Capture(rt.ctrl, pollErr)
		if snap.Health == status.HealthOK {
			seconds = 0
		}
		snap.SecondsInError = seconds
		health = snap.Health

		if rt.status == nil || (written && snap == last) {
			return
		}
		if err := rt.status.WriteStatus(snap); err != nil {
			rt.log.Warn("status write failed", "err", err)
			return
		}
		last = snap
		written = true
	}

	// Full block write on start (identity re-assert).
	refresh()

	for {
		select {
		case <-ctx.Done():
			return

		case res := <-polls:
			if res.Err != nil {
				if pollErr == nil {
					rt.log.Warn("host message poll failed", "err", res.Err)
				}
				pollErr = res.Err
			} else {
				if pollErr != nil {
					rt.log.Info("host message poll recovered")
				}
				pollErr = nil
				if res.Bits != 0 {
					rt.disp.OnInterruptMessage(res.Bits)
				}
			}
			refresh()

		case ev := <-rt.events:
			rt.publish(ev)
			if ev.kind == wredis.EventLinkUp && rt.autoActivate {
				rt.activate()
			}
			refresh()

		case <-rt.revives:
			rt.revive()
			refresh()

		case <-secTicker.C:
			// Tick 1 Hz while not OK.
			if health != status.HealthOK && seconds < 65535 {
				seconds++
			}
			refresh()
		}
	}
}

// requestRevive asks the orchestrator to recover a dead co-processor
// channel. Requests made while one is queued are merged.
func (rt *portRuntime) requestRevive() {
	select {
	case rt.revives <- struct{}{}:
	default:
	}
}

// revive resets a dead co-processor and renegotiates the link. A channel
// that is not dead is left alone.
func (rt *portRuntime) revive() {
	if h := rt.ch.Health(); h != firmware.Dead {
		rt.log.Info("co-processor channel not dead, nothing to revive", "health", h)
		return
	}

	rt.log.Warn("reviving co-processor channel")
	if err := rt.ch.Revive(); err != nil {
		rt.log.Error("co-processor revive failed", "err", err)
		return
	}
	if err := rt.ctrl.RequestBounce(); err != nil {
		rt.log.Error("restart link after revive failed", "err", err)
	}
}

// activate walks a freshly initialized link to UpActive.
func (rt *portRuntime) activate() {
	for _, target := range []link.LinkState{link.UpArmed, link.UpActive} {
		if err := rt.ctrl.SetState(target); err != nil {
			rt.log.Warn("auto activate failed", "target", target, "err", err)
			return
		}
	}
}

func (rt *portRuntime) publish(ev portEvent) {
	state, prev := rt.ctrl.State(), rt.ctrl.PrevState()
	rt.log.Info("port event", "event", ev.kind, "state", state, "previous", prev)

	if rt.publisher == nil {
		return
	}

	out := wredis.Event{
		Kind:     ev.kind,
		State:    state.String(),
		Previous: prev.String(),
	}
	switch ev.kind {
	case wredis.EventLinkUp:
		out.Speed = status.SpeedUnits(ev.caps.Speed)
	case wredis.EventPortError:
		out.Reason = ev.reason.Local
		out.Neighbor = ev.reason.Neighbor
	}

	if err := rt.publisher.Publish(out); err != nil {
		rt.log.Warn("event publish failed", "err", err)
	}
}
