package link

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tamzrod/lnictl/internal/csr"
)

// Event is a unit of deferred link work.
type Event int

const (
	EventVerifyCap Event = iota
	EventLinkUp
	EventLinkDown
	EventBounce
	EventSMA
	EventWidthDowngrade
	numEvents
)

var eventNames = [...]string{
	EventVerifyCap:      "verify cap",
	EventLinkUp:         "link up",
	EventLinkDown:       "link down",
	EventBounce:         "bounce",
	EventSMA:            "sma",
	EventWidthDowngrade: "width downgrade",
}

func (e Event) String() string {
	if e >= 0 && e < numEvents {
		return eventNames[e]
	}
	return fmt.Sprintf("Event(%d)", int(e))
}

// queueDepth bounds queued events. Every kind but bounce is queued at most
// once, so only repeated bounces can fill it.
const queueDepth = 32

// Dispatcher turns host message bits into link events and runs them one
// at a time on its worker.
type Dispatcher struct {
	c   *Controller
	log *slog.Logger

	queue chan Event

	mu      sync.Mutex
	pending [numEvents]bool
}

func NewDispatcher(c *Controller, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		c:     c,
		log:   log.With("component", "dispatch"),
		queue: make(chan Event, queueDepth),
	}
}

// OnInterruptMessage decodes host message bits and schedules their
// handlers.
func (d *Dispatcher) OnInterruptMessage(bits uint64) {
	rest := bits

	if bits&csr.MsgVerifyCapFrame != 0 {
		d.schedule(EventVerifyCap)
	}
	if bits&csr.MsgLinkupAchieved != 0 {
		d.schedule(EventLinkUp)
	}
	if bits&csr.MsgLinkGoingDown != 0 {
		d.scheduleLinkDown("link going down")
	}
	if bits&csr.MsgFailedLNI != 0 {
		// only meaningful while negotiating
		switch s := d.c.State(); s {
		case DownPoll, VerifyCap, GoingUp:
			d.scheduleLinkDown("failed lni")
		default:
			d.log.Debug("ignoring failed lni", "state", s)
		}
	}
	if bits&csr.MsgSMA != 0 {
		d.schedule(EventSMA)
	}
	if bits&csr.MsgLinkWidthDowngraded != 0 {
		d.schedule(EventWidthDowngrade)
	}
	if bits&csr.MsgExtDeviceCfgReq != 0 {
		d.log.Info("external device config request")
	}
	rest &^= csr.MsgVerifyCapFrame | csr.MsgLinkupAchieved | csr.MsgLinkGoingDown |
		csr.MsgFailedLNI | csr.MsgSMA | csr.MsgLinkWidthDowngraded |
		csr.MsgExtDeviceCfgReq | csr.MsgHostReqDone

	if rest != 0 {
		d.log.Warn("unknown host message bits", "bits", fmt.Sprintf("0x%x", rest))
	}
}

// Bounce schedules a link bounce. Bounces are never coalesced.
func (d *Dispatcher) Bounce() {
	d.enqueue(EventBounce)
}

// Pending reports whether an event of kind e is queued or, for link down,
// not yet offline.
func (d *Dispatcher) Pending(e Event) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending[e]
}

func (d *Dispatcher) scheduleLinkDown(why string) {
	switch s := d.c.State(); s {
	case GoingOffline, LinkCooldown, DownOffline:
		d.log.Info("link down already in progress, not queueing", "why", why, "state", s)
		return
	}
	d.schedule(EventLinkDown)
}

func (d *Dispatcher) schedule(e Event) {
	d.mu.Lock()
	if d.pending[e] {
		d.mu.Unlock()
		d.log.Debug("event already pending", "event", e)
		return
	}
	d.pending[e] = true
	d.mu.Unlock()

	d.enqueue(e)
}

func (d *Dispatcher) enqueue(e Event) {
	select {
	case d.queue <- e:
	default:
		d.log.Error("event queue full, dropping", "event", e)
		d.clear(e)
	}
}

func (d *Dispatcher) clear(e Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending[e] = false
}

// Run executes queued events until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-d.queue:
			d.run(e)
		}
	}
}

func (d *Dispatcher) run(e Event) {
	d.log.Debug("running event", "event", e)

	// link down stays pending until the link is offline
	if e != EventLinkDown {
		d.clear(e)
	}

	switch e {
	case EventVerifyCap:
		d.c.HandleVerifyCap()
	case EventLinkUp:
		d.c.HandleLinkUp()
	case EventLinkDown:
		d.c.HandleLinkDown(func() { d.clear(EventLinkDown) })
	case EventBounce:
		d.c.HandleBounce()
	case EventSMA:
		d.c.HandleSMA()
	case EventWidthDowngrade:
		d.c.HandleWidthDowngrade()
	}
}
