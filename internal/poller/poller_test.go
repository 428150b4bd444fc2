// internal/poller/poller_test.go
package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tamzrod/lnictl/internal/config"
)

type fakeSource struct {
	mu    sync.Mutex
	steps []step
	calls int
}

type step struct {
	bits uint64
	err  error
}

func (f *fakeSource) HostMessages() (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if len(f.steps) == 0 {
		return 0, nil
	}
	s := f.steps[0]
	f.steps = f.steps[1:]
	return s.bits, s.err
}

func TestPollOnce_Success(t *testing.T) {
	p, err := New(Config{PortID: "p1", Interval: time.Millisecond}, &fakeSource{
		steps: []step{{bits: 0x5}},
	})
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	res := p.PollOnce()
	if res.Err != nil {
		t.Fatalf("PollOnce err=%v", res.Err)
	}
	if res.Bits != 0x5 || res.PortID != "p1" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestPollOnce_Failure(t *testing.T) {
	p, err := New(Config{PortID: "p1", Interval: time.Millisecond}, &fakeSource{
		steps: []step{{err: errors.New("bus down")}},
	})
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	if res := p.PollOnce(); res.Err == nil {
		t.Fatalf("expected error, got nil")
	}
}

func TestNew_RejectsBadConfig(t *testing.T) {
	if _, err := New(Config{Interval: time.Millisecond}, &fakeSource{}); err == nil {
		t.Fatalf("expected missing id error")
	}
	if _, err := New(Config{PortID: "p1"}, &fakeSource{}); err == nil {
		t.Fatalf("expected interval error")
	}
	if _, err := New(Config{PortID: "p1", Interval: time.Millisecond}, nil); err == nil {
		t.Fatalf("expected missing source error")
	}
}

func TestNext_BacksOffAndResets(t *testing.T) {
	p, _ := New(Config{PortID: "p1", Interval: 10 * time.Millisecond}, &fakeSource{})

	failed := PollResult{Err: errors.New("x")}
	first := p.next(failed)
	p.next(failed)
	third := p.next(failed)

	if third <= first/2 {
		t.Fatalf("backoff did not grow: first=%v third=%v", first, third)
	}
	if d := p.next(PollResult{}); d != 10*time.Millisecond {
		t.Fatalf("success should reset to interval, got %v", d)
	}
	if d := p.next(failed); d > 2*10*time.Millisecond {
		t.Fatalf("backoff not reset after success: %v", d)
	}
}

func TestRun_EmitsOnlyInterestingResults(t *testing.T) {
	src := &fakeSource{steps: []step{
		{},
		{bits: 0x4},
		{},
		{err: errors.New("bus down")},
		{},
	}}
	p, _ := New(Config{PortID: "p1", Interval: time.Millisecond}, src)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan PollResult)
	go p.Run(ctx, out)

	got := make([]PollResult, 0, 3)
	timeout := time.After(2 * time.Second)
	for len(got) < 3 {
		select {
		case r := <-out:
			got = append(got, r)
		case <-timeout:
			t.Fatalf("timed out after %d results", len(got))
		}
	}

	if got[0].Bits != 0x4 {
		t.Fatalf("first emitted result should carry bits: %+v", got[0])
	}
	if got[1].Err == nil {
		t.Fatalf("second emitted result should be the failure: %+v", got[1])
	}
	if got[2].Err != nil || got[2].Bits != 0 {
		t.Fatalf("third emitted result should be the recovery: %+v", got[2])
	}
}

func TestBuild_FromPortConfig(t *testing.T) {
	p, err := Build(config.PortConfig{ID: "hfi0", Poll: config.PollConfig{IntervalMs: 10}}, &fakeSource{})
	if err != nil {
		t.Fatalf("Build err=%v", err)
	}
	if p.cfg.Interval != 10*time.Millisecond {
		t.Fatalf("interval = %v", p.cfg.Interval)
	}
}
