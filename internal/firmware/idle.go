package firmware

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jpillora/backoff"
)

// IdleType is the message type in the low byte of an idle message.
type IdleType uint8

const (
	IdleMessage IdleType = 1
	IdleSMA     IdleType = 2
)

const (
	idleTypeMask     = 0xff
	idlePayloadShift = 8
	idlePayloadMask  = 1<<40 - 1
)

// SMA idle payloads.
const (
	SMAArm    uint64 = 1
	SMAActive uint64 = 2
)

// IdleMessenger exchanges short messages with the neighbor over the idle
// flit protocol.
type IdleMessenger struct {
	ch     *Channel
	budget time.Duration
	log    *slog.Logger

	// min and max bound the sleep between busy retries
	min, max time.Duration
}

func NewIdleMessenger(ch *Channel, budget time.Duration, log *slog.Logger) *IdleMessenger {
	if budget <= 0 {
		budget = 250 * time.Millisecond
	}
	if log == nil {
		log = slog.Default()
	}
	return &IdleMessenger{
		ch:     ch,
		budget: budget,
		log:    log.With("component", "idle"),
		min:    time.Millisecond,
		max:    20 * time.Millisecond,
	}
}

// EncodeIdle places typ in the header and payload above it.
func EncodeIdle(typ IdleType, payload uint64) uint64 {
	return uint64(typ) | (payload&idlePayloadMask)<<idlePayloadShift
}

// Send transmits one idle message, retrying while the co-processor
// reports flow-control busy. ErrBusy is returned once the budget is spent.
func (m *IdleMessenger) Send(msg uint64) error {
	b := &backoff.Backoff{Min: m.min, Max: m.max, Factor: 2}
	deadline := time.Now().Add(m.budget)
	for {
		_, err := m.ch.Execute(KindSendIdle, msg)
		if !IsBusy(err) {
			return err
		}
		d := b.Duration()
		if time.Now().Add(d).After(deadline) {
			m.log.Warn("idle message not sent, co-processor busy",
				"msg", fmt.Sprintf("0x%x", msg), "attempts", int(b.Attempt()))
			return fmt.Errorf("send idle: %w", ErrBusy)
		}
		time.Sleep(d)
	}
}

// Read fetches the last idle message of type typ and strips its header.
func (m *IdleMessenger) Read(typ IdleType) (uint64, error) {
	out, err := m.ch.Execute(KindReadIdle, uint64(typ))
	if err != nil {
		return 0, err
	}
	return out >> idlePayloadShift & idlePayloadMask, nil
}

// SendSMA sends an SMA idle message such as SMAArm.
func (m *IdleMessenger) SendSMA(payload uint64) error {
	return m.Send(EncodeIdle(IdleSMA, payload))
}

// ReadSMA reads the last SMA idle message from the neighbor.
func (m *IdleMessenger) ReadSMA() (uint64, error) {
	return m.Read(IdleSMA)
}
