package firmware

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/lnictl/internal/logging"
)

// ---- fake hardware ----

type step func(cmd *Command) error

func ok(out uint64) step {
	return func(cmd *Command) error {
		cmd.Out = out
		cmd.Code = RetSuccess
		return nil
	}
}

func timeout() step {
	return func(*Command) error { return ErrNoCompletion }
}

func code(c ReturnCode) step {
	return func(cmd *Command) error {
		cmd.Code = c
		return nil
	}
}

type fakeHW struct {
	mu       sync.Mutex
	steps    []step
	calls    []Command
	halts    int
	releases int
	notReady bool
}

func (f *fakeHW) Do(cmd *Command, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var s step = ok(0)
	if len(f.steps) > 0 {
		s, f.steps = f.steps[0], f.steps[1:]
	}
	err := s(cmd)
	f.calls = append(f.calls, *cmd)
	return err
}

func (f *fakeHW) Halt() error    { f.halts++; return nil }
func (f *fakeHW) Release() error { f.releases++; return nil }
func (f *fakeHW) Ready() (bool, error) {
	return !f.notReady, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestChannel(hw Hardware) *Channel {
	return NewChannel(hw, ChannelConfig{
		CommandTimeout: 10 * time.Millisecond,
		StartTimeout:   20 * time.Millisecond,
		PollInterval:   time.Millisecond,
	}, quietLogger())
}

// ---- tests ----

func TestChannel_RecoversAfterSingleTimeout(t *testing.T) {
	hw := &fakeHW{steps: []step{timeout(), ok(0xabc)}}
	ch := newTestChannel(hw)

	_, err := ch.Execute(KindMisc, 0)
	require.ErrorIs(t, err, ErrChannelTimeout)
	assert.Equal(t, Degraded, ch.Health())
	assert.Equal(t, 0, hw.halts, "recovery runs before the next command, not on the failing one")

	out, err := ch.Execute(KindMisc, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xabc), out)
	assert.Equal(t, Healthy, ch.Health())
	assert.Equal(t, 1, hw.halts)
	assert.Equal(t, 1, hw.releases)
}

func TestChannel_DeadAfterTwoConsecutiveTimeouts(t *testing.T) {
	hw := &fakeHW{steps: []step{timeout(), timeout()}}
	ch := newTestChannel(hw)

	_, err := ch.Execute(KindMisc, 0)
	require.ErrorIs(t, err, ErrChannelTimeout)
	_, err = ch.Execute(KindMisc, 0)
	require.ErrorIs(t, err, ErrChannelTimeout)
	assert.Equal(t, Dead, ch.Health())

	// hardware would accept this one
	_, err = ch.Execute(KindMisc, 0)
	require.ErrorIs(t, err, ErrChannelDead)
	assert.Len(t, hw.calls, 2)

	require.NoError(t, ch.Revive())
	assert.Equal(t, Healthy, ch.Health())
	_, err = ch.Execute(KindMisc, 0)
	require.NoError(t, err)
}

func TestChannel_TimeoutCounterResetsOnSuccess(t *testing.T) {
	hw := &fakeHW{steps: []step{timeout(), ok(0), timeout(), ok(0)}}
	ch := newTestChannel(hw)

	for i := 0; i < 4; i++ {
		_, _ = ch.Execute(KindMisc, 0)
	}
	assert.Equal(t, Healthy, ch.Health())
}

func TestChannel_ShutDownSkipsHardware(t *testing.T) {
	hw := &fakeHW{}
	ch := newTestChannel(hw)

	require.NoError(t, ch.Shutdown())
	assert.True(t, ch.IsShutDown())

	_, err := ch.Execute(KindReadConfig, 0)
	require.ErrorIs(t, err, ErrShutDown)
	assert.Empty(t, hw.calls)

	require.NoError(t, ch.Start())
	assert.False(t, ch.IsShutDown())
	_, err = ch.Execute(KindReadConfig, 0)
	require.NoError(t, err)
}

func TestChannel_StartTimesOut(t *testing.T) {
	hw := &fakeHW{notReady: true}
	ch := newTestChannel(hw)
	require.NoError(t, ch.Shutdown())

	err := ch.Start()
	require.Error(t, err)
	assert.True(t, ch.IsShutDown())
}

func TestChannel_NonSuccessCode(t *testing.T) {
	hw := &fakeHW{steps: []step{code(RetInvalidArgs)}}
	ch := newTestChannel(hw)

	_, err := ch.Execute(KindLoadConfig, 0)
	var ce *CommandError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, RetInvalidArgs, ce.Code)
	assert.Equal(t, KindLoadConfig, ce.Kind)
	assert.Equal(t, Healthy, ch.Health())
}

func TestChannel_WriteLinkCSRSplitsData(t *testing.T) {
	hw := &fakeHW{}
	ch := newTestChannel(hw)

	v := uint64(0x1234_5678_9abc_def0)
	require.NoError(t, ch.WriteLinkCSR(0x21, v))
	require.Len(t, hw.calls, 1)

	got := hw.calls[0]
	assert.Equal(t, KindWriteLinkCSR, got.Kind)
	assert.Equal(t, uint64(0x21), got.In&0xff)
	assert.Equal(t, v&(1<<40-1), got.In>>8)
	assert.Equal(t, v>>40, got.Ext)
}

func TestConfigWriter_Frames(t *testing.T) {
	hw := &fakeHW{}
	w := NewConfigWriter(newTestChannel(hw))

	require.NoError(t, w.WriteLocalFabric(3, true, 1, 0x40, CRC14B|CRC16B))
	require.NoError(t, w.WriteLocalDeviceID(0x24f0, 2))
	require.Len(t, hw.calls, 2)

	fab := hw.calls[0]
	assert.Equal(t, KindLoadConfig, fab.Kind)
	assert.Equal(t, uint64(FieldLocalFabric), fab.In>>40)
	assert.Equal(t, uint64(LaneGeneral), fab.In>>32&0xff)
	assert.Equal(t, Fabric{VAU: 3, Z: true, VCU: 1, VL15Credits: 0x40, CRC: CRC14B | CRC16B},
		UnpackFabric(uint32(fab.In)))

	assert.Equal(t, DeviceID{ID: 0x24f0, Rev: 2}, UnpackDeviceID(uint32(hw.calls[1].In)))
}

func TestConfigReader_RemoteFrames(t *testing.T) {
	want := LinkMode{MaxRate: 1, Widths: Width4X | Width1X, Flags: FlagRoundTripLTP}
	hw := &fakeHW{steps: []step{ok(uint64(want.Pack()))}}
	r := NewConfigReader(newTestChannel(hw))

	got, err := r.RemoteLinkMode()
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 4, got.Widths.Lanes())
	assert.Equal(t, uint64(FieldRemoteLinkWidth), hw.calls[0].In>>40)
}

func TestChannel_TracesEveryCommand(t *testing.T) {
	t.Setenv("LNICTL_LOG", "")
	var buf bytes.Buffer
	log, err := logging.New(logging.Options{Level: "trace", Output: &buf})
	require.NoError(t, err)

	ch := NewChannel(&fakeHW{steps: []step{ok(0x2a)}}, ChannelConfig{}, log)
	_, err = ch.Execute(KindReadConfig, 0x5)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "level=TRACE")
	assert.Contains(t, out, "msg=command")
	assert.Contains(t, out, "in=0x5")
	assert.Contains(t, out, "out=0x2a")

	buf.Reset()
	quietLog, err := logging.New(logging.Options{Level: "debug", Output: &buf})
	require.NoError(t, err)
	ch = NewChannel(&fakeHW{}, ChannelConfig{}, quietLog)
	_, err = ch.Execute(KindReadConfig, 0)
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}
