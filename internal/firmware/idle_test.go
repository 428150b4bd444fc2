package firmware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdleMessenger_RetriesWhileBusy(t *testing.T) {
	hw := &fakeHW{steps: []step{code(RetFlowControlBusy), code(RetFlowControlBusy), ok(0)}}
	m := NewIdleMessenger(newTestChannel(hw), 200*time.Millisecond, quietLogger())

	require.NoError(t, m.SendSMA(SMAArm))
	require.Len(t, hw.calls, 3)
	assert.Equal(t, EncodeIdle(IdleSMA, SMAArm), hw.calls[2].In)
}

func TestIdleMessenger_BusyBudgetExhausted(t *testing.T) {
	steps := make([]step, 100)
	for i := range steps {
		steps[i] = code(RetFlowControlBusy)
	}
	hw := &fakeHW{steps: steps}
	m := NewIdleMessenger(newTestChannel(hw), 15*time.Millisecond, quietLogger())

	start := time.Now()
	err := m.Send(EncodeIdle(IdleMessage, 7))
	require.ErrorIs(t, err, ErrBusy)
	assert.Less(t, time.Since(start), 200*time.Millisecond)
	assert.Greater(t, len(hw.calls), 1)
}

func TestIdleMessenger_OtherErrorsNotRetried(t *testing.T) {
	hw := &fakeHW{steps: []step{code(RetFailed)}}
	m := NewIdleMessenger(newTestChannel(hw), 200*time.Millisecond, quietLogger())

	err := m.Send(1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBusy)
	assert.Len(t, hw.calls, 1)
}

func TestIdleMessenger_ReadStripsHeader(t *testing.T) {
	hw := &fakeHW{steps: []step{ok(EncodeIdle(IdleSMA, SMAActive))}}
	m := NewIdleMessenger(newTestChannel(hw), 0, quietLogger())

	v, err := m.ReadSMA()
	require.NoError(t, err)
	assert.Equal(t, SMAActive, v)
	assert.Equal(t, KindReadIdle, hw.calls[0].Kind)
	assert.Equal(t, uint64(IdleSMA), hw.calls[0].In)
}

func TestEncodeIdle_TruncatesPayload(t *testing.T) {
	v := EncodeIdle(IdleSMA, 1<<41|5)
	assert.Equal(t, uint64(IdleSMA), v&0xff)
	assert.Equal(t, uint64(5), v>>8)
}
