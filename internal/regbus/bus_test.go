package regbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFlush_EchoesRead(t *testing.T) {
	m := NewMemory()

	require.NoError(t, WriteFlush(m, 0x10, 7, true))
	r, w := m.Accesses()
	assert.Equal(t, uint64(1), r)
	assert.Equal(t, uint64(1), w)

	require.NoError(t, WriteFlush(m, 0x10, 8, false))
	r, w = m.Accesses()
	assert.Equal(t, uint64(1), r)
	assert.Equal(t, uint64(2), w)
	assert.Equal(t, uint64(8), m.Peek(0x10))
}

func TestMemory_HookSeesWrite(t *testing.T) {
	m := NewMemory()
	m.OnWrite(1, func(m *Memory, off uint32, v uint64) {
		// hooks may touch other registers
		_ = m.Write(2, v+1)
	})

	require.NoError(t, m.Write(1, 41))
	v, err := m.Read(2)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), v)
}
