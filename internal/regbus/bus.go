// Package regbus is the register access layer under the adapter model.
// Offsets are register indexes, not byte addresses; every register is 64 bits.
package regbus

import (
	"fmt"
	"sync"
)

// Bus reads and writes adapter registers.
type Bus interface {
	Read(offset uint32) (uint64, error)
	Write(offset uint32, v uint64) error
}

// WriteFlush writes v and, when flush is set, reads the register back so the
// write is known to have reached the device before the caller continues.
func WriteFlush(b Bus, offset uint32, v uint64, flush bool) error {
	if err := b.Write(offset, v); err != nil {
		return err
	}
	if !flush {
		return nil
	}
	if _, err := b.Read(offset); err != nil {
		return fmt.Errorf("regbus: flush read 0x%x: %w", offset, err)
	}
	return nil
}

// Hook runs after a write lands in Memory. It is called with the Memory
// lock released, so it may read and write other registers.
type Hook func(m *Memory, offset uint32, v uint64)

// Memory is an in-process register file.
type Memory struct {
	mu    sync.Mutex
	regs  map[uint32]uint64
	hooks map[uint32]Hook

	reads, writes uint64
}

func NewMemory() *Memory {
	return &Memory{
		regs:  make(map[uint32]uint64),
		hooks: make(map[uint32]Hook),
	}
}

// OnWrite installs h for offset, replacing any previous hook.
func (m *Memory) OnWrite(offset uint32, h Hook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks[offset] = h
}

func (m *Memory) Read(offset uint32) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	return m.regs[offset], nil
}

func (m *Memory) Write(offset uint32, v uint64) error {
	m.mu.Lock()
	m.writes++
	m.regs[offset] = v
	h := m.hooks[offset]
	m.mu.Unlock()

	if h != nil {
		h(m, offset, v)
	}
	return nil
}

// Poke sets a register without counting the access or running hooks.
func (m *Memory) Poke(offset uint32, v uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regs[offset] = v
}

// Peek returns a register without counting the access.
func (m *Memory) Peek(offset uint32) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regs[offset]
}

// Update applies fn to a register atomically, without hooks.
func (m *Memory) Update(offset uint32, fn func(uint64) uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regs[offset] = fn(m.regs[offset])
}

// Accesses returns the number of reads and writes seen so far.
func (m *Memory) Accesses() (reads, writes uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads, m.writes
}
