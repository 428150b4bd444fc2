package modbus

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

// wordsPerRegister is the number of 16-bit holding registers backing one
// 64-bit adapter register.
const wordsPerRegister = 4

// Client implements regbus.Bus on top of a Modbus TCP or RTU link.
// Register N lives at holding registers Base+4N .. Base+4N+3, most
// significant word first. Requests are serialized.
//
// The same client also writes raw holding registers for other units on
// the link (see WriteRegisters).
type Client struct {
	mu      sync.Mutex
	handler io.Closer
	client  modbus.Client
	base    uint16
	unit    uint8
	setUnit func(uint8)
}

// Config is minimal transport config.
// Endpoint "host:port" selects TCP; "rtu:<device>" selects a serial line.
type Config struct {
	Endpoint string
	UnitID   uint8
	Timeout  time.Duration
	Base     uint16
	BaudRate int
}

// New connects to the endpoint. One attempt; no retries.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("regbus modbus: endpoint required")
	}

	if dev, ok := strings.CutPrefix(cfg.Endpoint, "rtu:"); ok {
		h := modbus.NewRTUClientHandler(dev)
		h.SlaveId = cfg.UnitID
		h.Timeout = cfg.Timeout
		h.BaudRate = cfg.BaudRate
		if h.BaudRate == 0 {
			h.BaudRate = 115200
		}
		h.DataBits = 8
		h.Parity = "N"
		h.StopBits = 1
		if err := h.Connect(); err != nil {
			return nil, fmt.Errorf("regbus modbus: open %s: %w", dev, err)
		}
		return &Client{
			handler: h,
			client:  modbus.NewClient(h),
			base:    cfg.Base,
			unit:    cfg.UnitID,
			setUnit: func(id uint8) { h.SlaveId = id },
		}, nil
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.SlaveId = cfg.UnitID
	h.Timeout = cfg.Timeout
	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("regbus modbus: connect %s: %w", cfg.Endpoint, err)
	}
	return &Client{
		handler: h,
		client:  modbus.NewClient(h),
		base:    cfg.Base,
		unit:    cfg.UnitID,
		setUnit: func(id uint8) { h.SlaveId = id },
	}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler.Close()
}

// ---- regbus.Bus ----

func (c *Client) Read(offset uint32) (uint64, error) {
	addr, err := c.address(offset)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.setUnit(c.unit)
	b, err := c.client.ReadHoldingRegisters(addr, wordsPerRegister)
	if err != nil {
		return 0, fmt.Errorf("regbus modbus: read 0x%x: %w", offset, err)
	}
	if len(b) != 2*wordsPerRegister {
		return 0, fmt.Errorf("regbus modbus: read 0x%x: short payload (%d bytes)", offset, len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

func (c *Client) Write(offset uint32, v uint64) error {
	addr, err := c.address(offset)
	if err != nil {
		return err
	}

	var b [2 * wordsPerRegister]byte
	binary.BigEndian.PutUint64(b[:], v)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.setUnit(c.unit)
	if _, err := c.client.WriteMultipleRegisters(addr, wordsPerRegister, b[:]); err != nil {
		return fmt.Errorf("regbus modbus: write 0x%x: %w", offset, err)
	}
	return nil
}

// WriteRegisters writes 16-bit holding registers starting at addr on the
// given unit, bypassing the register mapping. Status blocks are written
// this way.
func (c *Client) WriteRegisters(unitID uint8, addr uint16, regs []uint16) error {
	if len(regs) == 0 {
		return nil
	}
	if int(addr)+len(regs) > 0x10000 {
		return fmt.Errorf("regbus modbus: unit %d write at %d: %d registers overflow", unitID, addr, len(regs))
	}

	b := make([]byte, 2*len(regs))
	for i, r := range regs {
		binary.BigEndian.PutUint16(b[2*i:], r)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.setUnit(unitID)
	if _, err := c.client.WriteMultipleRegisters(addr, uint16(len(regs)), b); err != nil {
		return fmt.Errorf("regbus modbus: unit %d write at %d: %w", unitID, addr, err)
	}
	return nil
}

// address maps a register offset to its first holding register.
func (c *Client) address(offset uint32) (uint16, error) {
	a := uint32(c.base) + offset*wordsPerRegister
	if a+wordsPerRegister-1 > 0xffff {
		return 0, fmt.Errorf("regbus modbus: offset 0x%x outside holding register space", offset)
	}
	return uint16(a), nil
}
