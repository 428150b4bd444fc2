package link

import (
	"fmt"
	"time"

	"github.com/tamzrod/lnictl/internal/csr"
)

// poll calls check every poll period until it reports done or timeout
// elapses. last describes the final observation for the error.
func (c *Controller) poll(what, want string, timeout time.Duration, check func() (done bool, last string, err error)) error {
	deadline := time.Now().Add(timeout)
	for {
		done, last, err := check()
		if err != nil {
			return fmt.Errorf("read %s: %w", what, err)
		}
		if done {
			return nil
		}
		if time.Now().After(deadline) {
			return &WaitError{What: what, Want: want, Last: last, Timeout: timeout}
		}
		time.Sleep(c.cfg.Timeouts.Poll)
	}
}

func (c *Controller) waitPhysical(want csr.PhysCode, timeout time.Duration) error {
	return c.poll("physical state", fmt.Sprintf("0x%02x", uint8(want)), timeout, func() (bool, string, error) {
		p, err := c.hw.PhysicalState()
		return p.Major() == want, fmt.Sprintf("0x%02x", uint8(p)), err
	})
}

func (c *Controller) waitLogical(want csr.LogCode, timeout time.Duration) error {
	return c.poll("logical state", fmt.Sprint(want), timeout, func() (bool, string, error) {
		l, err := c.hw.LogicalState()
		return l == want, fmt.Sprint(l), err
	})
}

func (c *Controller) waitFirmwareReady(timeout time.Duration) error {
	return c.poll("firmware", "ready", timeout, func() (bool, string, error) {
		ok, err := c.hw.Ready()
		return ok, "not ready", err
	})
}

func (c *Controller) waitOutOfOffline(timeout time.Duration) error {
	return c.poll("physical state", "not offline", timeout, func() (bool, string, error) {
		p, err := c.hw.PhysicalState()
		return p.Major() != csr.PhysOffline, fmt.Sprintf("0x%02x", uint8(p)), err
	})
}
