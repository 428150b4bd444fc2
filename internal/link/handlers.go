package link

import (
	"fmt"

	"github.com/tamzrod/lnictl/internal/csr"
	"github.com/tamzrod/lnictl/internal/firmware"
)

// HandleVerifyCap runs verify-capability once the co-processor has the
// partner's frames, then requests link up.
func (c *Controller) HandleVerifyCap() {
	ok, p, err := c.neg.pending()
	if err != nil {
		c.log.Error("verify cap: read physical state", "err", err)
		return
	}
	if !ok {
		c.log.Info("verify cap: spurious interrupt, ignoring", "physical", fmt.Sprintf("0x%02x", uint8(p)))
		return
	}

	if err := c.SetState(VerifyCap); err != nil {
		return
	}

	caps, err := c.neg.negotiate()
	if err != nil {
		c.log.Error("verify cap failed", "err", err)
		c.restartLink(ReasonTransient)
		return
	}
	c.updateCaps(func(cp *Capabilities) { *cp = caps })

	if err := c.SetState(GoingUp); err != nil {
		c.restartLink(ReasonTransient)
	}
}

// HandleLinkUp completes link up and applies the speed policy.
func (c *Controller) HandleLinkUp() {
	if err := c.SetState(UpInit); err != nil {
		if IsTimeout(err) {
			c.restartLink(ReasonTransient)
		}
		return
	}

	if rtt, err := c.ch.ReadLinkCSR(csr.LCBRoundTripLTP); err != nil {
		c.log.Warn("read round trip ltp count", "err", err)
	} else {
		c.updateCaps(func(cp *Capabilities) { cp.RoundTripLTP = rtt })
	}

	caps := c.Capabilities()
	if c.cfg.Speeds&caps.Speed == 0 {
		c.log.Warn("link speed not enabled, bouncing",
			"speed", caps.Speed,
			"enabled", fmt.Sprintf("0x%x", uint8(c.cfg.Speeds)),
		)
		c.restartLink(ReasonSpeedPolicy)
	}
}

// HandleLinkDown takes the link offline after the co-processor reports it
// going down, then restarts it if a cable is present. done is called once
// the link is offline.
func (c *Controller) HandleLinkDown(done func()) {
	wasUp := IsUp(c.State())
	if wasUp {
		local, neighbor := ReasonNeighborUnknown, uint8(0)
		if r, err := c.cr.LinkDownReasons(); err != nil {
			c.log.Warn("read link down reason", "err", err)
		} else {
			if r.Local != 0 {
				local = r.Local
			}
			neighbor = r.Neighbor
		}
		if planned, err := c.cr.PlannedDownReason(); err == nil && planned != 0 {
			neighbor = planned
		}
		c.SetDownReason(local, neighbor, 0)
		c.log.Info("link down", "local_reason", local, "neighbor_reason", neighbor)
	} else {
		c.SetDownReason(ReasonTransient, 0, 0)
	}

	err := c.SetState(DownOffline)
	if done != nil {
		done()
	}
	if err != nil {
		return
	}

	cable, err := c.hw.CablePresent()
	if err != nil {
		c.log.Error("read cable presence", "err", err)
		return
	}
	if !cable {
		c.log.Info("cable not present, shutting down co-processor")
		if err := c.ch.Shutdown(); err != nil {
			c.log.Error("co-processor shutdown", "err", err)
		}
		return
	}
	if err := c.StartLink(); err != nil {
		c.log.Error("restart link", "err", err)
	}
}

// HandleBounce takes an up link offline and starts it again.
func (c *Controller) HandleBounce() {
	if err := c.RequestBounce(); err != nil {
		c.log.Error("link bounce", "err", err)
	}
}

// HandleSMA acts on the neighbor's last SMA idle message.
func (c *Controller) HandleSMA() {
	msg, err := c.idle.ReadSMA()
	if err != nil {
		c.log.Error("read sma idle message", "err", err)
		return
	}

	s := c.State()
	switch msg {
	case firmware.SMAArm:
		if s == UpInit || s == UpArmed {
			c.neighborNormal.Store(true)
		}
	case firmware.SMAActive:
		if s == UpArmed && c.cfg.ActiveOptimize {
			c.neighborNormal.Store(true)
			if err := c.SetState(UpActive); err != nil {
				c.log.Error("sma active: move to active", "err", err)
			}
		}
	default:
		c.log.Warn("unexpected sma idle message", "msg", msg, "state", s)
	}
}

// HandleWidthDowngrade applies the width downgrade policy.
func (c *Controller) HandleWidthDowngrade() {
	if !IsUp(c.State()) {
		return
	}
	w, err := c.cr.ActiveWidths()
	if err != nil {
		c.log.Error("read active widths", "err", err)
		return
	}

	c.updateCaps(func(cp *Capabilities) {
		cp.WidthTx, cp.WidthRx = w.Tx, w.Rx
		cp.DowngradeTx, cp.DowngradeRx = w.DowngradeTx, w.DowngradeRx
	})

	policy := c.cfg.DowngradeWidths
	if w.DowngradeTx&policy == 0 || w.DowngradeRx&policy == 0 {
		c.log.Warn("link width downgraded outside policy, bouncing",
			"tx", w.DowngradeTx.Lanes(),
			"rx", w.DowngradeRx.Lanes(),
			"policy", fmt.Sprintf("0x%x", uint8(policy)),
		)
		c.restartLink(ReasonWidthPolicy)
		return
	}
	c.log.Info("link width downgraded", "tx", w.DowngradeTx.Lanes(), "rx", w.DowngradeRx.Lanes())
}

// restartLink records reason for both ends and bounces the link.
func (c *Controller) restartLink(reason uint8) {
	c.SetDownReason(reason, 0, reason)
	if err := c.RequestBounce(); err != nil {
		c.log.Error("restart link", "reason", reason, "err", err)
	}
}
