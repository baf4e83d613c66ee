// services/power/domain.go
package power

import (
	"time"

	"propcode-go/x/mathx"
)

// Mask is a bitmask of power domains. Each registered domain owns exactly
// one bit; the manager's global state is the union of the bits whose rails
// are currently energised.
type Mask uint8

// Domain bits for the prop carrier board. CPU has no switchable rail but
// still participates in arbitration: when its timer lapses the whole system
// is allowed to sleep.
const (
	CPU Mask = 1 << iota
	Storage
	Booster
	Amp
	Pixel
	Charger
)

// Domain is one switchable rail plus its idle countdown. SetPower must be a
// cheap synchronous call (a gate pin write); Init, when set, runs once from
// Manager.Setup to put the rail hardware in a known state.
type Domain struct {
	ID       Mask
	Name     string
	Timeout  time.Duration // idle budget applied on zero-valued requests
	Init     func()
	SetPower func(on bool)

	// Bounds stamped by the manager at registration and on config updates.
	def   time.Duration
	floor time.Duration

	countdown time.Duration // 0 = unarmed
}

// ResetTimeout re-arms the idle countdown. A zero request selects the
// domain's own budget, falling back to the stamped default. The effective
// value is clamped to no less than the stamped floor. The countdown only
// ever grows: with several requesters outstanding, the largest budget wins.
func (d *Domain) ResetTimeout(req time.Duration) {
	if req == 0 {
		req = d.Timeout
	}
	if req == 0 {
		req = d.def
	}
	req = mathx.Max(req, d.floor)
	if d.countdown < req {
		d.countdown = req
	}
}

// CheckTimeout advances the countdown by elapsed and reports expiry.
// Expiry is reported exactly once; an unarmed countdown stays unarmed.
func (d *Domain) CheckTimeout(elapsed time.Duration) bool {
	if d.countdown == 0 {
		return false
	}
	if d.countdown <= elapsed {
		d.countdown = 0
		return true
	}
	d.countdown -= elapsed
	return false
}

// Remaining reports the current countdown value, 0 when unarmed.
func (d *Domain) Remaining() time.Duration { return d.countdown }
