// services/power/subscriber.go
package power

import "time"

// Subscriber is a consumer of one or more power domains. Hold, when set, is
// polled every arbitration tick; while it reports true the subscriber's
// domains are exempt from timeout expiry. OnPowerOn fires after all of the
// subscriber's domains are up; OnPowerOff fires before any of them is cut,
// while power is still present.
type Subscriber struct {
	Name       string
	Domains    Mask
	Hold       func() bool
	OnPowerOn  func()
	OnPowerOff func()

	mgr *Manager
}

// IsOn reports whether every domain the subscriber depends on is energised.
func (s *Subscriber) IsOn() bool {
	return s.mgr != nil && s.mgr.state&s.Domains == s.Domains
}

// RequestPower re-arms the subscriber's domains and powers up any that are
// off. Timeouts are applied positionally to the subscribed domains in
// registration order; missing or zero entries select each domain's default.
// Returns true when at least one domain transitioned off-to-on, in which
// case OnPowerOn has been invoked.
func (s *Subscriber) RequestPower(timeouts ...time.Duration) bool {
	if s.mgr == nil {
		return false
	}
	m := s.mgr
	turned := false
	i := 0
	for _, d := range m.domains {
		if d.ID&s.Domains == 0 {
			continue
		}
		var req time.Duration
		if i < len(timeouts) {
			req = timeouts[i]
		}
		i++
		d.ResetTimeout(req)
		if m.state&d.ID == 0 {
			m.state |= d.ID
			d.SetPower(true)
			turned = true
		}
	}
	if turned && s.OnPowerOn != nil {
		s.OnPowerOn()
	}
	return turned
}
