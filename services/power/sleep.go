// services/power/sleep.go
package power

import "propcode-go/services/power/board"

// sleepAndWake runs the full sleep transition and blocks until a wake
// source fires. On entry the state mask is expected to be empty or about to
// be forced empty; pre-sleep hooks may momentarily re-power rails (an
// offline publisher remounting storage, say), so everything is forced off
// again after they run.
func (m *Manager) sleepAndWake() WakeSource {
	for _, f := range m.preSleep {
		f()
	}
	for _, d := range m.domains {
		if m.state&d.ID != 0 {
			d.SetPower(false)
			m.state &^= d.ID
		}
		d.countdown = 0
	}

	s := m.sleeper
	s.FlushOutput()

	latch := newWakeLatch()
	deb := chargeDebounce{need: m.cfg.RTCDebounce}

	s.SavePins()
	s.SleepPins()

	h := board.WakeHandlers{
		Button: func() { latch.Commit(WakeButton) },
		Serial: func() { latch.Commit(WakeSerial) },
	}
	if m.cfg.ChargeWake {
		h.RTC = func() {
			st := s.MaskInterrupts()
			if deb.sample(s.ChargeSense()) {
				latch.Commit(WakeRTC)
			}
			s.RestoreInterrupts(st)
		}
	}
	s.ArmWake(h)
	s.Halt(m.cfg.Entry, latch.Fired)
	s.DisarmWake()

	s.RestorePins()
	s.RestoreClocks()

	m.lastWake = latch.Source()
	return m.lastWake
}
