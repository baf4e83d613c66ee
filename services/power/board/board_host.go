// services/power/board/board_host.go
//go:build !rp2040

package board

import (
	"sync"
	"time"
)

// Sim is the host-side stand-in for the prop carrier: rails are booleans,
// Halt polls the woken predicate, and every Sleeper call is recorded so
// tests can assert the transition order. Wake stimuli are injected from
// other goroutines; injection only fires once handlers are armed.
type Sim struct {
	mu       sync.Mutex
	calls    []string
	rails    map[string]bool
	handlers WakeHandlers
	armed    bool
	charging bool
}

func NewSim() *Sim {
	return &Sim{rails: map[string]bool{}}
}

// RailActuator returns a SetPower function for a named rail.
func (s *Sim) RailActuator(name string) func(bool) {
	return func(on bool) {
		s.mu.Lock()
		s.rails[name] = on
		s.mu.Unlock()
	}
}

// RailOn reports the last value driven onto a rail.
func (s *Sim) RailOn(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rails[name]
}

// Calls returns a copy of the recorded Sleeper call sequence.
func (s *Sim) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

func (s *Sim) record(c string) {
	s.mu.Lock()
	s.calls = append(s.calls, c)
	s.mu.Unlock()
}

// --- wake injection -----------------------------------------------------

// PressButton fires the button wake handler. Returns false when no
// handlers are armed yet (callers typically retry in a loop).
func (s *Sim) PressButton() bool { return s.fire(func(h WakeHandlers) func() { return h.Button }) }

// SerialActivity fires the serial-RX wake handler.
func (s *Sim) SerialActivity() bool { return s.fire(func(h WakeHandlers) func() { return h.Serial }) }

// RTCTick fires one periodic charge-sample handler invocation.
func (s *Sim) RTCTick() bool { return s.fire(func(h WakeHandlers) func() { return h.RTC }) }

func (s *Sim) SetCharging(v bool) {
	s.mu.Lock()
	s.charging = v
	s.mu.Unlock()
}

func (s *Sim) fire(pick func(WakeHandlers) func()) bool {
	s.mu.Lock()
	var f func()
	if s.armed {
		f = pick(s.handlers)
	}
	s.mu.Unlock()
	if f == nil {
		return false
	}
	f()
	return true
}

// --- Sleeper ------------------------------------------------------------

func (s *Sim) FlushOutput() { s.record("flush") }
func (s *Sim) SavePins()    { s.record("save-pins") }
func (s *Sim) SleepPins()   { s.record("sleep-pins") }

func (s *Sim) ArmWake(h WakeHandlers) {
	s.mu.Lock()
	s.handlers = h
	s.armed = true
	s.mu.Unlock()
	s.record("arm")
}

func (s *Sim) Halt(entry StopEntry, woken func() bool) {
	s.record("halt")
	for !woken() {
		time.Sleep(time.Millisecond)
	}
}

func (s *Sim) DisarmWake() {
	s.mu.Lock()
	s.handlers = WakeHandlers{}
	s.armed = false
	s.mu.Unlock()
	s.record("disarm")
}

func (s *Sim) RestorePins()   { s.record("restore-pins") }
func (s *Sim) RestoreClocks() { s.record("restore-clocks") }

func (s *Sim) ChargeSense() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.charging
}

func (s *Sim) MaskInterrupts() uintptr      { return 0 }
func (s *Sim) RestoreInterrupts(st uintptr) {}
