// services/power/board/board.go
package board

// StopEntry selects the halt primitive used to enter the low-power state.
type StopEntry uint8

const (
	StopWFI StopEntry = iota // wait-for-interrupt
	StopWFE                  // wait-for-event
)

// WakeHandlers carries the ISR callbacks to install while the system sleeps.
// Handlers run in interrupt context: they must not block and may only touch
// the wake latch. RTC is nil when charge-detect wake is not fitted.
type WakeHandlers struct {
	Button func()
	Serial func()
	RTC    func()
}

// Sleeper is the board capability the sleep transition drives. Calls arrive
// in a fixed order from a single task:
//
//	FlushOutput, SavePins, SleepPins, ArmWake, Halt,
//	DisarmWake, RestorePins, RestoreClocks
//
// Halt blocks until woken reports true; woken only flips after one of the
// armed handlers has fired.
type Sleeper interface {
	// FlushOutput drains pending console TX before clock domains are cut.
	FlushOutput()

	// SavePins records the configuration of exactly the pins that SleepPins
	// will mutate, so RestorePins can put them back verbatim.
	SavePins()

	// SleepPins drives non-essential pins to their lowest-power state,
	// preserving the wake button, the wake-capable serial RX line and any
	// rail-enable levels that must hold through sleep.
	SleepPins()

	ArmWake(h WakeHandlers)
	Halt(entry StopEntry, woken func() bool)
	DisarmWake()

	RestorePins()
	RestoreClocks()

	// ChargeSense reports whether a charger is currently detected. Called
	// from the RTC wake handler, so it must be interrupt-safe.
	ChargeSense() bool

	// MaskInterrupts/RestoreInterrupts bracket multi-step updates that must
	// be atomic against ISR re-entry (the charge-detect debounce counter).
	MaskInterrupts() uintptr
	RestoreInterrupts(state uintptr)
}
