// services/power/wake.go
package power

import "sync/atomic"

// WakeSource identifies what ended a sleep.
type WakeSource uint8

const (
	WakeNone WakeSource = iota
	WakeButton
	WakeSerial
	WakeRTC
)

func (w WakeSource) String() string {
	switch w {
	case WakeButton:
		return "button"
	case WakeSerial:
		return "serial"
	case WakeRTC:
		return "rtc"
	default:
		return "none"
	}
}

// wakeLatch records the first wake source to fire. Writers are ISRs, the
// reader is the main task inside the halt loop. First commit wins; later
// commits are dropped. A bare atomic word keeps Commit safe to call from
// interrupt context.
type wakeLatch struct {
	src uint32 // WakeSource
}

func newWakeLatch() *wakeLatch { return &wakeLatch{} }

// Commit records s if no source has fired yet.
func (l *wakeLatch) Commit(s WakeSource) bool {
	return atomic.CompareAndSwapUint32(&l.src, uint32(WakeNone), uint32(s))
}

func (l *wakeLatch) Source() WakeSource {
	return WakeSource(atomic.LoadUint32(&l.src))
}

func (l *wakeLatch) Fired() bool { return l.Source() != WakeNone }

// chargeDebounce gates the RTC wake path: the charger must look present for
// a run of consecutive periodic samples before the wake commits. Any
// non-charging sample resets the run.
type chargeDebounce struct {
	need  int
	count int
}

func (d *chargeDebounce) sample(charging bool) bool {
	if !charging {
		d.count = 0
		return false
	}
	d.count++
	if d.count < d.need {
		return false
	}
	d.count = 0
	return true
}
