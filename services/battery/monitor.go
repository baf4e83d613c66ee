// services/battery/monitor.go
package battery

import (
	"strconv"
	"strings"

	"propcode-go/x/conv"
	"propcode-go/x/mathx"
)

// Interpolation points for battery percentage, Gizfan IMR18650 2600mAh.
// Millivolts; the pack reads lower under load.
const (
	batMinLoadedMV   = 3130
	batMaxLoadedMV   = 3980
	batMinUnloadedMV = 3210
	batMaxUnloadedMV = 4110

	// Below this the pack is considered absent, not low.
	notConnectedMV = 500

	// Consecutive low samples before Low() reports. At the 1 Hz sample
	// rate this is a few seconds of sustained sag.
	lowDebounce = 5

	// User calibration is only accepted against a reference measurement
	// in this window.
	calMinMV = 3500
	calMaxMV = 4000

	avgWindow = 7
)

// Monitor smooths raw pack readings and derives percentage and low-battery
// state. Not goroutine-safe; owned by the battery service loop.
type Monitor struct {
	read func() int32 // raw pack voltage in millivolts

	window [avgWindow]int32
	n, idx int
	sum    int64

	loaded   bool
	scale    float32 // calibration ratio, 0 = factory
	lowCount uint16
}

func NewMonitor(read func() int32) *Monitor {
	return &Monitor{read: read}
}

// Sample takes one reading, folds it into the average and updates the
// low-battery debounce.
func (m *Monitor) Sample() {
	mv := m.read()
	if m.n == avgWindow {
		m.sum -= int64(m.window[m.idx])
	} else {
		m.n++
	}
	m.window[m.idx] = mv
	m.sum += int64(mv)
	m.idx = (m.idx + 1) % avgWindow

	if m.isLow() {
		if m.lowCount < 10000 {
			m.lowCount++
		}
	} else {
		m.lowCount = 0
	}
}

// MilliVolts reports the smoothed, calibration-corrected pack voltage.
func (m *Monitor) MilliVolts() int32 {
	if m.n == 0 {
		return 0
	}
	avg := int32(m.sum / int64(m.n))
	if m.scale != 0 {
		return int32(m.scale * float32(avg))
	}
	return avg
}

// SetLoad switches between the loaded and unloaded interpolation curves.
// Callers flip this when the booster or amp comes up.
func (m *Monitor) SetLoad(on bool) { m.loaded = on }

func (m *Monitor) Low() bool { return m.lowCount > lowDebounce }

func (m *Monitor) isLow() bool {
	mv := m.MilliVolts()
	if mv < notConnectedMV {
		return false
	}
	if m.loaded {
		return mv < batMinLoadedMV
	}
	return mv < batMinUnloadedMV
}

// Percent estimates remaining charge. Stored energy tracks voltage
// squared, so the interpolation runs on v² between the curve endpoints.
// Floors at 1% while a pack is connected.
func (m *Monitor) Percent() uint8 {
	v := float32(m.MilliVolts()) / 1000
	lo, hi := float32(batMinUnloadedMV)/1000, float32(batMaxUnloadedMV)/1000
	if m.loaded {
		lo, hi = float32(batMinLoadedMV)/1000, float32(batMaxLoadedMV)/1000
	}
	p := mathx.Clamp((v*v-lo*lo)/(hi*hi-lo*lo), 0.01, 1)
	return uint8(100*p + 0.5)
}

// Calibrate rescales readings so the current average matches a reference
// measurement in millivolts. Out-of-window values revert to factory
// calibration and report false.
func (m *Monitor) Calibrate(knownMV int32) bool {
	if knownMV < calMinMV || knownMV > calMaxMV {
		m.scale = 0
		return false
	}
	m.scale = 0 // measure against the uncorrected average
	avg := m.MilliVolts()
	if avg <= 0 {
		return false
	}
	m.scale = float32(knownMV) / float32(avg)
	return true
}

// Describe renders the human-readable pack summary for the console.
func (m *Monitor) Describe() string {
	mv := m.MilliVolts()
	if mv < notConnectedMV {
		return "not connected"
	}
	p := m.Percent()
	if p < 5 {
		return "empty"
	}
	var b strings.Builder
	b.WriteString(conv.ItoaString(int64(mv)))
	b.WriteString(" [mV] = ")
	b.WriteString(conv.ItoaString(int64(p)))
	b.WriteString("%")
	return b.String()
}

// Parse handles the battery console commands. Returns handled=false for
// lines that belong to another parser.
func (m *Monitor) Parse(cmd, arg string) (string, bool) {
	switch cmd {
	case "battery":
		return m.Describe(), true
	case "battery_calibration":
		mv, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil || !m.Calibrate(int32(mv)) {
			return "FAILED - Calibrate between 3500 [mV] and 4000 [mV]. Reverted to factory calibration", true
		}
		return "Calibrated to " + conv.ItoaString(int64(mv)) + " [mV]", true
	default:
		return "", false
	}
}
