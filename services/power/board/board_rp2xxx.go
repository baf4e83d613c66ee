// services/power/board/board_rp2xxx.go
//go:build rp2040

package board

import (
	"context"
	"device/arm"
	"image/color"
	"machine"
	"runtime/interrupt"
	"time"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
	"tinygo.org/x/drivers/ws2812"
)

// Pin assignment for the Pico prop carrier.
const (
	pinConsoleTX = machine.GPIO0
	pinConsoleRX = machine.GPIO1 // wake-capable while sleeping
	pinButton    = machine.GPIO2 // active low, external pull-up
	pinChargeDet = machine.GPIO3 // active low from the charger IC
	pinChargeEn  = machine.GPIO4
	pinStorageEn = machine.GPIO10
	pinBoosterEn = machine.GPIO15
	pinAmpEn     = machine.GPIO16
	pinPixelEn   = machine.GPIO22
	pinPixelData = machine.GPIO28
)

const (
	consoleBaud = 115200
	pixelCount  = 72
)

// Prop drives the real carrier board: rail gate pins, the WS2812 strip and
// the admin console UART. It implements Sleeper.
type Prop struct {
	console *uartx.UART
	pixels  ws2812.Device

	saved struct {
		storage, booster, amp, pixel, charge bool
	}
}

func NewProp() *Prop {
	p := &Prop{}

	for _, pin := range []machine.Pin{pinChargeEn, pinStorageEn, pinBoosterEn, pinAmpEn, pinPixelEn} {
		pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
		pin.Low()
	}
	pinPixelData.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pinPixelData.Low()
	pinButton.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	pinChargeDet.Configure(machine.PinConfig{Mode: machine.PinInput})

	p.console = uartx.UART0
	_ = p.console.Configure(uartx.UARTConfig{
		BaudRate: consoleBaud,
		TX:       pinConsoleTX,
		RX:       pinConsoleRX,
	})

	p.pixels = ws2812.New(pinPixelData)
	return p
}

// --- rail actuators -----------------------------------------------------

// SetCPU exists so the CPU domain has an actuator like any other; the MCU
// core is not on a switchable rail.
func (p *Prop) SetCPU(on bool) {}

func (p *Prop) SetStorage(on bool) { pinStorageEn.Set(on) }
func (p *Prop) SetBooster(on bool) { pinBoosterEn.Set(on) }
func (p *Prop) SetAmp(on bool)     { pinAmpEn.Set(on) }
func (p *Prop) SetCharger(on bool) { pinChargeEn.Set(on) }

// SetPixel blanks the strip before cutting its rail so stray data cannot
// latch random colours during power-down.
func (p *Prop) SetPixel(on bool) {
	if !on {
		p.blankPixels()
	}
	pinPixelEn.Set(on)
}

func (p *Prop) blankPixels() {
	black := make([]color.RGBA, pixelCount)
	_ = p.pixels.WriteColors(black)
}

// --- console ------------------------------------------------------------

func (p *Prop) ConsoleWrite(b []byte) { _, _ = p.console.Write(b) }

// ServeConsole reads newline-terminated admin lines and writes back the
// handler's response. Blocks until ctx is cancelled.
func (p *Prop) ServeConsole(ctx context.Context, handle func(line string) string) {
	buf := make([]byte, 64)
	line := make([]byte, 0, 128)
	for {
		n, err := p.console.RecvSomeContext(ctx, buf)
		if err != nil {
			return
		}
		for _, c := range buf[:n] {
			if c == '\r' {
				continue
			}
			if c != '\n' {
				line = append(line, c)
				continue
			}
			out := handle(string(line))
			line = line[:0]
			if out != "" {
				p.ConsoleWrite([]byte(out))
				p.ConsoleWrite([]byte("\r\n"))
			}
		}
	}
}

// --- Sleeper ------------------------------------------------------------

func (p *Prop) FlushOutput() {
	// The UART TX path is FIFO-buffered; at 115200 baud a full 32-byte FIFO
	// drains in under 3 ms.
	time.Sleep(3 * time.Millisecond)
}

func (p *Prop) SavePins() {
	p.saved.storage = pinStorageEn.Get()
	p.saved.booster = pinBoosterEn.Get()
	p.saved.amp = pinAmpEn.Get()
	p.saved.pixel = pinPixelEn.Get()
	p.saved.charge = pinChargeEn.Get()
}

func (p *Prop) SleepPins() {
	// Rail gates are already low; float the pixel data line so the dead
	// strip does not back-power through its data input. Button, charge
	// detect and console RX keep their input modes for wake.
	pinPixelData.Configure(machine.PinConfig{Mode: machine.PinInput})
}

func (p *Prop) ArmWake(h WakeHandlers) {
	if h.Button != nil {
		_ = pinButton.SetInterrupt(machine.PinFalling, func(machine.Pin) { h.Button() })
	}
	if h.Serial != nil {
		// Start bit on the RX line is a falling edge.
		_ = pinConsoleRX.SetInterrupt(machine.PinFalling, func(machine.Pin) { h.Serial() })
	}
	if h.RTC != nil {
		_ = machine.RTC.SetInterrupt(1, true, h.RTC)
	}
}

func (p *Prop) Halt(entry StopEntry, woken func() bool) {
	for !woken() {
		if entry == StopWFE {
			arm.Asm("wfe")
		} else {
			arm.Asm("wfi")
		}
	}
}

func (p *Prop) DisarmWake() {
	_ = pinButton.SetInterrupt(0, nil)
	_ = pinConsoleRX.SetInterrupt(0, nil)
	_ = machine.RTC.SetInterrupt(0, false, nil)
}

func (p *Prop) RestorePins() {
	pinPixelData.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pinPixelData.Low()
	pinStorageEn.Set(p.saved.storage)
	pinBoosterEn.Set(p.saved.booster)
	pinAmpEn.Set(p.saved.amp)
	pinPixelEn.Set(p.saved.pixel)
	pinChargeEn.Set(p.saved.charge)
}

func (p *Prop) RestoreClocks() {
	// WFI/WFE on RP2 leaves the clock tree running; nothing to re-program.
}

func (p *Prop) ChargeSense() bool { return !pinChargeDet.Get() }

func (p *Prop) MaskInterrupts() uintptr {
	return uintptr(interrupt.Disable())
}

func (p *Prop) RestoreInterrupts(st uintptr) {
	interrupt.Restore(interrupt.State(st))
}
