// cmd/prop-pico/main.go
//go:build rp2040

package main

import (
	"context"
	"time"

	"propcode-go/bus"
	"propcode-go/services/battery"
	"propcode-go/services/config"
	"propcode-go/services/ident"
	"propcode-go/services/power"
	"propcode-go/services/power/board"
	"propcode-go/types"

	"machine"
)

// readPackMilliVolts samples the battery divider on ADC0. The divider
// halves the pack voltage; ADC full scale is 3.3V over 16 bits.
func readPackMilliVolts(adc machine.ADC) int32 {
	raw := int64(adc.Get())
	return int32(raw * 3300 * 2 / 0xFFFF)
}

func main() {
	time.Sleep(3 * time.Second)
	ctx := context.Background()

	println("[main] bootstrapping bus ...")
	b := bus.NewBus(4)

	prop := board.NewProp()

	println("[main] publishing embedded config ...")
	cfgCtx := context.WithValue(ctx, config.CtxDeviceKey, "saberprop")
	config.NewConfigService().Start(cfgCtx, b.NewConnection("config"))

	println("[main] wiring power domains ...")
	m := power.New(prop, power.Config{Startup: power.CPU, ChargeWake: true})
	domains := []*power.Domain{
		{ID: power.CPU, Name: "CPU", Timeout: 60 * time.Second, SetPower: prop.SetCPU},
		{ID: power.Storage, Name: "SD", Timeout: 5 * time.Second, SetPower: prop.SetStorage},
		{ID: power.Booster, Name: "BOOSTER", SetPower: prop.SetBooster},
		{ID: power.Amp, Name: "AMP", Timeout: 50 * time.Millisecond, SetPower: prop.SetAmp},
		{ID: power.Pixel, Name: "PIXEL", SetPower: prop.SetPixel},
		{ID: power.Charger, Name: "CHARGER", SetPower: prop.SetCharger},
	}
	for _, d := range domains {
		if err := m.RegisterDomain(d); err != nil {
			println("[main] register domain", d.Name, "failed:", err.Error())
		}
	}
	// Refuse the deepsleep override while the audio path is live.
	m.SetInUseCheck(func() bool { return m.State()&(power.Booster|power.Amp) != 0 })
	m.OnBeforeSleep(func() { println("[main] entering deep sleep") })

	println("[main] starting services ...")
	powerConn := b.NewConnection("power")
	go power.Run(ctx, powerConn, m)

	machine.InitADC()
	vbat := machine.ADC{Pin: machine.ADC0}
	vbat.Configure(machine.ADCConfig{})
	mon := battery.NewMonitor(func() int32 { return readPackMilliVolts(vbat) })
	go battery.Run(ctx, b.NewConnection("battery"), mon, time.Second)

	go ident.Run(ctx, b.NewConnection("ident"), ident.OTPFunc(readOTPWords))

	// The console routes each line through the command parsers in turn.
	uiConn := b.NewConnection("console")
	console := func(line string) string {
		for _, topic := range []bus.Topic{
			{"power", "control", "command"},
			{"battery", "control", "command"},
		} {
			cctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
			reply, err := uiConn.RequestWait(cctx, uiConn.NewMessage(topic, line, false))
			cancel()
			if err != nil {
				continue
			}
			if res, ok := reply.Payload.(types.CommandResult); ok && res.Handled {
				return res.Output
			}
		}
		if line == "hwid" {
			cctx, cancel := context.WithTimeout(ctx, time.Second)
			defer cancel()
			reply, err := uiConn.RequestWait(cctx, uiConn.NewMessage(bus.Topic{"ident", "control", "print"}, nil, false))
			if err == nil {
				if out, ok := reply.Payload.(string); ok {
					return out
				}
			}
		}
		return "Unknown command: " + line
	}
	prop.ServeConsole(ctx, console)
}

// readOTPWords pulls the provisioning descriptor burned at manufacturing.
// Boards without one read back blank and ident reports UNKNOWN fields.
func readOTPWords() (uint32, uint32, uint64, bool) {
	// TODO: read the real OTP rows once provisioning lands in the factory
	// flasher; until then every board identifies as an unprovisioned unit.
	return 0xFFFFFFFF, 0xFFFFFFFF, 0xFFFFFFFFFFFFFFFF, true
}
