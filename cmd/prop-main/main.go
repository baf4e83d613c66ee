// cmd/prop-main/main.go
//go:build !rp2040

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
)

func printTopic(prefix string, t bus.Topic) {
	print(prefix)
	print(" ")
	for i, tok := range t {
		if i > 0 {
			print("/")
		}
		switch v := tok.(type) {
		case string:
			print(v)
		case int:
			print(v)
		default:
			print("?")
		}
	}
	println()
}

func main() {
	ctx := context.Background()

	println("[main] bootstrapping bus ...")
	b := bus.NewBus(8)
	uiConn := b.NewConnection("ui")

	println("[main] publishing embedded config ...")
	cfgCtx := context.WithValue(ctx, config.CtxDeviceKey, "saberprop")
	config.NewConfigService().Start(cfgCtx, b.NewConnection("config"))

	println("[main] wiring power domains ...")
	sim := board.NewSim()
	m := power.New(sim, power.Config{Startup: power.CPU})
	domains := []*power.Domain{
		// Short CPU budget so the idle-to-sleep path shows up quickly.
		{ID: power.CPU, Name: "CPU", Timeout: 3 * time.Second, SetPower: sim.RailActuator("cpu")},
		{ID: power.Storage, Name: "SD", Timeout: 5 * time.Second, SetPower: sim.RailActuator("sd")},
		{ID: power.Booster, Name: "BOOSTER", SetPower: sim.RailActuator("booster")},
		{ID: power.Amp, Name: "AMP", Timeout: 50 * time.Millisecond, SetPower: sim.RailActuator("amp")},
		{ID: power.Pixel, Name: "PIXEL", SetPower: sim.RailActuator("pixel")},
		{ID: power.Charger, Name: "CHARGER", SetPower: sim.RailActuator("charger")},
	}
	for _, d := range domains {
		if err := m.RegisterDomain(d); err != nil {
			println("[main] register domain", d.Name, "failed:", err.Error())
		}
	}
	if err := m.RegisterSubscriber(&power.Subscriber{
		Name:       "player",
		Domains:    power.Storage | power.Booster | power.Amp,
		OnPowerOn:  func() { println("[player] audio path up") },
		OnPowerOff: func() { println("[player] audio path going down") },
	}); err != nil {
		println("[main] register subscriber failed:", err.Error())
	}

	println("[main] starting services ...")
	go power.Run(ctx, b.NewConnection("power"), m)

	mv := int32(3800)
	mon := battery.NewMonitor(func() int32 { return mv })
	go battery.Run(ctx, b.NewConnection("battery"), mon, time.Second)

	go ident.Run(ctx, b.NewConnection("ident"), ident.OTPFunc(func() (uint32, uint32, uint64, bool) {
		return 100042, 2<<24 | 1<<20 | 1<<17 | 1<<13, 0x0123456789ABCDEF, true
	}))

	monSub := uiConn.Subscribe(bus.T("power", "state"))
	go func() {
		for msg := range monSub.Channel() {
			printTopic("[monitor] <-", msg.Topic)
			if st, ok := msg.Payload.(types.PowerState); ok {
				println("[monitor] power mask:", st.Mask, "wake:", st.Wake)
			}
		}
	}()

	time.Sleep(100 * time.Millisecond)

	println("[main] requesting power for player ...")
	req := uiConn.NewMessage(bus.T("power", "control", "request"),
		types.PowerRequest{Subscriber: "player", TimeoutsMS: []uint32{2000, 500, 500}}, false)
	if _, err := uiConn.RequestWait(ctx, req); err != nil {
		println("[main] request error:", err.Error())
	}

	println("[main] console: pwr-domains")
	cmd := uiConn.NewMessage(bus.T("power", "control", "command"), "pwr-domains", false)
	if reply, err := uiConn.RequestWait(ctx, cmd); err != nil {
		println("[main] command error:", err.Error())
	} else if res, ok := reply.Payload.(types.CommandResult); ok {
		println(res.Output)
	}

	// Every rail budget lapses within ~3s; the virtual button wakes the
	// system as soon as handlers are armed.
	println("[main] waiting for idle sleep ...")
	go func() {
		for !sim.PressButton() {
			time.Sleep(10 * time.Millisecond)
		}
		println("[main] wake button pressed")
	}()
	time.Sleep(4500 * time.Millisecond)

	// Keep the CPU up so the deepsleep below is the administrative path,
	// not another idle expiry.
	hold := uiConn.NewMessage(bus.T("power", "control", "command"), "pwr-dom-request CPU,60000", false)
	if _, err := uiConn.RequestWait(ctx, hold); err != nil {
		println("[main] command error:", err.Error())
	}

	println("[main] console: deepsleep")
	go func() {
		for !sim.SerialActivity() {
			time.Sleep(10 * time.Millisecond)
		}
	}()
	ds := uiConn.NewMessage(bus.T("power", "control", "command"), "deepsleep", false)
	if reply, err := uiConn.RequestWait(ctx, ds); err != nil {
		println("[main] deepsleep error:", err.Error())
	} else if res, ok := reply.Payload.(types.CommandResult); ok {
		println(res.Output)
	}

	time.Sleep(time.Second)
	println("[main] done")
}
