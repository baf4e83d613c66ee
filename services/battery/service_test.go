// services/battery/service_test.go
package battery

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"propcode-go/bus"
	"propcode-go/types"
)

func startService(t *testing.T, mv *int32) *bus.Bus {
	t.Helper()
	b := bus.NewBus(16)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	m := NewMonitor(func() int32 { return atomic.LoadInt32(mv) })
	conn := b.NewConnection("battery")
	go Run(ctx, conn, m, 5*time.Millisecond)
	return b
}

func request(t *testing.T, b *bus.Bus, verb string, payload any) *bus.Message {
	t.Helper()
	c := b.NewConnection("test-req")
	defer c.Disconnect()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	reply, err := c.RequestWait(ctx, c.NewMessage(bus.Topic{"battery", "control", verb}, payload, false))
	if err != nil {
		t.Fatalf("RequestWait(%s): %v", verb, err)
	}
	return reply
}

func TestService_PublishesRetainedValue(t *testing.T) {
	mv := int32(3800)
	b := startService(t, &mv)

	c := b.NewConnection("test-sub")
	defer c.Disconnect()
	sub := c.Subscribe(bus.Topic{"battery", "value"})
	deadline := time.After(time.Second)
	for {
		select {
		case msg := <-sub.Channel():
			v, ok := msg.Payload.(types.BatteryValue)
			if ok && v.MilliV == 3800 {
				if v.Low {
					t.Fatal("healthy pack reported low")
				}
				return
			}
		case <-deadline:
			t.Fatal("no battery/value document")
		}
	}
}

func TestService_ReadAndSetLoad(t *testing.T) {
	mv := int32(3700)
	b := startService(t, &mv)

	// Let the sampler fill the window.
	time.Sleep(100 * time.Millisecond)

	reply := request(t, b, "read", nil)
	v, ok := reply.Payload.(types.BatteryValue)
	if !ok || v.MilliV != 3700 {
		t.Fatalf("read reply %+v", reply.Payload)
	}
	unloaded := v.Percent

	if r := request(t, b, "set_load", true); r.Payload.(types.OKReply).OK != true {
		t.Fatalf("set_load reply %+v", r.Payload)
	}
	v = request(t, b, "read", nil).Payload.(types.BatteryValue)
	if v.Percent <= unloaded {
		t.Fatalf("loaded percent %d <= unloaded %d", v.Percent, unloaded)
	}
}

func TestService_CalibrateVerb(t *testing.T) {
	mv := int32(3800)
	b := startService(t, &mv)
	time.Sleep(100 * time.Millisecond)

	if r := request(t, b, "calibrate", 3900); r.Payload.(types.OKReply).OK != true {
		t.Fatalf("calibrate reply %+v", r.Payload)
	}
	reply := request(t, b, "calibrate", 2000)
	if er, ok := reply.Payload.(types.ErrorReply); !ok || er.OK {
		t.Fatalf("bad calibrate reply %+v", reply.Payload)
	}
}

func TestService_CommandVerb(t *testing.T) {
	mv := int32(3800)
	b := startService(t, &mv)
	time.Sleep(100 * time.Millisecond)

	reply := request(t, b, "command", "battery")
	res, ok := reply.Payload.(types.CommandResult)
	if !ok || !res.Handled || !strings.Contains(res.Output, "%") {
		t.Fatalf("command reply %+v", reply.Payload)
	}
}
