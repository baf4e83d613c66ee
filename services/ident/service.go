// services/ident/service.go
package ident

import (
	"context"

	"propcode-go/bus"
	"propcode-go/errcode"
	"propcode-go/types"
)

// OTPReader reads the three provisioning words burned at manufacturing.
// ok is false when the OTP block could not be read at all.
type OTPReader interface {
	ReadHardwareWords() (serial, version uint32, hex uint64, ok bool)
}

// OTPFunc adapts a closure to OTPReader.
type OTPFunc func() (uint32, uint32, uint64, bool)

func (f OTPFunc) ReadHardwareWords() (uint32, uint32, uint64, bool) { return f() }

// Run decodes the descriptor once, keeps it retained on ident/info and
// answers ident/control/print with the console rendering.
func Run(ctx context.Context, conn *bus.Connection, r OTPReader) {
	serial, version, hex, ok := r.ReadHardwareWords()
	if !ok {
		// Unreadable OTP behaves like a blank part.
		serial, version, hex = blankWord, blankWord, 0xFFFFFFFFFFFFFFFF
	}
	info := Decode(serial, version, hex)

	ctrlSub := conn.Subscribe(bus.Topic{"ident", "control", "+"})
	defer conn.Unsubscribe(ctrlSub)

	conn.Publish(conn.NewMessage(bus.Topic{"ident", "info"}, info, true))

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-ctrlSub.Channel():
			verb, _ := msg.Topic[len(msg.Topic)-1].(string)
			switch verb {
			case "print":
				if msg.CanReply() {
					conn.Reply(msg, Describe(info), false)
				}
			case "get":
				if msg.CanReply() {
					conn.Reply(msg, info, false)
				}
			default:
				if msg.CanReply() {
					conn.Reply(msg, types.ErrorReply{OK: false, Error: string(errcode.Unsupported)}, false)
				}
			}
		}
	}
}
