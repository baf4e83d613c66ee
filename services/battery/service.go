// services/battery/service.go
package battery

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"propcode-go/bus"
	"propcode-go/errcode"
	"propcode-go/types"
	"propcode-go/x/timex"
)

const defaultPeriod = time.Second

// Run samples the pack at the given period (0 selects 1 Hz) and keeps a
// retained battery/value document current. Control verbs live under
// battery/control/+.
func Run(ctx context.Context, conn *bus.Connection, m *Monitor, period time.Duration) {
	if period == 0 {
		period = defaultPeriod
	}
	s := &service{conn: conn, mon: m}
	s.loop(ctx, period)
}

type service struct {
	conn *bus.Connection
	mon  *Monitor
}

func (s *service) loop(ctx context.Context, period time.Duration) {
	ctrlSub := s.conn.Subscribe(bus.Topic{"battery", "control", "+"})
	defer s.conn.Unsubscribe(ctrlSub)

	tick := time.NewTicker(period)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-ctrlSub.Channel():
			s.handleControl(msg)

		case <-tick.C:
			s.mon.Sample()
			s.publishValue()
		}
	}
}

func (s *service) handleControl(msg *bus.Message) {
	verb, _ := msg.Topic[len(msg.Topic)-1].(string)
	switch verb {
	case "read":
		if msg.CanReply() {
			s.conn.Reply(msg, s.value(), false)
		}

	case "set_load":
		var on bool
		if err := decodeJSON(msg.Payload, &on); err != nil {
			s.replyErr(msg, errcode.InvalidPayload)
			return
		}
		s.mon.SetLoad(on)
		if msg.CanReply() {
			s.conn.Reply(msg, types.OKReply{OK: true}, false)
		}

	case "calibrate":
		var mv int32
		if err := decodeJSON(msg.Payload, &mv); err != nil {
			s.replyErr(msg, errcode.InvalidPayload)
			return
		}
		if !s.mon.Calibrate(mv) {
			s.replyErr(msg, errcode.InvalidParams)
			return
		}
		if msg.CanReply() {
			s.conn.Reply(msg, types.OKReply{OK: true}, false)
		}
		s.publishValue()

	case "command":
		line, ok := msg.Payload.(string)
		if !ok {
			s.replyErr(msg, errcode.InvalidPayload)
			return
		}
		cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
		out, handled := s.mon.Parse(cmd, strings.TrimSpace(arg))
		if msg.CanReply() {
			s.conn.Reply(msg, types.CommandResult{Handled: handled, Output: out}, false)
		}

	default:
		s.replyErr(msg, errcode.Unsupported)
	}
}

func (s *service) value() types.BatteryValue {
	return types.BatteryValue{
		MilliV:  s.mon.MilliVolts(),
		Percent: s.mon.Percent(),
		Low:     s.mon.Low(),
		TSms:    timex.NowMs(),
	}
}

func (s *service) publishValue() {
	s.conn.Publish(s.conn.NewMessage(bus.Topic{"battery", "value"}, s.value(), true))
}

func (s *service) replyErr(req *bus.Message, code errcode.Code) {
	if !req.CanReply() {
		return
	}
	s.conn.Reply(req, types.ErrorReply{OK: false, Error: string(code)}, false)
}

func decodeJSON[T any](src any, dst *T) error {
	switch v := src.(type) {
	case T:
		*dst = v
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, dst)
	}
}
