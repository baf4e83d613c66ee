// services/power/service.go
package power

import (
	"context"
	"encoding/json"
	"time"

	"propcode-go/bus"
	"propcode-go/errcode"
	"propcode-go/services/power/board"
	"propcode-go/types"
	"propcode-go/x/timex"
)

// -----------------------------------------------------------------------------
// Entry point
// -----------------------------------------------------------------------------

// Run drives power arbitration over the bus until ctx is cancelled. The
// manager must be fully wired (domains, subscribers, hooks) before Run;
// after Run starts, the manager belongs to this goroutine exclusively.
func Run(ctx context.Context, conn *bus.Connection, m *Manager) {
	s := &service{conn: conn, mgr: m}
	s.loop(ctx)
}

type service struct {
	conn *bus.Connection
	mgr  *Manager
}

// -----------------------------------------------------------------------------
// Main loop
// -----------------------------------------------------------------------------

func (s *service) loop(ctx context.Context) {
	cfgSub := s.conn.Subscribe(bus.Topic{"config", "power"})
	ctrlSub := s.conn.Subscribe(bus.Topic{"power", "control", "+"})
	defer s.conn.Unsubscribe(cfgSub)
	defer s.conn.Unsubscribe(ctrlSub)

	s.mgr.Setup()
	s.publishState()

	tick := time.NewTicker(s.mgr.Config().PollPeriod)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-cfgSub.Channel():
			if s.applyConfig(msg.Payload) {
				tick.Reset(s.mgr.Config().PollPeriod)
				s.publishState()
			}

		case msg := <-ctrlSub.Channel():
			s.handleControl(msg)

		case now := <-tick.C:
			changed, slept := s.mgr.Tick(now)
			if slept {
				println("[power] wake:", s.mgr.LastWake().String())
			}
			if changed {
				s.publishState()
			}
		}
	}
}

// -----------------------------------------------------------------------------
// Control verbs
// -----------------------------------------------------------------------------

func (s *service) handleControl(msg *bus.Message) {
	verb, _ := msg.Topic[len(msg.Topic)-1].(string)
	switch verb {
	case "command":
		line, ok := msg.Payload.(string)
		if !ok {
			s.replyErr(msg, errcode.InvalidPayload)
			return
		}
		out, handled := s.mgr.ParseLine(line)
		if msg.CanReply() {
			s.conn.Reply(msg, types.CommandResult{Handled: handled, Output: out}, false)
		}
		// The deepsleep command transitions state behind our back.
		s.publishState()

	case "deepsleep":
		if err := s.mgr.DeepSleepNow(); err != nil {
			s.replyErr(msg, errcode.Of(err))
			return
		}
		s.replyOK(msg)
		s.publishState()

	case "request":
		var req types.PowerRequest
		if err := decodeJSON(msg.Payload, &req); err != nil {
			s.replyErr(msg, errcode.InvalidPayload)
			return
		}
		sub := s.mgr.SubscriberByName(req.Subscriber)
		if sub == nil {
			s.replyErr(msg, errcode.UnknownSubscriber)
			return
		}
		timeouts := make([]time.Duration, len(req.TimeoutsMS))
		for i, ms := range req.TimeoutsMS {
			timeouts[i] = timex.MS(ms)
		}
		sub.RequestPower(timeouts...)
		s.replyOK(msg)
		s.publishState()

	default:
		s.replyErr(msg, errcode.Unsupported)
	}
}

// -----------------------------------------------------------------------------
// Config
// -----------------------------------------------------------------------------

func (s *service) applyConfig(payload any) bool {
	var pc types.PowerConfig
	if err := decodeJSON(payload, &pc); err != nil {
		println("[power] config decode failed:", err.Error())
		return false
	}
	cfg := s.mgr.Config()
	if pc.PollMS > 0 {
		cfg.PollPeriod = timex.MS(pc.PollMS)
		cfg.JitterBudget = 0 // re-derive from the new period
	}
	if pc.MinTimeoutMS > 0 {
		cfg.MinTimeout = timex.MS(pc.MinTimeoutMS)
	}
	if pc.DefaultTimeoutMS > 0 {
		cfg.DefaultTimeout = timex.MS(pc.DefaultTimeoutMS)
	}
	if pc.JitterBudgetMS > 0 {
		cfg.JitterBudget = timex.MS(pc.JitterBudgetMS)
	}
	if len(pc.StartupDomains) > 0 {
		var mask Mask
		for _, name := range pc.StartupDomains {
			if d := s.mgr.DomainByName(name); d != nil {
				mask |= d.ID
			} else {
				println("[power] config: unknown startup domain", name)
			}
		}
		if mask != 0 {
			cfg.Startup = mask
		}
	}
	if pc.RTCDebounceSamples > 0 {
		cfg.RTCDebounce = int(pc.RTCDebounceSamples)
	}
	cfg.ChargeWake = pc.ChargeWake
	switch pc.StopEntry {
	case "wfe":
		cfg.Entry = board.StopWFE
	case "wfi":
		cfg.Entry = board.StopWFI
	}
	s.mgr.UpdateConfig(cfg)
	for name, ms := range pc.Timeouts {
		if !s.mgr.SetDomainTimeout(name, timex.MS(ms)) {
			println("[power] config: unknown domain", name)
		}
	}
	return true
}

// -----------------------------------------------------------------------------
// Publications and replies
// -----------------------------------------------------------------------------

func (s *service) publishState() {
	m := s.mgr
	doc := types.PowerState{
		Mask: uint8(m.State()),
		Wake: m.LastWake().String(),
		TSms: timex.NowMs(),
	}
	for _, d := range m.Domains() {
		doc.Domains = append(doc.Domains, types.DomainStatus{
			Name:        d.Name,
			On:          m.State()&d.ID != 0,
			RemainingMS: uint32(d.Remaining().Milliseconds()),
			TimeoutMS:   uint32(d.effectiveTimeout().Milliseconds()),
		})
	}
	s.conn.Publish(s.conn.NewMessage(bus.Topic{"power", "state"}, doc, true))
}

func (s *service) replyOK(req *bus.Message) {
	if !req.CanReply() {
		return
	}
	s.conn.Reply(req, types.OKReply{OK: true}, false)
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
