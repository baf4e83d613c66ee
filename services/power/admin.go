// services/power/admin.go
package power

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"

	"propcode-go/x/conv"
	"propcode-go/x/timex"
)

// ParseLine tokenises a raw console line and dispatches it. Quoting follows
// shell rules, so arguments with spaces survive.
func (m *Manager) ParseLine(line string) (string, bool) {
	tokens, err := shlex.Split(line)
	if err != nil || len(tokens) == 0 {
		return "", false
	}
	arg := ""
	if len(tokens) > 1 {
		arg = strings.Join(tokens[1:], " ")
	}
	return m.Parse(tokens[0], arg)
}

// Parse handles one admin command. The second result is false when the
// command does not belong to the power console, so callers can route the
// line elsewhere.
func (m *Manager) Parse(cmd, arg string) (string, bool) {
	switch cmd {
	case "pwr-domains":
		return m.printDomains(), true
	case "pwr-dom-request":
		return m.domainRequest(arg), true
	case "pwr-dom-off":
		return m.domainOff(arg), true
	case "pwr-subs":
		return m.printSubscribers(), true
	case "pwr-sub-request":
		return m.subscriberRequest(arg), true
	case "deepsleep":
		if err := m.DeepSleepNow(); err != nil {
			return "Device in use, deep sleep refused.", true
		}
		return "WAKE-UP! Source: " + m.lastWake.String() + ".", true
	default:
		return "", false
	}
}

func (m *Manager) printDomains() string {
	var b strings.Builder
	b.WriteString("Power domains:")
	for _, d := range m.domains {
		b.WriteString("\n * ")
		b.WriteString(d.Name)
		b.WriteString(" @ ")
		b.WriteString(conv.ItoaString(d.effectiveTimeout().Milliseconds()))
		b.WriteString(" [ms] is ")
		if m.state&d.ID != 0 {
			b.WriteString("ON - expires in ")
			b.WriteString(conv.ItoaString(d.countdown.Milliseconds()))
			b.WriteString(" [ms]")
		} else {
			b.WriteString("OFF.")
		}
	}
	return b.String()
}

func (d *Domain) effectiveTimeout() time.Duration {
	if d.Timeout != 0 {
		return d.Timeout
	}
	return d.def
}

// domainRequest arg is "NAME" or "NAME,timeout_ms".
func (m *Manager) domainRequest(arg string) string {
	name, msArg, hasMS := strings.Cut(arg, ",")
	name = strings.TrimSpace(name)
	d := m.DomainByName(name)
	if d == nil {
		return "Unknown domain '" + name + "'."
	}
	var req time.Duration
	if hasMS {
		ms, err := strconv.Atoi(strings.TrimSpace(msArg))
		if err != nil || ms < 0 {
			return "Bad timeout '" + msArg + "'."
		}
		req = timex.MS(ms)
	}
	d.ResetTimeout(req)
	if m.state&d.ID == 0 {
		m.state |= d.ID
		d.SetPower(true)
	}
	return "Power requested for domain '" + d.Name + "'."
}

func (m *Manager) domainOff(arg string) string {
	name := strings.TrimSpace(arg)
	d := m.DomainByName(name)
	if d == nil {
		return "Unknown domain '" + name + "'."
	}
	if m.state&d.ID != 0 {
		d.SetPower(false)
		m.state &^= d.ID
	}
	d.countdown = 0
	return "Domain " + d.Name + " turned OFF."
}

func (m *Manager) printSubscribers() string {
	var b strings.Builder
	b.WriteString("Power subscribers:")
	for _, s := range m.subs {
		b.WriteString("\n * ")
		b.WriteString(s.Name)
		b.WriteString(" mask=0x")
		b.Write(hexByte(byte(s.Domains)))
		if s.IsOn() {
			b.WriteString(" ON")
		} else {
			b.WriteString(" OFF")
		}
		if s.Hold != nil && s.Hold() {
			b.WriteString(" holding")
		}
	}
	return b.String()
}

func hexByte(v byte) []byte {
	var buf [8]byte
	out := conv.U32Hex(buf[:], uint32(v))
	return out[6:]
}

func (m *Manager) subscriberRequest(arg string) string {
	name := strings.TrimSpace(arg)
	s := m.SubscriberByName(name)
	if s == nil {
		return "Unknown subscriber '" + name + "'."
	}
	s.RequestPower()
	return "Power requested for subscriber '" + s.Name + "'."
}
