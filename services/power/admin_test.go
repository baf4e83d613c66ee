// services/power/admin_test.go
package power

import (
	"strings"
	"testing"
	"time"

	"propcode-go/services/power/board"
)

func newAdminManager(t *testing.T) (*Manager, *board.Sim) {
	t.Helper()
	sim := board.NewSim()
	m := New(sim, Config{Startup: CPU})
	mustRegister(t, m,
		&Domain{ID: CPU, Name: "CPU", Timeout: time.Minute, SetPower: sim.RailActuator("cpu")},
		&Domain{ID: Amp, Name: "AMP", Timeout: 50 * time.Millisecond, SetPower: sim.RailActuator("amp")},
		&Domain{ID: Storage, Name: "SD", SetPower: sim.RailActuator("sd")},
	)
	if err := m.RegisterSubscriber(&Subscriber{Name: "player", Domains: Storage | Amp}); err != nil {
		t.Fatal(err)
	}
	m.Setup()
	return m, sim
}

func TestAdmin_UnknownCommandNotHandled(t *testing.T) {
	m, _ := newAdminManager(t)
	if out, handled := m.Parse("bogus", ""); handled {
		t.Fatalf("bogus command handled, output %q", out)
	}
	if _, handled := m.ParseLine(""); handled {
		t.Fatal("empty line handled")
	}
}

func TestAdmin_PrintDomains(t *testing.T) {
	m, _ := newAdminManager(t)
	out, handled := m.Parse("pwr-domains", "")
	if !handled {
		t.Fatal("pwr-domains not handled")
	}
	for _, want := range []string{"CPU", "AMP", "SD", "ON", "OFF."} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestAdmin_DomainRequestAndOff(t *testing.T) {
	m, sim := newAdminManager(t)

	out, handled := m.ParseLine("pwr-dom-request AMP,3000")
	if !handled || !strings.Contains(out, "AMP") {
		t.Fatalf("request output %q handled=%v", out, handled)
	}
	if m.State()&Amp == 0 || !sim.RailOn("amp") {
		t.Fatal("amp not powered")
	}
	if got := m.DomainByName("AMP").Remaining(); got != 3*time.Second {
		t.Fatalf("amp Remaining = %v, want 3s", got)
	}

	out, _ = m.ParseLine("pwr-dom-off AMP")
	if !strings.Contains(out, "OFF") {
		t.Fatalf("off output %q", out)
	}
	if m.State()&Amp != 0 || sim.RailOn("amp") {
		t.Fatal("amp still powered")
	}
	if got := m.DomainByName("AMP").Remaining(); got != 0 {
		t.Fatalf("amp Remaining after off = %v, want 0", got)
	}

	out, _ = m.Parse("pwr-dom-request", "NOPE")
	if !strings.Contains(out, "Unknown domain") {
		t.Fatalf("unknown domain output %q", out)
	}
}

func TestAdmin_SubscriberRequest(t *testing.T) {
	m, _ := newAdminManager(t)

	out, handled := m.Parse("pwr-sub-request", "player")
	if !handled || !strings.Contains(out, "player") {
		t.Fatalf("output %q handled=%v", out, handled)
	}
	if m.State()&(Storage|Amp) != Storage|Amp {
		t.Fatal("subscriber domains not powered")
	}

	out, _ = m.Parse("pwr-subs", "")
	if !strings.Contains(out, "player") || !strings.Contains(out, "ON") {
		t.Fatalf("pwr-subs output %q", out)
	}

	out, _ = m.Parse("pwr-sub-request", "ghost")
	if !strings.Contains(out, "Unknown subscriber") {
		t.Fatalf("unknown subscriber output %q", out)
	}
}

func TestAdmin_DeepSleepRefusedWhileBusy(t *testing.T) {
	m, _ := newAdminManager(t)
	m.SetInUseCheck(func() bool { return true })

	out, handled := m.Parse("deepsleep", "")
	if !handled || !strings.Contains(out, "refused") {
		t.Fatalf("output %q handled=%v", out, handled)
	}
	if m.State() == 0 {
		t.Fatal("refused deepsleep powered the system down")
	}
}

func TestAdmin_DeepSleepReportsWakeSource(t *testing.T) {
	m, sim := newAdminManager(t)
	wakeWhenArmed(sim.PressButton)

	out, handled := m.Parse("deepsleep", "")
	if !handled {
		t.Fatal("deepsleep not handled")
	}
	if !strings.Contains(out, "button") {
		t.Fatalf("output %q, want wake source", out)
	}
	if m.State() != CPU {
		t.Fatalf("State after wake = %#x, want startup set", m.State())
	}
}
