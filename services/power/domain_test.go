// services/power/domain_test.go
package power

import (
	"testing"
	"time"

	"propcode-go/services/power/board"
)

func newTestDomain(t *testing.T, d *Domain) *Domain {
	t.Helper()
	m := New(board.NewSim(), Config{})
	if d.SetPower == nil {
		d.SetPower = func(bool) {}
	}
	if err := m.RegisterDomain(d); err != nil {
		t.Fatalf("RegisterDomain: %v", err)
	}
	return d
}

func TestResetTimeout_MonotonicMax(t *testing.T) {
	d := newTestDomain(t, &Domain{ID: Amp, Name: "AMP", Timeout: 50 * time.Millisecond})

	d.ResetTimeout(200 * time.Millisecond)
	if got := d.Remaining(); got != 200*time.Millisecond {
		t.Fatalf("Remaining = %v, want 200ms", got)
	}

	// A lower concurrent request must not shrink the countdown.
	d.ResetTimeout(0)
	if got := d.Remaining(); got != 200*time.Millisecond {
		t.Fatalf("Remaining after lower request = %v, want 200ms", got)
	}

	d.ResetTimeout(300 * time.Millisecond)
	if got := d.Remaining(); got != 300*time.Millisecond {
		t.Fatalf("Remaining after higher request = %v, want 300ms", got)
	}
}

func TestResetTimeout_FloorClamp(t *testing.T) {
	d := newTestDomain(t, &Domain{ID: Amp, Name: "AMP"})

	d.ResetTimeout(5 * time.Millisecond)
	if got := d.Remaining(); got != defaultMinTimeout {
		t.Fatalf("Remaining = %v, want floor %v", got, defaultMinTimeout)
	}
}

func TestResetTimeout_DefaultFallback(t *testing.T) {
	d := newTestDomain(t, &Domain{ID: Storage, Name: "SD"})

	// No own budget, zero request: the stamped default applies.
	d.ResetTimeout(0)
	if got := d.Remaining(); got != defaultDefaultTimeout {
		t.Fatalf("Remaining = %v, want default %v", got, defaultDefaultTimeout)
	}
}

func TestCheckTimeout_DecrementAndExpireOnce(t *testing.T) {
	d := newTestDomain(t, &Domain{ID: Amp, Name: "AMP"})
	d.ResetTimeout(30 * time.Millisecond)

	if d.CheckTimeout(10 * time.Millisecond) {
		t.Fatal("expired too early")
	}
	if got := d.Remaining(); got != 20*time.Millisecond {
		t.Fatalf("Remaining = %v, want 20ms", got)
	}
	if !d.CheckTimeout(25 * time.Millisecond) {
		t.Fatal("expected expiry")
	}
	if got := d.Remaining(); got != 0 {
		t.Fatalf("Remaining after expiry = %v, want 0", got)
	}
	// Expiry reports once; an unarmed countdown stays silent.
	if d.CheckTimeout(10 * time.Millisecond) {
		t.Fatal("expiry reported twice")
	}
}

func TestCheckTimeout_SnapsToZeroOnExactElapsed(t *testing.T) {
	d := newTestDomain(t, &Domain{ID: Amp, Name: "AMP"})
	d.ResetTimeout(30 * time.Millisecond)

	if !d.CheckTimeout(30 * time.Millisecond) {
		t.Fatal("expected expiry on exact elapsed")
	}
	if got := d.Remaining(); got != 0 {
		t.Fatalf("Remaining = %v, want 0", got)
	}
}
