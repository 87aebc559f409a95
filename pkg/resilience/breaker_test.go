package resilience

import (
	"testing"
	"time"
)

func testBreaker() (*Breaker, *time.Time) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	b := NewBreaker(5, 60*time.Second, 60*time.Second)
	b.now = func() time.Time { return now }
	return b, &now
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	b, _ := testBreaker()

	for i := 0; i < 4; i++ {
		b.RecordFailure()
		if b.State() != StateClosed {
			t.Fatalf("closed expected after %d failures", i+1)
		}
	}
	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatalf("state = %v, want open", b.State())
	}
	if b.Allow() {
		t.Error("open breaker allowed a request")
	}
}

func TestBreakerWindowSlides(t *testing.T) {
	b, now := testBreaker()

	for i := 0; i < 4; i++ {
		b.RecordFailure()
	}
	// The early failures age out before the fifth arrives.
	*now = now.Add(61 * time.Second)
	b.RecordFailure()
	if b.State() != StateClosed {
		t.Errorf("state = %v, want closed (stale failures pruned)", b.State())
	}
}

func TestBreakerHalfOpenSingleProbe(t *testing.T) {
	b, now := testBreaker()
	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}

	*now = now.Add(59 * time.Second)
	if b.Allow() {
		t.Fatal("allowed before recovery timeout")
	}

	*now = now.Add(2 * time.Second)
	if !b.Allow() {
		t.Fatal("probe not admitted after recovery timeout")
	}
	if b.State() != StateHalfOpen {
		t.Fatalf("state = %v, want half_open", b.State())
	}
	if b.Allow() {
		t.Error("second probe admitted while first in flight")
	}
}

func TestBreakerProbeSuccessCloses(t *testing.T) {
	b, now := testBreaker()
	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}
	*now = now.Add(61 * time.Second)
	if !b.Allow() {
		t.Fatal("probe not admitted")
	}

	b.RecordSuccess()
	if b.State() != StateClosed {
		t.Errorf("state = %v, want closed", b.State())
	}
	if !b.Allow() {
		t.Error("closed breaker refused a request")
	}
}

func TestBreakerProbeFailureReopens(t *testing.T) {
	b, now := testBreaker()
	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}
	*now = now.Add(61 * time.Second)
	if !b.Allow() {
		t.Fatal("probe not admitted")
	}

	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatalf("state = %v, want open", b.State())
	}
	// The recovery timer restarted with the failed probe.
	*now = now.Add(59 * time.Second)
	if b.Allow() {
		t.Error("allowed before restarted recovery timeout")
	}
	*now = now.Add(2 * time.Second)
	if !b.Allow() {
		t.Error("probe not admitted after restarted timeout")
	}
}

func TestBreakerAdmitReportsProbeSlot(t *testing.T) {
	b, now := testBreaker()

	if _, probe := b.Admit(); probe {
		t.Error("closed breaker granted a probe slot")
	}

	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}
	*now = now.Add(61 * time.Second)

	allowed, probe := b.Admit()
	if !allowed || !probe {
		t.Fatalf("admit = %v/%v, want probe grant", allowed, probe)
	}
	if allowed, probe := b.Admit(); allowed || probe {
		t.Error("second admit granted while probe in flight")
	}
}

func TestBreakerReleaseProbe(t *testing.T) {
	b, now := testBreaker()
	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}
	*now = now.Add(61 * time.Second)
	if !b.Allow() {
		t.Fatal("probe not admitted")
	}

	// The probe resolved without an upstream verdict; the slot frees up.
	b.ReleaseProbe()
	if !b.Allow() {
		t.Error("released probe slot not reusable")
	}
}

func TestBreakerInterleavedSuccessDoesNotResetWindow(t *testing.T) {
	b, _ := testBreaker()
	for i := 0; i < 4; i++ {
		b.RecordFailure()
	}
	b.RecordSuccess()
	b.RecordFailure()
	if b.State() != StateOpen {
		t.Errorf("state = %v, want open (window unaffected by successes)", b.State())
	}
}
