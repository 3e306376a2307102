// internal/health/monitor_test.go
package health

import "testing"

func bringUp(t *testing.T, m *Monitor) {
	t.Helper()
	if ev := m.RecordTelemetry(true); ev != EventRecovered {
		t.Fatalf("expected EventRecovered, got %v", ev)
	}
}

func TestMonitor_StartsFailed(t *testing.T) {
	m := New(5)
	if m.State() != LinkFailed {
		t.Fatalf("new monitor should start failed, got %v", m.State())
	}
}

func TestMonitor_HysteresisBelowThreshold(t *testing.T) {
	m := New(5)
	bringUp(t, m)

	for i := 0; i < 4; i++ {
		if ev := m.RecordTelemetry(false); ev != EventNone {
			t.Fatalf("failure %d: unexpected event %v", i+1, ev)
		}
		if m.State() != LinkDegraded {
			t.Fatalf("failure %d: expected degraded, got %v", i+1, m.State())
		}
	}

	if m.Failures() != 4 {
		t.Fatalf("expected 4 failures, got %d", m.Failures())
	}
}

func TestMonitor_FailsAtThreshold(t *testing.T) {
	m := New(5)
	bringUp(t, m)

	for i := 0; i < 4; i++ {
		m.RecordTelemetry(false)
	}
	if ev := m.RecordTelemetry(false); ev != EventLost {
		t.Fatalf("expected EventLost at threshold, got %v", ev)
	}
	if m.State() != LinkFailed {
		t.Fatalf("expected failed, got %v", m.State())
	}

	// No duplicate loss event past the threshold.
	if ev := m.RecordTelemetry(false); ev != EventNone {
		t.Fatalf("expected no event past threshold, got %v", ev)
	}
}

func TestMonitor_SuccessResetsCounter(t *testing.T) {
	m := New(5)
	bringUp(t, m)

	m.RecordTelemetry(false)
	m.RecordTelemetry(false)
	if ev := m.RecordTelemetry(true); ev != EventNone {
		t.Fatalf("success while degraded should not re-announce recovery, got %v", ev)
	}
	if m.State() != LinkOk || m.Failures() != 0 {
		t.Fatalf("expected clean ok state, got %v/%d", m.State(), m.Failures())
	}
}

func TestMonitor_WriteFailureImmediate(t *testing.T) {
	m := New(5)
	bringUp(t, m)

	if ev := m.RecordWriteFailure(); ev != EventLost {
		t.Fatalf("expected immediate loss on write failure, got %v", ev)
	}
	if m.State() != LinkFailed {
		t.Fatalf("expected failed, got %v", m.State())
	}
}

func TestMonitor_ProbeAllOrNothing(t *testing.T) {
	m := New(5)
	bringUp(t, m)

	if ev := m.RecordProbe(false); ev != EventLost {
		t.Fatalf("expected loss on probe failure, got %v", ev)
	}

	if ev := m.RecordProbe(true); ev != EventRecovered {
		t.Fatalf("expected recovery on probe success, got %v", ev)
	}
	if m.State() != LinkOk {
		t.Fatalf("expected ok after probe success, got %v", m.State())
	}
}
