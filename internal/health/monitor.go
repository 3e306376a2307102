// internal/health/monitor.go
package health

// Link classifies the field-bus channel.
type Link int

const (
	LinkOk Link = iota
	LinkDegraded
	LinkFailed
)

func (l Link) String() string {
	switch l {
	case LinkOk:
		return "ok"
	case LinkDegraded:
		return "degraded"
	case LinkFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event reports a state-boundary crossing so the caller can log it and
// run its side effects exactly once per transition.
type Event int

const (
	EventNone Event = iota
	EventLost
	EventRecovered
)

// Monitor tracks consecutive transport failures and owns LinkState.
// It has no I/O of its own; the controller feeds it outcomes.
type Monitor struct {
	threshold int
	failures  int
	failed    bool
}

// New returns a monitor in the Failed state: the link is unknown until
// the first successful exchange, and starting failed makes the first
// probe drive the startup configuration path.
func New(threshold int) *Monitor {
	if threshold <= 0 {
		threshold = 5
	}
	return &Monitor{threshold: threshold, failed: true}
}

// RecordTelemetry counts one telemetry cycle outcome. Success resets the
// failure counter; failures accumulate and cross into Failed at the
// configured threshold.
func (m *Monitor) RecordTelemetry(ok bool) Event {
	if ok {
		m.failures = 0
		if m.failed {
			m.failed = false
			return EventRecovered
		}
		return EventNone
	}

	m.failures++
	if !m.failed && m.failures >= m.threshold {
		m.failed = true
		return EventLost
	}
	return EventNone
}

// RecordWriteFailure marks the link Failed immediately. A dropped write
// may have been a safety-relevant command; it is never just counted.
func (m *Monitor) RecordWriteFailure() Event {
	m.failures = m.threshold
	if !m.failed {
		m.failed = true
		return EventLost
	}
	return EventNone
}

// RecordProbe records an explicit connectivity probe. Probes are rare
// and all-or-nothing: one failure is treated as worst case, one success
// restores the link.
func (m *Monitor) RecordProbe(ok bool) Event {
	if ok {
		m.failures = 0
		if m.failed {
			m.failed = false
			return EventRecovered
		}
		return EventNone
	}

	m.failures = m.threshold
	if !m.failed {
		m.failed = true
		return EventLost
	}
	return EventNone
}

func (m *Monitor) State() Link {
	switch {
	case m.failed:
		return LinkFailed
	case m.failures > 0:
		return LinkDegraded
	default:
		return LinkOk
	}
}

// Failures returns the consecutive failure count (the n in Degraded(n)).
func (m *Monitor) Failures() int { return m.failures }

// Ok reports whether the link is usable. Degraded still counts: the
// hysteresis exists precisely so that fewer-than-threshold transient
// failures do not suspend actuation.
func (m *Monitor) Ok() bool { return !m.failed }
