// internal/homing/machine.go

// Package homing implements the sensorless stall-seek calibration state
// machine. The machine is pure: it never touches the bus. Step consumes
// one tick's worth of telemetry and returns the action the caller must
// execute against the drive, so the whole sequence is testable with
// synthetic inputs.
package homing

import (
	"errors"
	"time"
)

// State is the calibration sub-state.
type State int

const (
	StateIdle State = iota
	StateStart
	StateWaitForRunning
	StateMovingSlow
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStart:
		return "start"
	case StateWaitForRunning:
		return "wait-for-running"
	case StateMovingSlow:
		return "moving-slow"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Start guard failures, reported synchronously to the requester.
var (
	ErrBusy         = errors.New("homing: calibration already in progress")
	ErrServoEnabled = errors.New("homing: servo must be disabled first")
	ErrLinkDown     = errors.New("homing: bus link is not ok")
)

// Op is what the caller must do with the drive this tick.
type Op int

const (
	// OpNone: nothing to execute. The action may still carry a failure
	// notification (link loss aborts without touching the bus).
	OpNone Op = iota

	// OpBegin: run the start sequence (limits off, speed mode, slow
	// speed, enable), then call Began on success or Reset after the
	// rollback on failure.
	OpBegin

	// OpAbort: run the rollback sequence (disable, zero speed, torque
	// mode, limits restored). The machine has already returned to Idle.
	OpAbort

	// OpFinish: stall found. Run the finish sequence and persist Limit,
	// then call Reset.
	OpFinish
)

// Action is the output of one Step.
type Action struct {
	Op     Op
	Limit  int32 // soft-limit candidate, valid for OpFinish
	Fail   bool
	Reason string
}

// Inputs is one tick's telemetry snapshot as the machine sees it.
type Inputs struct {
	LinkOk   bool
	Running  bool // ObservedEnable: drive status register reads Running
	Fault    bool
	Torque   int16 // signed torque feedback, tenths of percent
	Position int32
	Now      time.Time
}

type Config struct {
	StallThreshold int16
	StartTimeout   time.Duration
}

// Machine holds the volatile calibration state. It resets to Idle on
// power-up, link loss and emergency stop; nothing here is persisted.
type Machine struct {
	cfg       Config
	state     State
	startedAt time.Time
}

func New(cfg Config) *Machine {
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = 2 * time.Second
	}
	return &Machine{cfg: cfg}
}

func (m *Machine) State() State { return m.state }

// Active reports whether a calibration is in progress. While active the
// machine owns the drive's mode and setpoint registers.
func (m *Machine) Active() bool { return m.state != StateIdle }

// TryStart arms the machine. All guards must hold; a rejection changes
// nothing.
func (m *Machine) TryStart(linkOk, servoEnabled bool) error {
	if m.state != StateIdle {
		return ErrBusy
	}
	if !linkOk {
		return ErrLinkDown
	}
	if servoEnabled {
		return ErrServoEnabled
	}
	m.state = StateStart
	return nil
}

// Began records that the start sequence succeeded on the bus.
func (m *Machine) Began(now time.Time) {
	if m.state == StateStart {
		m.state = StateWaitForRunning
		m.startedAt = now
	}
}

// Reset unconditionally returns the machine to Idle. Used after finish
// and abort sequences, and by the emergency stop, which discards any
// in-progress rollback.
func (m *Machine) Reset() { m.state = StateIdle }

// Step advances the machine by one tick.
func (m *Machine) Step(in Inputs) Action {
	if m.state == StateIdle {
		return Action{}
	}

	// Homing cannot proceed blind: link loss aborts from any sub-state
	// without bus writes (none would get through).
	if !in.LinkOk {
		m.state = StateIdle
		return Action{Fail: true, Reason: "bus link lost"}
	}

	switch m.state {
	case StateStart:
		// Armed but not yet commanded; the caller executes the start
		// sequence and reports back via Began or Reset.
		return Action{Op: OpBegin}

	case StateWaitForRunning:
		if in.Fault {
			m.state = StateIdle
			return Action{Op: OpAbort, Fail: true, Reason: "drive fault before motion"}
		}
		if in.Running {
			m.state = StateMovingSlow
			return Action{}
		}
		if in.Now.Sub(m.startedAt) > m.cfg.StartTimeout {
			m.state = StateIdle
			return Action{Op: OpAbort, Fail: true, Reason: "drive did not start in time"}
		}
		return Action{}

	case StateMovingSlow:
		if !in.Running {
			// Fault or unexplained stop, either way the measurement is
			// gone.
			m.state = StateIdle
			return Action{Op: OpAbort, Fail: true, Reason: "drive stopped unexpectedly"}
		}
		if absTorque(in.Torque) > int(m.cfg.StallThreshold) {
			m.state = StateDone
			// Stall position becomes the negative travel limit.
			return Action{Op: OpFinish, Limit: -in.Position}
		}
		return Action{}

	case StateDone:
		// Transient: the caller runs the finish sequence and calls
		// Reset in the same tick.
		return Action{}
	}

	return Action{}
}

// absTorque is direction-agnostic stall magnitude. Widened to int so
// the minimum int16 value negates cleanly.
func absTorque(t int16) int {
	v := int(t)
	if v < 0 {
		v = -v
	}
	return v
}
