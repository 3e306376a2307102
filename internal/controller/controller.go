// internal/controller/controller.go

// Package controller owns every piece of drive, link and calibration
// state and runs the fixed-order polling tick. It is the only writer of
// the bus; the operator side talks to it exclusively through Submit.
package controller

import (
	"log"
	"sync/atomic"
	"time"

	"github.com/tamzrod/servo-bridge/internal/config"
	"github.com/tamzrod/servo-bridge/internal/drive"
	"github.com/tamzrod/servo-bridge/internal/health"
	"github.com/tamzrod/servo-bridge/internal/homing"
)

// DriveStatus mirrors the drive's servo status register. It is the
// authoritative answer to "is the servo actually enabled".
type DriveStatus uint16

const (
	StatusNotReady DriveStatus = 0
	StatusReady    DriveStatus = 1
	StatusRunning  DriveStatus = 2
	StatusFault    DriveStatus = 3
)

func (s DriveStatus) String() string {
	switch s {
	case StatusNotReady:
		return "not-ready"
	case StatusReady:
		return "ready"
	case StatusRunning:
		return "running"
	case StatusFault:
		return "fault"
	default:
		return "unknown"
	}
}

// Telemetry is the read-only snapshot refreshed every read cycle.
type Telemetry struct {
	Speed    int16
	Torque   int16
	DI       uint16
	Vbus     uint16
	Current  int16
	Pos      int32
	HasTemps bool
	IGBT     int16
	Motor    int16
}

// Broadcaster delivers outbound payloads to the operator console.
// It must not block the tick.
type Broadcaster interface {
	Broadcast(payload []byte)
}

// LimitStore is the opaque non-volatile home for the calibrated limit.
type LimitStore interface {
	SaveLimit(v int32) error
	LoadLimit() (int32, bool, error)
}

type Controller struct {
	cfg   config.Config
	drv   drive.Client
	mon   *health.Monitor
	homer *homing.Machine
	store LimitStore
	bcast Broadcaster

	cmds  chan Command
	estop atomic.Bool

	// Drive/link state. Owned by the tick goroutine; nothing below is
	// touched from the network side.
	desired  bool
	observed bool
	latch    bool // enable command already issued this attempt
	torque   int16
	status   DriveStatus
	tele     Telemetry

	softLimit    int32
	softLimitSet bool

	lastProbe     time.Time
	lastBroadcast time.Time

	notes [][]byte
}

// New builds a controller around an open transport. The persisted
// calibration, if any, is loaded here so the first link-up re-applies
// it to the drive.
func New(cfg config.Config, drv drive.Client, st LimitStore, b Broadcaster) *Controller {
	c := &Controller{
		cfg:   cfg,
		drv:   drv,
		store: st,
		bcast: b,
		mon:   health.New(cfg.Control.FailureThreshold),
		homer: homing.New(homing.Config{
			StallThreshold: int16(cfg.Homing.StallThreshold),
			StartTimeout:   time.Duration(cfg.Homing.StartTimeoutMs) * time.Millisecond,
		}),
		cmds: make(chan Command, 64),
	}

	if st != nil {
		v, ok, err := st.LoadLimit()
		switch {
		case err != nil:
			log.Printf("controller: persisted limit unreadable: %v", err)
		case ok:
			c.softLimit = v
			c.softLimitSet = true
			log.Printf("controller: loaded soft limit %d", v)
		}
	}

	return c
}

// SetBroadcaster installs the status sink. It exists because the hub
// and the controller reference each other; call it before Run.
func (c *Controller) SetBroadcaster(b Broadcaster) { c.bcast = b }

// LinkState exposes the monitor's classification.
func (c *Controller) LinkState() health.Link { return c.mon.State() }

func (c *Controller) note(payload []byte) {
	c.notes = append(c.notes, payload)
}

func (c *Controller) flushNotes() {
	if c.bcast == nil {
		c.notes = nil
		return
	}
	for _, n := range c.notes {
		c.bcast.Broadcast(n)
	}
	c.notes = nil
}

// forceSafe is the known-bad-link posture: disabled, zero torque, no
// pending enable. No commands are attempted against the bus here.
func (c *Controller) forceSafe() {
	c.desired = false
	c.observed = false
	c.latch = false
	c.torque = 0
	c.status = StatusNotReady
}
