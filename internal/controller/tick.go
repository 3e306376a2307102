// internal/controller/tick.go
package controller

import (
	"fmt"
	"log"
	"time"

	"github.com/tamzrod/servo-bridge/internal/drive"
	"github.com/tamzrod/servo-bridge/internal/health"
	"github.com/tamzrod/servo-bridge/internal/status"
)

// Tick runs one pass of the fixed pipeline: commands, health, telemetry,
// homing (preempting the gate), enable/disable + torque, broadcast.
// It never blocks beyond the transport's bounded timeouts.
func (c *Controller) Tick(now time.Time) {
	c.drainCommands()

	// 1. connection health. The explicit probe runs on its own interval
	// and only while the link is down; while up, telemetry is the
	// health signal (probing a merely degraded link would collapse the
	// failure-count hysteresis, since a probe failure is worst case
	// immediately).
	if c.mon.State() == health.LinkFailed {
		c.forceSafe()
		if now.Sub(c.lastProbe) >= time.Duration(c.cfg.Control.ProbeIntervalMs)*time.Millisecond {
			c.lastProbe = now
			c.probe()
		}
	}

	// 2. telemetry
	if c.mon.State() != health.LinkFailed {
		c.readCycle()
	}

	// 3. homing preempts the transition gate while active.
	if c.homer.Active() {
		c.stepHoming(now)
	} else if c.mon.Ok() {
		// 4. enable/disable reconciliation + torque setpoint
		c.reconcile()
	}

	// 5. outbound
	c.flushNotes()
	if now.Sub(c.lastBroadcast) >= time.Duration(c.cfg.Control.BroadcastMs)*time.Millisecond {
		c.lastBroadcast = now
		if c.bcast != nil {
			c.bcast.Broadcast(status.Encode(c.snapshot()))
		}
	}
}

// probe issues one read of a known-stable register. All or nothing: a
// failure is worst case immediately, a success brings the link up and
// re-applies the drive configuration.
func (c *Controller) probe() {
	_, err := c.drv.ReadRegisters(c.cfg.Registers.ControlMode, 1)
	c.handleLinkEvent(c.mon.RecordProbe(err == nil))
}

// handleLinkEvent logs each transition exactly once and runs its side
// effects: loss forces the safe posture, recovery re-synchronizes the
// drive configuration (the drive may have rebooted during the outage).
func (c *Controller) handleLinkEvent(ev health.Event) {
	switch ev {
	case health.EventLost:
		log.Printf("controller: bus link lost (%d consecutive failures)", c.mon.Failures())
		c.forceSafe()
	case health.EventRecovered:
		log.Printf("controller: bus link recovered")
		if err := c.applyDriveConfig(); err != nil {
			log.Printf("controller: drive configuration re-apply failed: %v", err)
		}
	}
}

// readCycle refreshes the telemetry snapshot. All reads must succeed
// for the snapshot to commit; the first failure aborts the rest of the
// sequence and counts once toward link degradation.
func (c *Controller) readCycle() {
	tele, st, err := c.readTelemetry()
	ev := c.mon.RecordTelemetry(err == nil)
	if err != nil {
		c.handleLinkEvent(ev)
		return
	}

	c.tele = tele
	c.status = st
	// The only place ObservedEnable may become true.
	c.observed = st == StatusRunning
	c.handleLinkEvent(ev)
}

func (c *Controller) readTelemetry() (Telemetry, DriveStatus, error) {
	regs := c.cfg.Registers
	var t Telemetry

	spd, err := c.read1(regs.SpeedFeedback)
	if err != nil {
		return t, 0, err
	}
	t.Speed = int16(spd)

	trq, err := c.read1(regs.TorqueFeedback)
	if err != nil {
		return t, 0, err
	}
	t.Torque = int16(trq)

	di, err := c.read1(regs.DigitalInput)
	if err != nil {
		return t, 0, err
	}
	t.DI = di

	vbus, err := c.read1(regs.BusVoltage)
	if err != nil {
		return t, 0, err
	}
	t.Vbus = vbus

	cur, err := c.read1(regs.RMSCurrent)
	if err != nil {
		return t, 0, err
	}
	t.Current = int16(cur)

	words, err := c.drv.ReadRegisters(regs.PositionFeedback, 2)
	if err != nil {
		return t, 0, err
	}
	if len(words) < 2 {
		return t, 0, fmt.Errorf("controller: short position read: %d words", len(words))
	}
	t.Pos = drive.JoinWords(words[0], words[1])

	if c.cfg.Control.ReadTemperatures {
		igbt, err := c.read1(regs.IGBTTemp)
		if err != nil {
			return t, 0, err
		}
		motor, err := c.read1(regs.MotorTemp)
		if err != nil {
			return t, 0, err
		}
		t.IGBT = int16(igbt)
		t.Motor = int16(motor)
		t.HasTemps = true
	}

	st, err := c.read1(regs.ServoStatus)
	if err != nil {
		return t, 0, err
	}

	return t, DriveStatus(st), nil
}

func (c *Controller) read1(addr uint16) (uint16, error) {
	words, err := c.drv.ReadRegisters(addr, 1)
	if err != nil {
		return 0, err
	}
	if len(words) < 1 {
		return 0, fmt.Errorf("controller: empty read at %#04x", addr)
	}
	return words[0], nil
}

// reconcile is the enable/disable transition gate. Evaluated only while
// homing is idle and the link is Ok.
func (c *Controller) reconcile() {
	regs := c.cfg.Registers

	switch {
	case c.desired && !c.observed:
		// Edge-trigger enable exactly once per attempt; the latch stays
		// set until the drive reports the target state.
		if c.status == StatusReady && !c.latch {
			if err := c.write(regs.ServoOn, 1); err == nil {
				c.latch = true
				log.Printf("controller: enable issued")
			}
		}

	case !c.desired && c.observed:
		// Disable is idempotent and unconditional.
		if err := c.write(regs.ServoOn, 0); err == nil {
			c.latch = false
			c.torque = 0
			log.Printf("controller: disable issued")
		}

	default:
		// Desired matches observed: reconcile the latch so a drive that
		// reached the target state on its own does not trigger a flood
		// of duplicate enables later.
		c.latch = c.desired
	}

	// The drive enforces its own limits; we only supply the magnitude.
	if c.observed {
		_ = c.write(regs.TargetTorque, uint16(c.clampedTorque()))
	}
}

func (c *Controller) clampedTorque() int16 {
	v := c.torque
	if v < 0 {
		v = 0
	}
	if max := int16(c.cfg.Control.MaxTorque); v > max {
		v = max
	}
	return v
}

// ---- fail-safe write helpers ----

// write performs one register write. Any failure is a safety event: the
// enable state is cleared immediately and the link is marked Failed,
// not merely counted.
func (c *Controller) write(addr, value uint16) error {
	err := c.drv.WriteRegister(addr, value)
	if err != nil {
		c.writeFailed(addr, err)
	}
	return err
}

func (c *Controller) writeDual(addr uint16, value int32) error {
	err := c.drv.WriteDualRegister(addr, value)
	if err != nil {
		c.writeFailed(addr, err)
	}
	return err
}

func (c *Controller) writeFailed(addr uint16, err error) {
	log.Printf("controller: write %#04x failed: %v", addr, err)
	if ev := c.mon.RecordWriteFailure(); ev == health.EventLost {
		log.Printf("controller: bus link lost (write rejected)")
	}
	c.forceSafe()
}

func (c *Controller) snapshot() status.Snapshot {
	return status.Snapshot{
		ModbusOk:         c.mon.Ok(),
		ServoEnabled:     c.observed,
		ServoStatus:      uint16(c.status),
		DIStatus:         c.tele.DI,
		Position:         c.tele.Pos,
		Speed:            c.tele.Speed,
		Torque:           c.tele.Torque,
		Current:          c.tele.Current,
		BusVoltage:       c.tele.Vbus,
		HomingInProgress: c.homer.Active(),
		HasTemps:         c.tele.HasTemps,
		IGBTTemp:         c.tele.IGBT,
		MotorTemp:        c.tele.Motor,
	}
}
