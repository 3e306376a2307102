// internal/controller/command.go
package controller

import (
	"log"

	"github.com/tamzrod/servo-bridge/internal/status"
)

// CommandKind enumerates the operator commands.
type CommandKind int

const (
	CmdSetTorque CommandKind = iota
	CmdEnable
	CmdDisable
	CmdStartHoming
	CmdEStop
	CmdGetStatus
)

// Command is one operator request. Commands are produced in the network
// callback context and consumed by the next tick; Reply, when set,
// answers the requesting client directly (it must not block).
type Command struct {
	Kind  CommandKind
	Value int
	Reply func(payload []byte)
}

// Submit enqueues a command for the next tick. It never blocks: when
// the queue is full the command is dropped with a log line. An
// emergency stop is never queued at all, it flips the latched flag the
// tick checks first.
func (c *Controller) Submit(cmd Command) {
	if cmd.Kind == CmdEStop {
		c.estop.Store(true)
		return
	}

	select {
	case c.cmds <- cmd:
	default:
		log.Printf("controller: command queue full, dropping kind=%d", cmd.Kind)
	}
}

// EStop requests an emergency stop. Callable from any goroutine at any
// time.
func (c *Controller) EStop() { c.estop.Store(true) }

// drainCommands applies everything the network side queued since the
// last tick. An emergency stop supersedes the queue: commands queued
// before the stop are stale, so everything but status queries is
// dropped.
func (c *Controller) drainCommands() {
	stopped := c.estop.Swap(false)
	if stopped {
		c.estopNow()
	}

	for {
		select {
		case cmd := <-c.cmds:
			if stopped && cmd.Kind != CmdGetStatus {
				continue
			}
			c.apply(cmd)
		default:
			return
		}
	}
}

func (c *Controller) apply(cmd Command) {
	switch cmd.Kind {
	case CmdSetTorque:
		v := cmd.Value
		if v < 0 {
			v = 0
		}
		if v > c.cfg.Control.MaxTorque {
			v = c.cfg.Control.MaxTorque
		}
		c.torque = int16(v)
		if cmd.Reply != nil {
			cmd.Reply(status.TorqueSet(v))
		}

	case CmdEnable:
		if c.homer.Active() {
			log.Printf("controller: enable ignored, homing in progress")
			return
		}
		c.desired = true

	case CmdDisable:
		c.desired = false
		c.torque = 0

	case CmdStartHoming:
		if err := c.homer.TryStart(c.mon.Ok(), c.observed); err != nil {
			payload := status.HomingFailed(err.Error())
			if cmd.Reply != nil {
				cmd.Reply(payload)
			} else {
				c.note(payload)
			}
			return
		}
		// Homing owns the drive while active.
		c.desired = false
		c.torque = 0
		log.Printf("controller: homing requested")

	case CmdGetStatus:
		if cmd.Reply != nil {
			cmd.Reply(status.Encode(c.snapshot()))
		}

	case CmdEStop:
		// Normally intercepted in Submit; honor it anyway.
		c.estopNow()
	}
}

// estopNow is the unconditional override. It short-circuits the homing
// machine's own rollback: safety beats leaving the drive in a clean
// configuration state.
func (c *Controller) estopNow() {
	log.Printf("controller: EMERGENCY STOP")

	wasHoming := c.homer.Active()
	c.homer.Reset()
	c.desired = false
	c.latch = false
	c.torque = 0
	c.observed = false

	// Immediate disable, bypassing the transition gate.
	if err := c.drv.WriteRegister(c.cfg.Registers.ServoOn, 0); err != nil {
		c.writeFailed(c.cfg.Registers.ServoOn, err)
	}

	if wasHoming {
		c.note(status.HomingFailed("emergency stop"))
	}
}
