// internal/controller/homing_exec.go
package controller

import (
	"fmt"
	"log"
	"time"

	"github.com/tamzrod/servo-bridge/internal/homing"
	"github.com/tamzrod/servo-bridge/internal/status"
)

// stepHoming feeds the calibration machine one tick of telemetry and
// executes the action it returns on the bus.
func (c *Controller) stepHoming(now time.Time) {
	act := c.homer.Step(homing.Inputs{
		LinkOk:   c.mon.Ok(),
		Running:  c.observed,
		Fault:    c.status == StatusFault,
		Torque:   c.tele.Torque,
		Position: c.tele.Pos,
		Now:      now,
	})

	switch act.Op {
	case homing.OpBegin:
		if err := c.beginHoming(); err != nil {
			c.rollbackHoming()
			c.homer.Reset()
			c.note(status.HomingFailed(fmt.Sprintf("start sequence failed: %v", err)))
			return
		}
		c.homer.Began(now)
		log.Printf("controller: homing move started")

	case homing.OpAbort:
		log.Printf("controller: homing aborted: %s", act.Reason)
		c.rollbackHoming()
		c.note(status.HomingFailed(act.Reason))

	case homing.OpFinish:
		err := c.finishHoming(act.Limit)
		c.homer.Reset()
		if err != nil {
			log.Printf("controller: homing finish failed: %v", err)
			c.note(status.HomingFailed(fmt.Sprintf("finish sequence failed: %v", err)))
			return
		}
		log.Printf("controller: homing finished, soft limit %d", act.Limit)
		c.note(status.HomingFinished(fmt.Sprintf("soft limit calibrated to %d", act.Limit)))

	default:
		if act.Fail {
			// Link-loss abort: no bus writes, just the notification.
			log.Printf("controller: homing aborted: %s", act.Reason)
			c.note(status.HomingFailed(act.Reason))
		}
	}
}

// beginHoming runs the start sequence: limits off, speed mode, slow
// target speed, enable. Any failure aborts; the caller rolls back.
func (c *Controller) beginHoming() error {
	regs := c.cfg.Registers

	if err := c.write(regs.SoftLimitEnable, 0); err != nil {
		return err
	}
	if err := c.write(regs.ControlMode, uint16(c.cfg.Control.SpeedModeValue)); err != nil {
		return err
	}
	if err := c.write(regs.TargetSpeed, uint16(c.cfg.Homing.Speed)); err != nil {
		return err
	}
	if err := c.write(regs.ServoOn, 1); err != nil {
		return err
	}
	return nil
}

// rollbackHoming restores torque mode and limits, best effort. Errors
// are already logged and fail-safed by the write helper; remaining
// steps are still attempted.
func (c *Controller) rollbackHoming() {
	regs := c.cfg.Registers

	_ = c.write(regs.ServoOn, 0)
	_ = c.write(regs.TargetSpeed, 0)
	_ = c.write(regs.ControlMode, uint16(c.cfg.Control.TorqueModeValue))
	if c.softLimitSet {
		_ = c.write(regs.SoftLimitEnable, 1)
	}
}

// finishHoming disables the drive, restores torque mode, writes the
// captured limit to the drive and persists it.
func (c *Controller) finishHoming(limit int32) error {
	regs := c.cfg.Registers

	if err := c.write(regs.ServoOn, 0); err != nil {
		return err
	}
	if err := c.write(regs.TargetSpeed, 0); err != nil {
		return err
	}
	if err := c.write(regs.ControlMode, uint16(c.cfg.Control.TorqueModeValue)); err != nil {
		return err
	}
	if err := c.writeDual(regs.SoftLimitNeg, limit); err != nil {
		return err
	}
	if err := c.write(regs.SoftLimitEnable, 1); err != nil {
		return err
	}

	c.softLimit = limit
	c.softLimitSet = true

	if c.store != nil {
		if err := c.store.SaveLimit(limit); err != nil {
			return fmt.Errorf("persist limit: %w", err)
		}
	}
	return nil
}

// applyDriveConfig is the startup and post-reconnect synchronization:
// after it returns, the drive's mode, reference source and limits match
// the controller's intent regardless of what the drive reset to.
func (c *Controller) applyDriveConfig() error {
	regs := c.cfg.Registers

	if err := c.write(regs.ServoOn, 0); err != nil {
		return err
	}
	if err := c.write(regs.ControlMode, uint16(c.cfg.Control.TorqueModeValue)); err != nil {
		return err
	}
	if err := c.write(regs.TorqueRefSource, 0); err != nil {
		return err
	}
	if err := c.write(regs.TargetTorque, 0); err != nil {
		return err
	}
	if err := c.write(regs.Protection, 0); err != nil {
		return err
	}

	if c.softLimitSet {
		if err := c.writeDual(regs.SoftLimitNeg, c.softLimit); err != nil {
			return err
		}
		if err := c.write(regs.SoftLimitEnable, 1); err != nil {
			return err
		}
	} else {
		if err := c.write(regs.SoftLimitEnable, 0); err != nil {
			return err
		}
	}

	log.Printf("controller: drive configuration applied")
	return nil
}
