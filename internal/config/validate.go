// internal/config/validate.go
package config

import (
	"fmt"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration; defaults belong to Normalize.
func Validate(cfg *Config) error {
	// ------------------------------------------------------------
	// SERIAL LINK
	// ------------------------------------------------------------

	if cfg.Serial.Device == "" {
		return fmt.Errorf("serial: device required")
	}

	if cfg.Serial.Baud < 0 {
		return fmt.Errorf("serial: baud must not be negative")
	}

	switch cfg.Serial.Parity {
	case "", "N", "E", "O":
	default:
		return fmt.Errorf("serial: parity must be N, E or O, got %q", cfg.Serial.Parity)
	}

	switch cfg.Serial.DataBits {
	case 0, 7, 8:
	default:
		return fmt.Errorf("serial: data_bits must be 7 or 8, got %d", cfg.Serial.DataBits)
	}

	switch cfg.Serial.StopBits {
	case 0, 1, 2:
	default:
		return fmt.Errorf("serial: stop_bits must be 1 or 2, got %d", cfg.Serial.StopBits)
	}

	if cfg.Serial.TimeoutMs < 0 {
		return fmt.Errorf("serial: timeout_ms must not be negative")
	}

	if cfg.Serial.QuietTimeMs < 0 {
		return fmt.Errorf("serial: quiet_time_ms must not be negative")
	}

	// ------------------------------------------------------------
	// CONTROL / SAFETY
	// ------------------------------------------------------------

	if cfg.Control.MaxTorque < 0 {
		return fmt.Errorf("control: max_torque must not be negative")
	}
	if cfg.Control.MaxTorque > 32767 {
		return fmt.Errorf("control: max_torque %d exceeds the signed 16-bit register range", cfg.Control.MaxTorque)
	}

	if cfg.Control.FailureThreshold < 0 {
		return fmt.Errorf("control: failure_threshold must not be negative")
	}

	for name, v := range map[string]int{
		"tick_interval_ms":  cfg.Control.TickIntervalMs,
		"probe_interval_ms": cfg.Control.ProbeIntervalMs,
		"broadcast_ms":      cfg.Control.BroadcastMs,
	} {
		if v < 0 {
			return fmt.Errorf("control: %s must not be negative", name)
		}
	}

	if cfg.Control.TorqueModeValue < 0 || cfg.Control.TorqueModeValue > 65535 {
		return fmt.Errorf("control: torque_mode_value out of 16-bit range")
	}
	if cfg.Control.SpeedModeValue < 0 || cfg.Control.SpeedModeValue > 65535 {
		return fmt.Errorf("control: speed_mode_value out of 16-bit range")
	}

	// ------------------------------------------------------------
	// HOMING
	// ------------------------------------------------------------

	if cfg.Homing.Speed < 0 {
		return fmt.Errorf("homing: speed must not be negative")
	}
	if cfg.Homing.Speed > 32767 {
		return fmt.Errorf("homing: speed %d exceeds the signed 16-bit register range", cfg.Homing.Speed)
	}

	if cfg.Homing.StallThreshold < 0 {
		return fmt.Errorf("homing: stall_threshold must not be negative")
	}
	if cfg.Homing.StallThreshold > 32767 {
		return fmt.Errorf("homing: stall_threshold %d exceeds the signed 16-bit register range", cfg.Homing.StallThreshold)
	}

	if cfg.Homing.StartTimeoutMs < 0 {
		return fmt.Errorf("homing: start_timeout_ms must not be negative")
	}

	return nil
}
