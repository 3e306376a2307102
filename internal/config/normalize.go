// internal/config/normalize.go
package config

// Drive register defaults (A6-RS manual numbering).
const (
	defRegControlMode      uint16 = 0x0000
	defRegTargetSpeed      uint16 = 0x0321
	defRegTorqueRefSource  uint16 = 0x0340
	defRegTargetTorque     uint16 = 0x0341
	defRegServoOn          uint16 = 0x0411
	defRegSoftLimitEnable  uint16 = 0x0607
	defRegSoftLimitNeg     uint16 = 0x0608
	defRegProtection       uint16 = 0x0620
	defRegSpeedFeedback    uint16 = 0x4001
	defRegTorqueFeedback   uint16 = 0x4003
	defRegDigitalInput     uint16 = 0x4004
	defRegBusVoltage       uint16 = 0x4006
	defRegRMSCurrent       uint16 = 0x400C
	defRegPositionFeedback uint16 = 0x4016
	defRegIGBTTemp         uint16 = 0x4030
	defRegMotorTemp        uint16 = 0x4031
	defRegServoStatus      uint16 = 0x410A
)

// Normalize applies post-validation defaults.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	// ---- serial ----

	if cfg.Serial.Baud == 0 {
		cfg.Serial.Baud = 115200
	}
	if cfg.Serial.DataBits == 0 {
		cfg.Serial.DataBits = 8
	}
	if cfg.Serial.Parity == "" {
		cfg.Serial.Parity = "N"
	}
	if cfg.Serial.StopBits == 0 {
		cfg.Serial.StopBits = 1
	}
	if cfg.Serial.SlaveID == 0 {
		cfg.Serial.SlaveID = 1
	}
	if cfg.Serial.TimeoutMs == 0 {
		cfg.Serial.TimeoutMs = 200
	}
	if cfg.Serial.QuietTimeMs == 0 {
		cfg.Serial.QuietTimeMs = 2
	}

	// ---- register map ----

	r := &cfg.Registers
	setIfZero(&r.ControlMode, defRegControlMode)
	setIfZero(&r.TargetSpeed, defRegTargetSpeed)
	setIfZero(&r.TorqueRefSource, defRegTorqueRefSource)
	setIfZero(&r.TargetTorque, defRegTargetTorque)
	setIfZero(&r.ServoOn, defRegServoOn)
	setIfZero(&r.SoftLimitEnable, defRegSoftLimitEnable)
	setIfZero(&r.SoftLimitNeg, defRegSoftLimitNeg)
	setIfZero(&r.Protection, defRegProtection)
	setIfZero(&r.SpeedFeedback, defRegSpeedFeedback)
	setIfZero(&r.TorqueFeedback, defRegTorqueFeedback)
	setIfZero(&r.DigitalInput, defRegDigitalInput)
	setIfZero(&r.BusVoltage, defRegBusVoltage)
	setIfZero(&r.RMSCurrent, defRegRMSCurrent)
	setIfZero(&r.PositionFeedback, defRegPositionFeedback)
	setIfZero(&r.IGBTTemp, defRegIGBTTemp)
	setIfZero(&r.MotorTemp, defRegMotorTemp)
	setIfZero(&r.ServoStatus, defRegServoStatus)

	// ---- control ----

	if cfg.Control.MaxTorque == 0 {
		cfg.Control.MaxTorque = 1000 // 100.0 %
	}
	if cfg.Control.FailureThreshold == 0 {
		cfg.Control.FailureThreshold = 5
	}
	if cfg.Control.TickIntervalMs == 0 {
		cfg.Control.TickIntervalMs = 10
	}
	if cfg.Control.ProbeIntervalMs == 0 {
		cfg.Control.ProbeIntervalMs = 2000
	}
	if cfg.Control.BroadcastMs == 0 {
		cfg.Control.BroadcastMs = 100
	}
	if cfg.Control.TorqueModeValue == 0 {
		cfg.Control.TorqueModeValue = 2
	}
	if cfg.Control.SpeedModeValue == 0 {
		cfg.Control.SpeedModeValue = 1
	}

	// ---- homing ----

	if cfg.Homing.Speed == 0 {
		cfg.Homing.Speed = 50
	}
	if cfg.Homing.StallThreshold == 0 {
		cfg.Homing.StallThreshold = 200 // 20.0 %
	}
	if cfg.Homing.StartTimeoutMs == 0 {
		cfg.Homing.StartTimeoutMs = 2000
	}

	// ---- server / store ----

	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "servo-bridge-state.yaml"
	}
}

func setIfZero(dst *uint16, v uint16) {
	if *dst == 0 {
		*dst = v
	}
}
