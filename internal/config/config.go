// internal/config/config.go
package config

type Config struct {
	Serial    SerialConfig  `yaml:"serial"`
	Registers RegisterMap   `yaml:"registers"`
	Control   ControlConfig `yaml:"control"`
	Homing    HomingConfig  `yaml:"homing"`
	Server    ServerConfig  `yaml:"server"`
	Store     StoreConfig   `yaml:"store"`
}

// ---- SERIAL LINK ----

type SerialConfig struct {
	Device      string `yaml:"device"`
	Baud        int    `yaml:"baud"`
	DataBits    int    `yaml:"data_bits"`
	Parity      string `yaml:"parity"` // N, E or O
	StopBits    int    `yaml:"stop_bits"`
	SlaveID     uint8  `yaml:"slave_id"`
	TimeoutMs   int    `yaml:"timeout_ms"`
	QuietTimeMs int    `yaml:"quiet_time_ms"` // bus turnaround between transactions
}

// ---- REGISTER MAP ----

// RegisterMap holds every drive register address the bridge touches.
// Addresses are configuration, never hardcoded; a zero field means
// "use the drive default" and is filled in by Normalize.
type RegisterMap struct {
	ControlMode      uint16 `yaml:"control_mode"`
	TargetSpeed      uint16 `yaml:"target_speed"`
	TorqueRefSource  uint16 `yaml:"torque_ref_source"`
	TargetTorque     uint16 `yaml:"target_torque"`
	ServoOn          uint16 `yaml:"servo_on"`
	SoftLimitEnable  uint16 `yaml:"soft_limit_enable"`
	SoftLimitNeg     uint16 `yaml:"soft_limit_neg"` // 32-bit, two registers
	Protection       uint16 `yaml:"protection"`     // out-of-control protection
	SpeedFeedback    uint16 `yaml:"speed_feedback"`
	TorqueFeedback   uint16 `yaml:"torque_feedback"`
	DigitalInput     uint16 `yaml:"digital_input"`
	BusVoltage       uint16 `yaml:"bus_voltage"`
	RMSCurrent       uint16 `yaml:"rms_current"`
	PositionFeedback uint16 `yaml:"position_feedback"` // 32-bit, two registers
	IGBTTemp         uint16 `yaml:"igbt_temp"`
	MotorTemp        uint16 `yaml:"motor_temp"`
	ServoStatus      uint16 `yaml:"servo_status"`
}

// ---- CONTROL / SAFETY ----

type ControlConfig struct {
	MaxTorque        int  `yaml:"max_torque"`        // tenths of percent
	FailureThreshold int  `yaml:"failure_threshold"` // consecutive read failures before link Failed
	TickIntervalMs   int  `yaml:"tick_interval_ms"`
	ProbeIntervalMs  int  `yaml:"probe_interval_ms"`
	BroadcastMs      int  `yaml:"broadcast_ms"`
	TorqueModeValue  int  `yaml:"torque_mode_value"` // control-mode register value for torque mode
	SpeedModeValue   int  `yaml:"speed_mode_value"`  // control-mode register value for speed mode
	ReadTemperatures bool `yaml:"read_temperatures"`
}

// ---- HOMING ----

type HomingConfig struct {
	Speed          int `yaml:"speed"`           // slow homing speed, rpm
	StallThreshold int `yaml:"stall_threshold"` // abs torque feedback, tenths of percent
	StartTimeoutMs int `yaml:"start_timeout_ms"`
}

// ---- OPERATOR SERVER ----

type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// ---- PERSISTED STATE ----

type StoreConfig struct {
	Path string `yaml:"path"`
}
