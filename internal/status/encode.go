// internal/status/encode.go
package status

import "encoding/json"

// Wire layout of the operator messages. Field names are the console
// contract and MUST NOT change.

type statusMsg struct {
	Type             string `json:"type"`
	ModbusOk         bool   `json:"modbusOk"`
	ServoEnabled     bool   `json:"servoEnabled"`
	ServoStatus      uint16 `json:"servoStatus"`
	DIStatus         uint16 `json:"diStatus"`
	Position         int32  `json:"pos"`
	Speed            int16  `json:"spd"`
	Torque           int16  `json:"trq"`
	Current          int16  `json:"cur"`
	BusVoltage       uint16 `json:"vbus"`
	HomingInProgress bool   `json:"homingInProgress"`
	IGBTTemp         *int16 `json:"igbtTemp,omitempty"`
	MotorTemp        *int16 `json:"motorTemp,omitempty"`
}

type homingMsg struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type torqueSetMsg struct {
	Type  string `json:"type"`
	Value int    `json:"value"`
}

// Encode converts a Snapshot into one status message.
// No I/O. No side effects.
func Encode(s Snapshot) []byte {
	msg := statusMsg{
		Type:             "status",
		ModbusOk:         s.ModbusOk,
		ServoEnabled:     s.ServoEnabled,
		ServoStatus:      s.ServoStatus,
		DIStatus:         s.DIStatus,
		Position:         s.Position,
		Speed:            s.Speed,
		Torque:           s.Torque,
		Current:          s.Current,
		BusVoltage:       s.BusVoltage,
		HomingInProgress: s.HomingInProgress,
	}
	if s.HasTemps {
		igbt, motor := s.IGBTTemp, s.MotorTemp
		msg.IGBTTemp = &igbt
		msg.MotorTemp = &motor
	}
	return marshal(msg)
}

// HomingFinished encodes a calibration completion notification.
func HomingFinished(message string) []byte {
	return marshal(homingMsg{Type: "homingStatus", Status: "finished", Message: message})
}

// HomingFailed encodes a calibration failure notification.
func HomingFailed(message string) []byte {
	return marshal(homingMsg{Type: "homingStatus", Status: "failed", Message: message})
}

// TorqueSet encodes the setpoint acknowledgment echoed to the requester.
func TorqueSet(value int) []byte {
	return marshal(torqueSetMsg{Type: "torqueSet", Value: value})
}

// marshal cannot fail for the fixed message shapes above.
func marshal(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}
