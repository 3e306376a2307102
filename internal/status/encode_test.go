// internal/status/encode_test.go
package status

import (
	"encoding/json"
	"testing"
)

func decode(t *testing.T, b []byte) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal %s: %v", b, err)
	}
	return m
}

func TestEncode_StatusFields(t *testing.T) {
	m := decode(t, Encode(Snapshot{
		ModbusOk:         true,
		ServoEnabled:     true,
		ServoStatus:      2,
		DIStatus:         0x0005,
		Position:         -48213,
		Speed:            120,
		Torque:           -33,
		Current:          17,
		BusVoltage:       3110,
		HomingInProgress: true,
	}))

	if m["type"] != "status" {
		t.Fatalf("type = %v", m["type"])
	}
	if m["modbusOk"] != true || m["servoEnabled"] != true {
		t.Fatalf("booleans wrong: %v", m)
	}
	if m["pos"].(float64) != -48213 {
		t.Fatalf("pos = %v", m["pos"])
	}
	if m["trq"].(float64) != -33 {
		t.Fatalf("trq = %v", m["trq"])
	}
	if m["homingInProgress"] != true {
		t.Fatalf("homingInProgress = %v", m["homingInProgress"])
	}
	if _, present := m["igbtTemp"]; present {
		t.Fatalf("temperatures must be omitted when not read")
	}
}

func TestEncode_Temperatures(t *testing.T) {
	m := decode(t, Encode(Snapshot{HasTemps: true, IGBTTemp: 41, MotorTemp: 38}))
	if m["igbtTemp"].(float64) != 41 || m["motorTemp"].(float64) != 38 {
		t.Fatalf("temperatures wrong: %v", m)
	}
}

func TestHomingNotifications(t *testing.T) {
	m := decode(t, HomingFinished("limit -48213"))
	if m["type"] != "homingStatus" || m["status"] != "finished" {
		t.Fatalf("finished message wrong: %v", m)
	}

	m = decode(t, HomingFailed("drive fault"))
	if m["status"] != "failed" || m["message"] != "drive fault" {
		t.Fatalf("failed message wrong: %v", m)
	}
}

func TestTorqueSet(t *testing.T) {
	m := decode(t, TorqueSet(500))
	if m["type"] != "torqueSet" || m["value"].(float64) != 500 {
		t.Fatalf("torqueSet message wrong: %v", m)
	}
}
