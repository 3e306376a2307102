// internal/status/snapshot.go
package status

// Snapshot represents exactly what the broadcast is allowed to deliver.
// It contains no logic and no memory of the past beyond current state.
type Snapshot struct {
	ModbusOk         bool
	ServoEnabled     bool
	ServoStatus      uint16
	DIStatus         uint16
	Position         int32
	Speed            int16
	Torque           int16
	Current          int16
	BusVoltage       uint16
	HomingInProgress bool

	// Temperatures are optional; present only when the bridge is
	// configured to read them.
	HasTemps  bool
	IGBTTemp  int16
	MotorTemp int16
}
