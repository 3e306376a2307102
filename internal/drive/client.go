// internal/drive/client.go
package drive

// Client abstracts the register operations the controller needs.
// The controller depends on register geometry only; every higher-level
// meaning (modes, setpoints, limits) lives above this seam.
type Client interface {
	// ReadRegisters reads qty consecutive holding registers. FC 3.
	ReadRegisters(addr, qty uint16) ([]uint16, error)

	// WriteRegister writes one holding register. FC 6.
	WriteRegister(addr, value uint16) error

	// WriteDualRegister writes a signed 32-bit value as low word then
	// high word in one multi-register transaction. FC 16.
	WriteDualRegister(addr uint16, value int32) error

	Close() error
}
