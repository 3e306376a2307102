// internal/drive/modbus/client.go
package modbus

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"

	"github.com/tamzrod/servo-bridge/internal/drive"
)

// Client is the RTU connection to the drive.
// The bus is half duplex: it serializes requests with a mutex and
// enforces a quiet time between transactions so the drive's transceiver
// has turned around before the next frame starts.
type Client struct {
	mu      sync.Mutex
	handler *modbus.RTUClientHandler
	client  modbus.Client

	quiet time.Duration
	last  time.Time
}

type Config struct {
	Device    string
	Baud      int
	DataBits  int
	Parity    string
	StopBits  int
	SlaveID   uint8
	Timeout   time.Duration
	QuietTime time.Duration
}

// New opens the serial port and returns a connected RTU client.
func New(cfg Config) (*Client, error) {
	if cfg.Device == "" {
		return nil, errors.New("drive modbus: device required")
	}

	h := modbus.NewRTUClientHandler(cfg.Device)
	h.BaudRate = cfg.Baud
	h.DataBits = cfg.DataBits
	h.Parity = cfg.Parity
	h.StopBits = cfg.StopBits
	h.SlaveId = cfg.SlaveID
	h.Timeout = cfg.Timeout

	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("drive modbus: open %s: %w", cfg.Device, err)
	}

	return &Client{
		handler: h,
		client:  modbus.NewClient(h),
		quiet:   cfg.QuietTime,
	}, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler.Close()
}

// ---- drive.Client interface ----

func (c *Client) ReadRegisters(addr, qty uint16) ([]uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pace()

	raw, err := c.client.ReadHoldingRegisters(addr, qty)
	c.last = time.Now()
	if err != nil {
		return nil, err
	}
	if len(raw) != int(qty)*2 {
		return nil, fmt.Errorf("drive modbus: short read at %#04x: got %d bytes, want %d", addr, len(raw), qty*2)
	}

	return unpackRegisters(raw), nil
}

func (c *Client) WriteRegister(addr, value uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pace()

	_, err := c.client.WriteSingleRegister(addr, value)
	c.last = time.Now()
	return err
}

func (c *Client) WriteDualRegister(addr uint16, value int32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pace()

	lo, hi := drive.SplitWords(value)
	_, err := c.client.WriteMultipleRegisters(addr, 2, packRegisters([]uint16{lo, hi}))
	c.last = time.Now()
	return err
}

// pace blocks until the configured quiet time since the previous
// transaction has elapsed. Callers hold the mutex.
func (c *Client) pace() {
	if c.quiet <= 0 {
		return
	}
	if d := c.quiet - time.Since(c.last); d > 0 {
		time.Sleep(d)
	}
}

// ---- helpers (pure geometry) ----

func packRegisters(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		out[2*i] = byte(r >> 8)
		out[2*i+1] = byte(r)
	}
	return out
}

func unpackRegisters(data []byte) []uint16 {
	n := len(data) / 2
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		out[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return out
}

var _ drive.Client = (*Client)(nil)
