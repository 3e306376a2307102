// cmd/servoctl/root.go
package main

import (
	"time"

	"github.com/spf13/cobra"

	drivemodbus "github.com/tamzrod/servo-bridge/internal/drive/modbus"
)

var (
	// Serial link flags, shared by every subcommand.
	device    string
	baud      int
	parity    string
	slaveID   uint8
	timeoutMs int
	quietMs   int
)

var rootCmd = &cobra.Command{
	Use:   "servoctl",
	Short: "Direct register access for a servo drive on Modbus RTU",
	Long: `Servoctl talks to a servo drive over Modbus RTU without the bridge
in between. It is a bring-up and debugging tool: read or write raw
holding registers, or watch the drive's feedback block update live.

The bridge owns the bus while it is running; stop it before pointing
servoctl at the same serial device.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&device, "device", "d", "", "Serial device (required)")
	rootCmd.PersistentFlags().IntVarP(&baud, "baud", "b", 115200, "Baud rate")
	rootCmd.PersistentFlags().StringVar(&parity, "parity", "N", "Parity: N, E or O")
	rootCmd.PersistentFlags().Uint8Var(&slaveID, "slave", 1, "Modbus slave ID")
	rootCmd.PersistentFlags().IntVar(&timeoutMs, "timeout", 200, "Transaction timeout in ms")
	rootCmd.PersistentFlags().IntVar(&quietMs, "quiet", 2, "Bus quiet time between transactions in ms")

	_ = rootCmd.MarkPersistentFlagRequired("device")
}

// openDrive builds an RTU client from the shared flags.
func openDrive() (*drivemodbus.Client, error) {
	return drivemodbus.New(drivemodbus.Config{
		Device:    device,
		Baud:      baud,
		DataBits:  8,
		Parity:    parity,
		StopBits:  1,
		SlaveID:   slaveID,
		Timeout:   time.Duration(timeoutMs) * time.Millisecond,
		QuietTime: time.Duration(quietMs) * time.Millisecond,
	})
}
