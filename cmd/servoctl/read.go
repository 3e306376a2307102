// cmd/servoctl/read.go
package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var readCmd = &cobra.Command{
	Use:   "read <addr> [qty]",
	Short: "Read holding registers",
	Long: `Read one or more consecutive holding registers and print each as
address, hex value and signed decimal. Addresses accept 0x-prefixed
hex or plain decimal.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runRead,
}

func init() {
	rootCmd.AddCommand(readCmd)
}

func runRead(cmd *cobra.Command, args []string) error {
	addr, err := parseAddr(args[0])
	if err != nil {
		return err
	}

	qty := uint16(1)
	if len(args) == 2 {
		q, err := strconv.ParseUint(args[1], 0, 16)
		if err != nil || q == 0 {
			return fmt.Errorf("bad quantity %q", args[1])
		}
		qty = uint16(q)
	}

	drv, err := openDrive()
	if err != nil {
		return err
	}
	defer drv.Close()

	regs, err := drv.ReadRegisters(addr, qty)
	if err != nil {
		return fmt.Errorf("read 0x%04X: %w", addr, err)
	}

	for i, v := range regs {
		fmt.Printf("0x%04X  0x%04X  %6d\n", addr+uint16(i), v, int16(v))
	}
	return nil
}

func parseAddr(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("bad address %q", s)
	}
	return uint16(v), nil
}
