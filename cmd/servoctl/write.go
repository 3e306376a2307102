// cmd/servoctl/write.go
package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var writeWide bool

var writeCmd = &cobra.Command{
	Use:   "write <addr> <value>",
	Short: "Write a holding register",
	Long: `Write a single holding register, or with --wide a 32-bit value across
two consecutive registers (low word first). Values accept 0x-prefixed
hex or signed decimal.

Writing control registers on a live drive moves real hardware. Know
what the address does before you write it.`,
	Args: cobra.ExactArgs(2),
	RunE: runWrite,
}

func init() {
	writeCmd.Flags().BoolVar(&writeWide, "wide", false, "Write a 32-bit value across two registers")
	rootCmd.AddCommand(writeCmd)
}

func runWrite(cmd *cobra.Command, args []string) error {
	addr, err := parseAddr(args[0])
	if err != nil {
		return err
	}

	val, err := strconv.ParseInt(args[1], 0, 32)
	if err != nil {
		return fmt.Errorf("bad value %q", args[1])
	}

	drv, err := openDrive()
	if err != nil {
		return err
	}
	defer drv.Close()

	if writeWide {
		if err := drv.WriteDualRegister(addr, int32(val)); err != nil {
			return fmt.Errorf("write 0x%04X: %w", addr, err)
		}
		fmt.Printf("0x%04X..0x%04X <- %d\n", addr, addr+1, val)
		return nil
	}

	if val < -32768 || val > 65535 {
		return fmt.Errorf("value %d does not fit one register (use --wide)", val)
	}

	if err := drv.WriteRegister(addr, uint16(val)); err != nil {
		return fmt.Errorf("write 0x%04X: %w", addr, err)
	}
	fmt.Printf("0x%04X <- 0x%04X\n", addr, uint16(val))
	return nil
}
