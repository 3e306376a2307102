// cmd/servoctl/monitor.go
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tamzrod/servo-bridge/internal/config"
	"github.com/tamzrod/servo-bridge/internal/drive"
)

var monitorIntervalMs int

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch the drive's feedback registers live",
	Long: `Poll the drive's feedback block and print one line per cycle:
position, speed, torque, current, bus voltage and servo status.
Register addresses follow the drive's factory map.`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().IntVar(&monitorIntervalMs, "interval", 200, "Poll interval in ms")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	// Normalize on a zero config yields the factory register map.
	var cfg config.Config
	cfg.Serial.Device = device
	config.Normalize(&cfg)
	regs := cfg.Registers

	drv, err := openDrive()
	if err != nil {
		return err
	}
	defer drv.Close()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Duration(monitorIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	fmt.Printf("%10s %8s %8s %8s %8s %8s\n", "pos", "spd", "trq", "cur", "vbus", "status")

	for {
		select {
		case <-sig:
			return nil
		case <-ticker.C:
			if err := printCycle(drv, regs); err != nil {
				fmt.Fprintf(os.Stderr, "read failed: %v\n", err)
			}
		}
	}
}

func printCycle(drv drive.Client, regs config.RegisterMap) error {
	read1 := func(addr uint16) (uint16, error) {
		v, err := drv.ReadRegisters(addr, 1)
		if err != nil {
			return 0, err
		}
		return v[0], nil
	}

	pos, err := drv.ReadRegisters(regs.PositionFeedback, 2)
	if err != nil {
		return err
	}
	spd, err := read1(regs.SpeedFeedback)
	if err != nil {
		return err
	}
	trq, err := read1(regs.TorqueFeedback)
	if err != nil {
		return err
	}
	cur, err := read1(regs.RMSCurrent)
	if err != nil {
		return err
	}
	vbus, err := read1(regs.BusVoltage)
	if err != nil {
		return err
	}
	st, err := read1(regs.ServoStatus)
	if err != nil {
		return err
	}

	fmt.Printf("%10d %8d %8d %8d %8d %8d\n",
		drive.JoinWords(pos[0], pos[1]), int16(spd), int16(trq), int16(cur), vbus, st)
	return nil
}
