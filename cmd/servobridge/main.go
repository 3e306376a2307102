// cmd/servobridge/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tamzrod/servo-bridge/internal/config"
	"github.com/tamzrod/servo-bridge/internal/controller"
	drivemodbus "github.com/tamzrod/servo-bridge/internal/drive/modbus"
	"github.com/tamzrod/servo-bridge/internal/store"
	"github.com/tamzrod/servo-bridge/internal/ws"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: servobridge <config.yaml>")
	}

	cfgPath := os.Args[1]

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	if err := config.Validate(cfg); err != nil {
		log.Fatalf("config validation failed: %v", err)
	}

	config.Normalize(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --------------------
	// Build the RTU client
	// --------------------

	drv, err := drivemodbus.New(drivemodbus.Config{
		Device:    cfg.Serial.Device,
		Baud:      cfg.Serial.Baud,
		DataBits:  cfg.Serial.DataBits,
		Parity:    cfg.Serial.Parity,
		StopBits:  cfg.Serial.StopBits,
		SlaveID:   cfg.Serial.SlaveID,
		Timeout:   time.Duration(cfg.Serial.TimeoutMs) * time.Millisecond,
		QuietTime: time.Duration(cfg.Serial.QuietTimeMs) * time.Millisecond,
	})
	if err != nil {
		log.Fatalf("drive open failed: %v", err)
	}
	defer drv.Close()

	// --------------------
	// Wire controller + websocket hub
	// --------------------

	st := store.New(cfg.Store.Path)

	ctl := controller.New(*cfg, drv, st, nil)
	hub := ws.New(ctl)
	ctl.SetBroadcaster(hub)

	go ctl.Run(ctx)

	// --------------------
	// Serve the console endpoint
	// --------------------

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)

	srv := &http.Server{
		Addr:    cfg.Server.Listen,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	log.Printf("servobridge: listening on %s (device=%s)", cfg.Server.Listen, cfg.Serial.Device)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("http server failed: %v", err)
	}
}
