// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"

	"github.com/relabs-tech/air_monitor/internal/app"
	"github.com/relabs-tech/air_monitor/internal/config"
)

const version = "1.2.0"

func main() {
	configPath := flag.String("config", "./air_monitor.txt", "path to configuration file")
	flag.Parse()

	log.Printf("air monitor %s starting", version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	err = app.RunMonitor(context.Background(), cfg)
	switch {
	case errors.Is(err, app.ErrRemoteValidation):
		// Permanent halt: restarting would just fail validation again.
		log.Printf("halted: %v", err)
		select {}
	case errors.Is(err, app.ErrRestartRequested):
		// Non-zero exit so the supervisor (systemd Restart=always) reboots us.
		log.Printf("exiting for supervisor restart: %v", err)
		os.Exit(1)
	case err != nil:
		log.Fatalf("fatal: %v", err)
	}
}
