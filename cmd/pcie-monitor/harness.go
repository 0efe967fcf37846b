package main

import (
	"fmt"
	"os"

	"pcie-monitor/internal/config"
	"pcie-monitor/pkg/pcie"
)

// newMonitor loads configFile, resolves the local hostname (§1: host-name
// discovery belongs to the harness, not the core), and builds a Monitor
// ready to Poll.
func newMonitor(configFile string) (*pcie.Monitor, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}

	var resolver pcie.InterfaceResolver
	if cfg.Source != "proc" {
		resolver = pcie.NewEthtoolResolver(cfg.AccessDir)
	}

	opts := cfg.ToOptions(host, resolver)
	mon, err := pcie.NewMonitor(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize monitor: %w", err)
	}
	return mon, nil
}
