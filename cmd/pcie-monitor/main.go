// Command pcie-monitor is a reference harness around pkg/pcie: a standalone
// binary that plays the part the host monitoring framework plays for a
// real collectd-style plugin (config loading, scheduling, notification
// delivery), scoped down to a demonstration CLI rather than a full daemon.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pcie-monitor/internal/logging"
)

var (
	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "pcie-monitor",
	Short: "Poll PCIe device error registers and tail kernel AER log lines",
	Long: `pcie-monitor polls PCI Express Device Status and Advanced Error
Reporting registers directly from config space, and optionally tails a
kernel log file for AER error lines, turning both into a stream of
structured notifications.

Examples:
  pcie-monitor check --config pcie-monitor.yaml     # run one poll, print a summary
  pcie-monitor watch --config pcie-monitor.yaml      # poll on an interval, log every event
  pcie-monitor devices --config pcie-monitor.yaml    # list surviving PCIe devices`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.SetLevelFromString(logLevel)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "pcie-monitor.yaml", "path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
