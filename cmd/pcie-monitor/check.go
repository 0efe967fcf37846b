package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pcie-monitor/internal/sink"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a single poll and print a summary of what was found",
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	mon, err := newMonitor(configFile)
	if err != nil {
		return err
	}

	collector := &sink.CollectingSink{}
	if err := mon.Poll(collector); err != nil {
		return fmt.Errorf("poll failed: %w", err)
	}

	if len(collector.Notifications) == 0 {
		fmt.Println("no PCIe errors detected")
		return nil
	}

	for _, n := range collector.Notifications {
		fmt.Printf("[%s] %s %s: %s\n", n.Severity, n.PluginInstance, n.TypeInstance, n.Message)
	}
	return nil
}
