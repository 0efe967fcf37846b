package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List the PCIe devices the monitor would poll",
	RunE:  runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	mon, err := newMonitor(configFile)
	if err != nil {
		return err
	}

	devs := mon.Devices()
	if len(devs) == 0 {
		fmt.Println("no PCIe devices")
		return nil
	}

	for _, dev := range devs {
		aer := "no"
		if dev.EcapAER >= 0 {
			aer = "yes"
		}
		fmt.Printf("%s\tcap_exp=%#x\taer=%s\n", dev.BDF, dev.CapExp, aer)
	}
	return nil
}
