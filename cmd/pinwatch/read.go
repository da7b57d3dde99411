package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sweeney/pinwatch/internal/config"
	"github.com/sweeney/pinwatch/internal/gpio"
)

func newReadCommand() *cobra.Command {
	var backend, chip string

	cmd := &cobra.Command{
		Use:   "read pin ...",
		Short: "print the current value of each pin and exit",
		Long: `read prints one pin=value line per argument and exits. The sysfs
backend reads pins that are already exported; cdev requests the lines
for the duration of the read.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			pins, err := config.ParsePins(args, gpio.EdgeBoth)
			if err != nil {
				return err
			}
			values, err := readValues(backend, chip, pins)
			if err != nil {
				return err
			}
			for i, p := range pins {
				fmt.Fprintf(cmd.OutOrStdout(), "%d=%d\n", p.Number, values[i])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&backend, "backend", config.BackendSysfs, "pin access backend (sysfs or cdev)")
	cmd.Flags().StringVar(&chip, "chip", gpio.DefaultChip, "gpio chip name for the cdev backend")
	return cmd
}

func readValues(backend, chip string, pins []gpio.Pin) ([]int, error) {
	switch backend {
	case config.BackendCdev:
		return gpio.CdevValues(chip, pins)
	case config.BackendSysfs:
		fs := gpio.Sysfs{Root: gpio.DefaultSysfsRoot}
		values := make([]int, len(pins))
		for i, p := range pins {
			v, err := fs.ReadValue(p.Number)
			if err != nil {
				return nil, err
			}
			values[i] = v
		}
		return values, nil
	}
	return nil, fmt.Errorf("unknown backend %q (want %s or %s)", backend, config.BackendSysfs, config.BackendCdev)
}
