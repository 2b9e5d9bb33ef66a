package main

import (
	"fmt"
	"io"
	"os"

	. "github.com/elijahnyp/smart_house/util"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const reportDivider = "==========================="

var houses = NewHouseHolder()

func newRootCmd() *cobra.Command {
	var logLevel string
	cmd := &cobra.Command{
		Use:           "smart_house",
		Short:         "Smart house model with status reports",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			LogInit(logLevel)
			SetupConfig()
			if cmd.Flags().Changed("log-level") {
				Config.Set("log_level", logLevel)
			} else {
				LogInit(Config.GetString("log_level"))
			}
			return houses.Reload()
		},
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")

	cmd.AddCommand(newReportCmd(), newRoomsCmd(), newDevicesCmd(), newModelCmd(), newServeCmd())
	return cmd
}

func newReportCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the house report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printReports(cmd.OutOrStdout(), count)
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 2, "number of reports to print")
	return cmd
}

func printReports(out io.Writer, count int) error {
	house := houses.House()
	for i := 0; i < count; i++ {
		if i > 0 {
			fmt.Fprintln(out, reportDivider)
		}
		report, err := GenerateReport("house", house)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Report #%d: %s\n", i+1, report)
	}
	return nil
}

func newRoomsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rooms",
		Short: "List the rooms of the house",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range houses.House().RoomNames() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices <room>",
		Short: "List the devices of a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := houses.House().RoomDeviceNames(args[0])
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newModelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "model",
		Short: "Print the configured house model as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(houses.Model()); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the monitor server and MQTT report publisher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
