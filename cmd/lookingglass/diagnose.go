package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/danmuck/lookingglass/internal/diagnostics"
	"github.com/danmuck/lookingglass/internal/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newDiagnoseCmd() *cobra.Command {
	var (
		count    string
		port     string
		duration string
		protocol string
	)
	cmd := &cobra.Command{
		Use:   "diagnose <type> <target>",
		Short: "Run one diagnostic locally and print the JSON result",
		Long:  "Run one of ping, mtr, nexttrace or iperf3 through the same validation and limits the panel applies.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logging.ConfigureRuntime()

			req := diagnostics.Request{
				Type:     args[0],
				Target:   args[1],
				Count:    flagNumber(cmd, "count", count),
				Port:     flagNumber(cmd, "port", port),
				Duration: flagNumber(cmd, "duration", duration),
				Protocol: diagnostics.Protocol(protocol),
			}
			res, err := newInvoker(cfg, log.Logger).Run(cmd.Context(), req)
			switch {
			case errors.Is(err, diagnostics.ErrToolUnavailable):
				return fmt.Errorf("%s is not available on this host", args[0])
			case err != nil:
				return err
			}

			out, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&count, "count", "", "probe count for ping and mtr (1-10, default 4)")
	cmd.Flags().StringVar(&port, "port", "", "iperf3 server port (1-65535, default 5201)")
	cmd.Flags().StringVar(&duration, "duration", "", "iperf3 duration in seconds (1-60, default 10)")
	cmd.Flags().StringVar(&protocol, "protocol", diagnostics.ProtocolTCP, "iperf3 protocol: tcp | udp")
	return cmd
}

// flagNumber leaves unset flags unset so the invoker applies its defaults.
func flagNumber(cmd *cobra.Command, name, raw string) diagnostics.Number {
	if !cmd.Flags().Changed(name) {
		return diagnostics.Number{}
	}
	return diagnostics.ParseNumber(raw)
}
