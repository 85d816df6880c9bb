package main

import (
	"fmt"

	"github.com/danmuck/lookingglass/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Panel configuration helpers"}
	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigValidateCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var (
		output string
		format string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output == "" || output == "-" {
				template, err := config.Template(format)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), template)
				return nil
			}
			if err := config.WriteTemplate(output, format, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "destination file; stdout when empty or -")
	cmd.Flags().StringVar(&format, "format", config.FormatTOML, "template format: toml | yaml")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate a configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "addr: %s\n", cfg.Addr)
			fmt.Fprintf(out, "diagnostics timeout: %s, output cap: %d bytes\n", cfg.Diagnostics.Timeout, cfg.Diagnostics.MaxOutputBytes)
			fmt.Fprintf(out, "admin routes: %s\n", enabled(cfg.AdminPassword != ""))
			if cfg.Agent.HeartbeatEnabled() {
				fmt.Fprintf(out, "heartbeat: every %s to %s\n", cfg.Agent.HeartbeatInterval, cfg.Agent.PanelURL)
			} else {
				fmt.Fprintln(out, "heartbeat: disabled")
			}
			return nil
		},
	}
}

func enabled(ok bool) string {
	if ok {
		return "enabled"
	}
	return "disabled"
}
