package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const appName = "lookingglass"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Looking-glass network diagnostics panel",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "config file (.toml, .yaml or .yml); defaults and env only when empty")

	root.AddCommand(newServeCmd())
	root.AddCommand(newDiagnoseCmd())
	root.AddCommand(newConfigCmd())
	return root
}
