package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:           "pipeline",
		Short:         "Turn meeting recordings into written summaries",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.yaml", "config file path")

	cmd.AddCommand(
		newServeCommand(&configFile),
		newRunCommand(&configFile),
	)
	return cmd
}
