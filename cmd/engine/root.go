package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	config   string
	logLevel string
	json     bool
}

func newRootCmd() *cobra.Command {
	var gf globalFlags

	root := &cobra.Command{
		Use:           "engine",
		Short:         "Job feed ingestion, quality scoring and matching",
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&gf.config, "config", "", "path to config file (default $XDG_CONFIG_HOME/jobintel/config.yml)")
	root.PersistentFlags().StringVar(&gf.logLevel, "log-level", "", "override app.log_level")
	root.PersistentFlags().BoolVar(&gf.json, "json", false, "print results as JSON")

	root.AddCommand(
		newIngestCmd(&gf),
		newProcessCmd(&gf),
		newRescoreCmd(&gf),
		newAuditCmd(&gf),
		newMatchCmd(&gf),
		newPrefsCmd(&gf),
		newSecretsCmd(&gf),
		newServeCmd(&gf),
		newConfigCmd(&gf),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "engine %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
