// Package commands implements the flowbench CLI.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// NewRootCmd builds the command tree. Each call returns fresh flag state.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "flowbench",
		Short: "flowbench - streaming download throughput benchmark",
		Long: `flowbench downloads a fixed number of bytes from a network source into
local storage through a bounded in-memory channel, with the network reader
and the storage writer running concurrently, and reports the achieved
throughput.

Sources: http(s)://, s3://bucket/key, sim://?size=2MiB&rate=512KiB
Sinks:   a file, or a block store (optionally lz4 compressed)

All configuration options can be overridden with environment variables
named FLOWBENCH_<SECTION>_<KEY>, e.g. FLOWBENCH_TRANSFER_TARGET_BYTES=2MiB.

Use "flowbench [command] --help" for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/flowbench/config.yaml)")
	configFile := func() string { return cfgFile }

	rootCmd.AddCommand(newRunCmd(configFile))
	rootCmd.AddCommand(newScheduleCmd(configFile))
	rootCmd.AddCommand(newInitCmd(configFile))
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	return rootCmd
}

// Execute runs the CLI. This is called by main.main().
func Execute() error {
	return NewRootCmd().Execute()
}
