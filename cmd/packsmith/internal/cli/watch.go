package cli

import (
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Build all packs and rebuild on source changes",
	Long: `Runs an initial full build, then watches the pack source trees and
rebuilds incrementally as files change. Bursts of writes are coalesced
into a single scoped rebuild; a change arriving mid-build cancels the
in-flight build and starts over.

Press Ctrl+C to stop watching.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		buildFlags.watch = true
		return runBuild(cmd, args)
	},
}

func init() {
	watchCmd.Flags().StringVarP(&buildFlags.configPath, "config", "c", "",
		"Config file (default: packsmith.toml, searched upward)")
	watchCmd.Flags().IntVar(&buildFlags.debounce, "debounce", 0,
		"Debounce window in milliseconds")

	rootCmd.AddCommand(watchCmd)
}
