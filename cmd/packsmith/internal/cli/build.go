package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/packsmith/packsmith/internal/build"
	"github.com/packsmith/packsmith/internal/bundler"
	"github.com/packsmith/packsmith/internal/log"
	"github.com/packsmith/packsmith/pkg/config"
)

var buildFlags struct {
	configPath string
	tempRoot   string
	watch      bool
	debounce   int
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build all configured packs once",
	Long: `Builds every configured pack into its staging directory, publishes
the result to the target directories, and creates any configured
archives. With --watch the build keeps running and reacts to source
changes.`,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVarP(&buildFlags.configPath, "config", "c", "",
		"Config file (default: packsmith.toml, searched upward)")
	buildCmd.Flags().StringVar(&buildFlags.tempRoot, "temp-root", "",
		"Base directory for the staging root")
	buildCmd.Flags().BoolVarP(&buildFlags.watch, "watch", "w", false,
		"Keep running and rebuild on source changes")
	buildCmd.Flags().IntVar(&buildFlags.debounce, "debounce", 0,
		"Watch debounce window in milliseconds")

	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// CLI flags take precedence over config and environment.
	if !cmd.Root().PersistentFlags().Changed("verbosity") {
		log.SetVerbosity(cfg.Verbosity)
	}
	if buildFlags.tempRoot != "" {
		cfg.TempRoot = buildFlags.tempRoot
	}
	if buildFlags.watch {
		cfg.Watch = true
	}
	if buildFlags.debounce > 0 {
		cfg.DebounceMS = buildFlags.debounce
	}

	system, err := build.NewSystem(cfg, bundler.NewEsbuild())
	if err != nil {
		return err
	}

	// The system itself has no process-wide lifecycle hooks; shutdown
	// is injected through the context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	return system.Run(ctx)
}

// loadConfig loads from the explicit path or searches from the
// working directory.
func loadConfig() (*config.Config, error) {
	if buildFlags.configPath != "" {
		return config.LoadFile(buildFlags.configPath)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determine working directory: %w", err)
	}
	return config.Load(wd)
}
