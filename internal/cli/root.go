package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fatimatofatima/hyper-factory/internal/config"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/fatimatofatima/hyper-factory/internal/cli.version=1.2.3"
	version = "0.4.0"
	logo    = "\n" +
		"  _   _ _____          _                   \n" +
		" | | | |  ___|_ _  ___| |_ ___  _ __ _   _ \n" +
		" | |_| | |_ / _` |/ __| __/ _ \\| '__| | | |\n" +
		" |  _  |  _| (_| | (__| || (_) | |  | |_| |\n" +
		" |_| |_|_|  \\__,_|\\___|\\__\\___/|_|   \\__, |\n" +
		"                                     |___/ \n"
)

var (
	cfg        *config.Config
	dbFlag     string
	levelFlag  string
	logCleanup = func() error { return nil }
)

var rootCmd = &cobra.Command{
	Use:           "hfactory",
	Short:         "Hyper Factory - task dispatch and learning engine",
	Long:          color.CyanString(logo) + "\nClassifies tasks, dispatches them to agents and learns from their outcomes.",
	SilenceUsage:  true,
	SilenceErrors: false,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupRuntime()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return logCleanup()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "hfactory %s\n", version)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbFlag, "db", "", "Path to the factory database (overrides paths.dbPath)")
	rootCmd.PersistentFlags().StringVar(&levelFlag, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.AddCommand(versionCmd)
}

// setupRuntime loads configuration, applies global flags and installs the
// default logger.
func setupRuntime() error {
	c, err := config.Load()
	if err != nil {
		return err
	}
	if strings.TrimSpace(dbFlag) != "" {
		c.Paths.DBPath = strings.TrimSpace(dbFlag)
	}
	if strings.TrimSpace(levelFlag) != "" {
		c.Log.Level = strings.ToLower(strings.TrimSpace(levelFlag))
	}
	level, err := config.ParseLevel(c.Log.Level)
	if err != nil {
		return fmt.Errorf("--log-level: %w", err)
	}

	_ = logCleanup()
	logger, cleanup := config.SetupLogger(level, c.Log.File)
	slog.SetDefault(logger)
	logCleanup = cleanup
	cfg = c
	return nil
}
