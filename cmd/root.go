package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/termlog/internal/config"
)

// cfg holds the merged configuration, populated in PersistentPreRunE.
var cfg config.Config

// debugLog receives diagnostics. It discards everything unless --verbose.
var debugLog = slog.New(slog.NewTextHandler(io.Discard, nil))

var (
	verbose    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "termlog",
	Short: "Record terminal sessions to plain-text log files",
	Long: `termlog runs a shell in a pseudo-terminal and appends its output to a
log file with escape sequences stripped. Output is written whenever a new
line terminator appears, so a prompt that is still being typed stays out of
the log until the next line ends.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		debugLog = newLogger(cmd.ErrOrStderr(), verbose)

		if configPath != "" {
			explicit, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cfg = config.Merge(explicit, nil)
			debugLog.Debug("config loaded", "path", configPath)
			return nil
		}

		// Load and merge config files.
		global, err := config.LoadGlobal()
		if err != nil {
			return fmt.Errorf("loading global config: %w", err)
		}
		project, err := config.LoadProject()
		if err != nil {
			return fmt.Errorf("loading project config: %w", err)
		}
		cfg = config.Merge(global, project)
		debugLog.Debug("config loaded", "log_dir", cfg.LogDir, "scrollback_rows", cfg.ScrollbackRows)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print debug logging to stderr")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Read configuration from this file only")
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	if !verbose {
		w = io.Discard
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetConfig returns the merged configuration for use by subcommands.
func GetConfig() config.Config {
	return cfg
}
