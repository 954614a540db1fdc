package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/termlog/internal/config"
	"github.com/fakeyudi/termlog/internal/recorder"
	"github.com/fakeyudi/termlog/internal/session"
)

var (
	startOutput    string
	startOverwrite bool
)

var startCmd = &cobra.Command{
	Use:   "start [-- command [args...]]",
	Short: "Record a shell (or the given command) to a log file",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := session.NewSessionStore()
		if err != nil {
			return err
		}
		if err := checkNotRecording(store); err != nil {
			return err
		}
		cfg := GetConfig()

		command := args
		if len(command) == 0 {
			command = []string{cfg.ResolveShell()}
		}

		path, err := logPath(cfg, startOutput, time.Now())
		if err != nil {
			return err
		}
		switch _, err := os.Stat(path); {
		case err == nil:
			if !startOverwrite {
				cmd.PrintErrf("Appending to existing %s (use --overwrite to replace it)\n", path)
			}
		case !errors.Is(err, os.ErrNotExist):
			return err
		}

		rec := recorder.New(recorder.Options{
			ID:             uuid.New(),
			Command:        command,
			LogPath:        path,
			Overwrite:      startOverwrite,
			ScrollbackRows: cfg.ScrollbackRows,
			PID:            os.Getpid(),
			Stdin:          cmd.InOrStdin(),
			Stdout:         cmd.OutOrStdout(),
			Store:          store,
			Logger:         debugLog,
		})

		cmd.PrintErrf("Logging to %s (session %s)\n", path, shortID(rec.ID().String()))

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := rec.Run(ctx); err != nil {
			return err
		}
		cmd.PrintErrf("Session %s finished. Log: %s\n", shortID(rec.ID().String()), path)
		return nil
	},
}

// checkNotRecording refuses to start inside a terminal whose recording is
// still running. A stopped recording leaves TERMLOG_SESSION set in the shell
// but no record behind it.
func checkNotRecording(store session.SessionStore) error {
	id := os.Getenv(recorder.SessionEnv)
	if id == "" {
		return nil
	}
	live, err := liveRecords(store)
	if err != nil {
		return err
	}
	for _, r := range live {
		if r.ID == id {
			return fmt.Errorf("session already in progress in this terminal (%s)", shortID(id))
		}
	}
	return nil
}

// logPath picks the output file: the --output flag, or a timestamped file in
// the configured log directory, which is created if needed.
func logPath(cfg config.Config, output string, now time.Time) (string, error) {
	if output != "" {
		return config.ExpandPath(output)
	}
	dir, err := config.ExpandPath(cfg.LogDir)
	if err != nil {
		return "", fmt.Errorf("log_dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating log directory: %w", err)
	}
	return filepath.Join(dir, "termlog-"+now.Format("20060102-150405")+".log"), nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	startCmd.Flags().StringVarP(&startOutput, "output", "o", "", "Log file path (default <log_dir>/termlog-<timestamp>.log)")
	startCmd.Flags().BoolVar(&startOverwrite, "overwrite", false, "Truncate the log file instead of appending to it")
	rootCmd.AddCommand(startCmd)
}
