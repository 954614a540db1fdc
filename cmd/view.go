package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/termlog/internal/session"
	"github.com/fakeyudi/termlog/internal/tui"
)

var viewCmd = &cobra.Command{
	Use:   "view [PATH|ID]",
	Short: "Browse a log file, following it while it grows",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := viewTarget(args)
		if err != nil {
			return err
		}
		return tui.Run(path, GetConfig().TailLines)
	},
}

// viewTarget resolves the argument to a log file: an existing path, or the
// log of the active session whose id starts with it.
func viewTarget(args []string) (string, error) {
	if len(args) == 1 {
		if _, err := os.Stat(args[0]); err == nil {
			return args[0], nil
		}
	}

	store, err := session.NewSessionStore()
	if err != nil {
		return "", err
	}
	rec, err := resolveSession(store, args)
	if err != nil {
		if len(args) == 1 && errors.Is(err, errNoActive) {
			return "", fmt.Errorf("file not found: %s", args[0])
		}
		return "", err
	}
	return rec.LogPath, nil
}

func init() {
	rootCmd.AddCommand(viewCmd)
}
