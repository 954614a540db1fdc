package cmd

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/termlog/internal/session"
)

var statusJSON bool

// statusEntry is one line of `status --json`.
type statusEntry struct {
	ID        string     `json:"id"`
	LogPath   string     `json:"log_path"`
	Command   []string   `json:"command"`
	PID       int        `json:"pid"`
	StartTime time.Time  `json:"start_time"`
	Paused    bool       `json:"paused"`
	ResetAt   *time.Time `json:"reset_at,omitempty"`
	LogSize   int64      `json:"log_size"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List active recordings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := session.NewSessionStore()
		if err != nil {
			return err
		}
		records, err := liveRecords(store)
		if err != nil {
			return err
		}

		entries := make([]statusEntry, 0, len(records))
		for _, r := range records {
			e := statusEntry{
				ID:        r.ID,
				LogPath:   r.LogPath,
				Command:   r.Command,
				PID:       r.PID,
				StartTime: r.StartTime,
				Paused:    r.Paused,
				ResetAt:   r.ResetAt,
			}
			if info, err := os.Stat(r.LogPath); err == nil {
				e.LogSize = info.Size()
			}
			entries = append(entries, e)
		}

		if statusJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}

		if len(entries) == 0 {
			cmd.Println("no active session")
			return nil
		}
		for _, e := range entries {
			state := "logging"
			if e.Paused {
				state = "paused"
			}
			cmd.Printf("%s  %s\n", shortID(e.ID), state)
			cmd.Printf("  Log:      %s (%d bytes)\n", e.LogPath, e.LogSize)
			cmd.Printf("  Started:  %s\n", e.StartTime.Format(time.RFC3339))
			cmd.Printf("  Duration: %s\n", time.Since(e.StartTime).Round(time.Second).String())
			if e.ResetAt != nil {
				cmd.Printf("  Reset:    %s\n", e.ResetAt.Format(time.RFC3339))
			}
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print machine-readable JSON")
	rootCmd.AddCommand(statusCmd)
}
