package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/termlog/internal/control"
	"github.com/fakeyudi/termlog/internal/recorder"
	"github.com/fakeyudi/termlog/internal/session"
)

// errNoActive is reported when no running recording matches a request.
var errNoActive = errors.New("no active session")

var stopCmd = &cobra.Command{
	Use:   "stop [ID]",
	Short: "Stop logging; the recorded shell keeps running",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := sendAction(args, control.Stop)
		if err != nil {
			return err
		}
		cmd.Printf("Logging stopped. Output: %s\n", rec.LogPath)
		return nil
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause [ID]",
	Short: "Pause logging; output produced while paused is never written",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := sendAction(args, control.Pause)
		if err != nil {
			return err
		}
		cmd.Printf("Logging paused for session %s\n", shortID(rec.ID))
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume [ID]",
	Short: "Resume a paused session",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := sendAction(args, control.Resume)
		if err != nil {
			return err
		}
		cmd.Printf("Logging resumed for session %s\n", shortID(rec.ID))
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset [ID]",
	Short: "Empty the log file and log from the top of the terminal again",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := sendAction(args, control.Reset)
		if err != nil {
			return err
		}
		cmd.Printf("Log reset: %s\n", rec.LogPath)
		return nil
	},
}

// sendAction delivers a to the session named by args: an id prefix, or by
// default the terminal termlog runs in, or the only active session. Records
// whose recorder has exited are removed first.
func sendAction(args []string, a control.Action) (*session.Record, error) {
	store, err := session.NewSessionStore()
	if err != nil {
		return nil, err
	}
	rec, err := resolveSession(store, args)
	if err != nil {
		return nil, err
	}

	if err := control.Send(store.Dir(), rec.ID, a); err != nil {
		if errors.Is(err, control.ErrNotRunning) {
			if err := discard(store, rec); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w (recorder for %s has exited)", errNoActive, shortID(rec.ID))
		}
		return nil, err
	}
	debugLog.Debug("action sent", "session", rec.ID, "action", a)
	return rec, nil
}

// resolveSession picks the record args refer to. Without an argument the
// session recording this terminal wins, if there is one.
func resolveSession(store session.SessionStore, args []string) (*session.Record, error) {
	if _, err := liveRecords(store); err != nil {
		return nil, err
	}

	prefix := os.Getenv(recorder.SessionEnv)
	if len(args) > 0 {
		prefix = args[0]
	}
	rec, err := session.Resolve(store, prefix)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			return nil, errNoActive
		}
		if errors.Is(err, session.ErrAmbiguous) {
			return nil, fmt.Errorf("%w; pass a session id (see termlog status)", err)
		}
		return nil, err
	}
	return rec, nil
}

// liveRecords lists the stored records and discards those whose recorder
// process is gone.
func liveRecords(store session.SessionStore) ([]*session.Record, error) {
	records, err := store.List()
	if err != nil {
		return nil, err
	}
	live := records[:0]
	for _, r := range records {
		if r.Alive() {
			live = append(live, r)
			continue
		}
		if err := discard(store, r); err != nil {
			return nil, err
		}
	}
	return live, nil
}

// discard removes a record and inbox left behind by a recorder that exited
// without cleaning up.
func discard(store session.SessionStore, r *session.Record) error {
	debugLog.Debug("removing stale record", "session", r.ID, "pid", r.PID)
	return errors.Join(store.Delete(r.ID), control.Remove(store.Dir(), r.ID))
}

func init() {
	rootCmd.AddCommand(stopCmd, pauseCmd, resumeCmd, resetCmd)
}
