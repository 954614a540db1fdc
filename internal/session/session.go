package session

import "time"

// Record describes a running recording so that other termlog invocations
// can find and control it.
type Record struct {
	ID        string    `json:"id"`
	LogPath   string    `json:"log_path"`
	Command   []string  `json:"command"`
	PID       int       `json:"pid"` // the recorder process, not the child shell
	StartTime time.Time `json:"start_time"`
	Paused    bool      `json:"paused"`
	// ResetAt is set when the log was last emptied by a reset.
	ResetAt *time.Time `json:"reset_at,omitempty"`
}

// Alive reports whether the recorder that wrote r is still running. Records
// without a PID are assumed live.
func (r *Record) Alive() bool {
	return processAlive(r.PID)
}
