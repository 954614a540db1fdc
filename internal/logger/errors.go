package logger

import "errors"

// ErrNoSession is returned when an operation targets a terminal that is not
// being logged.
var ErrNoSession = errors.New("no active session")

// ErrAlreadyLogging is returned by Start when the terminal already has a session.
var ErrAlreadyLogging = errors.New("terminal is already being logged")

// IoError wraps a filesystem failure on a session's log file.
type IoError struct {
	Op   string // "open" | "write" | "truncate" | "close"
	Path string
	Err  error
}

func (e *IoError) Error() string {
	return e.Op + " log file " + e.Path + ": " + e.Err.Error()
}

func (e *IoError) Unwrap() error {
	return e.Err
}
