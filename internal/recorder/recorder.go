// Package recorder runs a command inside a pseudo-terminal and logs its
// output through a logger.Registry.
//
// One goroutine, the dispatch loop in Run, owns the registry and the
// terminal buffer. PTY output and control requests reach it over channels, so
// the registry itself never needs locking.
package recorder

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fakeyudi/termlog/internal/control"
	"github.com/fakeyudi/termlog/internal/logger"
	"github.com/fakeyudi/termlog/internal/session"
	"github.com/fakeyudi/termlog/internal/terminal"
)

// SessionEnv names the variable that carries the session id into the
// recorded command's environment.
const SessionEnv = "TERMLOG_SESSION"

// Options configures a Recorder.
type Options struct {
	ID             uuid.UUID
	Command        []string
	LogPath        string
	Overwrite      bool
	ScrollbackRows int
	PID            int // recorded in the session record

	Stdin  io.Reader
	Stdout io.Writer

	Store  session.SessionStore
	Logger *slog.Logger
	Opener logger.OpenFunc // nil means logger.OpenFile
}

// Recorder attaches one terminal to one log file.
type Recorder struct {
	opts   Options
	log    *slog.Logger
	reg    *logger.Registry
	buf    *terminal.Buffer
	record *session.Record
	inbox  *control.Inbox

	writeErrs []error
}

// New prepares a Recorder. Nothing is opened until Run.
func New(opts Options) *Recorder {
	if opts.ID == uuid.Nil {
		opts.ID = uuid.New()
	}
	l := opts.Logger
	if l == nil {
		l = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	l = l.With("session", opts.ID.String())

	regOpts := []logger.Option{logger.WithLogger(l)}
	if opts.Opener != nil {
		regOpts = append(regOpts, logger.WithOpener(opts.Opener))
	}
	return &Recorder{
		opts: opts,
		log:  l,
		reg:  logger.NewRegistry(regOpts...),
		buf:  terminal.NewBuffer(terminal.Options{MaxRows: opts.ScrollbackRows}),
	}
}

// ID returns the session id.
func (r *Recorder) ID() uuid.UUID { return r.opts.ID }

// begin opens the log, the control inbox and the session record.
func (r *Recorder) begin() error {
	info, err := r.reg.Start(r.opts.ID, r.buf, r.opts.LogPath, logger.StartOptions{Overwrite: r.opts.Overwrite})
	if err != nil {
		return err
	}

	inbox, err := control.Open(r.opts.Store.Dir(), r.opts.ID.String())
	if err != nil {
		r.reg.Stop(r.opts.ID)
		return err
	}
	r.inbox = inbox

	r.record = &session.Record{
		ID:        r.opts.ID.String(),
		LogPath:   info.Path,
		Command:   r.opts.Command,
		PID:       r.opts.PID,
		StartTime: info.StartedAt,
	}
	if err := r.opts.Store.Save(r.record); err != nil {
		r.inbox.Close()
		r.reg.Stop(r.opts.ID)
		return err
	}
	r.log.Info("recording", "path", info.Path)
	return nil
}

// feed echoes a chunk of terminal output and renders it, which in turn lets
// the registry flush complete lines.
func (r *Recorder) feed(chunk []byte) {
	if r.opts.Stdout != nil {
		r.opts.Stdout.Write(chunk)
	}
	if _, err := r.buf.Write(chunk); err != nil {
		r.log.Warn("log write failed", "err", err)
		r.writeErrs = append(r.writeErrs, err)
	}
}

// handle applies a control request. Stop ends logging but leaves the
// command running.
func (r *Recorder) handle(a control.Action) error {
	id := r.opts.ID
	if !r.active() {
		r.log.Debug("ignoring action after stop", "action", a)
		return nil
	}

	r.log.Debug("control", "action", a)
	switch a {
	case control.Pause:
		r.reg.Pause(id)
		r.record.Paused = true
	case control.Resume:
		r.reg.Resume(id)
		r.record.Paused = false
	case control.Reset:
		if err := r.reg.Reset(id); err != nil {
			return err
		}
		now := time.Now()
		r.record.ResetAt = &now
	case control.Stop:
		return r.finish()
	default:
		return fmt.Errorf("unknown action %q", a)
	}
	return r.opts.Store.Save(r.record)
}

// finish stops logging and removes the record and inbox. Calling it again
// is a no-op.
func (r *Recorder) finish() error {
	if !r.active() {
		return nil
	}
	errs := []error{r.reg.StopAll()}
	if r.inbox != nil {
		errs = append(errs, r.inbox.Close())
	}
	errs = append(errs, r.opts.Store.Delete(r.record.ID))
	r.log.Info("recording stopped", "path", r.record.LogPath)
	return errors.Join(errs...)
}

// active reports whether logging has not been stopped yet.
func (r *Recorder) active() bool {
	_, ok := r.reg.Lookup(r.opts.ID)
	return ok
}
