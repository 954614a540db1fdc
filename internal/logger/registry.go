// Package logger tracks, per terminal, which part of the rendered output has
// already been appended to that terminal's log file.
//
// A Registry is not safe for concurrent use. All calls, including the
// content-change callbacks it registers on each Surface, must come from the
// single goroutine that dispatches terminal events.
package logger

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OpenFunc opens a log file for appending, creating it if needed. When
// overwrite is true an existing file is truncated first.
type OpenFunc func(path string, overwrite bool) (File, error)

// OpenFile is the default OpenFunc, backed by the OS filesystem.
func OpenFile(path string, overwrite bool) (File, error) {
	flags := os.O_WRONLY | os.O_CREATE | os.O_APPEND
	if overwrite {
		flags |= os.O_TRUNC
	}
	return os.OpenFile(path, flags, 0o644)
}

// StartOptions controls how a session's log file is opened.
type StartOptions struct {
	// Overwrite truncates an existing file. The caller is responsible for
	// having confirmed this with the user.
	Overwrite bool
}

// Info is a read-only snapshot of a session.
type Info struct {
	TerminalID uuid.UUID
	Path       string
	Saved      Position
	Paused     bool
	StartedAt  time.Time
	Written    int64 // bytes appended since start or the last reset
}

type session struct {
	id        uuid.UUID
	surface   Surface
	path      string
	file      File
	sub       SubscriptionID
	saved     Position
	paused    bool
	startedAt time.Time
	written   int64
}

func (s *session) info() Info {
	return Info{
		TerminalID: s.id,
		Path:       s.path,
		Saved:      s.saved,
		Paused:     s.paused,
		StartedAt:  s.startedAt,
		Written:    s.written,
	}
}

// Registry maps terminal ids to their logging sessions.
type Registry struct {
	sessions map[uuid.UUID]*session
	open     OpenFunc
	log      *slog.Logger
	now      func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithOpener replaces the function used to open log files.
func WithOpener(fn OpenFunc) Option {
	return func(r *Registry) { r.open = fn }
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// NewRegistry returns an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[uuid.UUID]*session),
		open:     OpenFile,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start begins logging surface to path. Logging starts from the surface's
// current cursor, so earlier scrollback is not written.
func (r *Registry) Start(id uuid.UUID, surface Surface, path string, opts StartOptions) (Info, error) {
	if _, ok := r.sessions[id]; ok {
		return Info{}, ErrAlreadyLogging
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return Info{}, &IoError{Op: "open", Path: path, Err: err}
	}
	f, err := r.open(abs, opts.Overwrite)
	if err != nil {
		return Info{}, &IoError{Op: "open", Path: abs, Err: err}
	}

	s := &session{
		id:        id,
		surface:   surface,
		path:      abs,
		file:      f,
		saved:     surface.CursorPosition(),
		startedAt: r.now(),
	}
	s.sub = surface.Subscribe(func() error {
		return r.ContentChanged(id)
	})
	r.sessions[id] = s

	r.log.Debug("logging started", "terminal", id, "path", abs, "row", s.saved.Row, "col", s.saved.Col)
	return s.info(), nil
}

// ContentChanged writes whatever complete lines the terminal has produced
// since the last flush. It is a no-op for terminals that are not logged.
//
// While paused the saved position follows the cursor without writing, so
// output produced during a pause is never logged.
func (r *Registry) ContentChanged(id uuid.UUID) error {
	s, ok := r.sessions[id]
	if !ok {
		return nil
	}
	cursor := s.surface.CursorPosition()
	if s.paused {
		s.saved = cursor
		return nil
	}
	return r.flush(s, cursor)
}

// flush appends the text between the saved position and cursor. Text without
// a line terminator is held back and the saved position is left alone.
func (r *Registry) flush(s *session, cursor Position) error {
	text := s.surface.TextRange(s.saved, cursor)
	if text == "" || !strings.Contains(text, "\n") {
		return nil
	}

	// The position advances even if the write fails; a failed delta is not
	// retried.
	s.saved = cursor
	n, err := io.WriteString(s.file, text)
	s.written += int64(n)
	if err != nil {
		r.log.Debug("write failed", "terminal", s.id, "path", s.path, "err", err)
		return &IoError{Op: "write", Path: s.path, Err: err}
	}
	return nil
}

// Stop flushes any pending delta, regardless of pause state, then closes the
// log file and forgets the session. The session is removed even when the
// final write or close fails.
func (r *Registry) Stop(id uuid.UUID) error {
	s, ok := r.sessions[id]
	if !ok {
		return ErrNoSession
	}

	var errs []error
	if cursor := s.surface.CursorPosition(); cursor != s.saved {
		if err := r.flush(s, cursor); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.file.Close(); err != nil {
		errs = append(errs, &IoError{Op: "close", Path: s.path, Err: err})
	}
	s.surface.Unsubscribe(s.sub)
	delete(r.sessions, id)

	r.log.Debug("logging stopped", "terminal", id, "path", s.path, "written", s.written)
	return errors.Join(errs...)
}

// Reset empties the log file in place and rewinds the saved position to the
// origin. The next flush may therefore re-emit everything the terminal still
// holds in scrollback.
func (r *Registry) Reset(id uuid.UUID) error {
	s, ok := r.sessions[id]
	if !ok {
		return ErrNoSession
	}
	if err := s.file.Truncate(0); err != nil {
		return &IoError{Op: "truncate", Path: s.path, Err: err}
	}
	if sk, ok := s.file.(io.Seeker); ok {
		if _, err := sk.Seek(0, io.SeekStart); err != nil {
			return &IoError{Op: "truncate", Path: s.path, Err: err}
		}
	}
	s.saved = Position{}
	s.written = 0

	r.log.Debug("log reset", "terminal", id, "path", s.path)
	return nil
}

// Pause stops writes for id until Resume. Unknown ids are ignored.
func (r *Registry) Pause(id uuid.UUID) {
	if s, ok := r.sessions[id]; ok {
		s.paused = true
	}
}

// Resume re-enables writes for id. Unknown ids are ignored.
func (r *Registry) Resume(id uuid.UUID) {
	if s, ok := r.sessions[id]; ok {
		s.paused = false
	}
}

// Lookup returns a snapshot of the session for id.
func (r *Registry) Lookup(id uuid.UUID) (Info, bool) {
	s, ok := r.sessions[id]
	if !ok {
		return Info{}, false
	}
	return s.info(), true
}

// Sessions returns snapshots of all live sessions, oldest first.
func (r *Registry) Sessions() []Info {
	out := make([]Info, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.info())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// StopAll stops every live session. Hosts call it before shutting down.
func (r *Registry) StopAll() error {
	var errs []error
	for _, info := range r.Sessions() {
		if err := r.Stop(info.TerminalID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
