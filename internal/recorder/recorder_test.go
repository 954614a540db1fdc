package recorder

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fakeyudi/termlog/internal/control"
	"github.com/fakeyudi/termlog/internal/logger"
	"github.com/fakeyudi/termlog/internal/session"
)

func newTestStore(t *testing.T) session.SessionStore {
	t.Helper()
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	store, err := session.NewSessionStore()
	if err != nil {
		t.Fatalf("NewSessionStore: %v", err)
	}
	return store
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	return string(data)
}

func TestControlLifecycle(t *testing.T) {
	store := newTestStore(t)
	path := filepath.Join(t.TempDir(), "out.log")
	r := New(Options{Command: []string{"sh"}, LogPath: path, Store: store, PID: 42})

	if err := r.begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	id := r.ID().String()
	if _, err := os.Stat(control.InboxPath(store.Dir(), id)); err != nil {
		t.Fatalf("inbox missing: %v", err)
	}
	rec, err := store.Load(id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rec.PID != 42 || rec.LogPath != path {
		t.Errorf("record = %+v", rec)
	}

	r.feed([]byte("hello\r\n"))
	if got := readFile(t, path); got != "hello\n" {
		t.Fatalf("got %q", got)
	}

	if err := r.handle(control.Pause); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if rec, _ := store.Load(id); !rec.Paused {
		t.Error("record not marked paused")
	}
	r.feed([]byte("secret\r\n"))
	if err := r.handle(control.Resume); err != nil {
		t.Fatalf("resume: %v", err)
	}
	r.feed([]byte("visible\r\n"))
	if got := readFile(t, path); got != "hello\nvisible\n" {
		t.Fatalf("after pause/resume: got %q", got)
	}

	if err := r.handle(control.Reset); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if got := readFile(t, path); got != "" {
		t.Fatalf("after reset: got %q", got)
	}
	if rec, _ := store.Load(id); rec.ResetAt == nil || rec.Paused {
		t.Errorf("record after reset = %+v", rec)
	}

	r.feed([]byte("tail"))
	if err := r.handle(control.Stop); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if _, err := store.Load(id); !errors.Is(err, session.ErrNoSession) {
		t.Errorf("record still present after stop: %v", err)
	}
	if err := control.Send(store.Dir(), id, control.Pause); !errors.Is(err, control.ErrNotRunning) {
		t.Errorf("inbox still open after stop: %v", err)
	}
	if r.active() {
		t.Error("logging still active after stop")
	}

	// Further requests are ignored.
	if err := r.handle(control.Reset); err != nil {
		t.Errorf("reset after stop: %v", err)
	}
	if err := r.finish(); err != nil {
		t.Errorf("second finish: %v", err)
	}
}

func TestBeginOpenFailure(t *testing.T) {
	store := newTestStore(t)
	path := filepath.Join(t.TempDir(), "no", "such", "dir.log")
	r := New(Options{Command: []string{"sh"}, LogPath: path, Store: store})

	err := r.begin()
	var ioErr *logger.IoError
	if !errors.As(err, &ioErr) {
		t.Fatalf("got %v, want *logger.IoError", err)
	}
	records, _ := store.List()
	if len(records) != 0 {
		t.Errorf("failed begin left %d records", len(records))
	}
}

type failingFile struct{}

func (failingFile) Write([]byte) (int, error) { return 0, errors.New("disk full") }
func (failingFile) Truncate(int64) error      { return nil }
func (failingFile) Close() error              { return nil }

func TestFeedCollectsWriteErrors(t *testing.T) {
	store := newTestStore(t)
	r := New(Options{
		Command: []string{"sh"},
		LogPath: filepath.Join(t.TempDir(), "x.log"),
		Store:   store,
		Opener: func(string, bool) (logger.File, error) {
			return failingFile{}, nil
		},
	})
	if err := r.begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	r.feed([]byte("a\nb\n"))
	r.feed([]byte("c\n"))
	if len(r.writeErrs) != 2 {
		t.Errorf("writeErrs = %d, want 2", len(r.writeErrs))
	}
	if err := r.finish(); err != nil {
		t.Errorf("finish: %v", err)
	}
}
