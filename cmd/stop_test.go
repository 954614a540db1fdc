package cmd

import (
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/fakeyudi/termlog/internal/control"
	"github.com/fakeyudi/termlog/internal/recorder"
	"github.com/fakeyudi/termlog/internal/session"
)

// TestStopNoSessionError verifies that running "stop" when no session is active
// returns an error containing "no active session".
func TestStopNoSessionError(t *testing.T) {
	isolate(t)

	for _, name := range []string{"stop", "pause", "resume", "reset"} {
		out, err := executeCommand(rootCmd, name)
		if err == nil {
			t.Fatalf("%s: expected an error with no session, got nil", name)
		}
		combined := out + err.Error()
		if !strings.Contains(combined, "no active session") {
			t.Errorf("%s: expected error to contain %q, got: %q", name, "no active session", combined)
		}
	}
}

func saveRecord(t *testing.T, store session.SessionStore, id string, start time.Time) *session.Record {
	t.Helper()
	rec := &session.Record{
		ID:        id,
		LogPath:   "/tmp/" + id + ".log",
		Command:   []string{"sh"},
		PID:       os.Getpid(),
		StartTime: start,
	}
	if err := store.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return rec
}

// Feature: termlog, Property: every control command reaches the recorder's inbox
func TestControlCommandsReachInbox(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		store := isolate(t)
		id := rapid.StringMatching(`[0-9a-f]{8}-[0-9a-f]{4}`).Draw(rt, "id")
		saveRecord(t, store, id, time.Now())
		if _, err := control.Open(store.Dir(), id); err != nil {
			rt.Fatalf("Open: %v", err)
		}

		names := rapid.SliceOfN(rapid.SampledFrom([]string{"pause", "resume", "reset", "stop"}), 1, 8).Draw(rt, "actions")
		for _, name := range names {
			if _, err := executeCommand(rootCmd, name, id[:4]); err != nil {
				rt.Fatalf("%s: %v", name, err)
			}
		}

		data, err := os.ReadFile(control.InboxPath(store.Dir(), id))
		if err != nil {
			rt.Fatalf("ReadFile: %v", err)
		}
		lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
		if len(lines) != len(names) {
			rt.Fatalf("inbox has %d lines, want %d", len(lines), len(names))
		}
		for i, line := range lines {
			_, action, ok := strings.Cut(line, "\t")
			if !ok || action != names[i] {
				rt.Errorf("line %d = %q, want action %q", i, line, names[i])
			}
		}
	})
}

func TestStopRemovesStaleRecord(t *testing.T) {
	store := isolate(t)
	saveRecord(t, store, "deadbeef-0000", time.Now())

	_, err := executeCommand(rootCmd, "stop")
	if err == nil || !strings.Contains(err.Error(), "no active session") {
		t.Fatalf("got %v, want no active session", err)
	}
	if _, err := store.Load("deadbeef-0000"); !errors.Is(err, session.ErrNoSession) {
		t.Errorf("stale record not removed: %v", err)
	}
}

func TestStopAmbiguous(t *testing.T) {
	store := isolate(t)
	now := time.Now()
	saveRecord(t, store, "aaaa-1", now)
	saveRecord(t, store, "aaaa-2", now.Add(time.Second))

	_, err := executeCommand(rootCmd, "stop", "aaaa")
	if err == nil || !strings.Contains(err.Error(), "termlog status") {
		t.Errorf("got %v, want an ambiguity error", err)
	}
}

func TestStatusNoSession(t *testing.T) {
	isolate(t)
	out, err := executeCommand(rootCmd, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "no active session") {
		t.Errorf("got %q", out)
	}
}

func TestStatusListsSessions(t *testing.T) {
	store := isolate(t)
	rec := saveRecord(t, store, "cafef00d-1111", time.Now().Add(-time.Minute))
	rec.Paused = true
	reset := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	rec.ResetAt = &reset
	rec.LogPath = filepath.Join(t.TempDir(), "s.log")
	if err := os.WriteFile(rec.LogPath, []byte("abc\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(rec); err != nil {
		t.Fatal(err)
	}

	out, err := executeCommand(rootCmd, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"cafef00d", "paused", rec.LogPath, "(4 bytes)", "Reset:    2026-05-01T09:30:00Z"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}

	out, err = executeCommand(rootCmd, "status", "--json")
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var entries []statusEntry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(entries) != 1 || entries[0].ID != rec.ID || !entries[0].Paused || entries[0].LogSize != 4 ||
		entries[0].ResetAt == nil || !entries[0].ResetAt.Equal(reset) {
		t.Errorf("entries = %+v", entries)
	}
}

func TestViewTarget(t *testing.T) {
	store := isolate(t)

	if _, err := viewTarget(nil); err == nil || !strings.Contains(err.Error(), "no active session") {
		t.Errorf("no sessions: got %v", err)
	}
	if _, err := viewTarget([]string{"missing.log"}); err == nil || !strings.Contains(err.Error(), "file not found") {
		t.Errorf("missing file: got %v", err)
	}

	rec := saveRecord(t, store, "feedface-2222", time.Now())
	got, err := viewTarget([]string{"feed"})
	if err != nil || got != rec.LogPath {
		t.Errorf("by id: got %q, %v", got, err)
	}
	got, err = viewTarget(nil)
	if err != nil || got != rec.LogPath {
		t.Errorf("only session: got %q, %v", got, err)
	}
}

func TestSetupInstallsPlugin(t *testing.T) {
	isolate(t)
	out, err := executeCommand(rootCmd, "setup", "bash")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if !strings.Contains(out, "termlog.plugin.bash") {
		t.Errorf("output missing plugin path: %q", out)
	}

	if _, err := executeCommand(rootCmd, "setup", "fish"); err == nil {
		t.Error("expected setup fish to fail")
	}
}

// deadPID returns the pid of a process that has already exited.
func deadPID(t *testing.T) int {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("process liveness is not checked on Windows")
	}
	child := exec.Command(os.Args[0], "-test.run=^$")
	if err := child.Run(); err != nil {
		t.Fatalf("run child: %v", err)
	}
	return child.Process.Pid
}

func TestActionsTargetThisTerminal(t *testing.T) {
	store := isolate(t)
	now := time.Now()
	mine := saveRecord(t, store, "aaaa1111-0000", now)
	other := saveRecord(t, store, "bbbb2222-0000", now.Add(time.Second))
	for _, r := range []*session.Record{mine, other} {
		if _, err := control.Open(store.Dir(), r.ID); err != nil {
			t.Fatalf("Open: %v", err)
		}
	}
	t.Setenv(recorder.SessionEnv, mine.ID)

	if _, err := executeCommand(rootCmd, "pause"); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if data, _ := os.ReadFile(control.InboxPath(store.Dir(), mine.ID)); !strings.HasSuffix(string(data), "\tpause\n") {
		t.Errorf("this terminal's inbox = %q", data)
	}
	if data, _ := os.ReadFile(control.InboxPath(store.Dir(), other.ID)); len(data) != 0 {
		t.Errorf("other inbox = %q, want empty", data)
	}

	// An explicit id still wins.
	if _, err := executeCommand(rootCmd, "resume", "bbbb"); err != nil {
		t.Fatalf("resume bbbb: %v", err)
	}
	if data, _ := os.ReadFile(control.InboxPath(store.Dir(), other.ID)); !strings.HasSuffix(string(data), "\tresume\n") {
		t.Errorf("other inbox = %q", data)
	}

	got, err := viewTarget(nil)
	if err != nil || got != mine.LogPath {
		t.Errorf("view default: got %q, %v", got, err)
	}
}

func TestDeadRecorderIsDiscarded(t *testing.T) {
	store := isolate(t)
	rec := saveRecord(t, store, "f71e39d8-0000", time.Now())
	rec.PID = deadPID(t)
	if err := store.Save(rec); err != nil {
		t.Fatal(err)
	}
	if _, err := control.Open(store.Dir(), rec.ID); err != nil {
		t.Fatalf("Open: %v", err)
	}

	out, err := executeCommand(rootCmd, "stop")
	if err == nil || !strings.Contains(err.Error(), "no active session") {
		t.Fatalf("stop: got %v (%q), want no active session", err, out)
	}
	if strings.Contains(out, "Logging stopped") {
		t.Errorf("stop claimed success: %q", out)
	}
	if _, err := store.Load(rec.ID); !errors.Is(err, session.ErrNoSession) {
		t.Errorf("record not removed: %v", err)
	}
	if _, err := os.Stat(control.InboxPath(store.Dir(), rec.ID)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("inbox not removed: %v", err)
	}
}

func TestStatusSkipsDeadRecorder(t *testing.T) {
	store := isolate(t)
	rec := saveRecord(t, store, "0dead000-0000", time.Now())
	rec.PID = deadPID(t)
	if err := store.Save(rec); err != nil {
		t.Fatal(err)
	}

	out, err := executeCommand(rootCmd, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if strings.Contains(out, "0dead000") || !strings.Contains(out, "no active session") {
		t.Errorf("status listed a dead recorder:\n%s", out)
	}
}
