// Package control carries pause/resume/reset/stop requests from one termlog
// invocation to the process that is recording. Each recording owns an inbox
// file that requests are appended to and that the recorder watches.
package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Action is a request sent to a running recording.
type Action string

const (
	Pause  Action = "pause"
	Resume Action = "resume"
	Reset  Action = "reset"
	Stop   Action = "stop"
)

// ErrNotRunning is returned by Send when no recorder is listening for id.
var ErrNotRunning = errors.New("recorder is not running")

// ParseAction validates s as an Action.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.TrimSpace(s)); a {
	case Pause, Resume, Reset, Stop:
		return a, nil
	default:
		return "", fmt.Errorf("unknown action %q", s)
	}
}

// InboxPath returns the inbox file for session id inside dir.
func InboxPath(dir, id string) string {
	return filepath.Join(dir, id+".ctl")
}

// Send appends a request to the inbox of session id.
// Format per line: <epoch>\t<action>
func Send(dir, id string, a Action) error {
	f, err := os.OpenFile(InboxPath(dir, id), os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotRunning
		}
		return fmt.Errorf("open inbox: %w", err)
	}
	line := strconv.FormatInt(time.Now().Unix(), 10) + "\t" + string(a) + "\n"
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return fmt.Errorf("write inbox: %w", err)
	}
	return f.Close()
}

// Inbox is the receiving end of a session's control file.
type Inbox struct {
	path    string
	offset  int64
	partial string
}

// Open creates (or empties) the inbox for session id and returns it.
func Open(dir, id string) (*Inbox, error) {
	path := InboxPath(dir, id)
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		return nil, fmt.Errorf("create inbox: %w", err)
	}
	return &Inbox{path: path}, nil
}

// Close removes the inbox file so later Sends report ErrNotRunning.
func (in *Inbox) Close() error {
	return remove(in.path)
}

// Remove deletes the inbox of session id, if any. It is used to clean up
// after a recorder that exited without closing its inbox.
func Remove(dir, id string) error {
	return remove(InboxPath(dir, id))
}

func remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove inbox: %w", err)
	}
	return nil
}

// Watch delivers actions appended to the inbox until ctx is cancelled.
// Malformed lines are skipped.
func (in *Inbox) Watch(ctx context.Context, out chan<- Action) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(in.path)); err != nil {
		return err
	}

	// Anything sent before the watcher was in place.
	if !in.deliver(ctx, out) {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != in.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if !in.deliver(ctx, out) {
					return nil
				}
			}

		case _, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			// Watcher errors are non-fatal; continue watching.
		}
	}
}

// deliver reads new lines and sends their actions. It returns false when ctx
// was cancelled mid-delivery.
func (in *Inbox) deliver(ctx context.Context, out chan<- Action) bool {
	actions, err := in.read()
	if err != nil {
		return true
	}
	for _, a := range actions {
		select {
		case out <- a:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

// read returns the actions appended since the previous read.
func (in *Inbox) read() ([]Action, error) {
	f, err := os.Open(in.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if _, err := f.Seek(in.offset, io.SeekStart); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	in.offset += int64(len(data))

	text := in.partial + string(data)
	lines := strings.Split(text, "\n")
	in.partial = lines[len(lines)-1]

	var actions []Action
	for _, line := range lines[:len(lines)-1] {
		tab := strings.IndexByte(line, '\t')
		if tab < 1 {
			continue
		}
		if _, err := strconv.ParseInt(line[:tab], 10, 64); err != nil {
			continue
		}
		a, err := ParseAction(line[tab+1:])
		if err != nil {
			continue
		}
		actions = append(actions, a)
	}
	return actions, nil
}
