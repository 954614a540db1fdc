package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoSession is returned by Load and Resolve when no matching record exists.
var ErrNoSession = errors.New("no active session")

// ErrAmbiguous is returned by Resolve when more than one record matches.
var ErrAmbiguous = errors.New("more than one active session matches")

// SessionStore persists Records to disk, one file per session.
type SessionStore interface {
	Save(r *Record) error
	Load(id string) (*Record, error) // returns ErrNoSession if none exists
	List() ([]*Record, error)
	Delete(id string) error
	// Dir is the directory the records live in; control inboxes sit beside them.
	Dir() string
}

// diskStore is the concrete SessionStore that writes to the XDG data directory.
type diskStore struct {
	dir string
}

// NewSessionStore returns a SessionStore backed by the XDG data directory.
// Path: $XDG_DATA_HOME/termlog/sessions or ~/.local/share/termlog/sessions
func NewSessionStore() (SessionStore, error) {
	base, err := DataDir()
	if err != nil {
		return nil, fmt.Errorf("resolving data directory: %w", err)
	}
	dir := filepath.Join(base, "sessions")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &diskStore{dir: dir}, nil
}

// DataDir returns the termlog-specific XDG data directory.
func DataDir() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "termlog"), nil
}

func (d *diskStore) Dir() string { return d.dir }

func (d *diskStore) path(id string) string {
	return filepath.Join(d.dir, id+".json")
}

// Save marshals r to JSON and writes it atomically via a temp file + os.Rename.
func (d *diskStore) Save(r *Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to persist session state: %w", err)
	}

	// Write to a temp file in the same directory so os.Rename is atomic.
	tmp, err := os.CreateTemp(d.dir, "session-*.json.tmp")
	if err != nil {
		return fmt.Errorf("failed to persist session state: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up the temp file on any error path.
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to persist session state: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to persist session state: %w", err)
	}

	if err = os.Rename(tmpName, d.path(r.ID)); err != nil {
		return fmt.Errorf("failed to persist session state: %w", err)
	}
	return nil
}

// Load reads and unmarshals the record for id.
// Returns ErrNoSession if the file does not exist.
func (d *diskStore) Load(id string) (*Record, error) {
	data, err := os.ReadFile(d.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to read session state: %w", err)
	}

	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse session state: %w", err)
	}
	return &r, nil
}

// List returns every stored record, oldest first. Unreadable files are skipped.
func (d *diskStore) List() ([]*Record, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read session state: %w", err)
	}
	var records []*Record
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		r, err := d.Load(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].StartTime.Before(records[j].StartTime)
	})
	return records, nil
}

// Delete removes the record for id from disk.
func (d *diskStore) Delete(id string) error {
	if err := os.Remove(d.path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete session state: %w", err)
	}
	return nil
}

// Resolve finds the record a user meant. An empty prefix selects the only
// active session; otherwise the unique record whose id starts with prefix.
func Resolve(store SessionStore, prefix string) (*Record, error) {
	records, err := store.List()
	if err != nil {
		return nil, err
	}
	var matches []*Record
	for _, r := range records {
		if strings.HasPrefix(r.ID, prefix) {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 0:
		return nil, ErrNoSession
	case 1:
		return matches[0], nil
	default:
		return nil, ErrAmbiguous
	}
}
