package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configurable termlog settings.
type Config struct {
	LogDir         string `json:"log_dir" toml:"log_dir"`                 // where new logs are created
	Shell          string `json:"shell" toml:"shell"`                     // empty means $SHELL
	ScrollbackRows int    `json:"scrollback_rows" toml:"scrollback_rows"` // rows kept for reset replay
	TailLines      int    `json:"tail_lines" toml:"tail_lines"`           // lines loaded by the viewer
}

// Defaults returns sensible default configuration values.
func Defaults() Config {
	return Config{
		LogDir:         ".",
		ScrollbackRows: 10000,
		TailLines:      1000,
	}
}

// Dir returns ~/.config/termlog.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "termlog"), nil
}

// LoadGlobal reads ~/.config/termlog/config.toml, falling back to
// config.json. Returns defaults if neither file exists.
func LoadGlobal() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	for _, name := range []string{"config.toml", "config.json"} {
		cfg, err := loadFile(filepath.Join(dir, name))
		if err != nil || cfg != nil {
			return cfg, err
		}
	}
	d := Defaults()
	return &d, nil
}

// LoadProject reads .termlogconfig in the current working directory.
// Returns nil (no error) if the file is absent.
func LoadProject() (*Config, error) {
	return loadFile(".termlogconfig")
}

// Load reads an explicit config file chosen by the user. Unlike the implicit
// locations, a missing file is an error.
func Load(path string) (*Config, error) {
	resolved, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}
	cfg, err := loadFile(resolved)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("config file %s: %w", resolved, os.ErrNotExist)
	}
	return cfg, nil
}

// loadFile reads and parses a config file at path, returning nil when the
// file is absent. Files ending in .toml are parsed as TOML, everything else
// as JSON.
func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var cfg Config
	if strings.HasSuffix(path, ".toml") {
		err = toml.Unmarshal(data, &cfg)
	} else {
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &cfg, nil
}

// Merge combines global and project configs, with project taking precedence.
// Missing keys fall back to global, then defaults.
func Merge(global, project *Config) Config {
	result := Defaults()
	for _, layer := range []*Config{global, project} {
		if layer == nil {
			continue
		}
		if layer.LogDir != "" {
			result.LogDir = layer.LogDir
		}
		if layer.Shell != "" {
			result.Shell = layer.Shell
		}
		if layer.ScrollbackRows > 0 {
			result.ScrollbackRows = layer.ScrollbackRows
		}
		if layer.TailLines > 0 {
			result.TailLines = layer.TailLines
		}
	}
	return result
}

// ResolveShell returns the configured shell, then $SHELL, then /bin/sh.
func (c Config) ResolveShell() string {
	if c.Shell != "" {
		return c.Shell
	}
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}

// ExpandPath expands a leading ~ and makes path absolute.
func ExpandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
