// Package manifest handles lamarck.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Filename is the manifest file name looked for in a project directory.
const Filename = "lamarck.toml"

// DefaultServerAddr is used when the manifest does not configure one.
const DefaultServerAddr = ":4567"

// Manifest represents a lamarck.toml project configuration.
type Manifest struct {
	Run    Run    `toml:"run"`
	Trace  Trace  `toml:"trace"`
	Server Server `toml:"server"`
	Log    Log    `toml:"log"`

	// Dir is the directory containing the lamarck.toml file (set at load time).
	Dir string `toml:"-"`
}

// Run configures evaluation behavior.
type Run struct {
	// StepLimit bounds the number of machine transitions per program.
	// Zero means no limit.
	StepLimit uint64 `toml:"step-limit"`
}

// Trace configures the garbage collection trace store.
type Trace struct {
	// Database is the SQLite file path, relative to the manifest directory
	// unless absolute. Empty disables tracing.
	Database string `toml:"database"`
}

// Server configures the evaluation server.
type Server struct {
	Addr string `toml:"addr"`
}

// Log configures logging output.
type Log struct {
	Verbosity int `toml:"verbosity"`
}

// Load parses a lamarck.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, Filename)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if m.Server.Addr == "" {
		m.Server.Addr = DefaultServerAddr
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a lamarck.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, Filename)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// TracePath returns the absolute path of the configured trace database,
// or "" when tracing is disabled.
func (m *Manifest) TracePath() string {
	if m.Trace.Database == "" {
		return ""
	}
	if filepath.IsAbs(m.Trace.Database) {
		return m.Trace.Database
	}
	return filepath.Join(m.Dir, m.Trace.Database)
}
