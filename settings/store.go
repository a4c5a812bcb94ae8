package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store reads and writes State to a single file.
type Store struct {
	path   string
	format Format
}

// NewStore picks the format from the file extension: .yaml/.yml is YAML,
// anything else JSON.
func NewStore(path string) *Store {
	format := FormatJSON
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = FormatYAML
	}
	return &Store{path: path, format: format}
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Format() Format {
	return s.format
}

// Load returns the saved state, or Default when the file does not exist.
func (s *Store) Load() (State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Default(), fmt.Errorf("settings: read %s: %w", s.path, err)
	}
	return Unmarshal(data, s.format)
}

// Save writes state, creating the parent directory if needed.
func (s *Store) Save(state State) error {
	data, err := Marshal(state, s.format)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("settings: mkdir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("settings: write %s: %w", s.path, err)
	}
	return nil
}
