// Package settings persists the player's user-facing state: tempo source,
// looping, auto-play and the list of favorite files.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrUnknownFormat is returned for a format other than JSON or YAML.
var ErrUnknownFormat = errors.New("settings: unknown format")

// Format selects the serialization used by Marshal and Unmarshal.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// State is the saved player state. Keys missing from saved data take the
// values from Default.
type State struct {
	SyncToHost bool     `json:"syncToHost" yaml:"syncToHost"`
	Loop       bool     `json:"loop" yaml:"loop"`
	AutoPlay   bool     `json:"autoPlay" yaml:"autoPlay"`
	Favorites  []string `json:"favorites" yaml:"favorites"`
}

// Default returns the state used before anything was saved.
func Default() State {
	return State{
		SyncToHost: true,
		Favorites:  []string{},
	}
}

// Marshal encodes s in the given format.
func Marshal(s State, format Format) ([]byte, error) {
	if s.Favorites == nil {
		s.Favorites = []string{}
	}
	switch format {
	case FormatJSON:
		return json.MarshalIndent(s, "", "  ")
	case FormatYAML:
		return yaml.Marshal(s)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// Unmarshal decodes data over Default, so absent keys keep their defaults
// and unknown keys are ignored. Empty data yields Default.
func Unmarshal(data []byte, format Format) (State, error) {
	s := Default()
	var err error
	switch format {
	case FormatJSON:
		if len(data) > 0 {
			err = json.Unmarshal(data, &s)
		}
	case FormatYAML:
		err = yaml.Unmarshal(data, &s)
	default:
		return s, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return Default(), fmt.Errorf("settings: decode %s: %w", format, err)
	}
	if s.Favorites == nil {
		s.Favorites = []string{}
	}
	s.Favorites = dedupe(s.Favorites)
	return s, nil
}

func dedupe(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p != "" && !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}

// Favorites is a de-duplicated, insertion-ordered list of file paths.
// It is safe for concurrent use.
type Favorites struct {
	mu    sync.RWMutex
	paths []string
}

// NewFavorites returns a list seeded with paths.
func NewFavorites(paths ...string) *Favorites {
	return &Favorites{paths: dedupe(paths)}
}

// Add appends path unless it is already present. It reports whether the
// list changed.
func (f *Favorites) Add(path string) bool {
	if path == "" {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if slices.Contains(f.paths, path) {
		return false
	}
	f.paths = append(f.paths, path)
	return true
}

// Remove deletes path. It reports whether the list changed.
func (f *Favorites) Remove(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := slices.Index(f.paths, path)
	if i < 0 {
		return false
	}
	f.paths = slices.Delete(f.paths, i, i+1)
	return true
}

// Toggle adds path if absent and removes it otherwise. It returns whether
// path is a favorite afterwards.
func (f *Favorites) Toggle(path string) bool {
	if f.Remove(path) {
		return false
	}
	return f.Add(path)
}

func (f *Favorites) Contains(path string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Contains(f.paths, path)
}

// List returns a copy of the paths.
func (f *Favorites) List() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.paths)
}

// Replace swaps the whole list.
func (f *Favorites) Replace(paths []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = dedupe(paths)
}

func (f *Favorites) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.paths)
}
