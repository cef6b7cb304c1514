// Package store persists macros as JSON or YAML files in a library
// directory and reports changes to that directory.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/GregAuRizzz/generic-macro-app/internal/macro"
)

// Sentinel errors for the store.
var (
	// ErrUnknownFormat is returned for file extensions other than
	// .json/.yaml/.yml.
	ErrUnknownFormat = errors.New("unknown macro file format")

	// ErrNotFound is returned when a named macro does not exist.
	ErrNotFound = errors.New("macro not found")
)

// Store is a macro library rooted at one directory.
type Store struct {
	dir string
}

// New returns a store over dir, creating it when missing.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating macro directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// DefaultDir returns the per-user macro library directory.
func DefaultDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving config directory: %w", err)
	}
	return filepath.Join(configDir, "genmacro", "macros"), nil
}

// Dir returns the library directory.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes the macro to the library under a sanitized file name
// derived from its name, in JSON. The write is atomic: a temp file is
// renamed into place. Returns the path written.
func (s *Store) Save(m *macro.Macro) (string, error) {
	return s.SaveAs(m, filepath.Join(s.dir, sanitizeName(m.Name)+".json"))
}

// SaveAs writes the macro to an explicit path; the extension selects the
// format (.json, .yaml or .yml).
func (s *Store) SaveAs(m *macro.Macro, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = m.ToJSON()
	case ".yaml", ".yml":
		data, err = yamlEncode(m)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
	if err != nil {
		return "", fmt.Errorf("encoding macro: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("writing macro file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("replacing macro file: %w", err)
	}
	return path, nil
}

// Load reads a macro from an explicit path; the extension selects the
// format.
func Load(path string) (*macro.Macro, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading macro file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return macro.FromJSON(data)
	case ".yaml", ".yml":
		return yamlDecode(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

// yamlEncode renders the macro's canonical JSON form as YAML, so both
// formats share one set of field names and defaults.
func yamlEncode(m *macro.Macro) ([]byte, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return yaml.Marshal(generic)
}

// yamlDecode routes YAML through the JSON decoder for the same reason.
func yamlDecode(data []byte) (*macro.Macro, error) {
	var generic map[string]any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("parsing macro yaml: %w", err)
	}
	raw, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("parsing macro yaml: %w", err)
	}
	return macro.FromJSON(raw)
}

// Open loads a macro by library name (without extension), trying each
// supported format.
func (s *Store) Open(name string) (*macro.Macro, error) {
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		path := filepath.Join(s.dir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// List returns the paths of every macro file in the library, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading macro directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".json", ".yaml", ".yml":
			paths = append(paths, filepath.Join(s.dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// Delete removes a macro file by library name. Deleting a missing macro
// is a no-op.
func (s *Store) Delete(name string) error {
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		path := filepath.Join(s.dir, name+ext)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("deleting macro: %w", err)
		}
	}
	return nil
}

// sanitizeName maps a macro name to a safe file stem.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == ' ', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	stem := strings.TrimSpace(b.String())
	if stem == "" {
		return "Unnamed_Macro"
	}
	return stem
}
