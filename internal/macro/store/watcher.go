package store

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ChangeKind classifies a library change.
type ChangeKind uint8

const (
	// ChangeWrite covers creates and modifications of a macro file.
	ChangeWrite ChangeKind = iota + 1
	// ChangeRemove covers deletions and renames away.
	ChangeRemove
)

// Change is one observed library modification.
type Change struct {
	Kind ChangeKind
	Path string
}

// Watcher reports macro file changes in a store's directory. It exists so
// long-running consumers (the hotkey listener mode, external editors) see
// library edits without rescanning.
type Watcher struct {
	fsw     *fsnotify.Watcher
	changes chan Change

	mu     sync.Mutex
	closed bool
}

// Watch starts watching the store's directory.
func (s *Store) Watch() (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := fsw.Add(s.dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", s.dir, err)
	}

	w := &Watcher{
		fsw:     fsw,
		changes: make(chan Change, 32),
	}
	go w.pump()
	return w, nil
}

// Changes streams library modifications. Closed when the watcher closes.
func (w *Watcher) Changes() <-chan Change {
	return w.changes
}

// Close stops watching. Safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.fsw.Close()
}

func (w *Watcher) pump() {
	defer close(w.changes)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !isMacroFile(ev.Name) {
				continue
			}
			switch {
			case ev.Op.Has(fsnotify.Create), ev.Op.Has(fsnotify.Write):
				w.changes <- Change{Kind: ChangeWrite, Path: ev.Name}
			case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
				w.changes <- Change{Kind: ChangeRemove, Path: ev.Name}
			}
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

func isMacroFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}
