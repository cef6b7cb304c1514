package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/GregAuRizzz/generic-macro-app/internal/config"
	"github.com/GregAuRizzz/generic-macro-app/internal/logging"
	"github.com/GregAuRizzz/generic-macro-app/internal/macro"
	"github.com/GregAuRizzz/generic-macro-app/internal/macro/store"
)

func TestRunNoArgsShowsHelp(t *testing.T) {
	if code := run(nil); code != 0 {
		t.Errorf("run() = %d, want 0", code)
	}
}

func TestRunUnknownCommand(t *testing.T) {
	if code := run([]string{"frobnicate"}); code != 2 {
		t.Errorf("run(frobnicate) = %d, want 2", code)
	}
}

func TestRunVersion(t *testing.T) {
	if code := run([]string{"version"}); code != 0 {
		t.Errorf("run(version) = %d, want 0", code)
	}
}

func newTestAppContext(t *testing.T) *appContext {
	t.Helper()
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	log, err := logging.New(logging.Options{Level: "info", Format: "text", Output: io.Discard})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	return &appContext{cfg: config.Default(), log: log, store: st}
}

func TestWatchLibraryReloadsOnEdit(t *testing.T) {
	ctx := newTestAppContext(t)

	m := macro.New("Farm Loop")
	a := macro.NewAction(macro.KindWait)
	a.DurationMS = 500
	m.Actions = []macro.Action{a}
	path, err := ctx.store.Save(m)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	updates := make(chan *macro.Macro, 8)
	w, err := watchLibrary(ctx, "Farm Loop", func(m *macro.Macro) { updates <- m })
	if err != nil {
		t.Fatalf("watchLibrary: %v", err)
	}
	defer w.Close()

	m.Description = "revised"
	if _, err := ctx.store.Save(m); err != nil {
		t.Fatalf("Save revision: %v", err)
	}

	select {
	case got := <-updates:
		if got.Description != "revised" {
			t.Errorf("reloaded description = %q, want revised", got.Description)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after library edit")
	}

	// Invalid revisions never reach the consumer.
	if err := os.WriteFile(path, []byte(`{"name":"Farm Loop","humanize_level":5}`), 0o644); err != nil {
		t.Fatal(err)
	}
	m.Description = "revised again"
	if _, err := ctx.store.Save(m); err != nil {
		t.Fatalf("Save second revision: %v", err)
	}
	deadline := time.After(5 * time.Second)
	for {
		select {
		case got := <-updates:
			if err := got.Validate(); err != nil {
				t.Fatalf("invalid revision delivered: %v", err)
			}
			if got.Description == "revised again" {
				return
			}
		case <-deadline:
			t.Fatal("no reload after second edit")
		}
	}
}

func TestWatchLibraryIgnoresRemovals(t *testing.T) {
	ctx := newTestAppContext(t)

	m := macro.New("Keep")
	path, err := ctx.store.Save(m)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	updates := make(chan *macro.Macro, 8)
	w, err := watchLibrary(ctx, "Keep", func(m *macro.Macro) { updates <- m })
	if err != nil {
		t.Fatalf("watchLibrary: %v", err)
	}
	defer w.Close()

	other := filepath.Join(ctx.store.Dir(), "other.json")
	if err := os.WriteFile(other, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(other); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	// Writes elsewhere reload the armed macro while it exists; removals
	// must not deliver anything.
	time.Sleep(300 * time.Millisecond)
	for {
		select {
		case got := <-updates:
			if got.Name != "Keep" {
				t.Errorf("unexpected macro delivered: %q", got.Name)
			}
		default:
			return
		}
	}
}

func TestFallback(t *testing.T) {
	if got := fallback("", "f8"); got != "f8" {
		t.Errorf("fallback empty = %q, want f8", got)
	}
	if got := fallback("  ", "f8"); got != "f8" {
		t.Errorf("fallback blank = %q, want f8", got)
	}
	if got := fallback("f5", "f8"); got != "f5" {
		t.Errorf("fallback set = %q, want f5", got)
	}
}

func TestMSDuration(t *testing.T) {
	if got := msDuration(250); got != 250*time.Millisecond {
		t.Errorf("msDuration(250) = %v", got)
	}
}
