package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/GregAuRizzz/generic-macro-app/internal/macro"
)

func sample(name string) *macro.Macro {
	m := macro.New(name)
	m.Loop = true
	m.LoopCount = 2
	m.HumanizeLevel = 0.4
	a := macro.NewAction(macro.KindMouseClick)
	a.SetTarget(12, 34)
	w := macro.NewAction(macro.KindWait)
	w.DurationMS = 250
	w.DelayAfterMS = 0
	m.Actions = []macro.Action{a, w}
	return m
}

func TestSaveLoadJSON(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	m := sample("Farm Run")
	path, err := s.Save(m)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if filepath.Base(path) != "Farm Run.json" {
		t.Errorf("file name = %s", filepath.Base(path))
	}

	back, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if back.Name != "Farm Run" || back.LoopCount != 2 || len(back.Actions) != 2 {
		t.Errorf("round trip lost data: %+v", back)
	}
	if x, y, ok := back.Actions[0].Target(); !ok || x != 12 || y != 34 {
		t.Errorf("target lost: %v,%v,%v", x, y, ok)
	}
}

func TestSaveLoadYAML(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	m := sample("yaml macro")
	path, err := s.SaveAs(m, filepath.Join(s.Dir(), "yaml macro.yaml"))
	if err != nil {
		t.Fatalf("SaveAs: %v", err)
	}

	back, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if back.HumanizeLevel != 0.4 || len(back.Actions) != 2 {
		t.Errorf("yaml round trip lost data: %+v", back)
	}
	if back.Actions[0].Type != macro.KindMouseClick {
		t.Errorf("kind lost: %v", back.Actions[0].Type)
	}
	if back.Actions[1].DurationMS != 250 {
		t.Errorf("duration lost: %d", back.Actions[1].DurationMS)
	}
}

func TestSanitizedNames(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Plain", "Plain"},
		{"with space_and-dash", "with space_and-dash"},
		{"sl/ash:co*lon", "sl_ash_co_lon"},
		{"", "Unnamed_Macro"},
		{"///", "___"},
	}
	for _, tt := range tests {
		if got := sanitizeName(tt.in); got != tt.want {
			t.Errorf("sanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOpenByName(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s.Save(sample("Daily")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	m, err := s.Open("Daily")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if m.Name != "Daily" {
		t.Errorf("Name = %q", m.Name)
	}

	if _, err := s.Open("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Open(missing) = %v, want ErrNotFound", err)
	}
}

func TestListAndDelete(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s.Save(sample("a")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveAs(sample("b"), filepath.Join(s.Dir(), "b.yml")); err != nil {
		t.Fatal(err)
	}

	paths, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("List = %v, want 2 entries", paths)
	}

	if err := s.Delete("a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete("a"); err != nil { // missing is a no-op
		t.Fatalf("second Delete: %v", err)
	}

	paths, err = s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(paths) != 1 {
		t.Errorf("List after delete = %v", paths)
	}
}

func TestSaveUnknownFormat(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s.SaveAs(sample("x"), filepath.Join(s.Dir(), "x.toml")); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("SaveAs(.toml) = %v, want ErrUnknownFormat", err)
	}
}

func TestWatcherSeesWrites(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w, err := s.Watch()
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Close()

	if _, err := s.Save(sample("watched")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case ch := <-w.Changes():
			if ch.Kind == ChangeWrite && filepath.Base(ch.Path) == "watched.json" {
				return
			}
		case <-deadline:
			t.Fatal("no change event for saved macro")
		}
	}
}
