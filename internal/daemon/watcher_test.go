package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherDebouncesBursts(t *testing.T) {
	dir := t.TempDir()

	fired := make(chan struct{}, 10)
	w, err := NewWatcher("test", 100*time.Millisecond, nil, func() {
		fired <- struct{}{}
	})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	if err := w.AddTree(dir); err != nil {
		t.Fatalf("add tree: %v", err)
	}

	ctx := t.Context()
	w.Start(ctx)
	defer w.Stop()

	// A burst of writes should collapse into a single callback.
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(filepath.Join(dir, "index.rst"), []byte("content"), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("expected a change callback")
	}

	select {
	case <-fired:
		t.Fatal("burst of writes must debounce into one callback")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherFileFilter(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "sphinxmk.yaml")
	if err := os.WriteFile(cfgPath, []byte("project: X\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	fired := make(chan struct{}, 10)
	w, err := NewWatcher("config", 50*time.Millisecond, nil, func() {
		fired <- struct{}{}
	})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	if err := w.AddFile(cfgPath); err != nil {
		t.Fatalf("add file: %v", err)
	}

	ctx := t.Context()
	w.Start(ctx)
	defer w.Stop()

	// Changes to other files in the directory are ignored.
	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o600); err != nil {
		t.Fatalf("write other: %v", err)
	}
	select {
	case <-fired:
		t.Fatal("unrelated file must not trigger the callback")
	case <-time.After(300 * time.Millisecond):
	}

	if err := os.WriteFile(cfgPath, []byte("project: Y\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("expected callback for the watched file")
	}
}
