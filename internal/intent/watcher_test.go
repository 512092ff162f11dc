package intent

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher_DetectsChange(t *testing.T) {
	dir := t.TempDir()

	content := "+++\nid = \"fix-null-check\"\ntitle = \"Fix null check\"\ncomplexity = \"simple\"\n+++\nBody here.\n"
	file := filepath.Join(dir, "fix-null-check.md")
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to create intent file: %v", err)
	}

	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	updated := "+++\nid = \"fix-null-check\"\ntitle = \"Fix the null check\"\ncomplexity = \"simple\"\n+++\nUpdated body.\n"
	if err := os.WriteFile(file, []byte(updated), 0o644); err != nil {
		t.Fatalf("failed to update intent file: %v", err)
	}

	select {
	case change := <-w.Changes:
		if change.IntentID != "fix-null-check" {
			t.Errorf("expected intent ID 'fix-null-check', got %q", change.IntentID)
		}
		if change.Kind != ChangeModified {
			t.Errorf("expected ChangeModified, got %d", change.Kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
	}
}

func TestWatcher_IgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}

	select {
	case change := <-w.Changes:
		t.Errorf("unexpected change event for non-bundle file: %+v", change)
	case <-time.After(300 * time.Millisecond):
		// No event expected.
	}
}

func TestWatcher_ManifestChange(t *testing.T) {
	dir := t.TempDir()

	manifest := filepath.Join(dir, ManifestFileName)
	if err := os.WriteFile(manifest, []byte("[project]\nname = \"demo\"\n"), 0o644); err != nil {
		t.Fatalf("failed to create manifest: %v", err)
	}

	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(manifest, []byte("[project]\nname = \"renamed\"\n"), 0o644); err != nil {
		t.Fatalf("failed to update manifest: %v", err)
	}

	select {
	case change := <-w.Changes:
		if change.Kind != ChangeModified {
			t.Errorf("expected ChangeModified, got %d", change.Kind)
		}
		if change.IntentID != "" {
			t.Errorf("manifest change should not carry an intent ID, got %q", change.IntentID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for manifest change event")
	}
}
