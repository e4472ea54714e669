package git

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestClient_Lock(t *testing.T) {
	tmpDir := t.TempDir()
	client := NewClient(tmpDir, ".pedigree.lock", nil)

	unlock, err := client.Lock()
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}

	lockPath := filepath.Join(tmpDir, ".pedigree.lock")
	if _, err := os.Stat(lockPath); os.IsNotExist(err) {
		t.Error("Lock file not created")
	}

	// A second acquisition must give up after the timeout.
	client.LockTimeout = 30 * time.Millisecond
	if _, err := client.Lock(); err != ErrLockTimeout {
		t.Errorf("expected ErrLockTimeout, got %v", err)
	}

	unlock()

	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Error("Lock file not removed after unlock")
	}
}

func TestClient_History(t *testing.T) {
	if !IsInstalled() {
		t.Skip("git not installed")
	}
	tmpDir := t.TempDir()
	client := NewClient(tmpDir, ".pedigree.lock", nil)

	if err := client.Init(); err != nil {
		t.Fatalf("Failed to init: %v", err)
	}
	if !client.IsRepo() {
		t.Fatal("expected a git work tree after init")
	}

	commits, err := client.Log("doc.json")
	if err != nil {
		t.Fatalf("Log on empty repo failed: %v", err)
	}
	if len(commits) != 0 {
		t.Fatalf("expected no commits, got %d", len(commits))
	}

	for _, content := range []string{"first", "second"} {
		if err := os.WriteFile(filepath.Join(tmpDir, "doc.json"), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		if err := client.Add("doc.json"); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		if err := client.Commit("save " + content); err != nil {
			t.Fatalf("Commit failed: %v", err)
		}
	}

	commits, err = client.Log("doc.json")
	if err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	if len(commits) != 2 {
		t.Fatalf("expected 2 commits, got %d", len(commits))
	}
	if commits[0].Subject != "save second" {
		t.Errorf("expected newest first, got %q", commits[0].Subject)
	}

	old, err := client.Show(commits[1].Hash, "doc.json")
	if err != nil {
		t.Fatalf("Show failed: %v", err)
	}
	if old != "first" {
		t.Errorf("expected first revision content, got %q", old)
	}

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status != "" {
		t.Errorf("expected clean status, got %q", status)
	}
}
