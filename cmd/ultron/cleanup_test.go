package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRemoveProjectDirs(t *testing.T) {
	root := t.TempDir()
	inside := filepath.Join(root, "old-project")
	if err := os.MkdirAll(inside, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	outside := t.TempDir()

	removed := removeProjectDirs([]string{inside, outside, root}, root)
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	if _, err := os.Stat(inside); !os.IsNotExist(err) {
		t.Error("directory under the projects root should be removed")
	}
	if _, err := os.Stat(outside); err != nil {
		t.Error("directory outside the projects root must be left alone")
	}
	if _, err := os.Stat(root); err != nil {
		t.Error("the projects root itself must never be removed")
	}
}
