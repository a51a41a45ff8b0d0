package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
)

func TestScaffoldWorkspaceCreatesTemplate(t *testing.T) {
	dir := t.TempDir()
	result, err := ScaffoldWorkspace(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Created) != 1 || result.Created[0] != ".env.example" {
		t.Fatalf("ScaffoldWorkspace() created = %v", result.Created)
	}
	if _, err := os.Stat(filepath.Join(dir, ".env.example")); err != nil {
		t.Fatalf("expected .env.example on disk: %v", err)
	}
}

func TestScaffoldWorkspaceSkipsExisting(t *testing.T) {
	dir := t.TempDir()
	if _, err := ScaffoldWorkspace(dir, false); err != nil {
		t.Fatal(err)
	}
	result, err := ScaffoldWorkspace(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Skipped) != 1 {
		t.Fatalf("expected second run to skip, got %+v", result)
	}
}

func TestScaffoldWorkspaceForceOverwrites(t *testing.T) {
	dir := t.TempDir()
	if _, err := ScaffoldWorkspace(dir, false); err != nil {
		t.Fatal(err)
	}
	result, err := ScaffoldWorkspace(dir, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Created) != 1 {
		t.Fatalf("expected force run to recreate, got %+v", result)
	}
}
