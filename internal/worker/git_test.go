package worker

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func newTestRepo(t *testing.T, content string) (dir string, hash string) {
	t.Helper()
	dir = t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit() error: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README"), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree() error: %v", err)
	}
	if _, err := wt.Add("README"); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	commit, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Unix(0, 0)},
	})
	if err != nil {
		t.Fatalf("Commit() error: %v", err)
	}
	return dir, commit.String()
}

func TestMirrorUpdateClonesWhenMissing(t *testing.T) {
	remoteDir, _ := newTestRepo(t, "hello")
	mirrorDir := filepath.Join(t.TempDir(), "mirror")

	m := NewMirror(mirrorDir, remoteDir)
	if err := m.Update(); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(mirrorDir, "README")); err != nil {
		t.Fatalf("Update() did not populate mirror: %v", err)
	}
}

func TestMirrorResolveCommit(t *testing.T) {
	remoteDir, hash := newTestRepo(t, "hello")
	mirrorDir := filepath.Join(t.TempDir(), "mirror")
	m := NewMirror(mirrorDir, remoteDir)
	if err := m.Update(); err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	commit, err := m.ResolveCommit(hash)
	if err != nil {
		t.Fatalf("ResolveCommit() error: %v", err)
	}
	if commit.Hash.String() != hash {
		t.Errorf("ResolveCommit() hash = %s, want %s", commit.Hash.String(), hash)
	}

	if _, err := m.ResolveCommit("deadbeefdeadbeefdeadbeefdeadbeefdeadbeef"); err == nil {
		t.Errorf("ResolveCommit() expected error for unknown hash")
	}
}

func TestMirrorCheckoutInto(t *testing.T) {
	remoteDir, hash := newTestRepo(t, "hello world")
	mirrorDir := filepath.Join(t.TempDir(), "mirror")
	m := NewMirror(mirrorDir, remoteDir)
	if err := m.Update(); err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	scratch := filepath.Join(t.TempDir(), "scratch")
	if err := m.CheckoutInto(scratch, hash); err != nil {
		t.Fatalf("CheckoutInto() error: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(scratch, "README"))
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if string(got) != "hello world" {
		t.Errorf("CheckoutInto() README = %q, want %q", got, "hello world")
	}
}
