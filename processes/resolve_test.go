package processes

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// writeArtifact creates a cline-core.js stand-in inside dir.
func writeArtifact(t *testing.T, dir string) string {
	t.Helper()
	artifact := filepath.Join(dir, CoreArtifactName)
	if err := os.WriteFile(artifact, []byte("// stub"), 0o644); err != nil {
		t.Fatalf("Failed to write artifact: %v", err)
	}
	return artifact
}

func TestResolveCorePathExplicitDirectory(t *testing.T) {
	dir := t.TempDir()
	artifact := writeArtifact(t, dir)

	resolved, err := ResolveCorePath(nil, dir)
	if err != nil {
		t.Fatalf("ResolveCorePath returned error: %v", err)
	}
	if resolved != artifact {
		t.Errorf("Expected %q, got %q", artifact, resolved)
	}
	if filepath.Base(resolved) != CoreArtifactName {
		t.Errorf("Expected path ending in %s, got %q", CoreArtifactName, resolved)
	}
}

func TestResolveCorePathExplicitArtifactFile(t *testing.T) {
	dir := t.TempDir()
	artifact := writeArtifact(t, dir)

	resolved, err := ResolveCorePath(nil, artifact)
	if err != nil {
		t.Fatalf("ResolveCorePath returned error: %v", err)
	}
	if resolved != artifact {
		t.Errorf("Expected %q, got %q", artifact, resolved)
	}
}

func TestResolveCorePathExplicitSiblingExecutable(t *testing.T) {
	dir := t.TempDir()
	artifact := writeArtifact(t, dir)

	executable := filepath.Join(dir, "cline")
	if err := os.WriteFile(executable, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("Failed to write executable: %v", err)
	}

	resolved, err := ResolveCorePath(nil, executable)
	if err != nil {
		t.Fatalf("ResolveCorePath returned error: %v", err)
	}
	if resolved != artifact {
		t.Errorf("Expected %q, got %q", artifact, resolved)
	}
}

func TestResolveCorePathExplicitMissing(t *testing.T) {
	_, err := ResolveCorePath(nil, filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Fatal("Expected error for nonexistent explicit path")
	}
	if !errors.Is(err, ErrExecutableNotFound) {
		t.Errorf("Expected ErrExecutableNotFound, got %v", err)
	}
}

func TestResolveCorePathExplicitDirWithoutArtifactFallsThroughToEnv(t *testing.T) {
	// An explicit path that exists but yields no artifact is skipped, not
	// fatal: the remaining tiers are still consulted.
	envDir := t.TempDir()
	artifact := writeArtifact(t, envDir)
	t.Setenv(CorePathEnvVar, envDir)

	resolved, err := ResolveCorePath(nil, t.TempDir())
	if err != nil {
		t.Fatalf("ResolveCorePath returned error: %v", err)
	}
	if resolved != artifact {
		t.Errorf("Expected %q, got %q", artifact, resolved)
	}
}

func TestResolveCorePathExplicitFileWithoutSiblingFallsThrough(t *testing.T) {
	dir := t.TempDir()
	executable := filepath.Join(dir, "cline")
	if err := os.WriteFile(executable, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("Failed to write executable: %v", err)
	}

	envDir := t.TempDir()
	artifact := writeArtifact(t, envDir)
	t.Setenv(CorePathEnvVar, envDir)

	resolved, err := ResolveCorePath(nil, executable)
	if err != nil {
		t.Fatalf("ResolveCorePath returned error: %v", err)
	}
	if resolved != artifact {
		t.Errorf("Expected %q, got %q", artifact, resolved)
	}
}

func TestResolveCorePathExplicitDirWithoutArtifactAllTiersExhausted(t *testing.T) {
	t.Setenv(CorePathEnvVar, "")
	t.Setenv("PATH", t.TempDir())

	_, err := ResolveCorePath(nil, t.TempDir())
	if err == nil {
		t.Fatal("Expected error when the skipped explicit tier leaves no candidate")
	}
	if !errors.Is(err, ErrExecutableNotFound) {
		t.Errorf("Expected ErrExecutableNotFound, got %v", err)
	}
}

func TestResolveCorePathFromEnv(t *testing.T) {
	dir := t.TempDir()
	artifact := writeArtifact(t, dir)
	t.Setenv(CorePathEnvVar, dir)

	resolved, err := ResolveCorePath(nil, "")
	if err != nil {
		t.Fatalf("ResolveCorePath returned error: %v", err)
	}
	if resolved != artifact {
		t.Errorf("Expected %q, got %q", artifact, resolved)
	}
}

func TestResolveCorePathEnvInvalidFallsThrough(t *testing.T) {
	t.Setenv(CorePathEnvVar, filepath.Join(t.TempDir(), "bogus"))
	// Keep PATH empty of a cline executable so the remaining tiers fail too.
	t.Setenv("PATH", t.TempDir())

	_, err := ResolveCorePath(nil, "")
	if err == nil {
		t.Fatal("Expected error when all tiers fail")
	}
	if !errors.Is(err, ErrExecutableNotFound) {
		t.Errorf("Expected ErrExecutableNotFound, got %v", err)
	}
}

func TestResolveCorePathNothingFound(t *testing.T) {
	t.Setenv(CorePathEnvVar, "")
	t.Setenv("PATH", t.TempDir())

	_, err := ResolveCorePath(nil, "")
	if err == nil {
		t.Fatal("Expected error when no tier yields a path")
	}
	if !errors.Is(err, ErrExecutableNotFound) {
		t.Errorf("Expected ErrExecutableNotFound, got %v", err)
	}
}

func TestResolveCorePathFromPathExecutable(t *testing.T) {
	dir := t.TempDir()
	artifact := writeArtifact(t, dir)

	executable := filepath.Join(dir, "cline")
	if err := os.WriteFile(executable, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("Failed to write executable: %v", err)
	}

	t.Setenv(CorePathEnvVar, "")
	t.Setenv("PATH", dir)

	resolved, err := ResolveCorePath(nil, "")
	if err != nil {
		t.Fatalf("ResolveCorePath returned error: %v", err)
	}
	if resolved != artifact {
		t.Errorf("Expected %q, got %q", artifact, resolved)
	}
}
