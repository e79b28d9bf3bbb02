package processes

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const (
	// CoreArtifactName is the file name of the core process's launchable
	// artifact.
	CoreArtifactName = "cline-core.js"
	// CorePathEnvVar names the environment variable consulted when no
	// explicit path is given.
	CorePathEnvVar = "CLINE_PATH"
	// coreExecutableName is the launcher binary searched for on PATH.
	coreExecutableName = "cline"
)

// ErrExecutableNotFound is returned when no resolution tier yields an
// existing core artifact.
var ErrExecutableNotFound = errors.New(CoreArtifactName + " not found")

// ResolveCorePath locates the cline-core.js artifact. Tiers are tried in
// order and the first hit wins:
//
//  1. The explicit path argument, if non-empty. A directory is expected to
//     contain the artifact directly; an executable file is expected to have
//     the artifact as a sibling. A nonexistent explicit path is an error;
//     an existing path that yields no artifact falls through to the
//     remaining tiers.
//  2. The CLINE_PATH environment variable, with the same disambiguation.
//     An invalid value is logged and skipped rather than failing.
//  3. A `cline` executable discoverable on PATH, with the artifact assumed
//     to sit alongside it.
//  4. The global npm installation root (`npm root -g`).
//
// Each tier is a read-only filesystem check with no side effects.
func ResolveCorePath(logger *slog.Logger, explicit string) (string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("%w: provided path does not exist: %s", ErrExecutableNotFound, explicit)
		}
		if path, ok := resolveCandidate(explicit); ok {
			logger.Info("Resolved core artifact from explicit path", "path", path)
			return path, nil
		}
		logger.Warn("Provided path yields no core artifact, trying remaining tiers", "path", explicit)
	}

	tiers := []func(*slog.Logger) (string, bool){
		resolveFromEnv,
		resolveFromPath,
		resolveFromGlobalInstall,
	}
	for _, tier := range tiers {
		if path, ok := tier(logger); ok {
			return path, nil
		}
	}

	return "", fmt.Errorf("%w: install cline globally with 'npm install -g cline', or provide a path via the %s environment variable or an explicit path", ErrExecutableNotFound, CorePathEnvVar)
}

// resolveCandidate disambiguates a user-supplied path into an artifact
// path: a directory is expected to contain the artifact, a file is either
// the artifact itself or has it as a sibling.
func resolveCandidate(candidate string) (string, bool) {
	info, err := os.Stat(candidate)
	if err != nil {
		return "", false
	}

	if info.IsDir() {
		artifact := filepath.Join(candidate, CoreArtifactName)
		return artifact, fileExists(artifact)
	}

	if filepath.Base(candidate) == CoreArtifactName {
		return candidate, true
	}
	artifact := filepath.Join(filepath.Dir(candidate), CoreArtifactName)
	return artifact, fileExists(artifact)
}

func resolveFromEnv(logger *slog.Logger) (string, bool) {
	envPath := os.Getenv(CorePathEnvVar)
	if envPath == "" {
		return "", false
	}
	path, ok := resolveCandidate(envPath)
	if !ok {
		logger.Warn("Environment variable points to invalid path", "var", CorePathEnvVar, "value", envPath)
		return "", false
	}
	logger.Info("Resolved core artifact from environment", "var", CorePathEnvVar, "path", path)
	return path, true
}

func resolveFromPath(logger *slog.Logger) (string, bool) {
	executable, err := exec.LookPath(coreExecutableName)
	if err != nil {
		return "", false
	}
	artifact := filepath.Join(filepath.Dir(executable), CoreArtifactName)
	if !fileExists(artifact) {
		return "", false
	}
	logger.Info("Resolved core artifact from PATH executable", "executable", executable, "path", artifact)
	return artifact, true
}

func resolveFromGlobalInstall(logger *slog.Logger) (string, bool) {
	out, err := exec.Command("npm", "root", "-g").Output()
	if err != nil {
		return "", false
	}
	root := strings.TrimSpace(string(out))
	artifact := filepath.Join(root, "cline", CoreArtifactName)
	if !fileExists(artifact) {
		return "", false
	}
	logger.Info("Resolved core artifact from global npm install", "path", artifact)
	return artifact, true
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
