// Package artifact writes generated content to disk.
package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/forge-ai/scribe/internal/generation"
)

// ErrWrite wraps any failure to persist an artifact.
var ErrWrite = errors.New("artifact write failed")

// Write persists content under dir as {project}-{kindTag}-{timestamp}{ext},
// creating dir if absent. The timestamp has second precision, which keeps
// concurrent requests for the same project from colliding under human-paced
// use. Content goes to a temp file first and is renamed into place, so a
// crash mid-write never leaves a partial artifact under the final name.
func Write(dir, project string, kind generation.TaskKind, content string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create %s: %w", ErrWrite, dir, err)
	}

	tag, ext := "spec", ".md"
	if kind == generation.ImplementationGeneration {
		tag, ext = "game", ".txt"
	}
	name := fmt.Sprintf("%s-%s-%s%s", project, tag, time.Now().Format("20060102-150405"), ext)
	path := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, ".scribe-*")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return path, nil
}
