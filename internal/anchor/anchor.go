// Package anchor locates the project anchor directory — the nearest parent
// of the output directory carrying the marker file — and reads the
// generation credential from it.
package anchor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// MarkerFile is the file whose presence marks the anchor directory.
const MarkerFile = ".env"

// Credential variable names, checked in order. The second is accepted for
// compatibility with older project setups.
var credentialKeys = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}

// ErrNotFound means no marker file exists within maxDepth parent levels.
var ErrNotFound = errors.New("anchor directory not found")

// Find walks upward from startDir looking for the marker file, checking at
// most maxDepth levels (startDir included). The bound makes a misconfigured
// output path fail fast instead of scanning the whole filesystem.
func Find(startDir string, maxDepth int) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", startDir, err)
	}
	for level := 0; level < maxDepth; level++ {
		if _, err := os.Stat(filepath.Join(dir, MarkerFile)); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break // filesystem root
		}
		dir = parent
	}
	return "", fmt.Errorf("%w: no %s within %d levels of %s", ErrNotFound, MarkerFile, maxDepth, startDir)
}

// Credential reads the generation key from the anchor's marker file.
// Returns "" if the file is unreadable or carries neither variable.
func Credential(anchorDir string) string {
	vars, err := godotenv.Read(filepath.Join(anchorDir, MarkerFile))
	if err != nil {
		return ""
	}
	for _, key := range credentialKeys {
		if v := vars[key]; v != "" {
			return v
		}
	}
	return ""
}
