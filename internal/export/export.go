// Package export writes the final merged artifact to disk.
package export

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Sandy7272/capture-3d/internal/capture"
	"github.com/Sandy7272/capture-3d/internal/session"
)

// FileName returns the suggested export name for an artifact created at
// the given time, e.g. "3d-capture-scan-1717243200.mp4".
func FileName(at time.Time, contentType string) string {
	ext := ".mp4"
	if c, err := capture.ContainerForMIME(contentType); err == nil {
		ext = c.Ext()
	}
	return fmt.Sprintf("3d-capture-scan-%d%s", at.Unix(), ext)
}

// Save writes the artifact under its suggested name in dir, creating the
// directory if needed. Returns the full path of the written file.
func Save(artifact session.MergedArtifact, dir string) (string, error) {
	if len(artifact.Data) == 0 {
		return "", fmt.Errorf("export: artifact is empty")
	}
	if dir == "" {
		return "", fmt.Errorf("export: destination directory must not be empty")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("export: ensure destination: %w", err)
	}

	at := artifact.CreatedAt
	if at.IsZero() {
		at = time.Now()
	}

	path := filepath.Join(dir, FileName(at, artifact.ContentType))
	if err := os.WriteFile(path, artifact.Data, 0o644); err != nil {
		return "", fmt.Errorf("export: write artifact: %w", err)
	}

	slog.Info("export: artifact saved",
		"path", path,
		"size_bytes", len(artifact.Data),
		"duration", artifact.Duration,
	)
	return path, nil
}
