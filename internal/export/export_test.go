package export_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Sandy7272/capture-3d/internal/export"
	"github.com/Sandy7272/capture-3d/internal/session"
)

func TestFileName(t *testing.T) {
	at := time.Unix(1717243200, 0)

	tests := []struct {
		contentType string
		want        string
	}{
		{"video/mp4", "3d-capture-scan-1717243200.mp4"},
		{"video/webm", "3d-capture-scan-1717243200.webm"},
		{"something/else", "3d-capture-scan-1717243200.mp4"},
	}
	for _, tt := range tests {
		if got := export.FileName(at, tt.contentType); got != tt.want {
			t.Errorf("FileName(%q) = %q, want %q", tt.contentType, got, tt.want)
		}
	}
}

func TestSave_WritesArtifact(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "exports")
	artifact := session.MergedArtifact{
		Data:        []byte("merged-bytes"),
		ContentType: "video/mp4",
		Duration:    90 * time.Second,
		CreatedAt:   time.Unix(1717243200, 0),
	}

	path, err := export.Save(artifact, dir)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if filepath.Base(path) != "3d-capture-scan-1717243200.mp4" {
		t.Errorf("unexpected file name %q", filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read exported file: %v", err)
	}
	if string(data) != "merged-bytes" {
		t.Errorf("exported bytes differ: %q", data)
	}
}

func TestSave_RejectsEmptyArtifact(t *testing.T) {
	_, err := export.Save(session.MergedArtifact{}, t.TempDir())
	if err == nil {
		t.Error("expected error for empty artifact")
	}
}

func TestSave_RejectsEmptyDir(t *testing.T) {
	artifact := session.MergedArtifact{Data: []byte("x"), ContentType: "video/mp4"}
	if _, err := export.Save(artifact, ""); err == nil {
		t.Error("expected error for empty destination")
	}
}
