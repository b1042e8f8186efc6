// Package merge concatenates accepted takes into the final scan artifact
// using the local ffmpeg installation.
package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Sandy7272/capture-3d/internal/capture"
	"github.com/Sandy7272/capture-3d/internal/session"
)

// MergeError is an input validation failure. No output file exists, partial
// or otherwise, when a MergeError is returned.
type MergeError struct {
	Reason string
	Err    error
}

// Error implements the error interface
func (e *MergeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("merge: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("merge: %s", e.Reason)
}

// Unwrap returns the underlying cause
func (e *MergeError) Unwrap() error { return e.Err }

// AsMergeError extracts a MergeError from an error chain, if present
func AsMergeError(err error) (*MergeError, bool) {
	var me *MergeError
	if errors.As(err, &me) {
		return me, true
	}
	return nil, false
}

// Strategy identifies the concat approach for a set of takes
type Strategy string

const (
	// StrategyConcatCopy is container-level concatenation with stream copy.
	// Usable when every take shares the same container.
	StrategyConcatCopy Strategy = "concat-copy"
	// StrategyReencode decodes and re-encodes everything to H.264 MP4.
	// Required when containers are mixed.
	StrategyReencode Strategy = "reencode"
)

// DecideStrategy picks the cheapest strategy the inputs allow
func DecideStrategy(takes []session.Take) Strategy {
	if len(takes) <= 1 {
		return StrategyConcatCopy
	}
	for _, t := range takes[1:] {
		if t.Container != takes[0].Container {
			return StrategyReencode
		}
	}
	return StrategyConcatCopy
}

// concatCopyArgs builds ffmpeg arguments for the concat demuxer with stream
// copy. listPath is a concat list file naming the inputs in order.
func concatCopyArgs(listPath, outPath string) []string {
	return []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outPath,
	}
}

// reencodeArgs builds ffmpeg arguments for the re-encode path: one input
// per take joined by the concat filter, H.264 at crf 15 preset slow with
// yuv420p for broad player compatibility. The concat protocol cannot join
// MP4/WebM/MKV containers, so mixed takes go through the filter graph.
func reencodeArgs(inputs []string, outPath string) []string {
	args := []string{"-y"}
	for _, in := range inputs {
		args = append(args, "-i", in)
	}

	var filter strings.Builder
	for i := range inputs {
		fmt.Fprintf(&filter, "[%d:v:0]", i)
	}
	fmt.Fprintf(&filter, "concat=n=%d:v=1:a=0[v]", len(inputs))

	return append(args,
		"-filter_complex", filter.String(),
		"-map", "[v]",
		"-c:v", "libx264",
		"-preset", "slow",
		"-crf", "15",
		"-pix_fmt", "yuv420p",
		outPath,
	)
}

// Service merges takes via an injected media engine
type Service struct {
	engine *Engine
}

// NewService creates a merge service
func NewService(engine *Engine) (*Service, error) {
	if engine == nil {
		return nil, fmt.Errorf("merge: engine is required")
	}
	return &Service{engine: engine}, nil
}

// Merge concatenates the takes, in the order given, into one artifact
//
// Inputs are validated before anything touches the filesystem: at least one
// take, every take non-empty. Validation failures return *MergeError.
//
// When all takes share a container the concat demuxer with stream copy is
// used and the artifact keeps that container; mixed containers are
// re-encoded to MP4. Scratch files are removed on every path.
//
// Long-running; honors ctx cancellation.
func (s *Service) Merge(ctx context.Context, takes []session.Take) (session.MergedArtifact, error) {
	if len(takes) == 0 {
		return session.MergedArtifact{}, &MergeError{Reason: "no takes to merge"}
	}
	for i, t := range takes {
		if len(t.Data) == 0 {
			return session.MergedArtifact{}, &MergeError{
				Reason: fmt.Sprintf("take %d (%s) is empty", i, t.Angle),
			}
		}
	}

	ffmpeg, ffprobe, err := s.engine.binaries()
	if err != nil {
		return session.MergedArtifact{}, err
	}

	scratch, err := os.MkdirTemp("", "capture-merge-*")
	if err != nil {
		return session.MergedArtifact{}, fmt.Errorf("merge: create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	inputs := make([]string, 0, len(takes))
	for i, t := range takes {
		path := filepath.Join(scratch, fmt.Sprintf("input%03d%s", i, extForMIME(t.Container)))
		if err := os.WriteFile(path, t.Data, 0o600); err != nil {
			return session.MergedArtifact{}, fmt.Errorf("merge: write input %d: %w", i, err)
		}
		inputs = append(inputs, path)
	}

	strategy := DecideStrategy(takes)

	var outPath, contentType string
	var args []string
	switch strategy {
	case StrategyConcatCopy:
		contentType = takes[0].Container
		outPath = filepath.Join(scratch, "output"+extForMIME(contentType))
		listPath := filepath.Join(scratch, "inputs.txt")
		if err := writeConcatList(listPath, inputs); err != nil {
			return session.MergedArtifact{}, err
		}
		args = concatCopyArgs(listPath, outPath)
	default:
		contentType = "video/mp4"
		outPath = filepath.Join(scratch, "output.mp4")
		args = reencodeArgs(inputs, outPath)
	}

	slog.Info("merge: concatenating takes",
		"takes", len(takes),
		"strategy", string(strategy),
		"content_type", contentType,
	)

	cmd := exec.CommandContext(ctx, ffmpeg, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return session.MergedArtifact{}, fmt.Errorf("merge: cancelled: %w", ctx.Err())
		}
		return session.MergedArtifact{}, fmt.Errorf("merge: ffmpeg failed: %w, output: %s", err, output)
	}

	duration, err := probeDuration(ctx, ffprobe, outPath)
	if err != nil {
		// Duration is metadata; a probe failure does not invalidate the
		// artifact itself
		slog.Warn("merge: duration probe failed", "error", err)
		for _, t := range takes {
			duration += t.Duration
		}
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return session.MergedArtifact{}, fmt.Errorf("merge: read output: %w", err)
	}

	slog.Info("merge: artifact ready",
		"size_bytes", len(data),
		"duration", duration,
	)

	return session.MergedArtifact{
		Data:        data,
		ContentType: contentType,
		Duration:    duration,
		CreatedAt:   time.Now(),
	}, nil
}

// writeConcatList writes a concat demuxer list file naming inputs in order
func writeConcatList(path string, inputs []string) error {
	var b strings.Builder
	for _, in := range inputs {
		fmt.Fprintf(&b, "file '%s'\n", in)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("merge: write concat list: %w", err)
	}
	return nil
}

// probeDuration reads the container duration via ffprobe
func probeDuration(ctx context.Context, ffprobe, path string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// extForMIME maps a container MIME to a file extension, defaulting to .mkv
// for anything unrecognized
func extForMIME(mime string) string {
	c, err := capture.ContainerForMIME(mime)
	if err != nil {
		return ".mkv"
	}
	return c.Ext()
}
