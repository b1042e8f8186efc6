package merge

import (
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
)

// Engine is a lazily initialized handle to the ffmpeg and ffprobe binaries.
//
// The binaries are resolved on first use, not at construction, so an Engine
// can be wired into the application before ffmpeg is installed. Resolution
// happens exactly once; a failed resolution is sticky until Reset.
type Engine struct {
	ffmpegName  string
	ffprobeName string

	mu      sync.Mutex
	once    *sync.Once
	ffmpeg  string
	ffprobe string
	initErr error
}

// NewEngine creates an engine resolving the given binary names on PATH.
// Empty names default to "ffmpeg" and "ffprobe".
func NewEngine(ffmpegName, ffprobeName string) *Engine {
	if ffmpegName == "" {
		ffmpegName = "ffmpeg"
	}
	if ffprobeName == "" {
		ffprobeName = "ffprobe"
	}
	return &Engine{
		ffmpegName:  ffmpegName,
		ffprobeName: ffprobeName,
		once:        new(sync.Once),
	}
}

// binaries resolves and returns the ffmpeg and ffprobe paths
func (e *Engine) binaries() (ffmpeg, ffprobe string, err error) {
	e.mu.Lock()
	once := e.once
	e.mu.Unlock()

	once.Do(func() {
		var resolveErr error

		ffmpegPath, resolveErr := exec.LookPath(e.ffmpegName)
		if resolveErr != nil {
			e.setResult("", "", fmt.Errorf("merge: %s not found on PATH: %w", e.ffmpegName, resolveErr))
			return
		}

		ffprobePath, resolveErr := exec.LookPath(e.ffprobeName)
		if resolveErr != nil {
			e.setResult("", "", fmt.Errorf("merge: %s not found on PATH: %w", e.ffprobeName, resolveErr))
			return
		}

		slog.Info("merge: media engine resolved",
			"ffmpeg", ffmpegPath,
			"ffprobe", ffprobePath,
		)
		e.setResult(ffmpegPath, ffprobePath, nil)
	})

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ffmpeg, e.ffprobe, e.initErr
}

func (e *Engine) setResult(ffmpeg, ffprobe string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ffmpeg = ffmpeg
	e.ffprobe = ffprobe
	e.initErr = err
}

// Reset discards the resolved binaries so the next use re-resolves them.
// Used after the operator installs ffmpeg mid-session.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.once = new(sync.Once)
	e.ffmpeg = ""
	e.ffprobe = ""
	e.initErr = nil
	slog.Debug("merge: media engine reset")
}
