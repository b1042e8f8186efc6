// Package narration voices tutorial text through a local text-to-speech
// binary. Narration is best-effort by contract: a missing or failing TTS
// engine degrades to silence and never blocks the tutorial.
package narration

import (
	"context"
	"log/slog"
	"os/exec"
	"sync"
)

// candidateBinaries are probed in order; the first one on PATH wins
var candidateBinaries = [][]string{
	{"espeak-ng"},
	{"espeak"},
	{"say"},
	{"flite", "-t"},
}

// ExecNarrator speaks by shelling out to a local TTS binary
//
// Speak runs at most one utterance at a time; a new Speak interrupts the
// previous one. Stop is safe to call at any time, including with no speech
// in flight.
type ExecNarrator struct {
	binary string
	args   []string

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewExecNarrator probes for a usable TTS binary
//
// Returns ok=false when no engine is installed; callers should fall back to
// a silent narrator rather than treat that as an error.
func NewExecNarrator() (*ExecNarrator, bool) {
	for _, candidate := range candidateBinaries {
		path, err := exec.LookPath(candidate[0])
		if err != nil {
			continue
		}
		slog.Debug("narration: TTS engine found", "binary", path)
		return &ExecNarrator{binary: path, args: candidate[1:]}, true
	}
	slog.Info("narration: no TTS engine on PATH, narration disabled")
	return nil, false
}

// Speak voices the text, blocking until playback ends, ctx is cancelled or
// Stop is called. Engine failures are returned but are safe to ignore.
func (n *ExecNarrator) Speak(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	n.mu.Lock()
	if n.cancel != nil {
		n.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	n.cancel = cancel
	n.mu.Unlock()

	defer func() {
		n.mu.Lock()
		if n.cancel != nil {
			n.cancel()
			n.cancel = nil
		}
		n.mu.Unlock()
	}()

	args := append(append([]string{}, n.args...), text)
	cmd := exec.CommandContext(runCtx, n.binary, args...)
	if err := cmd.Run(); err != nil {
		if runCtx.Err() != nil {
			// Interrupted, not failed
			return nil
		}
		return err
	}
	return nil
}

// Stop interrupts any in-flight speech
func (n *ExecNarrator) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cancel != nil {
		n.cancel()
		n.cancel = nil
	}
}

// Silent is a no-op narrator used when no TTS engine is available or the
// operator has muted narration.
type Silent struct{}

// Speak does nothing
func (Silent) Speak(context.Context, string) error { return nil }

// Stop does nothing
func (Silent) Stop() {}
