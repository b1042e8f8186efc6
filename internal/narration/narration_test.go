package narration_test

import (
	"context"
	"testing"

	"github.com/Sandy7272/capture-3d/internal/narration"
	"github.com/Sandy7272/capture-3d/internal/tutorial"
)

// The narrator contract: best-effort, interruptible, never required.

func TestSilent_ImplementsNarrator(t *testing.T) {
	var n tutorial.Narrator = narration.Silent{}

	if err := n.Speak(context.Background(), "hello"); err != nil {
		t.Errorf("silent narrator returned error: %v", err)
	}
	n.Stop()
	n.Stop() // idempotent
}

func TestExecNarrator_EmptyTextIsNoop(t *testing.T) {
	n, ok := narration.NewExecNarrator()
	if !ok {
		t.Skip("no TTS engine on PATH")
	}

	if err := n.Speak(context.Background(), ""); err != nil {
		t.Errorf("empty text should be a no-op, got %v", err)
	}
}

func TestExecNarrator_StopWithoutSpeech(t *testing.T) {
	n, ok := narration.NewExecNarrator()
	if !ok {
		t.Skip("no TTS engine on PATH")
	}

	// Stop with nothing in flight must not panic
	n.Stop()
	n.Stop()
}

func TestExecNarrator_CancelledContext(t *testing.T) {
	n, ok := narration.NewExecNarrator()
	if !ok {
		t.Skip("no TTS engine on PATH")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// An interrupted utterance is silence, not an error
	if err := n.Speak(ctx, "this should be interrupted"); err != nil {
		t.Errorf("cancelled speak returned error: %v", err)
	}
}
