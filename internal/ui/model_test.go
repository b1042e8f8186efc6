package ui

import (
	"errors"
	"strings"
	"testing"

	"github.com/Sandy7272/capture-3d/internal/capture"
	"github.com/Sandy7272/capture-3d/internal/flow"
	"github.com/Sandy7272/capture-3d/internal/session"
)

func TestDeviceErrorInstruction(t *testing.T) {
	tests := []struct {
		name string
		de   *capture.DeviceError
		want string
	}{
		{"denied", &capture.DeviceError{Kind: capture.DeviceErrDenied}, "permission"},
		{"in use", &capture.DeviceError{Kind: capture.DeviceErrInUse}, "Another application"},
		{"not found", &capture.DeviceError{Kind: capture.DeviceErrNotFound}, "No camera"},
		{"unknown", &capture.DeviceError{Kind: capture.DeviceErrUnknown}, "Try again"},
		{"nil", nil, "Try again"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := deviceErrorInstruction(tt.de)
			if !strings.Contains(got, tt.want) {
				t.Errorf("instruction %q missing %q", got, tt.want)
			}
		})
	}
}

func TestApplyEvent_StateTransitions(t *testing.T) {
	m := Model{}

	m = m.applyEvent(flow.Event{
		Kind:    flow.EventState,
		State:   flow.StateRecording,
		Angle:   session.AngleTop,
		Attempt: 2,
	})
	if m.state != flow.StateRecording || m.angle != session.AngleTop || m.attempt != 2 {
		t.Errorf("recording event not applied: %+v", m)
	}

	m = m.applyEvent(flow.Event{Kind: flow.EventSegment, Segment: 2})
	if m.segment != 2 {
		t.Errorf("segment not applied, got %d", m.segment)
	}

	m = m.applyEvent(flow.Event{
		Kind:    flow.EventValidationFailed,
		Reasons: []string{"video too short"},
	})
	if len(m.reasons) != 1 {
		t.Errorf("rejection reasons not applied: %v", m.reasons)
	}

	// Re-entering recording clears the previous rejection banner
	m = m.applyEvent(flow.Event{Kind: flow.EventState, State: flow.StateRecording})
	if len(m.reasons) != 0 || m.segment != 0 {
		t.Error("recording re-entry should reset rejection reasons and segment")
	}
}

func TestApplyEvent_MergeFailureReturnsToReview(t *testing.T) {
	m := Model{state: flow.StateMerging}

	m = m.applyEvent(flow.Event{
		Kind: flow.EventMergeFailed,
		Err:  errors.New("ffmpeg failed"),
	})
	if m.state != flow.StateReviewing {
		t.Errorf("expected reviewing after merge failure, got %s", m.state)
	}
	if m.mergeErr == nil {
		t.Error("merge error not recorded")
	}
}

func TestApplyEvent_DeviceError(t *testing.T) {
	m := Model{}

	de := &capture.DeviceError{Kind: capture.DeviceErrInUse, Err: errors.New("busy")}
	m = m.applyEvent(flow.Event{Kind: flow.EventDeviceError, Device: de})
	if m.state != flow.StateDeviceError || m.deviceErr != de {
		t.Error("device error not applied")
	}

	// Leaving the error state clears the banner
	m = m.applyEvent(flow.Event{Kind: flow.EventState, State: flow.StateRecording})
	if m.deviceErr != nil {
		t.Error("device error survived state change")
	}
}

func TestProgressBar_Bounds(t *testing.T) {
	m := Model{recordDuration: 0}
	if got := m.progressBar(); got != "" {
		t.Errorf("zero duration should render nothing, got %q", got)
	}

	m = Model{recordDuration: 10, recordingFor: 100}
	bar := m.progressBar()
	if strings.Contains(bar, "░") {
		t.Errorf("overrun bar should be fully filled: %q", bar)
	}
}

func TestApplyEvent_PauseResume(t *testing.T) {
	m := Model{state: flow.StateRecording}

	m = m.applyEvent(flow.Event{Kind: flow.EventPaused, State: flow.StateRecording})
	if !m.paused {
		t.Fatal("pause event not applied")
	}

	m = m.applyEvent(flow.Event{Kind: flow.EventResumed, State: flow.StateRecording})
	if m.paused {
		t.Fatal("resume event not applied")
	}

	// A fresh recording never starts paused
	m.paused = true
	m = m.applyEvent(flow.Event{Kind: flow.EventState, State: flow.StateRecording})
	if m.paused {
		t.Error("paused flag survived re-entering recording")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    uint64
		want string
	}{
		{512, "512 B"},
		{4 * 1024, "4 KB"},
		{3 * 1024 * 1024, "3.0 MB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.n); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestControlStep(t *testing.T) {
	stepped := capture.Range{Min: 1, Max: 5, Step: 0.5}
	if got := controlStep(stepped); got != 0.5 {
		t.Errorf("controlStep with explicit step = %v, want 0.5", got)
	}

	continuous := capture.Range{Min: 0, Max: 10}
	if got := controlStep(continuous); got != 1 {
		t.Errorf("controlStep for continuous range = %v, want 1", got)
	}
}

func TestClamp(t *testing.T) {
	if got := clamp(12, 0, 10); got != 10 {
		t.Errorf("clamp above = %v, want 10", got)
	}
	if got := clamp(-2, 0, 10); got != 0 {
		t.Errorf("clamp below = %v, want 0", got)
	}
	if got := clamp(5, 0, 10); got != 5 {
		t.Errorf("clamp inside = %v, want 5", got)
	}
}
