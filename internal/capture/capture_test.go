package capture_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/Sandy7272/capture-3d/internal/capture"
)

// TestNewCamera_FailFast tests fail-fast validation in constructor
//
// These tests ensure configuration errors are caught at construction time
// (load time) rather than runtime, following the "Fail Fast" principle.
// Device availability is deliberately NOT validated here, so these cases
// run without a camera attached.
func TestNewCamera_FailFast(t *testing.T) {
	tests := []struct {
		name    string
		cfg     capture.Config
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid config",
			cfg: capture.Config{
				Device:      "/dev/video0",
				Resolution:  capture.Res1080p,
				FPS:         30,
				BitrateKbps: 8000,
			},
			wantErr: false,
		},
		{
			name: "empty device",
			cfg: capture.Config{
				Device:      "",
				FPS:         30,
				BitrateKbps: 8000,
			},
			wantErr: true,
			errMsg:  "device path is required",
		},
		{
			name: "invalid FPS - zero",
			cfg: capture.Config{
				Device:      "/dev/video0",
				FPS:         0,
				BitrateKbps: 8000,
			},
			wantErr: true,
			errMsg:  "invalid FPS",
		},
		{
			name: "invalid FPS - too high",
			cfg: capture.Config{
				Device:      "/dev/video0",
				FPS:         120,
				BitrateKbps: 8000,
			},
			wantErr: true,
			errMsg:  "invalid FPS",
		},
		{
			name: "valid FPS - minimum boundary",
			cfg: capture.Config{
				Device:      "/dev/video0",
				FPS:         1,
				BitrateKbps: 8000,
			},
			wantErr: false,
		},
		{
			name: "valid FPS - maximum boundary",
			cfg: capture.Config{
				Device:      "/dev/video0",
				FPS:         60,
				BitrateKbps: 8000,
			},
			wantErr: false,
		},
		{
			name: "invalid bitrate - zero",
			cfg: capture.Config{
				Device:      "/dev/video0",
				FPS:         30,
				BitrateKbps: 0,
			},
			wantErr: true,
			errMsg:  "invalid bitrate",
		},
		{
			name: "invalid bitrate - negative",
			cfg: capture.Config{
				Device:      "/dev/video0",
				FPS:         30,
				BitrateKbps: -500,
			},
			wantErr: true,
			errMsg:  "invalid bitrate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam, err := capture.NewCamera(tt.cfg)

			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.errMsg)
				}
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("expected error containing %q, got %q", tt.errMsg, err.Error())
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cam == nil {
				t.Fatal("expected camera, got nil")
			}
		})
	}
}

// TestCamera_LifecycleGuards verifies operations are rejected before Open
func TestCamera_LifecycleGuards(t *testing.T) {
	cam, err := capture.NewCamera(capture.Config{
		Device:      "/dev/video0",
		FPS:         30,
		BitrateKbps: 8000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := cam.Start(); !errors.Is(err, capture.ErrInvalidState) {
		t.Errorf("Start before Open: expected ErrInvalidState, got %v", err)
	}
	if err := cam.Pause(); !errors.Is(err, capture.ErrInvalidState) {
		t.Errorf("Pause before Open: expected ErrInvalidState, got %v", err)
	}
	if err := cam.Resume(); !errors.Is(err, capture.ErrInvalidState) {
		t.Errorf("Resume before Open: expected ErrInvalidState, got %v", err)
	}
	if _, err := cam.Stop(); !errors.Is(err, capture.ErrInvalidState) {
		t.Errorf("Stop before Open: expected ErrInvalidState, got %v", err)
	}
	if _, err := cam.Capabilities(); !errors.Is(err, capture.ErrInvalidState) {
		t.Errorf("Capabilities before Open: expected ErrInvalidState, got %v", err)
	}

	// Close on a never-opened camera is a no-op
	if err := cam.Close(); err != nil {
		t.Errorf("Close before Open: expected nil, got %v", err)
	}
	if err := cam.Close(); err != nil {
		t.Errorf("double Close: expected nil, got %v", err)
	}

	// Controls degrade silently, never panic
	cam.SetZoom(2.0)
	cam.SetExposure(-1.0)

	stats := cam.Stats()
	if stats.Recording {
		t.Error("expected Recording=false on closed camera")
	}
	if stats.BytesEncoded != 0 {
		t.Errorf("expected zero bytes, got %d", stats.BytesEncoded)
	}
}

// TestClassifyDeviceError verifies acquisition failures map to the right
// recovery screen. Most specific category wins.
func TestClassifyDeviceError(t *testing.T) {
	tests := []struct {
		name   string
		errMsg string
		debug  string
		want   capture.DeviceErrorKind
	}{
		{
			name:   "permission denied",
			errMsg: "Could not open device '/dev/video0' for reading and writing",
			debug:  "v4l2_calls.c: system error: Permission denied",
			want:   capture.DeviceErrDenied,
		},
		{
			name:   "not authorized",
			errMsg: "not authorized to access device",
			want:   capture.DeviceErrDenied,
		},
		{
			name:   "device busy",
			errMsg: "Could not open device",
			debug:  "system error: Device or resource busy",
			want:   capture.DeviceErrInUse,
		},
		{
			name:   "already in use",
			errMsg: "camera already in use by another application",
			want:   capture.DeviceErrInUse,
		},
		{
			name:   "no such device",
			errMsg: "Cannot identify device '/dev/video7'",
			debug:  "system error: No such file or directory",
			want:   capture.DeviceErrNotFound,
		},
		{
			name:   "device not found",
			errMsg: "device not found",
			want:   capture.DeviceErrNotFound,
		},
		{
			name:   "unclassified failure",
			errMsg: "Internal data stream error",
			debug:  "streaming stopped, reason error (-5)",
			want:   capture.DeviceErrUnknown,
		},
		{
			name:   "empty messages",
			errMsg: "",
			debug:  "",
			want:   capture.DeviceErrUnknown,
		},
		{
			name:   "denied wins over busy mention",
			errMsg: "Permission denied while device busy",
			want:   capture.DeviceErrDenied,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := capture.ClassifyDeviceError(tt.errMsg, tt.debug)
			if got != tt.want {
				t.Errorf("ClassifyDeviceError(%q, %q) = %s, want %s",
					tt.errMsg, tt.debug, got, tt.want)
			}
		})
	}
}

// TestDeviceError_Unwrap verifies DeviceError participates in error chains
func TestDeviceError_Unwrap(t *testing.T) {
	cause := errors.New("underlying failure")
	de := &capture.DeviceError{Kind: capture.DeviceErrInUse, Err: cause}

	if !errors.Is(de, cause) {
		t.Error("expected errors.Is to find the cause")
	}

	wrapped := fmt.Errorf("open failed: %w", de)
	got, ok := capture.AsDeviceError(wrapped)
	if !ok {
		t.Fatal("expected AsDeviceError to find DeviceError through wrapping")
	}
	if got.Kind != capture.DeviceErrInUse {
		t.Errorf("expected kind in-use, got %s", got.Kind)
	}
}

// TestContainer_MIME verifies container metadata round-trips
func TestContainer_MIME(t *testing.T) {
	tests := []struct {
		container capture.Container
		mime      string
		ext       string
	}{
		{capture.ContainerMP4, "video/mp4", ".mp4"},
		{capture.ContainerWebM, "video/webm", ".webm"},
		{capture.ContainerMatroska, "video/x-matroska", ".mkv"},
	}

	for _, tt := range tests {
		t.Run(tt.container.String(), func(t *testing.T) {
			if got := tt.container.MIME(); got != tt.mime {
				t.Errorf("MIME() = %q, want %q", got, tt.mime)
			}
			if got := tt.container.Ext(); got != tt.ext {
				t.Errorf("Ext() = %q, want %q", got, tt.ext)
			}

			back, err := capture.ContainerForMIME(tt.mime)
			if err != nil {
				t.Fatalf("ContainerForMIME(%q): %v", tt.mime, err)
			}
			if back != tt.container {
				t.Errorf("ContainerForMIME(%q) = %v, want %v", tt.mime, back, tt.container)
			}
		})
	}

	if _, err := capture.ContainerForMIME("video/avi"); err == nil {
		t.Error("expected error for unknown MIME")
	}
}

func TestParseResolution(t *testing.T) {
	tests := []struct {
		label string
		want  capture.Resolution
	}{
		{"720p", capture.Res720p},
		{"1080p", capture.Res1080p},
		{"2160p", capture.Res2160p},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, err := capture.ParseResolution(tt.label)
			if err != nil {
				t.Fatalf("ParseResolution(%q): %v", tt.label, err)
			}
			if got != tt.want {
				t.Errorf("ParseResolution(%q) = %v, want %v", tt.label, got, tt.want)
			}
		})
	}

	if _, err := capture.ParseResolution("480p"); err == nil {
		t.Error("expected error for unsupported resolution")
	}
}

// ExampleResolution_Dimensions demonstrates resolution dimension lookup
func ExampleResolution_Dimensions() {
	for _, res := range []capture.Resolution{capture.Res720p, capture.Res1080p, capture.Res2160p} {
		w, h := res.Dimensions()
		fmt.Printf("%s: %dx%d\n", res, w, h)
	}
	// Output:
	// 720p: 1280x720
	// 1080p: 1920x1080
	// 2160p: 3840x2160
}

// ExampleNewCamera demonstrates basic recorder configuration
func ExampleNewCamera() {
	cfg := capture.Config{
		Device:      "/dev/video0",
		Resolution:  capture.Res1080p,
		FPS:         30,
		BitrateKbps: 8000,
	}

	cam, err := capture.NewCamera(cfg)
	if err != nil {
		fmt.Println("config error:", err)
		return
	}
	defer cam.Close()

	// cam.Open(ctx) acquires the device; see package docs for the full
	// record/stop cycle.
	_ = cam
}
