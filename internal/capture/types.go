package capture

import (
	"fmt"
	"time"
)

// Resolution represents supported capture resolutions
type Resolution int

const (
	// Res720p represents 1280x720 resolution (HD)
	Res720p Resolution = iota
	// Res1080p represents 1920x1080 resolution (Full HD)
	Res1080p
	// Res2160p represents 3840x2160 resolution (4K UHD)
	Res2160p
)

// Dimensions returns the width and height for the resolution
func (r Resolution) Dimensions() (width, height int) {
	switch r {
	case Res720p:
		return 1280, 720
	case Res1080p:
		return 1920, 1080
	case Res2160p:
		return 3840, 2160
	default:
		// Safe default: 1080p
		return 1920, 1080
	}
}

// String returns a human-readable string representation of the resolution
func (r Resolution) String() string {
	switch r {
	case Res720p:
		return "720p"
	case Res1080p:
		return "1080p"
	case Res2160p:
		return "2160p"
	default:
		return "1080p"
	}
}

// ParseResolution converts a resolution label into a Resolution value
func ParseResolution(s string) (Resolution, error) {
	switch s {
	case "720p":
		return Res720p, nil
	case "1080p":
		return Res1080p, nil
	case "2160p":
		return Res2160p, nil
	default:
		return Res1080p, fmt.Errorf("unknown resolution %q", s)
	}
}

// Config contains configuration for the camera recorder session
type Config struct {
	// Device is the camera device path (e.g., "/dev/video0") (required)
	Device string
	// Resolution is the preferred capture resolution (best-effort)
	Resolution Resolution
	// FPS is the preferred frame rate, 1-60 (best-effort)
	FPS int
	// BitrateKbps is the encoder target bitrate in kbit/s
	BitrateKbps int
	// Containers is the container preference list, most preferred first.
	// Empty means DefaultContainers.
	Containers []Container
}

// Range describes a supported control range for a camera capability
type Range struct {
	// Min is the lowest accepted value
	Min float64
	// Max is the highest accepted value
	Max float64
	// Step is the control granularity (0 when continuous)
	Step float64
}

// Capabilities is the device feature set probed once at open time.
// Absent capabilities are a silent feature-degradation path, never an error.
type Capabilities struct {
	zoom     *Range
	exposure *Range
	torch    bool
}

// Zoom returns the supported zoom range, if the device has one
func (c Capabilities) Zoom() (Range, bool) {
	if c.zoom == nil {
		return Range{}, false
	}
	return *c.zoom, true
}

// Exposure returns the supported exposure-compensation range, if any
func (c Capabilities) Exposure() (Range, bool) {
	if c.exposure == nil {
		return Range{}, false
	}
	return *c.exposure, true
}

// Torch reports whether the device has a controllable torch
func (c Capabilities) Torch() bool {
	return c.torch
}

// Recording is a finished take produced by Stop: the muxed media bytes plus
// the metadata the merge service needs to know what it is concatenating.
type Recording struct {
	// Data contains the muxed media bytes
	Data []byte
	// Container is the MIME type of the container that was recorded
	Container string
	// Duration is the wall-clock recording time, excluding pauses
	Duration time.Duration
}

// Stats contains current recorder statistics
//
// Thread-safe to read at any time; counters are updated atomically by the
// sample callback.
type Stats struct {
	// ChunksFlushed is the number of ~1s chunks accumulated so far
	ChunksFlushed uint64
	// BytesEncoded is the total muxed bytes accumulated so far
	BytesEncoded uint64
	// Recording reports whether a recording is active (paused counts)
	Recording bool
	// Elapsed is the recording time so far, excluding pauses
	Elapsed time.Duration
}
