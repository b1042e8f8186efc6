package capture

import (
	"fmt"
	"log/slog"

	"github.com/tinyzimmer/go-gst/gst"
)

// Container identifies a supported output container/codec pairing
type Container int

const (
	// ContainerMP4 is H.264 in MP4 (broadest playback compatibility)
	ContainerMP4 Container = iota
	// ContainerWebM is VP8 in WebM
	ContainerWebM
	// ContainerMatroska is H.264 in Matroska (the always-available fallback)
	ContainerMatroska
)

// DefaultContainers is the preference order when the config does not set one:
// MP4 first for compatibility, then WebM, then the Matroska fallback.
var DefaultContainers = []Container{ContainerMP4, ContainerWebM, ContainerMatroska}

// String returns the short name of the container
func (c Container) String() string {
	switch c {
	case ContainerMP4:
		return "mp4"
	case ContainerWebM:
		return "webm"
	case ContainerMatroska:
		return "mkv"
	default:
		return "mkv"
	}
}

// MIME returns the container's MIME type, recorded alongside every take so
// the merge service knows what it is concatenating
func (c Container) MIME() string {
	switch c {
	case ContainerMP4:
		return "video/mp4"
	case ContainerWebM:
		return "video/webm"
	case ContainerMatroska:
		return "video/x-matroska"
	default:
		return "video/x-matroska"
	}
}

// Ext returns the file extension for the container
func (c Container) Ext() string {
	return "." + c.String()
}

// encoderElement returns the GStreamer encoder element for the container
func (c Container) encoderElement() string {
	switch c {
	case ContainerWebM:
		return "vp8enc"
	default:
		return "x264enc"
	}
}

// muxerElement returns the GStreamer muxer element for the container
func (c Container) muxerElement() string {
	switch c {
	case ContainerMP4:
		return "mp4mux"
	case ContainerWebM:
		return "webmmux"
	default:
		return "matroskamux"
	}
}

// ContainerForMIME maps a MIME type back to its container
func ContainerForMIME(mime string) (Container, error) {
	for _, c := range []Container{ContainerMP4, ContainerWebM, ContainerMatroska} {
		if c.MIME() == mime {
			return c, nil
		}
	}
	return ContainerMatroska, fmt.Errorf("capture: unknown container MIME %q", mime)
}

// SelectContainer picks the first container from the preference list whose
// encoder and muxer elements are available on this GStreamer installation.
//
// Unsupported entries are skipped with a log line, never an error; when
// nothing from the list is usable the Matroska fallback is tried last.
func SelectContainer(prefs []Container) (Container, error) {
	gst.Init(nil)

	if len(prefs) == 0 {
		prefs = DefaultContainers
	}

	candidates := make([]Container, 0, len(prefs)+1)
	candidates = append(candidates, prefs...)
	candidates = append(candidates, ContainerMatroska)

	for _, c := range candidates {
		if err := probeElements(c.encoderElement(), c.muxerElement()); err != nil {
			slog.Debug("capture: container unavailable, trying next",
				"container", c.String(),
				"error", err,
			)
			continue
		}
		slog.Info("capture: container selected",
			"container", c.String(),
			"mime", c.MIME(),
		)
		return c, nil
	}

	return ContainerMatroska, fmt.Errorf(
		"capture: no usable container found (checked %d candidates)", len(candidates),
	)
}

// probeElements verifies the named GStreamer elements can be created
func probeElements(names ...string) error {
	for _, name := range names {
		elem, err := gst.NewElement(name)
		if err != nil {
			return fmt.Errorf("element %s unavailable: %w", name, err)
		}
		elem.SetState(gst.StateNull)
	}
	return nil
}
