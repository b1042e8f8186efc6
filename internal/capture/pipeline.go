package capture

import (
	"fmt"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// pipelineElements holds references to GStreamer pipeline elements.
// These references are needed for control application and cleanup.
type pipelineElements struct {
	Pipeline   *gst.Pipeline
	AppSink    *app.Sink
	Source     *gst.Element
	Encoder    *gst.Element
	CapsFilter *gst.Element
}

// buildPipeline creates and configures the recording pipeline
//
// Pipeline structure:
//
//	v4l2src → videoconvert → videoscale → videorate → capsfilter →
//	encoder → muxer → appsink
//
// The pipeline is configured but NOT started (state remains NULL).
// The caller drives state transitions: PAUSED pre-rolls and holds the
// device, PLAYING records, NULL releases everything.
func buildPipeline(cfg Config, container Container) (*pipelineElements, error) {
	// Initialize GStreamer (safe to call multiple times)
	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	src, err := gst.NewElement("v4l2src")
	if err != nil {
		return nil, fmt.Errorf("failed to create v4l2src: %w", err)
	}
	src.SetProperty("device", cfg.Device)

	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoconvert: %w", err)
	}
	converter.SetProperty("n-threads", 0) // auto-detect cores

	scaler, err := gst.NewElement("videoscale")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoscale: %w", err)
	}

	videorate, err := gst.NewElement("videorate")
	if err != nil {
		return nil, fmt.Errorf("failed to create videorate: %w", err)
	}
	videorate.SetProperty("drop-only", true)
	videorate.SetProperty("skip-to-first", true)

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("failed to create capsfilter: %w", err)
	}
	width, height := cfg.Resolution.Dimensions()
	capsStr := fmt.Sprintf(
		"video/x-raw,width=%d,height=%d,framerate=%d/1",
		width, height, cfg.FPS,
	)
	capsfilter.SetProperty("caps", gst.NewCapsFromString(capsStr))

	encoder, err := gst.NewElement(container.encoderElement())
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", container.encoderElement(), err)
	}
	switch container {
	case ContainerWebM:
		// vp8enc takes bits/s
		encoder.SetProperty("target-bitrate", cfg.BitrateKbps*1000)
		encoder.SetProperty("deadline", int64(1)) // realtime
	default:
		// x264enc takes kbit/s
		encoder.SetProperty("bitrate", uint(cfg.BitrateKbps))
		encoder.SetProperty("key-int-max", uint(cfg.FPS)) // keyframe per second
		encoder.SetProperty("tune", 0x00000004)           // zerolatency
	}

	muxer, err := gst.NewElement(container.muxerElement())
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", container.muxerElement(), err)
	}

	appsink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("failed to create appsink: %w", err)
	}
	// Muxed output must never be dropped - takes are assembled from every
	// buffer, unlike a live preview sink.
	appsink.SetProperty("sync", false)
	appsink.SetProperty("drop", false)

	pipeline.AddMany(
		src,
		converter,
		scaler,
		videorate,
		capsfilter,
		encoder,
		muxer,
		appsink.Element,
	)

	if err := gst.ElementLinkMany(
		src,
		converter,
		scaler,
		videorate,
		capsfilter,
		encoder,
		muxer,
		appsink.Element,
	); err != nil {
		return nil, fmt.Errorf("failed to link pipeline elements: %w", err)
	}

	return &pipelineElements{
		Pipeline:   pipeline,
		AppSink:    appsink,
		Source:     src,
		Encoder:    encoder,
		CapsFilter: capsfilter,
	}, nil
}

// destroyPipeline cleans up GStreamer pipeline resources
//
// Sets pipeline state to NULL and releases the device. Safe to call even if
// the pipeline is already destroyed.
func destroyPipeline(elements *pipelineElements) error {
	if elements == nil || elements.Pipeline == nil {
		return nil
	}
	if err := elements.Pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("failed to set pipeline to NULL: %w", err)
	}
	return nil
}
