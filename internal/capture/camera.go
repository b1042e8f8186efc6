package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// ChunkInterval is how often accumulated muxed output is flushed into a
// chunk while recording. Each flush fires the segment hook once.
const ChunkInterval = time.Second

// openTimeout bounds the PAUSED pre-roll wait when acquiring the device.
const openTimeout = 5 * time.Second

// camState tracks the recorder lifecycle
type camState int

const (
	camClosed camState = iota
	camOpen
	camRecording
	camPaused
)

func (s camState) String() string {
	switch s {
	case camClosed:
		return "closed"
	case camOpen:
		return "open"
	case camRecording:
		return "recording"
	case camPaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Camera is a single-device recorder session built on a GStreamer pipeline.
//
// Lifecycle: NewCamera → Open → (Start → [Pause/Resume]* → Stop)* → Close.
// Open acquires the device and pre-rolls the pipeline so the first Start is
// fast; Stop finishes the take and re-arms the pipeline for the next one.
// Only one recording is active at a time.
//
// All methods are safe for concurrent use.
type Camera struct {
	cfg       Config
	container Container

	mu       sync.Mutex
	state    camState
	elements *pipelineElements

	assembler *chunkAssembler
	onSegment func(seq, size int)

	caps     Capabilities
	capsOnce sync.Once

	// Recording clock, guarded by mu
	recordStarted time.Time
	pausedAt      time.Time
	pausedTotal   time.Duration

	// Statistics (atomic for thread-safety)
	bytesCaptured uint64
	chunkCount    uint64
}

// NewCamera creates a camera recorder with fail-fast validation
//
// Validates configuration at construction time (fail-fast principle):
//   - Device path must not be empty
//   - FPS must be between 1 and 60
//   - Bitrate must be positive
//
// Device and GStreamer availability are checked at Open, not here, so a
// Camera can be constructed before the operator grants the device.
func NewCamera(cfg Config) (*Camera, error) {
	if cfg.Device == "" {
		return nil, fmt.Errorf("capture: device path is required")
	}

	if cfg.FPS < 1 || cfg.FPS > 60 {
		return nil, fmt.Errorf(
			"capture: invalid FPS %d (must be 1-60)",
			cfg.FPS,
		)
	}

	if cfg.BitrateKbps <= 0 {
		return nil, fmt.Errorf(
			"capture: invalid bitrate %d kbps (must be positive)",
			cfg.BitrateKbps,
		)
	}

	width, height := cfg.Resolution.Dimensions()
	slog.Info("capture: camera created",
		"device", cfg.Device,
		"resolution", fmt.Sprintf("%dx%d", width, height),
		"fps", cfg.FPS,
		"bitrate_kbps", cfg.BitrateKbps,
	)

	return &Camera{cfg: cfg, state: camClosed}, nil
}

// SetSegmentHook installs a callback fired once per flushed chunk while
// recording. Must be called before Open. The hook runs on the streaming
// thread and must not block.
func (c *Camera) SetSegmentHook(fn func(seq, size int)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSegment = fn
}

// Open acquires the camera device and pre-rolls the recording pipeline
//
// This method:
//  1. Selects a usable container from the preference list
//  2. Builds the recording pipeline
//  3. Pre-rolls to PAUSED, which is where the device is actually grabbed
//  4. Classifies any acquisition failure into a DeviceError
//
// On failure no resources are held: the pipeline is torn down before the
// error is returned, so a retry is always a clean reacquisition.
//
// Returns ErrAlreadyOpen if the device is already held.
func (c *Camera) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != camClosed {
		return ErrAlreadyOpen
	}

	container, err := SelectContainer(c.cfg.Containers)
	if err != nil {
		return fmt.Errorf("capture: no usable recording container: %w", err)
	}
	c.container = container

	if err := c.armPipelineLocked(ctx); err != nil {
		return err
	}

	c.state = camOpen
	slog.Info("capture: camera open",
		"device", c.cfg.Device,
		"container", c.container.String(),
	)
	return nil
}

// armPipelineLocked builds the pipeline and pre-rolls it to PAUSED.
// Caller must hold c.mu.
func (c *Camera) armPipelineLocked(ctx context.Context) error {
	elements, err := buildPipeline(c.cfg, c.container)
	if err != nil {
		return fmt.Errorf("capture: failed to build pipeline: %w", err)
	}

	c.assembler = newChunkAssembler(
		ChunkInterval,
		&c.bytesCaptured,
		&c.chunkCount,
		c.onSegment,
	)

	assembler := c.assembler
	elements.AppSink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: func(sink *app.Sink) gst.FlowReturn {
			return onNewSample(sink, assembler)
		},
	})

	// PAUSED is where v4l2src actually opens the device
	if err := elements.Pipeline.SetState(gst.StatePaused); err != nil {
		destroyPipeline(elements)
		return &DeviceError{
			Kind: DeviceErrUnknown,
			Err:  fmt.Errorf("failed to pre-roll pipeline: %w", err),
		}
	}

	if err := waitPreroll(ctx, elements.Pipeline); err != nil {
		destroyPipeline(elements)
		return err
	}

	c.elements = elements
	return nil
}

// waitPreroll drains the bus until the pipeline reaches PAUSED or fails.
// Acquisition errors come back classified as DeviceError.
func waitPreroll(ctx context.Context, pipeline *gst.Pipeline) error {
	bus := pipeline.GetPipelineBus()
	deadline := time.Now().Add(openTimeout)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if time.Now().After(deadline) {
			return &DeviceError{
				Kind: DeviceErrUnknown,
				Err:  fmt.Errorf("timed out waiting for device pre-roll"),
			}
		}

		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageError:
			gerr := msg.ParseError()
			kind := ClassifyDeviceError(gerr.Error(), gerr.DebugString())
			slog.Error("capture: device acquisition failed",
				"error", gerr.Error(),
				"debug", gerr.DebugString(),
				"kind", kind.String(),
			)
			return &DeviceError{Kind: kind, Err: fmt.Errorf("%s", gerr.Error())}

		case gst.MessageStateChanged:
			if msg.Source() == pipeline.GetName() {
				_, newState := msg.ParseStateChanged()
				if newState == gst.StatePaused {
					slog.Debug("capture: pipeline pre-rolled")
					return nil
				}
			}
		}
	}
}

// Capabilities probes the device feature set
//
// The probe runs once per camera; subsequent calls return the cached value.
// An absent control is feature degradation, not an error, so this never
// fails once the camera is open.
func (c *Camera) Capabilities() (Capabilities, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == camClosed {
		return Capabilities{}, fmt.Errorf("%w: capabilities require an open camera", ErrInvalidState)
	}

	c.capsOnce.Do(func() {
		c.caps = probeCapabilities(c.elements.Source)
	})
	return c.caps, nil
}

// probeCapabilities checks which optional controls the source element
// exposes. v4l2src surfaces device controls as extra GObject properties, so
// a failed property read means the control does not exist.
func probeCapabilities(source *gst.Element) Capabilities {
	caps := Capabilities{}

	if _, err := source.GetProperty("zoom"); err == nil {
		caps.zoom = &Range{Min: 1.0, Max: 10.0, Step: 0.1}
	}
	if _, err := source.GetProperty("exposure-compensation"); err == nil {
		caps.exposure = &Range{Min: -2.0, Max: 2.0, Step: 0.5}
	}
	if _, err := source.GetProperty("torch"); err == nil {
		caps.torch = true
	}

	slog.Debug("capture: capabilities probed",
		"zoom", caps.zoom != nil,
		"exposure", caps.exposure != nil,
		"torch", caps.torch,
	)
	return caps
}

// Start begins recording a take
//
// Moves the pre-rolled pipeline to PLAYING; muxed output accumulates in
// ~1s chunks until Stop. Returns ErrInvalidState unless the camera is open
// and idle.
func (c *Camera) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != camOpen {
		return fmt.Errorf("%w: cannot start in state %s", ErrInvalidState, c.state)
	}

	if err := c.elements.Pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("capture: failed to start pipeline: %w", err)
	}

	c.state = camRecording
	c.recordStarted = time.Now()
	c.pausedTotal = 0

	slog.Info("capture: recording started",
		"device", c.cfg.Device,
		"container", c.container.String(),
	)
	return nil
}

// Pause suspends the active recording. Paused time is excluded from the
// take duration.
func (c *Camera) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != camRecording {
		return fmt.Errorf("%w: cannot pause in state %s", ErrInvalidState, c.state)
	}

	if err := c.elements.Pipeline.SetState(gst.StatePaused); err != nil {
		return fmt.Errorf("capture: failed to pause pipeline: %w", err)
	}

	c.state = camPaused
	c.pausedAt = time.Now()
	slog.Debug("capture: recording paused")
	return nil
}

// Resume continues a paused recording
func (c *Camera) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != camPaused {
		return fmt.Errorf("%w: cannot resume in state %s", ErrInvalidState, c.state)
	}

	if err := c.elements.Pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("capture: failed to resume pipeline: %w", err)
	}

	c.pausedTotal += time.Since(c.pausedAt)
	c.state = camRecording
	slog.Debug("capture: recording resumed", "paused_total", c.pausedTotal)
	return nil
}

// Stop finishes the active take and returns the recording
//
// This method:
//  1. Sends EOS so the muxer finalizes the container
//  2. Drains the bus until EOS is confirmed (bounded wait)
//  3. Collects the accumulated chunks into one Recording
//  4. Re-arms a fresh pipeline so the camera stays open for the next take
//
// Returns ErrEmptyRecording when zero bytes were captured; the camera is
// still re-armed in that case.
func (c *Camera) Stop() (Recording, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != camRecording && c.state != camPaused {
		return Recording{}, fmt.Errorf("%w: cannot stop in state %s", ErrInvalidState, c.state)
	}

	if c.state == camPaused {
		c.pausedTotal += time.Since(c.pausedAt)
	}
	duration := time.Since(c.recordStarted) - c.pausedTotal

	// EOS lets the muxer write its trailer before teardown
	c.elements.Pipeline.SendEvent(gst.NewEOSEvent())
	c.drainEOSLocked()

	data := c.assembler.drain()

	if err := destroyPipeline(c.elements); err != nil {
		slog.Error("capture: failed to destroy pipeline", "error", err)
	}
	c.elements = nil

	// Re-arm so the next take does not pay acquisition latency. Losing the
	// device here degrades to closed; the controller reopens on retry.
	if err := c.armPipelineLocked(context.Background()); err != nil {
		slog.Warn("capture: failed to re-arm pipeline after stop", "error", err)
		c.state = camClosed
	} else {
		c.state = camOpen
	}

	slog.Info("capture: recording stopped",
		"duration", duration,
		"size_bytes", len(data),
		"chunks", atomic.LoadUint64(&c.chunkCount),
	)

	if len(data) == 0 {
		return Recording{}, ErrEmptyRecording
	}

	return Recording{
		Data:      data,
		Container: c.container.MIME(),
		Duration:  duration,
	}, nil
}

// drainEOSLocked waits for the muxer to confirm EOS. Caller must hold c.mu.
func (c *Camera) drainEOSLocked() {
	bus := c.elements.Pipeline.GetPipelineBus()
	deadline := time.Now().Add(2 * time.Second)

	for time.Now().Before(deadline) {
		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}
		switch msg.Type() {
		case gst.MessageEOS:
			slog.Debug("capture: EOS confirmed, container finalized")
			return
		case gst.MessageError:
			gerr := msg.ParseError()
			slog.Warn("capture: pipeline error during EOS drain",
				"error", gerr.Error(),
			)
			return
		}
	}
	slog.Warn("capture: EOS drain timed out, container trailer may be incomplete")
}

// SetZoom applies a zoom level if the device supports it. Unsupported or
// rejected values degrade to a log line, never an error to the caller.
func (c *Camera) SetZoom(level float64) {
	c.applyControl("zoom", level)
}

// SetExposure applies exposure compensation if the device supports it
func (c *Camera) SetExposure(ev float64) {
	c.applyControl("exposure-compensation", ev)
}

func (c *Camera) applyControl(name string, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == camClosed || c.elements == nil {
		slog.Debug("capture: control ignored, camera closed", "control", name)
		return
	}

	if err := c.elements.Source.SetProperty(name, value); err != nil {
		slog.Debug("capture: control not supported",
			"control", name,
			"value", value,
			"error", err,
		)
		return
	}
	slog.Debug("capture: control applied", "control", name, "value", value)
}

// Close releases the device and all pipeline resources
//
// Idempotent - safe to call multiple times, including on a camera that was
// never opened.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == camClosed {
		slog.Debug("capture: camera not open, nothing to close")
		return nil
	}

	if c.state == camRecording || c.state == camPaused {
		slog.Warn("capture: closing camera with active recording, take discarded")
	}

	if c.elements != nil {
		if err := destroyPipeline(c.elements); err != nil {
			slog.Error("capture: failed to destroy pipeline", "error", err)
		}
		c.elements = nil
	}
	if c.assembler != nil {
		c.assembler.drain()
		c.assembler = nil
	}

	c.state = camClosed
	slog.Info("capture: camera closed",
		"device", c.cfg.Device,
		"bytes_captured", atomic.LoadUint64(&c.bytesCaptured),
	)
	return nil
}

// Container returns the container selected at Open time
func (c *Camera) Container() Container {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.container
}

// Stats returns current recorder statistics
//
// Thread-safe - uses atomic operations for counters.
func (c *Camera) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	recording := c.state == camRecording || c.state == camPaused

	var elapsed time.Duration
	if recording {
		elapsed = time.Since(c.recordStarted) - c.pausedTotal
		if c.state == camPaused {
			elapsed -= time.Since(c.pausedAt)
		}
	}

	return Stats{
		ChunksFlushed: atomic.LoadUint64(&c.chunkCount),
		BytesEncoded:  atomic.LoadUint64(&c.bytesCaptured),
		Recording:     recording,
		Elapsed:       elapsed,
	}
}
