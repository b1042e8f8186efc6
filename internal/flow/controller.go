// Package flow implements the guided capture state machine: tutorial,
// record, validate, retry-or-advance, merge, preview, across a fixed
// ordered list of angles.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Sandy7272/capture-3d/internal/capture"
	"github.com/Sandy7272/capture-3d/internal/session"
	"github.com/Sandy7272/capture-3d/internal/tutorial"
	"github.com/Sandy7272/capture-3d/internal/validate"
)

// Deck names used for "don't show again" preferences
const (
	DeckPrep = "prep"
)

// AngleDeckName returns the preference key for an angle's tutorial deck
func AngleDeckName(angle session.Angle) string {
	return "angle:" + angle.String()
}

// ErrInvalidTransition is returned when an operator action does not apply
// to the current state
var ErrInvalidTransition = errors.New("flow: action not valid in current state")

// Recorder is the camera session the controller drives. At most one
// recorder is open at any time; *capture.Camera satisfies this.
type Recorder interface {
	Open(ctx context.Context) error
	Start() error
	Stop() (capture.Recording, error)
	Close() error
}

// Merger concatenates accepted takes; *merge.Service satisfies this.
type Merger interface {
	Merge(ctx context.Context, takes []session.Take) (session.MergedArtifact, error)
}

// TutorialRunner plays an instruction deck to completion;
// *tutorial.Sequencer satisfies this.
type TutorialRunner interface {
	Run(ctx context.Context, name string, units []tutorial.Unit) error
}

// TutorialSkipper is implemented by runners whose decks can be skipped
// once the dwell unlock has elapsed; *tutorial.Sequencer satisfies this.
type TutorialSkipper interface {
	Skip() bool
}

// TutorialMuter is implemented by runners with narration that can be
// silenced mid-deck; *tutorial.Sequencer satisfies this.
type TutorialMuter interface {
	Mute()
}

// RecorderPauser is implemented by recorders that can suspend an active
// take; *capture.Camera satisfies this.
type RecorderPauser interface {
	Pause() error
	Resume() error
}

// StatsProvider is implemented by recorders that keep live capture
// counters; *capture.Camera satisfies this.
type StatsProvider interface {
	Stats() capture.Stats
}

// CameraControls is the device control surface some recorders expose;
// *capture.Camera satisfies this. Controls are best-effort.
type CameraControls interface {
	Capabilities() (capture.Capabilities, error)
	SetZoom(level float64)
	SetExposure(ev float64)
}

// Options configure a Controller
type Options struct {
	Recorder Recorder
	Merger   Merger
	Tutorial TutorialRunner

	// AngleCount is how many angles the session records (3 or 4)
	AngleCount int
	// RecordDuration is the per-angle auto-stop boundary
	RecordDuration time.Duration
	// SegmentInterval is the spacing of mid-recording segment signals
	SegmentInterval time.Duration
	// MinTakeDuration is the validation hard gate
	MinTakeDuration time.Duration

	// Validate overrides the take validator; tests only
	Validate func(session.Take, time.Duration) validate.Report
}

// Controller is the top-level capture state machine
//
// Operator actions (Begin, StopRecording, RetryDevice, RetakeAngle,
// ConfirmMerge, RetakeAll, Confirm) are safe for concurrent use and fail
// with ErrInvalidTransition when they do not apply to the current state.
// State changes and mid-flight signals are reported on Events.
type Controller struct {
	opts Options

	mu    sync.Mutex
	state State
	sess  *session.CaptureSession

	// gen invalidates in-flight timers and background goroutines whenever
	// the state they were armed for is exited
	gen int

	autoStop  *time.Timer
	segTicker *time.Ticker

	// pause bookkeeping: the auto-stop boundary stops counting while a
	// take is suspended
	paused       bool
	autoStopLeft time.Duration
	autoStopFrom time.Time
	segment      int

	prepShown bool
	artifact  *session.MergedArtifact
	deviceErr *capture.DeviceError

	ctx    context.Context
	cancel context.CancelFunc
	events chan Event
}

// New creates a controller with fail-fast option validation
func New(opts Options) (*Controller, error) {
	if opts.Recorder == nil {
		return nil, fmt.Errorf("flow: recorder is required")
	}
	if opts.Merger == nil {
		return nil, fmt.Errorf("flow: merger is required")
	}
	if opts.Tutorial == nil {
		return nil, fmt.Errorf("flow: tutorial runner is required")
	}
	if opts.AngleCount == 0 {
		opts.AngleCount = 3
	}
	if opts.RecordDuration <= 0 {
		opts.RecordDuration = 30 * time.Second
	}
	if opts.SegmentInterval <= 0 {
		opts.SegmentInterval = 10 * time.Second
	}
	if opts.MinTakeDuration <= 0 {
		opts.MinTakeDuration = 3 * time.Second
	}
	if opts.Validate == nil {
		opts.Validate = validate.Check
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		opts:   opts,
		state:  StateLanding,
		sess:   session.New(session.Angles(opts.AngleCount)),
		ctx:    ctx,
		cancel: cancel,
		events: make(chan Event, 16),
	}

	slog.Info("flow: controller created",
		"angles", opts.AngleCount,
		"record_duration", opts.RecordDuration,
		"segment_interval", opts.SegmentInterval,
		"min_take_duration", opts.MinTakeDuration,
	)
	return c, nil
}

// Events returns the controller's event stream
func (c *Controller) Events() <-chan Event {
	return c.events
}

// State returns the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentAngle returns the angle the cursor points at
func (c *Controller) CurrentAngle() session.Angle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.Current()
}

// AcceptedTakes returns the accepted takes in angle order
func (c *Controller) AcceptedTakes() []session.Take {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.AcceptedTakes()
}

// Artifact returns the merged artifact, nil before a successful merge
func (c *Controller) Artifact() *session.MergedArtifact {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.artifact
}

// DeviceError returns the failure shown on the device-error screen
func (c *Controller) DeviceError() *capture.DeviceError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deviceErr
}

// Begin starts a capture run from the landing screen
func (c *Controller) Begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateLanding {
		return fmt.Errorf("%w: Begin from %s", ErrInvalidTransition, c.state)
	}
	c.enterTutorialLocked(c.sess.Current())
	return nil
}

// StopRecording finishes the active take before the auto-stop boundary
func (c *Controller) StopRecording() error {
	c.mu.Lock()
	if c.state != StateRecording {
		c.mu.Unlock()
		return fmt.Errorf("%w: StopRecording from %s", ErrInvalidTransition, c.state)
	}
	gen := c.gen
	c.mu.Unlock()

	c.finishTake(gen)
	return nil
}

// RetryDevice retries camera acquisition from the device-error screen.
// Retry is always an explicit operator action, never automatic.
func (c *Controller) RetryDevice() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateDeviceError {
		return fmt.Errorf("%w: RetryDevice from %s", ErrInvalidTransition, c.state)
	}
	c.deviceErr = nil
	c.enterRecordingLocked(c.sess.Current())
	return nil
}

// SkipTutorial requests a skip of the currently playing deck. It reports
// whether the skip was accepted; decks lock skipping for an initial dwell
// and runners without skip support always refuse.
func (c *Controller) SkipTutorial() bool {
	c.mu.Lock()
	if c.state != StateTutorial {
		c.mu.Unlock()
		return false
	}
	c.mu.Unlock()

	s, ok := c.opts.Tutorial.(TutorialSkipper)
	if !ok {
		return false
	}
	return s.Skip()
}

// PauseRecording suspends the active take. The auto-stop boundary stops
// counting until ResumeRecording; recorders without pause support refuse.
func (c *Controller) PauseRecording() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRecording || c.paused {
		return fmt.Errorf("%w: PauseRecording from %s", ErrInvalidTransition, c.state)
	}
	p, ok := c.opts.Recorder.(RecorderPauser)
	if !ok {
		return fmt.Errorf("%w: recorder cannot pause", ErrInvalidTransition)
	}
	if err := p.Pause(); err != nil {
		return err
	}

	if c.autoStop != nil {
		c.autoStop.Stop()
		c.autoStop = nil
	}
	if c.segTicker != nil {
		c.segTicker.Stop()
		c.segTicker = nil
	}
	c.autoStopLeft -= time.Since(c.autoStopFrom)
	if c.autoStopLeft < 0 {
		c.autoStopLeft = 0
	}
	c.paused = true

	angle := c.sess.Current()
	c.emit(Event{Kind: EventPaused, State: StateRecording, Angle: angle, Attempt: c.sess.Attempt(angle)})
	slog.Info("flow: recording paused", "angle", angle.String(), "remaining", c.autoStopLeft)
	return nil
}

// ResumeRecording continues a paused take with the remaining auto-stop
// budget.
func (c *Controller) ResumeRecording() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRecording || !c.paused {
		return fmt.Errorf("%w: ResumeRecording from %s", ErrInvalidTransition, c.state)
	}
	p := c.opts.Recorder.(RecorderPauser)
	if err := p.Resume(); err != nil {
		return err
	}

	c.paused = false
	angle := c.sess.Current()
	attempt := c.sess.Attempt(angle)
	remaining := c.autoStopLeft
	if remaining <= 0 {
		remaining = time.Millisecond
	}
	c.armRecordingTimersLocked(angle, attempt, remaining)

	c.emit(Event{Kind: EventResumed, State: StateRecording, Angle: angle, Attempt: attempt})
	slog.Info("flow: recording resumed", "angle", angle.String(), "remaining", remaining)
	return nil
}

// MuteTutorial silences the current deck's narration; decks keep
// advancing on their own timers.
func (c *Controller) MuteTutorial() {
	if m, ok := c.opts.Tutorial.(TutorialMuter); ok {
		m.Mute()
	}
}

// Controls returns the recorder's device control surface, if it has one
func (c *Controller) Controls() (CameraControls, bool) {
	ctl, ok := c.opts.Recorder.(CameraControls)
	return ctl, ok
}

// RecorderStats reports live capture counters, if the recorder keeps them
func (c *Controller) RecorderStats() (capture.Stats, bool) {
	s, ok := c.opts.Recorder.(StatsProvider)
	if !ok {
		return capture.Stats{}, false
	}
	return s.Stats(), true
}

// RetakeAngle discards one accepted take from review and re-records that
// angle. Other angles keep their accepted takes.
func (c *Controller) RetakeAngle(angle session.Angle) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateReviewing {
		return fmt.Errorf("%w: RetakeAngle from %s", ErrInvalidTransition, c.state)
	}
	if err := c.sess.Retake(angle); err != nil {
		return err
	}
	c.enterTutorialLocked(angle)
	return nil
}

// ConfirmMerge commits the accepted takes to the merge service
func (c *Controller) ConfirmMerge() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateReviewing {
		return fmt.Errorf("%w: ConfirmMerge from %s", ErrInvalidTransition, c.state)
	}
	if !c.sess.AllAccepted() {
		return fmt.Errorf("flow: not all angles have an accepted take")
	}

	c.setStateLocked(StateMerging)
	takes := c.sess.AcceptedTakes()
	gen := c.gen

	go func() {
		artifact, err := c.opts.Merger.Merge(c.ctx, takes)

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.state != StateMerging || c.gen != gen {
			return
		}

		if err != nil {
			slog.Error("flow: merge failed, returning to review", "error", err)
			c.setStateLocked(StateReviewing)
			c.emit(Event{Kind: EventMergeFailed, State: StateReviewing, Err: err})
			return
		}

		c.artifact = &artifact
		c.setStateLocked(StatePreview)
	}()
	return nil
}

// RetakeAll discards everything and returns to the landing screen
func (c *Controller) RetakeAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StatePreview && c.state != StateReviewing {
		return fmt.Errorf("%w: RetakeAll from %s", ErrInvalidTransition, c.state)
	}

	c.artifact = nil
	c.sess.Reset()
	c.prepShown = false
	c.setStateLocked(StateLanding)
	return nil
}

// Confirm accepts the merged artifact and ends the run
func (c *Controller) Confirm() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StatePreview {
		return fmt.Errorf("%w: Confirm from %s", ErrInvalidTransition, c.state)
	}
	c.setStateLocked(StateDone)
	return nil
}

// Shutdown releases every resource the controller holds. The camera is
// closed on every path, including mid-recording.
func (c *Controller) Shutdown() error {
	c.mu.Lock()
	c.disarmTimersLocked()
	c.cancel()
	c.mu.Unlock()

	if err := c.opts.Recorder.Close(); err != nil {
		return fmt.Errorf("flow: close recorder: %w", err)
	}
	slog.Info("flow: controller shut down")
	return nil
}

// enterTutorialLocked transitions to the tutorial for an angle. The camera
// is released first: tutorials never need device access.
func (c *Controller) enterTutorialLocked(angle session.Angle) {
	c.disarmTimersLocked()
	if err := c.opts.Recorder.Close(); err != nil {
		slog.Warn("flow: failed to close recorder before tutorial", "error", err)
	}

	c.setStateLocked(StateTutorial)
	gen := c.gen
	showPrep := !c.prepShown
	c.prepShown = true

	go func() {
		if showPrep {
			if err := c.opts.Tutorial.Run(c.ctx, DeckPrep, tutorial.PrepDeck()); err != nil {
				slog.Debug("flow: prep deck interrupted", "error", err)
				return
			}
		}
		if err := c.opts.Tutorial.Run(c.ctx, AngleDeckName(angle), tutorial.AngleDeck(angle)); err != nil {
			slog.Debug("flow: angle deck interrupted", "error", err)
			return
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.state != StateTutorial || c.gen != gen {
			return
		}
		c.enterRecordingLocked(angle)
	}()
}

// enterRecordingLocked acquires the camera and starts a take. Caller must
// hold c.mu.
func (c *Controller) enterRecordingLocked(angle session.Angle) {
	c.disarmTimersLocked()

	if err := c.opts.Recorder.Open(c.ctx); err != nil && !errors.Is(err, capture.ErrAlreadyOpen) {
		c.routeDeviceErrorLocked(err)
		return
	}
	if err := c.opts.Recorder.Start(); err != nil {
		if closeErr := c.opts.Recorder.Close(); closeErr != nil {
			slog.Warn("flow: failed to close recorder after start failure", "error", closeErr)
		}
		c.routeDeviceErrorLocked(err)
		return
	}

	// The attempt counter moves exactly once per visit to Recording;
	// everything downstream reads the stamped value.
	attempt := c.sess.NextAttempt(angle)
	c.paused = false
	c.segment = 0
	c.setStateLocked(StateRecording)
	c.armRecordingTimersLocked(angle, attempt, c.opts.RecordDuration)

	slog.Info("flow: recording started",
		"angle", angle.String(),
		"attempt", attempt,
	)
}

// armRecordingTimersLocked starts the auto-stop timer and the segment
// ticker. Exactly one of each exists per stretch of active recording;
// both die with the current generation. Caller must hold c.mu.
func (c *Controller) armRecordingTimersLocked(angle session.Angle, attempt int, remaining time.Duration) {
	gen := c.gen
	c.autoStopFrom = time.Now()
	c.autoStopLeft = remaining
	c.autoStop = time.AfterFunc(remaining, func() {
		c.finishTake(gen)
	})

	c.segTicker = time.NewTicker(c.opts.SegmentInterval)
	ticker := c.segTicker
	go func() {
		for range ticker.C {
			c.mu.Lock()
			if c.state != StateRecording || c.gen != gen || c.paused {
				c.mu.Unlock()
				return
			}
			c.segment++
			c.emit(Event{
				Kind:    EventSegment,
				State:   StateRecording,
				Angle:   angle,
				Attempt: attempt,
				Segment: c.segment,
			})
			c.mu.Unlock()
		}
	}()
}

// finishTake stops the recorder and applies the validation verdict. The
// generation check guarantees a stale auto-stop after the state has moved
// on can never produce a second stop or a duplicate validation.
func (c *Controller) finishTake(gen int) {
	c.mu.Lock()
	if c.state != StateRecording || c.gen != gen {
		c.mu.Unlock()
		return
	}
	angle := c.sess.Current()
	attempt := c.sess.Attempt(angle)
	c.disarmTimersLocked()
	c.setStateLocked(StateValidating)
	c.mu.Unlock()

	rec, err := c.opts.Recorder.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateValidating {
		return
	}

	if err != nil {
		if errors.Is(err, capture.ErrEmptyRecording) {
			c.rejectLocked(angle, session.NewTake(angle, nil, "", 0, attempt),
				[]string{"recording produced no data"})
			return
		}
		c.routeDeviceErrorLocked(err)
		return
	}

	take := session.NewTake(angle, rec.Data, rec.Container, rec.Duration, attempt)
	report := c.opts.Validate(take, c.opts.MinTakeDuration)
	if !report.OK {
		c.rejectLocked(angle, take, report.Errors)
		return
	}

	c.sess.Accept(take)
	slog.Info("flow: take accepted",
		"angle", angle.String(),
		"attempt", attempt,
		"duration", take.Duration,
		"warnings", report.Warnings,
	)

	if c.sess.AllAccepted() {
		c.disarmTimersLocked()
		if err := c.opts.Recorder.Close(); err != nil {
			slog.Warn("flow: failed to close recorder entering review", "error", err)
		}
		c.setStateLocked(StateReviewing)
		return
	}

	c.sess.SeekFirstMissing()
	c.enterTutorialLocked(c.sess.Current())
}

// rejectLocked records a failed validation and re-enters Recording for the
// same angle with the attempt counter incremented. Always recoverable,
// never fatal; other accepted angles are untouched.
func (c *Controller) rejectLocked(angle session.Angle, take session.Take, reasons []string) {
	c.sess.Reject(take, reasons)
	slog.Info("flow: take rejected",
		"angle", angle.String(),
		"attempt", take.Attempt,
		"reasons", reasons,
	)
	c.emit(Event{
		Kind:    EventValidationFailed,
		State:   StateValidating,
		Angle:   angle,
		Attempt: take.Attempt,
		Reasons: reasons,
	})
	c.enterRecordingLocked(angle)
}

// routeDeviceErrorLocked moves to the recoverable device-error screen
func (c *Controller) routeDeviceErrorLocked(err error) {
	de, ok := capture.AsDeviceError(err)
	if !ok {
		de = &capture.DeviceError{Kind: capture.DeviceErrUnknown, Err: err}
	}
	c.deviceErr = de
	c.disarmTimersLocked()
	c.setStateLocked(StateDeviceError)
	c.emit(Event{Kind: EventDeviceError, State: StateDeviceError, Device: de})
}

// disarmTimersLocked kills the auto-stop timer, the segment ticker and any
// generation-scoped goroutines. Called on every transition exit.
func (c *Controller) disarmTimersLocked() {
	c.gen++
	c.paused = false
	if c.autoStop != nil {
		c.autoStop.Stop()
		c.autoStop = nil
	}
	if c.segTicker != nil {
		c.segTicker.Stop()
		c.segTicker = nil
	}
}

// setStateLocked records a transition and notifies the UI
func (c *Controller) setStateLocked(next State) {
	prev := c.state
	c.state = next
	slog.Debug("flow: state changed", "from", prev.String(), "to", next.String())

	angle := c.sess.Current()
	c.emit(Event{
		Kind:    EventState,
		State:   next,
		Angle:   angle,
		Attempt: c.sess.Attempt(angle),
	})
}

// emit sends without blocking; a full channel drops the event
func (c *Controller) emit(e Event) {
	select {
	case c.events <- e:
	default:
		slog.Debug("flow: event dropped, channel full", "kind", e.Kind, "state", e.State.String())
	}
}
