// Package ui is the terminal front-end for the guided capture flow. It
// renders one screen per controller state and translates key presses into
// operator actions; all flow decisions stay in the controller.
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Sandy7272/capture-3d/internal/capture"
	"github.com/Sandy7272/capture-3d/internal/export"
	"github.com/Sandy7272/capture-3d/internal/flow"
	"github.com/Sandy7272/capture-3d/internal/session"
)

// flowEventMsg wraps a controller event for the update loop
type flowEventMsg flow.Event

// savedMsg reports a completed export
type savedMsg struct {
	path string
	err  error
}

// tickMsg drives the recording elapsed readout
type tickMsg time.Time

// Model is the root bubbletea model
type Model struct {
	ctrl      *flow.Controller
	exportDir string

	state   flow.State
	angle   session.Angle
	attempt int
	segment int
	paused  bool

	recordingFor   time.Duration
	recordDuration time.Duration
	bytesCaptured  uint64

	zoom        float64
	exposure    float64
	controlsSet bool

	reasons   []string
	deviceErr *capture.DeviceError
	mergeErr  error
	savedPath string
	saveErr   error

	width  int
	height int
}

// New creates the root model
func New(ctrl *flow.Controller, recordDuration time.Duration, exportDir string) Model {
	return Model{
		ctrl:           ctrl,
		exportDir:      exportDir,
		state:          ctrl.State(),
		recordDuration: recordDuration,
	}
}

// Init starts listening for controller events
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.listen(), tick())
}

func (m Model) listen() tea.Cmd {
	events := m.ctrl.Events()
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return nil
		}
		return flowEventMsg(e)
	}
}

func tick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		if m.state == flow.StateRecording {
			if !m.paused {
				m.recordingFor += 250 * time.Millisecond
			}
			if stats, ok := m.ctrl.RecorderStats(); ok {
				m.bytesCaptured = stats.BytesEncoded
			}
		}
		return m, tick()

	case flowEventMsg:
		return m.applyEvent(flow.Event(msg)), m.listen()

	case savedMsg:
		m.savedPath = msg.path
		m.saveErr = msg.err
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) applyEvent(e flow.Event) Model {
	switch e.Kind {
	case flow.EventState:
		m.state = e.State
		m.angle = e.Angle
		m.attempt = e.Attempt
		if e.State == flow.StateRecording {
			m.recordingFor = 0
			m.segment = 0
			m.reasons = nil
			m.paused = false
			m.bytesCaptured = 0
		}
		if e.State != flow.StateDeviceError {
			m.deviceErr = nil
		}
		if e.State != flow.StateReviewing {
			m.mergeErr = nil
		}
	case flow.EventSegment:
		m.segment = e.Segment
	case flow.EventValidationFailed:
		m.reasons = e.Reasons
	case flow.EventMergeFailed:
		m.state = flow.StateReviewing
		m.mergeErr = e.Err
	case flow.EventDeviceError:
		m.state = flow.StateDeviceError
		m.deviceErr = e.Device
	case flow.EventPaused:
		m.paused = true
	case flow.EventResumed:
		m.paused = false
	}
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.ctrl.Shutdown()
		return m, tea.Quit
	}

	switch m.state {
	case flow.StateLanding:
		if msg.String() == "enter" || msg.String() == " " {
			m.ctrl.Begin()
		}

	case flow.StateTutorial:
		switch msg.String() {
		case "s":
			m.ctrl.SkipTutorial()
		case "m":
			m.ctrl.MuteTutorial()
		}

	case flow.StateRecording:
		switch msg.String() {
		case "s":
			m.ctrl.StopRecording()
		case "p":
			if m.paused {
				m.ctrl.ResumeRecording()
			} else {
				m.ctrl.PauseRecording()
			}
		case "+", "=":
			m.adjustZoom(1)
		case "-":
			m.adjustZoom(-1)
		case "]":
			m.adjustExposure(1)
		case "[":
			m.adjustExposure(-1)
		}

	case flow.StateDeviceError:
		if msg.String() == "r" {
			m.ctrl.RetryDevice()
		}

	case flow.StateReviewing:
		switch msg.String() {
		case "m", "enter":
			m.ctrl.ConfirmMerge()
		case "1", "2", "3", "4":
			idx := int(msg.String()[0] - '1')
			takes := m.ctrl.AcceptedTakes()
			if idx < len(takes) {
				m.ctrl.RetakeAngle(takes[idx].Angle)
			}
		}

	case flow.StatePreview:
		switch msg.String() {
		case "s":
			return m, m.saveCmd()
		case "r":
			m.savedPath = ""
			m.saveErr = nil
			m.ctrl.RetakeAll()
		case "enter":
			m.ctrl.Confirm()
			return m, tea.Quit
		}
	}
	return m, nil
}

// adjustZoom nudges the camera zoom by one control step, clamped to the
// device range. Devices without zoom make this a no-op.
func (m *Model) adjustZoom(direction float64) {
	ctl, ok := m.ctrl.Controls()
	if !ok {
		return
	}
	caps, err := ctl.Capabilities()
	if err != nil {
		return
	}
	r, ok := caps.Zoom()
	if !ok {
		return
	}
	if !m.controlsSet {
		m.zoom = r.Min
		m.controlsSet = true
	}
	m.zoom = clamp(m.zoom+direction*controlStep(r), r.Min, r.Max)
	ctl.SetZoom(m.zoom)
}

// adjustExposure nudges exposure compensation by one control step
func (m *Model) adjustExposure(direction float64) {
	ctl, ok := m.ctrl.Controls()
	if !ok {
		return
	}
	caps, err := ctl.Capabilities()
	if err != nil {
		return
	}
	r, ok := caps.Exposure()
	if !ok {
		return
	}
	m.exposure = clamp(m.exposure+direction*controlStep(r), r.Min, r.Max)
	ctl.SetExposure(m.exposure)
}

func formatBytes(n uint64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.0f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func controlStep(r capture.Range) float64 {
	if r.Step > 0 {
		return r.Step
	}
	return (r.Max - r.Min) / 10
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (m Model) saveCmd() tea.Cmd {
	artifact := m.ctrl.Artifact()
	dir := m.exportDir
	return func() tea.Msg {
		if artifact == nil {
			return savedMsg{err: fmt.Errorf("nothing to save")}
		}
		path, err := export.Save(*artifact, dir)
		return savedMsg{path: path, err: err}
	}
}

// View renders the screen for the current state
func (m Model) View() string {
	var b strings.Builder

	switch m.state {
	case flow.StateLanding:
		b.WriteString(TitleStyle.Render("3D Capture"))
		b.WriteString("\n\n")
		b.WriteString(InstructionStyle.Render("Record your object from every angle to build a 3D scan."))
		b.WriteString("\n\n")
		b.WriteString(HintStyle.Render("enter: start  q: quit"))

	case flow.StateTutorial:
		b.WriteString(TitleStyle.Render("Get ready: " + m.angle.Label()))
		b.WriteString("\n\n")
		b.WriteString(InstructionStyle.Render(m.angle.Instruction()))
		b.WriteString("\n\n")
		b.WriteString(HintStyle.Render("s: skip tutorial  m: mute  q: quit"))

	case flow.StateRecording:
		if m.paused {
			b.WriteString(WarnStyle.Render("‖ PAUSED"))
		} else {
			b.WriteString(RecordingDotStyle.Render("● REC"))
		}
		b.WriteString("  ")
		b.WriteString(TitleStyle.Render(m.angle.Label()))
		if m.attempt > 1 {
			b.WriteString(WarnStyle.Render(fmt.Sprintf("  take %d", m.attempt)))
		}
		b.WriteString("\n\n")
		b.WriteString(InstructionStyle.Render(m.angle.Instruction()))
		b.WriteString("\n\n")
		b.WriteString(ProgressStyle.Render(m.progressBar()))
		if m.segment > 0 {
			b.WriteString(HintStyle.Render(fmt.Sprintf("  segment %d", m.segment)))
		}
		if m.bytesCaptured > 0 {
			b.WriteString(HintStyle.Render("  " + formatBytes(m.bytesCaptured)))
		}
		b.WriteString("\n\n")
		if m.paused {
			b.WriteString(HintStyle.Render("p: resume  s: stop early  q: quit"))
		} else {
			b.WriteString(HintStyle.Render("s: stop early  p: pause  +/-: zoom  [/]: exposure  q: quit"))
		}

	case flow.StateValidating:
		b.WriteString(TitleStyle.Render("Checking your take..."))
		if len(m.reasons) > 0 {
			b.WriteString("\n\n")
			b.WriteString(ErrorStyle.Render("Last take rejected:"))
			for _, r := range m.reasons {
				b.WriteString("\n  " + WarnStyle.Render("• "+r))
			}
		}

	case flow.StateReviewing:
		b.WriteString(TitleStyle.Render("Review your takes"))
		b.WriteString("\n\n")
		for i, t := range m.ctrl.AcceptedTakes() {
			line := fmt.Sprintf("%d. %s  %s  %.1fs",
				i+1, AcceptedStyle.Render("✓"), t.Angle.Label(), t.Duration.Seconds())
			b.WriteString(line + "\n")
		}
		if m.mergeErr != nil {
			b.WriteString("\n")
			b.WriteString(ErrorStyle.Render("Merge failed: " + m.mergeErr.Error()))
			b.WriteString("\n")
			b.WriteString(HintStyle.Render("Your takes are safe; try merging again."))
		}
		b.WriteString("\n")
		b.WriteString(HintStyle.Render("1-4: retake angle  m: merge  q: quit"))

	case flow.StateMerging:
		b.WriteString(TitleStyle.Render("Building your scan..."))
		b.WriteString("\n\n")
		b.WriteString(InstructionStyle.Render("Stitching the angles together. This can take a moment."))

	case flow.StatePreview:
		b.WriteString(TitleStyle.Render("Your scan is ready"))
		if artifact := m.ctrl.Artifact(); artifact != nil {
			b.WriteString("\n\n")
			b.WriteString(InstructionStyle.Render(fmt.Sprintf(
				"%s  %.1fs  %.1f MB",
				artifact.ContentType,
				artifact.Duration.Seconds(),
				float64(len(artifact.Data))/(1024*1024),
			)))
		}
		if m.savedPath != "" {
			b.WriteString("\n")
			b.WriteString(AcceptedStyle.Render("Saved to " + m.savedPath))
		}
		if m.saveErr != nil {
			b.WriteString("\n")
			b.WriteString(ErrorStyle.Render("Save failed: " + m.saveErr.Error()))
		}
		b.WriteString("\n\n")
		b.WriteString(HintStyle.Render("s: save  r: retake all  enter: finish"))

	case flow.StateDeviceError:
		b.WriteString(ErrorStyle.Render("Camera unavailable"))
		b.WriteString("\n\n")
		b.WriteString(InstructionStyle.Render(deviceErrorInstruction(m.deviceErr)))
		b.WriteString("\n\n")
		b.WriteString(HintStyle.Render("r: retry  q: quit"))

	case flow.StateDone:
		b.WriteString(AcceptedStyle.Render("Capture complete."))
	}

	return ScreenStyle.Render(b.String())
}

func (m Model) progressBar() string {
	if m.recordDuration <= 0 {
		return ""
	}
	const width = 30
	frac := float64(m.recordingFor) / float64(m.recordDuration)
	if frac > 1 {
		frac = 1
	}
	filled := int(frac * width)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("%s %2.0fs", bar, m.recordingFor.Seconds())
}

// deviceErrorInstruction maps a classified failure to the recovery step
// shown to the operator
func deviceErrorInstruction(de *capture.DeviceError) string {
	if de == nil {
		return "Something went wrong with the camera. Try again."
	}
	switch de.Kind {
	case capture.DeviceErrDenied:
		return "Camera access was denied. Grant camera permission to this application and retry."
	case capture.DeviceErrInUse:
		return "Another application is using the camera. Close it and retry."
	case capture.DeviceErrNotFound:
		return "No camera was found. Connect a camera and retry."
	default:
		return "Something went wrong with the camera. Try again."
	}
}
