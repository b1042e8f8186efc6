package flow

import (
	"github.com/Sandy7272/capture-3d/internal/capture"
	"github.com/Sandy7272/capture-3d/internal/session"
)

// State is the controller's current phase. The UI renders exactly one
// screen per state.
type State int

const (
	// StateLanding is the initial idle screen
	StateLanding State = iota
	// StateTutorial plays the instruction deck for the upcoming angle
	StateTutorial
	// StateRecording has the camera open and a take accumulating
	StateRecording
	// StateValidating checks the finished take; user actions are disabled
	StateValidating
	// StateReviewing lets the operator inspect accepted takes and retake
	// any single angle before committing to merge
	StateReviewing
	// StateMerging concatenates accepted takes; recordings are disabled
	StateMerging
	// StatePreview shows the merged artifact with save and retake-all
	StatePreview
	// StateDeviceError is the recoverable camera failure screen
	StateDeviceError
	// StateDone is terminal: the operator confirmed the artifact
	StateDone
)

// String returns a human-readable state name
func (s State) String() string {
	switch s {
	case StateLanding:
		return "landing"
	case StateTutorial:
		return "tutorial"
	case StateRecording:
		return "recording"
	case StateValidating:
		return "validating"
	case StateReviewing:
		return "reviewing"
	case StateMerging:
		return "merging"
	case StatePreview:
		return "preview"
	case StateDeviceError:
		return "device-error"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// EventKind identifies what an Event reports
type EventKind int

const (
	// EventState reports a state transition
	EventState EventKind = iota
	// EventSegment reports a segment boundary inside an active recording
	EventSegment
	// EventValidationFailed reports a rejected take with its reasons
	EventValidationFailed
	// EventMergeFailed reports a failed merge; accepted takes are intact
	EventMergeFailed
	// EventDeviceError reports a classified camera failure
	EventDeviceError
	// EventPaused reports a suspended take
	EventPaused
	// EventResumed reports a take continuing after a pause
	EventResumed
)

// Event is what the controller reports to the UI. Delivery is best-effort:
// a slow consumer drops events rather than blocking a transition.
type Event struct {
	Kind  EventKind
	State State
	// Angle is the angle the event concerns (states before Reviewing)
	Angle session.Angle
	// Attempt is the 1-based attempt counter for recording states
	Attempt int
	// Segment is the 1-based segment index for EventSegment
	Segment int
	// Reasons lists validation failures for EventValidationFailed
	Reasons []string
	// Device carries the classified failure for EventDeviceError
	Device *capture.DeviceError
	// Err carries the failure for EventMergeFailed
	Err error
}
