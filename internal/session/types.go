package session

import (
	"time"

	"github.com/google/uuid"
)

// Angle is one of the fixed camera vantage points the operator must record.
// The order of the constants is the capture order and is never reordered.
type Angle int

const (
	// AngleMiddle is the chest-height walk-around pass
	AngleMiddle Angle = iota
	// AngleTop is the raised, downward-looking pass
	AngleTop
	// AngleBottom is the lowered, upward-looking pass
	AngleBottom
	// AngleDetail is the optional close-up pass over surface features
	AngleDetail
)

// String returns the short machine name of the angle
func (a Angle) String() string {
	switch a {
	case AngleMiddle:
		return "middle"
	case AngleTop:
		return "top"
	case AngleBottom:
		return "bottom"
	case AngleDetail:
		return "detail"
	default:
		return "unknown"
	}
}

// Label returns the display label shown in the recording HUD
func (a Angle) Label() string {
	switch a {
	case AngleMiddle:
		return "Middle Angle"
	case AngleTop:
		return "Top Angle"
	case AngleBottom:
		return "Bottom Angle"
	case AngleDetail:
		return "Detail Capture"
	default:
		return "Unknown Angle"
	}
}

// Instruction returns the spoken/written instruction for the angle
func (a Angle) Instruction() string {
	switch a {
	case AngleMiddle:
		return "This is the middle angle. Hold your phone at chest height and move around the object slowly."
	case AngleTop:
		return "This is the top angle. Hold your phone above the object at a downward angle and move in a full circle."
	case AngleBottom:
		return "This is the bottom angle. Hold your phone low and tilt upward while moving around the object."
	case AngleDetail:
		return "This is the detail capture. Get close to the object and slowly pan across interesting features and textures."
	default:
		return ""
	}
}

// Angles returns the fixed capture order for a flow of n angles (3 or 4).
// Values outside that range are clamped.
func Angles(n int) []Angle {
	if n < 3 {
		n = 3
	}
	if n > 4 {
		n = 4
	}
	out := make([]Angle, n)
	for i := range out {
		out[i] = Angle(i)
	}
	return out
}

// Verdict is the validation outcome of a take
type Verdict int

const (
	// VerdictPending means the take has not been validated yet
	VerdictPending Verdict = iota
	// VerdictAccepted means the take passed validation
	VerdictAccepted
	// VerdictRejected means the take failed validation and must be re-recorded
	VerdictRejected
)

// String returns a human-readable string representation of the verdict
func (v Verdict) String() string {
	switch v {
	case VerdictPending:
		return "pending"
	case VerdictAccepted:
		return "accepted"
	case VerdictRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Take is the result of one completed recording attempt for one angle.
// The raw media bytes are owned exclusively by the capture session;
// rejected takes have their bytes released before the slot is reused.
type Take struct {
	// ID is a unique identifier for the take
	ID string
	// Angle is the vantage point this take was recorded for
	Angle Angle
	// Data contains the muxed media bytes (opaque blob)
	Data []byte
	// Container is the container/MIME type the recorder produced
	Container string
	// Duration is the wall-clock recording duration
	Duration time.Duration
	// Verdict is the validation outcome
	Verdict Verdict
	// RejectReasons lists human-readable validation failures (rejected only)
	RejectReasons []string
	// Attempt is the 1-based attempt counter for this angle
	Attempt int
	// RecordedAt is when recording stopped
	RecordedAt time.Time
}

// NewTake creates a pending take for an angle
func NewTake(angle Angle, data []byte, container string, duration time.Duration, attempt int) Take {
	return Take{
		ID:         uuid.New().String(),
		Angle:      angle,
		Data:       data,
		Container:  container,
		Duration:   duration,
		Verdict:    VerdictPending,
		Attempt:    attempt,
		RecordedAt: time.Now(),
	}
}

// MergedArtifact is the final concatenated output. Created once when all
// angles are accepted; immutable afterward.
type MergedArtifact struct {
	// Data contains the output media bytes
	Data []byte
	// ContentType is the MIME type of the output (e.g., "video/mp4")
	ContentType string
	// Duration is the total duration of the merged output
	Duration time.Duration
	// CreatedAt is when the merge completed
	CreatedAt time.Time
}
