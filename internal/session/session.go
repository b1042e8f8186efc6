package session

import (
	"fmt"

	"github.com/google/uuid"
)

// CaptureSession is the root aggregate for one capture run: an ordered list
// of angles, at most one current take per angle, and a cursor pointing at
// the angle currently being recorded or reviewed.
//
// The session is not safe for concurrent use; the flow controller owns it
// and serializes all access.
type CaptureSession struct {
	// ID is a unique identifier for the run
	ID string

	angles   []Angle
	takes    map[Angle]*Take
	attempts map[Angle]int
	cursor   int
}

// New creates an empty capture session over the given fixed angle order
func New(angles []Angle) *CaptureSession {
	ordered := make([]Angle, len(angles))
	copy(ordered, angles)
	return &CaptureSession{
		ID:       uuid.New().String(),
		angles:   ordered,
		takes:    make(map[Angle]*Take, len(ordered)),
		attempts: make(map[Angle]int, len(ordered)),
	}
}

// Angles returns the fixed capture order
func (s *CaptureSession) Angles() []Angle {
	out := make([]Angle, len(s.angles))
	copy(out, s.angles)
	return out
}

// Current returns the angle under the cursor
func (s *CaptureSession) Current() Angle {
	return s.angles[s.cursor]
}

// NextAttempt increments and returns the attempt counter for an angle
func (s *CaptureSession) NextAttempt(angle Angle) int {
	s.attempts[angle]++
	return s.attempts[angle]
}

// Attempt returns the current attempt counter for an angle (0 if untried)
func (s *CaptureSession) Attempt(angle Angle) int {
	return s.attempts[angle]
}

// Take returns the current take for an angle, or nil if the slot is empty
func (s *CaptureSession) Take(angle Angle) *Take {
	return s.takes[angle]
}

// Accept marks the take as accepted and stores it as the angle's current take.
// Any previous take in the slot is released first.
func (s *CaptureSession) Accept(take Take) {
	s.release(take.Angle)
	take.Verdict = VerdictAccepted
	take.RejectReasons = nil
	s.takes[take.Angle] = &take
}

// Reject records a rejected attempt for the angle. The rejected bytes are
// released immediately; only the verdict metadata is retained so the UI can
// show the failure reasons.
func (s *CaptureSession) Reject(take Take, reasons []string) {
	take.Data = nil
	take.Verdict = VerdictRejected
	take.RejectReasons = reasons
	// A rejected attempt never displaces an accepted take for the same angle.
	if cur := s.takes[take.Angle]; cur == nil || cur.Verdict != VerdictAccepted {
		s.takes[take.Angle] = &take
	}
}

// Retake clears the slot for one angle and moves the cursor to it, leaving
// every other angle's take untouched.
func (s *CaptureSession) Retake(angle Angle) error {
	idx := -1
	for i, a := range s.angles {
		if a == angle {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("session: angle %s not part of this session", angle)
	}
	s.release(angle)
	s.cursor = idx
	return nil
}

// Advance moves the cursor to the next angle. Returns false when the cursor
// is already on the last angle.
func (s *CaptureSession) Advance() bool {
	if s.cursor >= len(s.angles)-1 {
		return false
	}
	s.cursor++
	return true
}

// SeekFirstMissing moves the cursor to the first angle without an accepted
// take. Returns false when every angle is accepted.
func (s *CaptureSession) SeekFirstMissing() bool {
	for i, a := range s.angles {
		t := s.takes[a]
		if t == nil || t.Verdict != VerdictAccepted {
			s.cursor = i
			return true
		}
	}
	return false
}

// AllAccepted reports whether every angle has an accepted take, which makes
// the session eligible for merging.
func (s *CaptureSession) AllAccepted() bool {
	for _, a := range s.angles {
		t := s.takes[a]
		if t == nil || t.Verdict != VerdictAccepted {
			return false
		}
	}
	return true
}

// AcceptedTakes returns the accepted takes in angle order. The slice is only
// complete when AllAccepted() is true.
func (s *CaptureSession) AcceptedTakes() []Take {
	out := make([]Take, 0, len(s.angles))
	for _, a := range s.angles {
		if t := s.takes[a]; t != nil && t.Verdict == VerdictAccepted {
			out = append(out, *t)
		}
	}
	return out
}

// Reset releases every take and returns the session to its initial state
// under a fresh ID
func (s *CaptureSession) Reset() {
	for _, a := range s.angles {
		s.release(a)
	}
	s.attempts = make(map[Angle]int, len(s.angles))
	s.cursor = 0
	s.ID = uuid.New().String()
}

func (s *CaptureSession) release(angle Angle) {
	if t := s.takes[angle]; t != nil {
		t.Data = nil
	}
	delete(s.takes, angle)
}
