// Package tutorial drives the guided instruction decks shown before
// recording: a preparation deck at session start and one orientation unit
// per camera angle. Advancement is time-based with an operator skip that
// unlocks after a dwell period.
package tutorial

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Sandy7272/capture-3d/internal/session"
)

// SkipUnlockAfter is how long a deck must have been on screen before the
// skip affordance is honored. Decks shorter than twice this dwell unlock
// at their halfway point instead, so short decks stay skippable.
const SkipUnlockAfter = 10 * time.Second

const (
	slideDuration = 3 * time.Second
	videoDuration = 8 * time.Second
)

// UnitKind distinguishes static slides from demonstration video units
type UnitKind int

const (
	// UnitSlide is a static instruction card
	UnitSlide UnitKind = iota
	// UnitVideo is a looping demonstration clip
	UnitVideo
)

func (k UnitKind) String() string {
	if k == UnitVideo {
		return "video"
	}
	return "slide"
}

// Unit is one step of an instruction deck. A unit stays on screen for its
// nominal Duration unless the whole deck is skipped.
type Unit struct {
	Kind      UnitKind
	Title     string
	Body      string
	Narration string
	Duration  time.Duration
}

// PrepDeck returns the preparation deck shown once at session start
func PrepDeck() []Unit {
	return []Unit{
		{
			Kind:      UnitSlide,
			Title:     "Find good lighting",
			Body:      "Bright, even light gives the best scan. Avoid strong backlight.",
			Narration: "Find a spot with bright, even lighting.",
			Duration:  slideDuration,
		},
		{
			Kind:      UnitSlide,
			Title:     "Clear the background",
			Body:      "Keep the area behind the subject free of clutter and movement.",
			Narration: "Clear the background behind the subject.",
			Duration:  slideDuration,
		},
		{
			Kind:      UnitSlide,
			Title:     "Move slowly",
			Body:      "Walk around the subject in a steady circle. Slow is smooth.",
			Narration: "Move slowly and steadily around the subject.",
			Duration:  slideDuration,
		},
		{
			Kind:      UnitSlide,
			Title:     "Keep the subject centered",
			Body:      "Hold the subject in the middle of the frame the whole way around.",
			Narration: "Keep the subject centered in the frame.",
			Duration:  slideDuration,
		},
	}
}

// AngleDeck returns the single-unit orientation deck for an angle
func AngleDeck(angle session.Angle) []Unit {
	return []Unit{
		{
			Kind:      UnitVideo,
			Title:     angle.Label(),
			Body:      angle.Instruction(),
			Narration: angle.Instruction(),
			Duration:  videoDuration,
		},
	}
}

// Narrator speaks unit narration. Implementations are best-effort: a failed
// or unavailable narrator never gates deck advancement.
type Narrator interface {
	// Speak voices the text, returning when playback ends or ctx is
	// cancelled
	Speak(ctx context.Context, text string) error
	// Stop interrupts any in-flight speech
	Stop()
}

// Locker requests a display orientation lock for the duration of a deck.
// Unsupported platforms return nil from Lock and stay silent.
type Locker interface {
	Lock() error
	Unlock()
}

// SkipStore answers whether a named deck has been marked "don't show again"
type SkipStore interface {
	Skip(name string) (bool, error)
}

// Event reports deck progress to the UI
type Event struct {
	// Deck is the deck name passed to Run
	Deck string
	// Unit is the zero-based index of the unit, -1 for deck-level events
	Unit int
	// Kind is "unit", "skipped" or "completed"
	Kind string
}

// ErrBusy is returned when Run is called while a deck is already running
var ErrBusy = errors.New("tutorial: deck already running")

// Options configure a Sequencer. Zero values get working defaults; Clock
// and Sleeper exist so tests can drive time deterministically.
type Options struct {
	Clock    func() time.Time
	Sleeper  func(context.Context, time.Duration) error
	Narrator Narrator
	Locker   Locker
	Store    SkipStore
	Notify   func(Event)
}

// Sequencer walks instruction decks unit by unit
type Sequencer struct {
	clock    func() time.Time
	sleeper  func(context.Context, time.Duration) error
	narrator Narrator
	locker   Locker
	store    SkipStore
	notify   func(Event)

	mu          sync.Mutex
	running     bool
	started     time.Time
	skipped     bool
	unlockAfter time.Duration
	cancel      context.CancelFunc
}

// NewSequencer validates options and returns a sequencer instance
func NewSequencer(opts Options) (*Sequencer, error) {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	sleeper := opts.Sleeper
	if sleeper == nil {
		sleeper = defaultSleeper
	}
	notify := opts.Notify
	if notify == nil {
		notify = func(Event) {}
	}
	return &Sequencer{
		clock:    clock,
		sleeper:  sleeper,
		narrator: opts.Narrator,
		locker:   opts.Locker,
		store:    opts.Store,
		notify:   notify,
	}, nil
}

func defaultSleeper(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Run walks the named deck to completion
//
// The "don't show again" preference is consulted before any timer is armed:
// a bypassed deck emits its completion event immediately, runs zero units
// and arms zero timers.
//
// Completion is emitted exactly once per Run, whether the deck played out,
// was skipped, or was bypassed. Returns the context error when cancelled
// before completion; no completion event fires in that case.
func (s *Sequencer) Run(ctx context.Context, name string, units []Unit) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrBusy
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.started = s.clock()
	s.skipped = false
	s.unlockAfter = skipUnlock(units)
	s.cancel = cancel
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		s.running = false
		s.cancel = nil
		s.mu.Unlock()
	}()

	if s.store != nil {
		skip, err := s.store.Skip(name)
		if err != nil {
			slog.Warn("tutorial: skip preference unavailable, showing deck",
				"deck", name,
				"error", err,
			)
		} else if skip {
			slog.Info("tutorial: deck bypassed by preference", "deck", name)
			s.notify(Event{Deck: name, Unit: -1, Kind: "completed"})
			return nil
		}
	}

	if s.locker != nil {
		if err := s.locker.Lock(); err != nil {
			slog.Debug("tutorial: orientation lock unavailable", "error", err)
		}
		defer s.locker.Unlock()
	}

	slog.Info("tutorial: deck started", "deck", name, "units", len(units))

	for i, unit := range units {
		s.notify(Event{Deck: name, Unit: i, Kind: "unit"})
		s.narrate(runCtx, unit.Narration)

		if err := s.sleeper(runCtx, unit.Duration); err != nil {
			s.stopNarration()

			s.mu.Lock()
			skipped := s.skipped
			s.mu.Unlock()

			if skipped {
				slog.Info("tutorial: deck skipped", "deck", name, "at_unit", i)
				s.notify(Event{Deck: name, Unit: i, Kind: "skipped"})
				s.notify(Event{Deck: name, Unit: -1, Kind: "completed"})
				return nil
			}
			return fmt.Errorf("tutorial: deck interrupted: %w", err)
		}
	}

	s.stopNarration()
	slog.Info("tutorial: deck completed", "deck", name)
	s.notify(Event{Deck: name, Unit: -1, Kind: "completed"})
	return nil
}

// Skip requests early completion of the running deck
//
// Honored only after the deck has been on screen for SkipUnlockAfter;
// earlier calls report false and leave the deck running. Safe to call when
// no deck is running.
func (s *Sequencer) Skip() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.cancel == nil {
		return false
	}
	if s.clock().Sub(s.started) < s.unlockAfter {
		slog.Debug("tutorial: skip requested before unlock, ignored",
			"dwell", s.clock().Sub(s.started),
		)
		return false
	}

	s.skipped = true
	s.cancel()
	return true
}

// SkipAllowed reports whether the skip affordance should be shown
func (s *Sequencer) SkipAllowed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running && s.clock().Sub(s.started) >= s.unlockAfter
}

// skipUnlock returns the dwell before skip is honored for a deck: the
// standard unlock, capped at half the deck's nominal length.
func skipUnlock(units []Unit) time.Duration {
	var total time.Duration
	for _, u := range units {
		total += u.Duration
	}
	if half := total / 2; half < SkipUnlockAfter {
		return half
	}
	return SkipUnlockAfter
}

// Mute interrupts narration for the current unit without affecting timing
func (s *Sequencer) Mute() {
	s.stopNarration()
}

func (s *Sequencer) narrate(ctx context.Context, text string) {
	if s.narrator == nil || text == "" {
		return
	}
	go func() {
		if err := s.narrator.Speak(ctx, text); err != nil && ctx.Err() == nil {
			slog.Debug("tutorial: narration failed", "error", err)
		}
	}()
}

func (s *Sequencer) stopNarration() {
	if s.narrator != nil {
		s.narrator.Stop()
	}
}
