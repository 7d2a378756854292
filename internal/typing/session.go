package typing

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/verte-zerg/typerace/internal/model"
	"github.com/verte-zerg/typerace/internal/stats"
)

// Errors returned for guarded calls. None of them are fatal; callers log and
// carry on.
var (
	ErrMissingTargetText = errors.New("missing target text")
	ErrTargetLocked      = errors.New("target text already set for this round")
	ErrAlreadyStarted    = errors.New("session already started")
	ErrNotStarted        = errors.New("session not started")
	ErrSessionFinished   = errors.New("session already finished")
	ErrDuplicateFinish   = errors.New("duplicate finish")
	ErrIllegalTransition = errors.New("illegal phase transition")
)

// Phase is the lifecycle position of a session within one round.
type Phase uint8

// Session phases. Finished is terminal until Reset.
const (
	PhasePending Phase = iota
	PhaseStarted
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseStarted:
		return "started"
	case PhaseFinished:
		return "finished"
	default:
		return "pending"
	}
}

func (p Phase) canAdvance(to Phase) bool {
	switch p {
	case PhasePending:
		return to == PhaseStarted || to == PhaseFinished
	case PhaseStarted:
		return to == PhaseFinished
	default:
		return false
	}
}

// Event is emitted by session operations.
type Event interface {
	event()
}

// ProgressEvent reports the typed fraction of the target, 0-100.
type ProgressEvent struct {
	Percent float64
}

// FinishEvent carries the final stats of the round.
type FinishEvent struct {
	Result model.SessionFinished
}

func (ProgressEvent) event() {}
func (FinishEvent) event()   {}

// View is a read-only copy of the session state for rendering.
type View struct {
	Phase    Phase
	RoundID  string
	Target   []rune
	Buffer   []rune
	Classes  []model.CharState
	Progress float64
	Result   *model.SessionFinished
}

// Session owns the keystroke buffer and the start-time reference of one round.
type Session struct {
	clock     clockwork.Clock
	phase     Phase
	roundID   string
	target    []rune
	buffer    []rune
	classes   []model.CharState
	startedAt time.Time
	result    *model.SessionFinished
}

// NewSession returns a pending session reading time from clock.
func NewSession(clock clockwork.Clock) *Session {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Session{clock: clock}
}

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase {
	return s.phase
}

// Target returns the target text, empty until staged or started.
func (s *Session) Target() string {
	return string(s.target)
}

// StartedAt returns the time of the first non-empty keystroke.
func (s *Session) StartedAt() (time.Time, bool) {
	return s.startedAt, !s.startedAt.IsZero()
}

// Reset clears the target text and all derived state.
func (s *Session) Reset() {
	*s = Session{clock: s.clock}
}

// Stage captures the round text ahead of the start without starting the
// clock or accepting keystrokes.
func (s *Session) Stage(text string) error {
	switch s.phase {
	case PhaseStarted:
		return ErrAlreadyStarted
	case PhaseFinished:
		return ErrSessionFinished
	}
	return s.setTarget(text)
}

// Start arms the session for keystrokes. It is a no-op returning a guard
// error when the session already started or finished this round.
func (s *Session) Start(text string) error {
	switch s.phase {
	case PhaseStarted:
		return ErrAlreadyStarted
	case PhaseFinished:
		return ErrSessionFinished
	}
	if err := s.setTarget(text); err != nil {
		return err
	}
	if err := s.advance(PhaseStarted); err != nil {
		return err
	}
	s.buffer = nil
	s.startedAt = time.Time{}
	s.classes = Classify(s.target, nil)
	return nil
}

// Keystroke replaces the typed buffer. The returned events contain a progress
// report and, when the buffer reaches the target length, the finish event.
func (s *Session) Keystroke(buffer string) ([]Event, error) {
	switch s.phase {
	case PhaseFinished:
		return nil, ErrSessionFinished
	case PhasePending:
		return nil, ErrNotStarted
	}
	runes := []rune(buffer)
	if len(runes) > len(s.target) {
		runes = runes[:len(s.target)]
	}
	if s.startedAt.IsZero() && len(runes) > 0 {
		s.startedAt = s.clock.Now()
	}
	s.buffer = runes
	s.classes = Classify(s.target, s.buffer)

	events := []Event{ProgressEvent{Percent: s.progress()}}
	if len(s.buffer) == len(s.target) {
		finish, err := s.finish(true)
		if err != nil {
			return events, err
		}
		events = append(events, finish)
	}
	return events, nil
}

// Finish finalizes the round with whatever has been typed. A second call is a
// no-op returning ErrDuplicateFinish.
func (s *Session) Finish(earlyFinish bool) ([]Event, error) {
	finish, err := s.finish(earlyFinish)
	if err != nil {
		return nil, err
	}
	return []Event{finish}, nil
}

func (s *Session) finish(earlyFinish bool) (Event, error) {
	if s.phase == PhaseFinished {
		return nil, ErrDuplicateFinish
	}
	if len(s.target) == 0 {
		return nil, ErrMissingTargetText
	}
	if err := s.advance(PhaseFinished); err != nil {
		return nil, err
	}
	if s.classes == nil {
		s.classes = Classify(s.target, s.buffer)
	}
	now := s.clock.Now()
	result := model.SessionFinished{
		RoundID:     s.roundID,
		Metrics:     stats.Compute(s.elapsed(now), s.classes, len(s.buffer)),
		EarlyFinish: earlyFinish,
		StartedAt:   s.startedAt,
		EndedAt:     now,
		TextLength:  len(s.target),
		TypedLength: len(s.buffer),
		Chars:       CharStats(s.target, s.classes),
	}
	s.result = &result
	return FinishEvent{Result: result}, nil
}

// Metrics computes live metrics, or the final ones once finished.
func (s *Session) Metrics() model.Metrics {
	if s.result != nil {
		return s.result.Metrics
	}
	return stats.Compute(s.elapsed(s.clock.Now()), s.classes, len(s.buffer))
}

// View returns a copy of the session state.
func (s *Session) View() View {
	v := View{
		Phase:    s.phase,
		RoundID:  s.roundID,
		Target:   append([]rune(nil), s.target...),
		Buffer:   append([]rune(nil), s.buffer...),
		Classes:  append([]model.CharState(nil), s.classes...),
		Progress: s.progress(),
	}
	if s.result != nil {
		res := *s.result
		v.Result = &res
	}
	return v
}

func (s *Session) setTarget(text string) error {
	if text == "" {
		return ErrMissingTargetText
	}
	if len(s.target) > 0 {
		if string(s.target) != text {
			return ErrTargetLocked
		}
		return nil
	}
	s.target = []rune(text)
	s.classes = Classify(s.target, nil)
	if s.roundID == "" {
		s.roundID = uuid.NewString()
	}
	return nil
}

func (s *Session) advance(to Phase) error {
	if !s.phase.canAdvance(to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s.phase, to)
	}
	s.phase = to
	return nil
}

func (s *Session) elapsed(now time.Time) time.Duration {
	if s.startedAt.IsZero() {
		return 0
	}
	return now.Sub(s.startedAt)
}

func (s *Session) progress() float64 {
	if len(s.target) == 0 {
		return 0
	}
	pct := float64(len(s.buffer)) / float64(len(s.target)) * 100
	return min(max(pct, 0), 100)
}
