package race

import (
	"errors"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/verte-zerg/typerace/internal/model"
	"github.com/verte-zerg/typerace/internal/typing"
)

const maxNicknameRunes = 15

// Finish notices shown once the local session ends.
const (
	NoticeEarlyFinish = "You finished! Waiting for other players..."
	NoticeTimeUp      = "Time's up!"
)

// Outbound carries one-way notifications to the server. Implementations must
// not block.
type Outbound interface {
	Progress(percent float64) error
	Result(m model.Metrics) error
	StartRound() error
	ForceEnd() error
	ChangeNickname(nickname string) error
	ReturnToLobby() error
}

// Frame is everything a renderer needs for one draw.
type Frame struct {
	State        State
	Session      typing.View
	Remaining    int
	HasRemaining bool
	Live         model.Metrics
}

// Engine applies snapshots, ticks, and keystrokes to the local round state.
// It is not safe for concurrent use; callers deliver events one at a time.
type Engine struct {
	logger  zerolog.Logger
	out     Outbound
	session *typing.Session
	timer   *Reconciler
	state   State
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	clock  clockwork.Clock
	logger zerolog.Logger
}

// WithClock sets the clock used for typing timing.
func WithClock(clock clockwork.Clock) Option {
	return func(o *engineOptions) {
		o.clock = clock
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// NewEngine returns an engine reporting to out.
func NewEngine(out Outbound, opts ...Option) *Engine {
	o := engineOptions{clock: clockwork.NewRealClock(), logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Engine{
		logger:  o.logger,
		out:     out,
		session: typing.NewSession(o.clock),
		timer:   NewReconciler(),
	}
}

// SetIdentity records the participant id assigned by the server.
func (e *Engine) SetIdentity(id string) {
	e.state.SelfID = id
	e.logger.Info().Str("self_id", id).Msg("identity assigned")
}

// Frame returns the current render frame.
func (e *Engine) Frame() Frame {
	remaining, ok := e.timer.Remaining()
	return Frame{
		State:        e.state,
		Session:      e.session.View(),
		Remaining:    remaining,
		HasRemaining: ok,
		Live:         e.timer.Live(),
	}
}

// HandleSnapshot applies a server snapshot. It returns the finished round when
// the snapshot ended the local session.
func (e *Engine) HandleSnapshot(snap model.RoundSnapshot) *model.SessionFinished {
	e.syncSession()
	tr := Reduce(e.state, snap)
	if tr.Err != nil {
		e.logger.Debug().
			Err(tr.Err).
			Str("status", string(snap.Status)).
			Str("round_id", e.session.View().RoundID).
			Msg("snapshot recovered")
	}
	e.state = tr.State

	var finished *model.SessionFinished
	for _, cmd := range tr.Commands {
		if fin := e.apply(cmd); fin != nil {
			finished = fin
		}
	}
	e.syncSession()
	return finished
}

// HandleTick applies a remaining-time push from the server.
func (e *Engine) HandleTick(tick model.TimerTick) {
	if e.timer.Tick(tick, e.session) {
		e.logger.Trace().Int("remaining", tick.Remaining).Msg("live metrics refreshed")
	}
}

// HandleKeystroke replaces the typed buffer. It returns the finished round
// when the keystroke completed the text.
func (e *Engine) HandleKeystroke(buffer string) *model.SessionFinished {
	events, err := e.session.Keystroke(buffer)
	if err != nil {
		e.logger.Debug().Err(err).Msg("keystroke ignored")
	}
	fin := e.emit(events)
	e.syncSession()
	return fin
}

// StartRound asks the server to start the round.
func (e *Engine) StartRound() error {
	if !e.state.IsHost {
		return ErrNotHost
	}
	return e.send("start_game", e.out.StartRound())
}

// ForceEnd asks the server to end the round now.
func (e *Engine) ForceEnd() error {
	if !e.state.IsHost {
		return ErrNotHost
	}
	return e.send("force_end_game", e.out.ForceEnd())
}

// ReturnToLobby asks the server to go back to the lobby.
func (e *Engine) ReturnToLobby() error {
	if !e.state.CanReturnToLobby() {
		return ErrNotHost
	}
	return e.send("return_to_lobby", e.out.ReturnToLobby())
}

// ChangeNickname trims the nickname and forwards it to the server.
func (e *Engine) ChangeNickname(nickname string) error {
	nickname = NormalizeNickname(nickname)
	if nickname == "" {
		return ErrEmptyNickname
	}
	return e.send("change_nickname", e.out.ChangeNickname(nickname))
}

// NormalizeNickname trims whitespace and caps the length.
func NormalizeNickname(nickname string) string {
	runes := []rune(strings.TrimSpace(nickname))
	if len(runes) > maxNicknameRunes {
		runes = runes[:maxNicknameRunes]
	}
	return strings.TrimSpace(string(runes))
}

func (e *Engine) apply(cmd Command) *model.SessionFinished {
	switch cmd.Kind {
	case CmdResetSession:
		e.session.Reset()
		e.timer.Reset()
		e.state.Notice = ""
		e.logger.Debug().Msg("session reset")
	case CmdStageText:
		if err := e.session.Stage(cmd.Text); err != nil {
			e.logger.Debug().Err(err).Msg("stage ignored")
		}
	case CmdStartSession:
		if err := e.session.Start(cmd.Text); err != nil {
			e.logger.Debug().Err(err).Msg("start ignored")
			return nil
		}
		e.logger.Info().Str("round_id", e.session.View().RoundID).Msg("typing started")
	case CmdForceFinish:
		events, err := e.session.Finish(false)
		if err != nil {
			if errors.Is(err, ErrDuplicateFinish) {
				e.logger.Debug().Msg("guarded double finish")
			} else {
				e.logger.Debug().Err(err).Msg("finish ignored")
			}
			return nil
		}
		return e.emit(events)
	}
	return nil
}

func (e *Engine) emit(events []typing.Event) *model.SessionFinished {
	var finished *model.SessionFinished
	for _, ev := range events {
		switch ev := ev.(type) {
		case typing.ProgressEvent:
			_ = e.send("player_progress", e.out.Progress(ev.Percent))
		case typing.FinishEvent:
			res := ev.Result
			finished = &res
			e.timer.Freeze(res.Metrics)
			e.state.Notice = NoticeTimeUp
			if res.EarlyFinish {
				e.state.Notice = NoticeEarlyFinish
			}
			_ = e.send("submit_result", e.out.Result(res.Metrics))
			e.logger.Info().
				Str("round_id", res.RoundID).
				Int("wpm", res.Metrics.WPM).
				Int("accuracy", res.Metrics.Accuracy).
				Int("mistakes", res.Metrics.Mistakes).
				Bool("early_finish", res.EarlyFinish).
				Msg("round finished")
		}
	}
	return finished
}

func (e *Engine) send(event string, err error) error {
	if err != nil {
		e.logger.Warn().Err(err).Str("event", event).Msg("failed to send")
	}
	return err
}

func (e *Engine) syncSession() {
	e.state.SessionPhase = e.session.Phase()
	e.state.SessionTarget = e.session.Target()
}
