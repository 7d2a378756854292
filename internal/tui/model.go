// Package tui provides the Bubble Tea race interface.
package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/verte-zerg/typerace/internal/model"
	"github.com/verte-zerg/typerace/internal/race"
	"github.com/verte-zerg/typerace/internal/store"
	"github.com/verte-zerg/typerace/internal/transport"
	"github.com/verte-zerg/typerace/internal/typing"
)

const saveTimeout = 5 * time.Second

type serverEventMsg struct {
	event any
}

type countdownTickMsg struct {
	gen int
}

type roundSavedMsg struct {
	roundID string
	err     error
}

// Model implements the Bubble Tea race UI. It owns no round state of its own;
// every frame is read back from the engine.
type Model struct {
	config model.Config
	engine *race.Engine
	events <-chan any
	store  *store.Store
	logger zerolog.Logger

	width  int
	height int

	nickInput   textinput.Model
	editingNick bool
	bar         progress.Model

	countdown    int
	countdownGen int

	status       string
	disconnected bool
}

var (
	correctStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	incorrectStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	pendingStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	currentWordStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	footerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	titleStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	noticeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#7FD17F")).Bold(true)
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	mutedStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// NewModel constructs the race UI. events is the transport's inbound stream;
// st may be nil to skip saving history.
func NewModel(cfg model.Config, engine *race.Engine, events <-chan any, st *store.Store, logger zerolog.Logger) *Model {
	m := &Model{
		config: cfg,
		engine: engine,
		events: events,
		store:  st,
		logger: logger,
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
	}
	m.nickInput = textinput.New()
	m.nickInput.Prompt = "Nickname: "
	m.nickInput.CharLimit = 15
	m.nickInput.Cursor.SetMode(cursor.CursorBlink)
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return waitForEvent(m.events)
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(10, min(40, m.width/3))
		return m, nil
	case serverEventMsg:
		cmd := m.handleServerEvent(msg.event)
		if m.disconnected {
			return m, cmd
		}
		return m, tea.Batch(cmd, waitForEvent(m.events))
	case countdownTickMsg:
		if msg.gen != m.countdownGen || m.engine.Frame().State.Mode != race.ModeCountdown {
			return m, nil
		}
		if m.countdown > 0 {
			m.countdown--
		}
		if m.countdown == 0 {
			return m, nil
		}
		return m, countdownTick(m.countdownGen)
	case roundSavedMsg:
		if msg.err != nil {
			m.logger.Error().Err(msg.err).Str("round_id", msg.roundID).Msg("failed to save round")
			m.status = "Failed to save round history"
		}
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	default:
		return m, nil
	}
}

func (m *Model) handleServerEvent(ev any) tea.Cmd {
	switch ev := ev.(type) {
	case model.Identity:
		m.engine.SetIdentity(ev.ID)
		if m.config.Nickname != "" {
			m.act(m.engine.ChangeNickname(m.config.Nickname))
		}
	case model.RoundSnapshot:
		prevMode := m.engine.Frame().State.Mode
		finished := m.engine.HandleSnapshot(ev)
		mode := m.engine.Frame().State.Mode
		var cmds []tea.Cmd
		if mode == race.ModeCountdown && prevMode != race.ModeCountdown {
			cmds = append(cmds, m.startCountdown())
		}
		if mode != race.ModeLobby {
			m.editingNick = false
		}
		if finished != nil {
			cmds = append(cmds, m.saveRound(*finished))
		}
		return tea.Batch(cmds...)
	case model.TimerTick:
		m.engine.HandleTick(ev)
	case transport.Closed:
		m.disconnected = true
		if ev.Err != nil {
			m.logger.Error().Err(ev.Err).Msg("connection lost")
		}
	}
	return nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}
	if m.editingNick {
		return m.updateNickname(msg)
	}
	f := m.engine.Frame()
	if f.State.Mode == race.ModeTyping && f.Session.Phase == typing.PhaseStarted {
		switch msg.Type {
		case tea.KeyBackspace, tea.KeyDelete:
			return m, m.handleBackspace(f)
		case tea.KeySpace:
			return m, m.handleRunes(f, []rune{' '})
		case tea.KeyRunes:
			return m, m.handleRunes(f, msg.Runes)
		}
		return m, nil
	}
	if m.disconnected && (msg.String() == "q" || msg.Type == tea.KeyEsc) {
		return m, tea.Quit
	}
	m.status = ""
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "n":
		if f.State.Mode == race.ModeLobby {
			m.editingNick = true
			m.nickInput.SetValue(f.State.Lobby.SelfNickname)
			return m, m.nickInput.Focus()
		}
	case "s", "enter":
		switch f.State.Mode {
		case race.ModeLobby:
			m.act(m.engine.StartRound())
		case race.ModeResults:
			m.act(m.engine.ReturnToLobby())
		}
	case "e":
		if f.State.Mode == race.ModeSpectating {
			m.act(m.engine.ForceEnd())
		}
	case "l":
		if f.State.Mode == race.ModeResults {
			m.act(m.engine.ReturnToLobby())
		}
	}
	return m, nil
}

func (m *Model) updateNickname(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.editingNick = false
		m.nickInput.Blur()
		m.act(m.engine.ChangeNickname(m.nickInput.Value()))
		return m, nil
	case tea.KeyEsc:
		m.editingNick = false
		m.nickInput.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.nickInput, cmd = m.nickInput.Update(msg)
	return m, cmd
}

func (m *Model) handleBackspace(f race.Frame) tea.Cmd {
	buffer := f.Session.Buffer
	if len(buffer) == 0 {
		return nil
	}
	return m.keystroke(buffer[:len(buffer)-1])
}

func (m *Model) handleRunes(f race.Frame, runes []rune) tea.Cmd {
	buffer := append([]rune(nil), f.Session.Buffer...)
	for _, r := range runes {
		if len(buffer) >= len(f.Session.Target) {
			break
		}
		buffer = append(buffer, r)
	}
	return m.keystroke(buffer)
}

func (m *Model) keystroke(buffer []rune) tea.Cmd {
	finished := m.engine.HandleKeystroke(string(buffer))
	if finished == nil {
		return nil
	}
	return m.saveRound(*finished)
}

func (m *Model) act(err error) {
	switch {
	case err == nil:
	case errors.Is(err, race.ErrEmptyNickname):
		m.status = "Nickname cannot be empty"
	case errors.Is(err, race.ErrNotHost):
		m.status = "Only the host can do that"
	case errors.Is(err, transport.ErrSendBufferFull), errors.Is(err, transport.ErrClosed):
		m.status = "Not connected"
	default:
		m.logger.Debug().Err(err).Msg("action failed")
	}
}

func (m *Model) startCountdown() tea.Cmd {
	m.countdownGen++
	m.countdown = m.config.Countdown
	if m.countdown <= 0 {
		return nil
	}
	return countdownTick(m.countdownGen)
}

func (m *Model) saveRound(fin model.SessionFinished) tea.Cmd {
	if m.store == nil {
		return nil
	}
	st := m.store
	rec := model.RoundRecord{
		RoundID:     fin.RoundID,
		ServerURL:   m.config.ServerURL,
		StartedAt:   fin.StartedAt,
		EndedAt:     fin.EndedAt,
		TextLength:  fin.TextLength,
		TypedLength: fin.TypedLength,
		WPM:         fin.Metrics.WPM,
		Accuracy:    fin.Metrics.Accuracy,
		Mistakes:    fin.Metrics.Mistakes,
		EarlyFinish: fin.EarlyFinish,
	}
	chars := fin.Chars
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		_, err := st.InsertRound(ctx, rec, chars)
		return roundSavedMsg{roundID: rec.RoundID, err: err}
	}
}

func waitForEvent(events <-chan any) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return serverEventMsg{event: transport.Closed{}}
		}
		return serverEventMsg{event: ev}
	}
}

func countdownTick(gen int) tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return countdownTickMsg{gen: gen}
	})
}
