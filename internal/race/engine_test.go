package race

import (
	"math/rand"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/typerace/internal/model"
	"github.com/verte-zerg/typerace/internal/typing"
)

const (
	selfID = "me"
	hostID = "host"
	text   = "ab cd"
)

type recordingOutbound struct {
	progress  []float64
	results   []model.Metrics
	starts    int
	forceEnds int
	lobbies   int
	nicknames []string
}

func (r *recordingOutbound) Progress(p float64) error        { r.progress = append(r.progress, p); return nil }
func (r *recordingOutbound) Result(m model.Metrics) error     { r.results = append(r.results, m); return nil }
func (r *recordingOutbound) StartRound() error                { r.starts++; return nil }
func (r *recordingOutbound) ForceEnd() error                  { r.forceEnds++; return nil }
func (r *recordingOutbound) ReturnToLobby() error             { r.lobbies++; return nil }
func (r *recordingOutbound) ChangeNickname(name string) error { r.nicknames = append(r.nicknames, name); return nil }

func snapshot(status model.RoundStatus, textToType string) model.RoundSnapshot {
	return model.RoundSnapshot{
		Status: status,
		Players: map[string]model.Player{
			hostID: {ID: hostID, Nickname: "Host", Status: model.PlayerSpectating},
			selfID: {ID: selfID, Nickname: "Me", Status: model.PlayerPlaying},
			"p2":   {ID: "p2", Nickname: "Other", Status: model.PlayerPlaying, Progress: 40},
		},
		HostID:     hostID,
		TextToType: textToType,
	}
}

func newTestEngine(t *testing.T, id string) (*Engine, *recordingOutbound, *clockwork.FakeClock) {
	t.Helper()
	out := &recordingOutbound{}
	clock := clockwork.NewFakeClock()
	e := NewEngine(out, WithClock(clock))
	e.SetIdentity(id)
	return e, out, clock
}

func TestEngineWaitingResetsSession(t *testing.T) {
	e, _, _ := newTestEngine(t, selfID)
	e.HandleSnapshot(snapshot(model.StatusCountdown, text))
	e.HandleSnapshot(snapshot(model.StatusInProgress, text))
	e.HandleKeystroke("ab")
	e.HandleSnapshot(snapshot(model.StatusTallying, text))

	e.HandleSnapshot(snapshot(model.StatusWaiting, ""))
	f := e.Frame()
	assert.Equal(t, ModeLobby, f.State.Mode)
	assert.Equal(t, typing.PhasePending, f.Session.Phase)
	assert.Empty(t, f.Session.Buffer)
	assert.Empty(t, f.Session.Target)
	assert.Empty(t, f.Session.Classes)
	assert.Nil(t, f.Session.Result)
	assert.Empty(t, f.State.Notice)
	assert.False(t, f.HasRemaining)
}

func TestEngineCountdownStagesWithoutStarting(t *testing.T) {
	e, out, _ := newTestEngine(t, selfID)
	e.HandleSnapshot(snapshot(model.StatusCountdown, text))
	f := e.Frame()
	assert.Equal(t, ModeCountdown, f.State.Mode)
	assert.Equal(t, typing.PhasePending, f.Session.Phase)
	assert.Equal(t, []rune(text), f.Session.Target)

	assert.Nil(t, e.HandleKeystroke("a"))
	assert.Empty(t, out.progress)
}

func TestEngineRepeatedInProgressKeepsKeystrokes(t *testing.T) {
	e, out, _ := newTestEngine(t, selfID)
	e.HandleSnapshot(snapshot(model.StatusCountdown, text))
	e.HandleSnapshot(snapshot(model.StatusInProgress, text))
	e.HandleKeystroke("ab")
	e.HandleSnapshot(snapshot(model.StatusInProgress, text))

	f := e.Frame()
	assert.Equal(t, ModeTyping, f.State.Mode)
	assert.Equal(t, []rune("ab"), f.Session.Buffer)
	assert.Equal(t, []float64{40}, out.progress)
}

func TestEngineStaleInProgressAfterFinishIsIgnored(t *testing.T) {
	e, out, _ := newTestEngine(t, selfID)
	e.HandleSnapshot(snapshot(model.StatusInProgress, text))
	fin := e.HandleKeystroke(text)
	require.NotNil(t, fin)
	before := e.Frame()
	progressBefore := len(out.progress)

	assert.Nil(t, e.HandleSnapshot(snapshot(model.StatusInProgress, text)))
	assert.Nil(t, e.HandleKeystroke("zz"))

	after := e.Frame()
	assert.Equal(t, before.Session, after.Session)
	assert.Equal(t, before.State.Mode, after.State.Mode)
	assert.Equal(t, NoticeEarlyFinish, after.State.Notice)
	assert.Len(t, out.progress, progressBefore)
	assert.Len(t, out.results, 1)
}

func TestEngineTallyingForcesSingleTimeUpFinish(t *testing.T) {
	e, out, clock := newTestEngine(t, selfID)
	e.HandleSnapshot(snapshot(model.StatusInProgress, text))
	e.HandleKeystroke("ab")
	clock.Advance(6 * time.Second)

	fin := e.HandleSnapshot(snapshot(model.StatusTallying, text))
	require.NotNil(t, fin)
	assert.False(t, fin.EarlyFinish)
	assert.Equal(t, 2, fin.TypedLength)
	assert.Equal(t, NoticeTimeUp, e.Frame().State.Notice)

	assert.Nil(t, e.HandleSnapshot(snapshot(model.StatusTallying, text)))
	assert.Len(t, out.results, 1)
	assert.Equal(t, model.Metrics{WPM: 4, Accuracy: 100, Mistakes: 0}, out.results[0])
}

func TestEnginePromotedHostStillSubmitsOnTallying(t *testing.T) {
	e, out, clock := newTestEngine(t, selfID)
	e.HandleSnapshot(snapshot(model.StatusCountdown, text))
	e.HandleSnapshot(snapshot(model.StatusInProgress, text))
	e.HandleKeystroke("a")
	clock.Advance(3 * time.Second)
	e.HandleKeystroke("ab")

	promoted := snapshot(model.StatusInProgress, text)
	delete(promoted.Players, hostID)
	promoted.HostID = selfID
	assert.Nil(t, e.HandleSnapshot(promoted))
	f := e.Frame()
	assert.True(t, f.State.IsHost)
	assert.Equal(t, typing.PhaseStarted, f.Session.Phase)

	tally := snapshot(model.StatusTallying, text)
	delete(tally.Players, hostID)
	tally.HostID = selfID
	fin := e.HandleSnapshot(tally)
	require.NotNil(t, fin)
	assert.False(t, fin.EarlyFinish)
	assert.Equal(t, 2, fin.TypedLength)
	assert.Equal(t, NoticeTimeUp, e.Frame().State.Notice)
	require.Len(t, out.results, 1)

	assert.Nil(t, e.HandleSnapshot(tally))
	assert.Len(t, out.results, 1)
}

func TestEngineHostSpectatesAndNeverSubmits(t *testing.T) {
	e, out, _ := newTestEngine(t, hostID)
	e.HandleSnapshot(snapshot(model.StatusCountdown, text))
	e.HandleSnapshot(snapshot(model.StatusInProgress, text))
	f := e.Frame()
	assert.Equal(t, ModeSpectating, f.State.Mode)
	require.Len(t, f.State.Spectators, 2)
	assert.Equal(t, "Me", f.State.Spectators[0].Nickname)

	e.HandleSnapshot(snapshot(model.StatusTallying, text))
	assert.Empty(t, out.results)
	require.NoError(t, e.ForceEnd())
	assert.Equal(t, 1, out.forceEnds)
}

func TestEngineMissingTextWaitsForValidSnapshot(t *testing.T) {
	e, _, _ := newTestEngine(t, selfID)
	e.HandleSnapshot(snapshot(model.StatusInProgress, ""))
	assert.Equal(t, typing.PhasePending, e.Frame().Session.Phase)

	e.HandleSnapshot(snapshot(model.StatusInProgress, text))
	assert.Equal(t, typing.PhaseStarted, e.Frame().Session.Phase)
}

func TestEngineNewCountdownTextWithoutWaitingStartsFresh(t *testing.T) {
	e, out, _ := newTestEngine(t, selfID)
	e.HandleSnapshot(snapshot(model.StatusInProgress, text))
	require.NotNil(t, e.HandleKeystroke(text))

	e.HandleSnapshot(snapshot(model.StatusCountdown, "next round"))
	e.HandleSnapshot(snapshot(model.StatusInProgress, "next round"))
	f := e.Frame()
	assert.Equal(t, typing.PhaseStarted, f.Session.Phase)
	assert.Equal(t, []rune("next round"), f.Session.Target)
	assert.Empty(t, f.State.Notice)
	assert.Len(t, out.results, 1)
}

func TestEngineResultsEmptyLeaderboard(t *testing.T) {
	e, _, _ := newTestEngine(t, selfID)
	e.HandleSnapshot(snapshot(model.StatusResults, text))
	f := e.Frame()
	assert.Equal(t, ModeResults, f.State.Mode)
	assert.True(t, f.State.Leaderboard.Empty())
	assert.False(t, f.State.CanReturnToLobby())
	assert.ErrorIs(t, e.ReturnToLobby(), ErrNotHost)
}

func TestEngineHostControls(t *testing.T) {
	e, out, _ := newTestEngine(t, hostID)
	e.HandleSnapshot(snapshot(model.StatusWaiting, ""))
	require.NoError(t, e.StartRound())
	e.HandleSnapshot(snapshot(model.StatusResults, text))
	require.NoError(t, e.ReturnToLobby())
	assert.Equal(t, 1, out.starts)
	assert.Equal(t, 1, out.lobbies)

	guest, _, _ := newTestEngine(t, selfID)
	guest.HandleSnapshot(snapshot(model.StatusWaiting, ""))
	assert.ErrorIs(t, guest.StartRound(), ErrNotHost)
}

func TestEngineChangeNickname(t *testing.T) {
	e, out, _ := newTestEngine(t, selfID)
	assert.ErrorIs(t, e.ChangeNickname("   "), ErrEmptyNickname)
	require.NoError(t, e.ChangeNickname("  a-very-long-nickname-here "))
	assert.Equal(t, []string{"a-very-long-nic"}, out.nicknames)
}

func TestEngineTickRefreshesLiveMetricsOnlyAfterStart(t *testing.T) {
	e, _, clock := newTestEngine(t, selfID)
	e.HandleSnapshot(snapshot(model.StatusInProgress, "abcdefghij"))
	e.HandleTick(model.TimerTick{Remaining: 119})
	f := e.Frame()
	assert.Equal(t, 119, f.Remaining)
	assert.Equal(t, model.Metrics{WPM: 0, Accuracy: 100}, f.Live)

	e.HandleKeystroke("abcde")
	clock.Advance(6 * time.Second)
	e.HandleTick(model.TimerTick{Remaining: 113})
	f = e.Frame()
	assert.Equal(t, 113, f.Remaining)
	assert.Equal(t, 10, f.Live.WPM)
	assert.Equal(t, ModeTyping, f.State.Mode)
	assert.Equal(t, typing.PhaseStarted, f.Session.Phase)
}

// Shuffled and duplicated snapshot streams never submit more than once per round.
func TestEngineAdversarialDeliveryFinishesAtMostOnce(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	statuses := []model.RoundStatus{
		model.StatusCountdown, model.StatusInProgress, model.StatusInProgress,
		model.StatusTallying, model.StatusTallying, model.StatusResults,
	}
	for iter := 0; iter < 200; iter++ {
		e, out, _ := newTestEngine(t, selfID)
		seq := append([]model.RoundStatus(nil), statuses...)
		rnd.Shuffle(len(seq), func(i, j int) { seq[i], seq[j] = seq[j], seq[i] })
		for _, st := range seq {
			e.HandleSnapshot(snapshot(st, text))
			e.HandleKeystroke(text[:rnd.Intn(len(text)+1)])
			e.HandleTick(model.TimerTick{Remaining: rnd.Intn(120)})
		}
		require.LessOrEqual(t, len(out.results), 1, "sequence %v", seq)
		if e.Frame().Session.Phase == typing.PhaseFinished {
			require.Len(t, out.results, 1, "sequence %v", seq)
		}
	}
}
