// Package race interprets server round snapshots and drives the local typing
// session through a round.
package race

import (
	"errors"

	"github.com/verte-zerg/typerace/internal/model"
	"github.com/verte-zerg/typerace/internal/typing"
)

// Recovered conditions reported by Reduce and the engine. None propagate to
// the user.
var (
	ErrStaleSnapshot     = errors.New("stale snapshot after local finish")
	ErrUnknownStatus     = errors.New("unknown round status")
	ErrMissingTargetText = typing.ErrMissingTargetText
	ErrDuplicateFinish   = typing.ErrDuplicateFinish
	ErrNotHost           = errors.New("only the host can do that")
	ErrEmptyNickname     = errors.New("nickname is empty")
)

// Mode is what the local participant should be looking at.
type Mode uint8

// Modes.
const (
	ModeConnecting Mode = iota
	ModeLobby
	ModeCountdown
	ModeTyping
	ModeSpectating
	ModeTallying
	ModeResults
)

func (m Mode) String() string {
	switch m {
	case ModeLobby:
		return "lobby"
	case ModeCountdown:
		return "countdown"
	case ModeTyping:
		return "typing"
	case ModeSpectating:
		return "spectating"
	case ModeTallying:
		return "tallying"
	case ModeResults:
		return "results"
	default:
		return "connecting"
	}
}

// CommandKind names a session lifecycle instruction.
type CommandKind uint8

// Session commands emitted by Reduce.
const (
	CmdResetSession CommandKind = iota + 1
	CmdStageText
	CmdStartSession
	CmdForceFinish
)

// Command instructs the engine to act on the typing session.
type Command struct {
	Kind CommandKind
	Text string
}

// State is the local view of the round. SessionPhase and SessionTarget mirror
// the typing session and are refreshed by the engine before each Reduce.
type State struct {
	SelfID        string
	SessionPhase  typing.Phase
	SessionTarget string

	Mode        Mode
	Status      model.RoundStatus
	IsHost      bool
	Lobby       Lobby
	Spectators  []SpectatorCard
	Leaderboard Leaderboard
	Notice      string
}

// CanReturnToLobby reports whether the results screen offers the close action.
func (s State) CanReturnToLobby() bool {
	return s.Mode == ModeResults && s.IsHost
}

// Transition is the outcome of one Reduce call.
type Transition struct {
	State    State
	Commands []Command
	// Err is a locally recovered condition; the state is still valid.
	Err error
}

// Reduce folds a snapshot into the prior local state. It never mutates the
// session itself; lifecycle changes are returned as commands.
func Reduce(prior State, snap model.RoundSnapshot) Transition {
	if !snap.Status.Valid() {
		return Transition{State: prior, Err: ErrUnknownStatus}
	}
	next := prior
	next.IsHost = prior.SelfID != "" && snap.HostID == prior.SelfID

	if prior.SessionPhase == typing.PhaseFinished && snap.Status == model.StatusInProgress {
		if next.IsHost {
			next.Spectators = ProjectSpectators(snap)
		}
		return Transition{State: next, Err: ErrStaleSnapshot}
	}
	next.Status = snap.Status

	switch snap.Status {
	case model.StatusWaiting:
		return Transition{
			State: State{
				SelfID: prior.SelfID,
				Mode:   ModeLobby,
				Status: snap.Status,
				IsHost: next.IsHost,
				Lobby:  ProjectLobby(snap, prior.SelfID),
			},
			Commands: []Command{{Kind: CmdResetSession}},
		}
	case model.StatusCountdown:
		next.Mode = ModeCountdown
		next.Lobby = ProjectLobby(snap, prior.SelfID)
		if snap.TextToType == "" {
			return Transition{State: next, Err: ErrMissingTargetText}
		}
		if snap.TextToType == prior.SessionTarget {
			return Transition{State: next}
		}
		var cmds []Command
		if prior.SessionTarget != "" || prior.SessionPhase != typing.PhasePending {
			cmds = append(cmds, Command{Kind: CmdResetSession})
			next.Notice = ""
		}
		cmds = append(cmds, Command{Kind: CmdStageText, Text: snap.TextToType})
		return Transition{State: next, Commands: cmds}
	case model.StatusInProgress:
		if next.IsHost {
			next.Mode = ModeSpectating
			next.Spectators = ProjectSpectators(snap)
			return Transition{State: next}
		}
		next.Mode = ModeTyping
		if prior.SessionPhase == typing.PhaseStarted {
			return Transition{State: next}
		}
		if snap.TextToType == "" {
			return Transition{State: next, Err: ErrMissingTargetText}
		}
		var cmds []Command
		if prior.SessionTarget != "" && prior.SessionTarget != snap.TextToType {
			cmds = append(cmds, Command{Kind: CmdResetSession})
		}
		cmds = append(cmds, Command{Kind: CmdStartSession, Text: snap.TextToType})
		return Transition{State: next, Commands: cmds}
	case model.StatusTallying:
		next.Mode = ModeTallying
		switch {
		case prior.SessionPhase == typing.PhaseFinished:
			return Transition{State: next}
		case prior.SessionPhase == typing.PhaseStarted:
			// A player promoted to host mid-round still owes a result.
			return Transition{State: next, Commands: []Command{{Kind: CmdForceFinish}}}
		case next.IsHost:
			return Transition{State: next}
		}
		if prior.SessionTarget == "" {
			return Transition{State: next, Err: ErrMissingTargetText}
		}
		return Transition{State: next, Commands: []Command{{Kind: CmdForceFinish}}}
	default:
		next.Mode = ModeResults
		next.Leaderboard = ProjectLeaderboard(snap.Results, prior.SelfID)
		return Transition{State: next}
	}
}
