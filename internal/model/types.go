// Package model defines shared data structures.
package model

import "time"

// RoundStatus is the server-authoritative phase of a round.
type RoundStatus string

// Round statuses as broadcast by the server.
const (
	StatusWaiting    RoundStatus = "WAITING"
	StatusCountdown  RoundStatus = "COUNTDOWN"
	StatusInProgress RoundStatus = "IN_PROGRESS"
	StatusTallying   RoundStatus = "TALLYING"
	StatusResults    RoundStatus = "RESULTS"
)

// Valid reports whether s is one of the known round statuses.
func (s RoundStatus) Valid() bool {
	switch s {
	case StatusWaiting, StatusCountdown, StatusInProgress, StatusTallying, StatusResults:
		return true
	default:
		return false
	}
}

// Player and result status labels used by the server.
const (
	PlayerPlaying    = "playing"
	PlayerSpectating = "spectating"
	PlayerFinished   = "finished"

	ResultCompleted  = "completed"
	ResultEliminated = "eliminated"
)

// Player is one participant as seen in a snapshot.
type Player struct {
	ID       string  `json:"id"`
	Nickname string  `json:"nickname"`
	Progress float64 `json:"progress"`
	Status   string  `json:"status"`
}

// Result is one leaderboard entry.
type Result struct {
	ID                string  `json:"id"`
	Nickname          string  `json:"nickname"`
	WPM               float64 `json:"wpm"`
	Accuracy          float64 `json:"accuracy"`
	Mistakes          int     `json:"mistakes"`
	Status            string  `json:"status,omitempty"`
	EliminationReason string  `json:"elimination_reason,omitempty"`
}

// RoundSnapshot is a full round state broadcast by the server.
type RoundSnapshot struct {
	Status     RoundStatus       `json:"status"`
	Players    map[string]Player `json:"players"`
	HostID     string            `json:"host_sid"`
	TextToType string            `json:"text_to_type"`
	Results    []Result          `json:"results"`
}

// TimerTick carries the server-side remaining time of a round.
type TimerTick struct {
	Remaining int `json:"remaining"`
}

// Identity is the participant id assigned by the server on connect.
type Identity struct {
	ID string `json:"sid"`
}

// CharState classifies one character of the target text.
type CharState uint8

// Character states.
const (
	CharUntyped CharState = iota
	CharCurrent
	CharCorrect
	CharIncorrect
)

func (c CharState) String() string {
	switch c {
	case CharCurrent:
		return "current"
	case CharCorrect:
		return "correct"
	case CharIncorrect:
		return "incorrect"
	default:
		return "untyped"
	}
}

// Metrics are the typing metrics reported for a round.
type Metrics struct {
	WPM      int `json:"wpm"`
	Accuracy int `json:"accuracy"`
	Mistakes int `json:"mistakes"`
}

// SessionFinished is emitted exactly once per round when typing ends.
type SessionFinished struct {
	RoundID     string
	Metrics     Metrics
	EarlyFinish bool
	StartedAt   time.Time
	EndedAt     time.Time
	TextLength  int
	TypedLength int
	Chars       []CharStats
}

// Config defines client settings.
type Config struct {
	ServerURL string
	Nickname  string
	Countdown int
	LogLevel  string
}

// CharStats stores per-character stats for a round.
type CharStats struct {
	Char      string
	Correct   int
	Incorrect int
}

// RoundRecord is a finished round persisted in the local history.
type RoundRecord struct {
	RoundID     string
	ServerURL   string
	StartedAt   time.Time
	EndedAt     time.Time
	TextLength  int
	TypedLength int
	WPM         int
	Accuracy    int
	Mistakes    int
	EarlyFinish bool
}

// HistoryConfig defines filters for history output.
type HistoryConfig struct {
	Since *time.Time
	Last  int
}

// CharAggregate aggregates character stats across rounds.
type CharAggregate struct {
	Char      string
	Correct   int
	Incorrect int
}

// RoundAggregate summarizes a stored round for reporting.
type RoundAggregate struct {
	ID          int64
	EndedAt     time.Time
	WPM         int
	Accuracy    int
	Mistakes    int
	EarlyFinish bool
}
