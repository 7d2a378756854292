package race

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/verte-zerg/typerace/internal/model"
)

const noHostNickname = "Waiting..."

// SpectatorCard is one non-host participant as shown to the host.
type SpectatorCard struct {
	ID       string
	Nickname string
	Progress float64
	Status   string
}

// ProjectSpectators builds the host's cards from scratch for every player
// except the host.
func ProjectSpectators(snap model.RoundSnapshot) []SpectatorCard {
	results := make(map[string]model.Result, len(snap.Results))
	for _, r := range snap.Results {
		results[r.ID] = r
	}
	cards := make([]SpectatorCard, 0, len(snap.Players))
	for id, p := range snap.Players {
		if id == snap.HostID {
			continue
		}
		status := p.Status
		if status == "" {
			status = model.PlayerPlaying
		}
		if r, ok := results[id]; ok && status == model.PlayerFinished {
			status = fmt.Sprintf("Finished (%s WPM)", strconv.FormatFloat(r.WPM, 'f', -1, 64))
		}
		cards = append(cards, SpectatorCard{
			ID:       id,
			Nickname: p.Nickname,
			Progress: min(max(p.Progress, 0), 100),
			Status:   status,
		})
	}
	sort.Slice(cards, func(i, j int) bool {
		if cards[i].Nickname == cards[j].Nickname {
			return cards[i].ID < cards[j].ID
		}
		return cards[i].Nickname < cards[j].Nickname
	})
	return cards
}

// LobbyEntry is one roster line.
type LobbyEntry struct {
	ID       string
	Nickname string
	IsHost   bool
	IsSelf   bool
}

// Lobby is the waiting-room projection.
type Lobby struct {
	Players      []LobbyEntry
	HostNickname string
	SelfNickname string
	CanStart     bool
}

// ProjectLobby builds the roster sorted by nickname.
func ProjectLobby(snap model.RoundSnapshot, selfID string) Lobby {
	lobby := Lobby{HostNickname: noHostNickname}
	for id, p := range snap.Players {
		entry := LobbyEntry{ID: id, Nickname: p.Nickname, IsHost: id == snap.HostID, IsSelf: id == selfID}
		if entry.IsHost {
			lobby.HostNickname = p.Nickname
		}
		if entry.IsSelf {
			lobby.SelfNickname = p.Nickname
		}
		lobby.Players = append(lobby.Players, entry)
	}
	sort.Slice(lobby.Players, func(i, j int) bool {
		a, b := lobby.Players[i], lobby.Players[j]
		if a.Nickname == b.Nickname {
			return a.ID < b.ID
		}
		return a.Nickname < b.Nickname
	})
	lobby.CanStart = selfID != "" && selfID == snap.HostID
	return lobby
}

// Standing is one leaderboard row.
type Standing struct {
	Rank     int
	ID       string
	Nickname string
	WPM      float64
	Accuracy float64
	Reason   string
	IsSelf   bool
}

// Leaderboard splits results into ranked and eliminated rows.
type Leaderboard struct {
	Ranked     []Standing
	Eliminated []Standing
}

// Empty reports whether there is nothing to show.
func (l Leaderboard) Empty() bool {
	return len(l.Ranked) == 0 && len(l.Eliminated) == 0
}

// ProjectLeaderboard ranks completed results in delivered order and lists
// eliminated ones after them without a rank.
func ProjectLeaderboard(results []model.Result, selfID string) Leaderboard {
	var lb Leaderboard
	for _, r := range results {
		row := Standing{
			ID:       r.ID,
			Nickname: r.Nickname,
			WPM:      r.WPM,
			Accuracy: r.Accuracy,
			IsSelf:   selfID != "" && r.ID == selfID,
		}
		if r.Status == model.ResultEliminated {
			row.Reason = r.EliminationReason
			if row.Reason == "" {
				row.Reason = "Eliminated"
			}
			lb.Eliminated = append(lb.Eliminated, row)
			continue
		}
		row.Rank = len(lb.Ranked) + 1
		lb.Ranked = append(lb.Ranked, row)
	}
	return lb
}
