package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/typerace/internal/race"
)

// View implements tea.Model.
func (m *Model) View() string {
	f := m.engine.Frame()
	var content string
	switch f.State.Mode {
	case race.ModeLobby:
		content = m.renderLobby(f)
	case race.ModeCountdown:
		content = m.renderCountdown(f)
	case race.ModeTyping:
		content = m.renderTyping(f)
	case race.ModeSpectating:
		content = m.renderSpectators(f)
	case race.ModeTallying:
		content = m.renderTallying(f)
	case race.ModeResults:
		content = m.renderResults(f)
	default:
		content = mutedStyle.Render("Connecting to " + m.config.ServerURL + "...")
	}
	if m.disconnected {
		content += "\n\n" + errorStyle.Render("Disconnected from server. Press q to quit.")
	}
	if m.status != "" {
		content += "\n\n" + errorStyle.Render(m.status)
	}
	footer := m.renderFooter(f)
	if m.width == 0 || m.height == 0 {
		if footer == "" {
			return content
		}
		return content + "\n" + footer
	}
	if footer == "" || m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	body := lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return body + "\n" + footerLine
}

func (m *Model) contentWidth() int {
	if m.width == 0 {
		return 0
	}
	return max(1, int(float64(m.width)*0.70))
}

func (m *Model) renderLobby(f race.Frame) string {
	lobby := f.State.Lobby
	lines := []string{
		titleStyle.Render("Lobby"),
		mutedStyle.Render(fmt.Sprintf("Host: %s · %d players", lobby.HostNickname, len(lobby.Players))),
		"",
	}
	for _, p := range lobby.Players {
		line := p.Nickname
		if p.IsHost {
			line += " (host)"
		}
		if p.IsSelf {
			line = correctStyle.Render(line + " (you)")
		} else {
			line = pendingStyle.Render(line)
		}
		lines = append(lines, line)
	}
	lines = append(lines, "")
	if m.editingNick {
		lines = append(lines, m.nickInput.View())
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderCountdown(f race.Frame) string {
	lines := []string{titleStyle.Render("Get ready")}
	if m.countdown > 0 {
		lines = append(lines, noticeStyle.Render(fmt.Sprintf("%d", m.countdown)))
	}
	if len(f.Session.Target) > 0 {
		styled := buildStyledRunes(f.Session.Target, nil)
		lines = append(lines, "", m.wrap(styled))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderTyping(f race.Frame) string {
	if len(f.Session.Target) == 0 {
		return mutedStyle.Render("Waiting for the round text...")
	}
	content := m.wrap(buildStyledRunes(f.Session.Target, f.Session.Classes))
	if f.State.Notice != "" {
		content += "\n\n" + noticeStyle.Render(f.State.Notice)
	}
	return content
}

func (m *Model) renderSpectators(f race.Frame) string {
	lines := []string{titleStyle.Render("Spectating"), ""}
	if len(f.State.Spectators) == 0 {
		lines = append(lines, mutedStyle.Render("No players in this round"))
	}
	nameWidth := 0
	for _, c := range f.State.Spectators {
		nameWidth = max(nameWidth, lipgloss.Width(c.Nickname))
	}
	for _, c := range f.State.Spectators {
		name := lipgloss.NewStyle().Width(nameWidth).Render(c.Nickname)
		lines = append(lines, fmt.Sprintf("%s  %s  %s", name, m.bar.ViewAs(c.Progress/100), mutedStyle.Render(c.Status)))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderTallying(f race.Frame) string {
	lines := []string{titleStyle.Render("Tallying results...")}
	if f.State.Notice != "" {
		lines = append(lines, "", noticeStyle.Render(f.State.Notice))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderResults(f race.Frame) string {
	lb := f.State.Leaderboard
	lines := []string{titleStyle.Render("Results"), ""}
	if lb.Empty() {
		lines = append(lines, mutedStyle.Render("No results"))
		return strings.Join(lines, "\n")
	}
	if len(lb.Ranked) > 0 {
		lines = append(lines, buildLeaderboardTable(lb.Ranked).View())
	}
	if len(lb.Eliminated) > 0 {
		lines = append(lines, "", mutedStyle.Render("Eliminated"))
		for _, s := range lb.Eliminated {
			lines = append(lines, errorStyle.Render(fmt.Sprintf("%s: %s", s.Nickname, s.Reason)))
		}
	}
	return strings.Join(lines, "\n")
}

func buildLeaderboardTable(rows []race.Standing) table.Model {
	columns := []table.Column{
		{Title: "#", Width: 3},
		{Title: "Player", Width: 16},
		{Title: "WPM", Width: 6},
		{Title: "Accuracy", Width: 9},
	}
	tableRows := make([]table.Row, 0, len(rows))
	for _, s := range rows {
		name := s.Nickname
		if s.IsSelf {
			name += " *"
		}
		tableRows = append(tableRows, table.Row{
			fmt.Sprintf("%d", s.Rank),
			name,
			fmt.Sprintf("%.0f", s.WPM),
			fmt.Sprintf("%.0f%%", s.Accuracy),
		})
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(tableRows),
		table.WithHeight(len(tableRows)+1),
	)
	t.SetStyles(leaderboardStyles())
	return t
}

func leaderboardStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell
	return styles
}

func (m *Model) wrap(runes []styledRune) string {
	width := m.contentWidth()
	if width == 0 {
		return renderStyledRunes(runes)
	}
	return lipgloss.NewStyle().Width(width).Render(wrapStyledRunes(runes, width))
}

func (m *Model) renderFooter(f race.Frame) string {
	var segments []string
	switch f.State.Mode {
	case race.ModeTyping:
		segments = append(segments,
			fmt.Sprintf("Progress %d%%", int(f.Session.Progress)),
			fmt.Sprintf("%d WPM · %d%% acc · %d mistakes", f.Live.WPM, f.Live.Accuracy, f.Live.Mistakes),
		)
		if f.HasRemaining {
			segments = append(segments, fmt.Sprintf("%d:%02d left", f.Remaining/60, f.Remaining%60))
		}
	case race.ModeLobby:
		if m.editingNick {
			segments = append(segments, "enter save", "esc cancel")
			break
		}
		segments = append(segments, "n nickname")
		if f.State.Lobby.CanStart {
			segments = append(segments, "s start round")
		}
		segments = append(segments, "q quit")
	case race.ModeSpectating:
		if f.HasRemaining {
			segments = append(segments, fmt.Sprintf("%d:%02d left", f.Remaining/60, f.Remaining%60))
		}
		segments = append(segments, "e end round", "q quit")
	case race.ModeResults:
		if f.State.CanReturnToLobby() {
			segments = append(segments, "l back to lobby")
		}
		segments = append(segments, "q quit")
	default:
		return ""
	}
	return footerStyle.Render(strings.Join(segments, "  "))
}
