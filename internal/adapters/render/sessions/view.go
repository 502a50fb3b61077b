package sessions

import (
	"fmt"
	"time"

	"github.com/bnema/collab-core/internal/application"
	"github.com/charmbracelet/lipgloss"
)

type RenderOptions struct {
	Now time.Time
}

// SessionView pairs the monitoring projection of one session with its
// participant roster.
type SessionView struct {
	Info         application.SessionInfo
	Participants []application.ParticipantView
}

func renderView(views []SessionView, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Live Collaboration Sessions"),
		s.header.Render(fmt.Sprintf("sessions: %d", len(views))),
	}

	if len(views) == 0 {
		lines = append(lines, s.empty.Render("No active sessions."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, view := range views {
		lines = append(lines, s.section.Render(renderSession(view, opts, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderSession(view SessionView, opts RenderOptions, s styles) string {
	info := view.Info
	parts := []string{
		s.document.Render(string(info.DocumentID)),
		s.meta.Render(fmt.Sprintf(
			"version %d · %s (%d active) · last activity %s",
			info.Version,
			participantLabel(info.ParticipantCount),
			info.ActiveParticipants,
			formatRelative(info.LastActivity, opts.Now),
		)),
	}

	for _, p := range view.Participants {
		parts = append(parts, participantLine(p, s))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func participantLine(p application.ParticipantView, s styles) string {
	marker := lipgloss.NewStyle().Foreground(lipgloss.Color(p.Color)).Render("●")

	detail := p.Name
	switch {
	case p.Cursor != nil && p.Cursor.Selection != nil:
		detail = fmt.Sprintf("%s @ %d [%d-%d]", p.Name, p.Cursor.Position, p.Cursor.Selection.Start, p.Cursor.Selection.End)
	case p.Cursor != nil:
		detail = fmt.Sprintf("%s @ %d", p.Name, p.Cursor.Position)
	}

	line := s.detail.Render(detail)
	if !p.IsActive {
		line = s.idle.Render(detail + " (idle)")
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, marker, " ", line)
}

func participantLabel(count int) string {
	if count == 1 {
		return "1 participant"
	}
	return fmt.Sprintf("%d participants", count)
}

func formatRelative(at, now time.Time) string {
	if at.IsZero() || now.IsZero() {
		return "unknown"
	}

	elapsed := now.Sub(at)
	switch {
	case elapsed < time.Second:
		return "just now"
	case elapsed < time.Minute:
		return fmt.Sprintf("%ds ago", int(elapsed.Seconds()))
	case elapsed < time.Hour:
		return fmt.Sprintf("%dm ago", int(elapsed.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(elapsed.Hours()))
	}
}
