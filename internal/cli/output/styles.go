package output

import "github.com/charmbracelet/lipgloss"

// Styles is the style set used across commands. On non-TTY output the
// styles carry no attributes, so Render returns its input unchanged.
type Styles struct {
	Header1 lipgloss.Style
	Header2 lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Info    lipgloss.Style
	JobKey  lipgloss.Style

	// Status markers carry their own text via SetString.
	StatusPassed lipgloss.Style
	StatusFailed lipgloss.Style
}

func newStyles(styled bool) *Styles {
	if !styled {
		plain := lipgloss.NewStyle()
		return &Styles{
			Header1:      plain,
			Header2:      plain,
			Bold:         plain,
			Muted:        plain,
			Success:      plain,
			Warning:      plain,
			Error:        plain,
			Info:         plain,
			JobKey:       plain,
			StatusPassed: plain.SetString("ok"),
			StatusFailed: plain.SetString("FAIL"),
		}
	}

	return &Styles{
		Header1:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Header2:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14")),
		Bold:         lipgloss.NewStyle().Bold(true),
		Muted:        lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Success:      lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		Warning:      lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		Error:        lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		Info:         lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		JobKey:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13")),
		StatusPassed: lipgloss.NewStyle().SetString("ok").Foreground(lipgloss.Color("10")),
		StatusFailed: lipgloss.NewStyle().SetString("FAIL").Foreground(lipgloss.Color("9")),
	}
}

// StatusStyle maps a build or job status to its display style.
func (s *Styles) StatusStyle(status string) lipgloss.Style {
	switch status {
	case "passed":
		return s.Success
	case "failed", "errored":
		return s.Error
	case "cancelled":
		return s.Warning
	default:
		return s.Muted
	}
}
