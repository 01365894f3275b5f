package report

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var brailleFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

var (
	colorAccent = lipgloss.Color("#2CD7C7")
	colorBar    = lipgloss.Color("#20B9B4")
	colorMuted  = lipgloss.Color("#5F7C86")
	colorWarn   = lipgloss.Color("#F4D03F")
	colorBest   = lipgloss.Color("#7DDC6F")
)

// Theme styles the reporter output. Styles only decorate text: every line
// is laid out the same with or without them.
type Theme struct {
	Spinner  lipgloss.Style
	Bar      lipgloss.Style
	BarEmpty lipgloss.Style
	Label    lipgloss.Style
	Value    lipgloss.Style
	Best     lipgloss.Style
	Warn     lipgloss.Style
	Title    lipgloss.Style
	Muted    lipgloss.Style

	Frames   []string
	BarWidth int

	plain bool
}

func DefaultTheme() Theme {
	return Theme{
		Spinner:  lipgloss.NewStyle().Foreground(colorAccent).Bold(true),
		Bar:      lipgloss.NewStyle().Foreground(colorBar),
		BarEmpty: lipgloss.NewStyle().Foreground(colorMuted),
		Label:    lipgloss.NewStyle().Bold(true),
		Value:    lipgloss.NewStyle().Foreground(colorAccent),
		Best:     lipgloss.NewStyle().Foreground(colorBest).Bold(true),
		Warn:     lipgloss.NewStyle().Foreground(colorWarn),
		Title:    lipgloss.NewStyle().Bold(true).Underline(true),
		Muted:    lipgloss.NewStyle().Foreground(colorMuted),
		Frames:   brailleFrames,
		BarWidth: 20,
	}
}

// PlainTheme renders no escape sequences at all. Flat output and tests
// use it.
func PlainTheme() Theme {
	t := DefaultTheme()
	t.plain = true
	return t
}

func (t Theme) render(s lipgloss.Style, text string) string {
	if t.plain {
		return text
	}
	return s.Render(text)
}

func (t Theme) frame(tick int) string {
	frames := t.Frames
	if len(frames) == 0 {
		frames = brailleFrames
	}
	if tick < 0 {
		tick = -tick
	}
	return frames[tick%len(frames)]
}

func (t Theme) bar(done, total int) string {
	width := t.BarWidth
	if width <= 0 {
		width = 20
	}
	filled := 0
	if total > 0 {
		filled = done * width / total
	}
	filled = min(max(filled, 0), width)
	return "[" +
		t.render(t.Bar, strings.Repeat("#", filled)) +
		t.render(t.BarEmpty, strings.Repeat("-", width-filled)) +
		"]"
}
