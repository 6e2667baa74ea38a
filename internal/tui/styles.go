package tui

import (
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

var (
	accent = lipgloss.Color("#F97316")
	muted  = lipgloss.Color("#888888")
	info   = lipgloss.Color("#3B82F6")

	// Selected item styling
	SelectedStyle = lipgloss.NewStyle().
			Foreground(accent).
			Bold(true)

	// Help text styling
	HelpStyle = lipgloss.NewStyle().
			Foreground(muted).
			MarginTop(1)

	// Danger styling for destructive prompts
	DangerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	SubtleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// NewHuhTheme returns the orange/blue theme shared by graft's forms.
func NewHuhTheme() *huh.Theme {
	t := huh.ThemeBase()

	t.Focused.Title = t.Focused.Title.Foreground(accent).Bold(true)
	t.Focused.Description = t.Focused.Description.Foreground(muted)
	t.Focused.SelectSelector = t.Focused.SelectSelector.Foreground(accent)
	t.Focused.MultiSelectSelector = t.Focused.MultiSelectSelector.Foreground(accent)
	t.Focused.SelectedOption = t.Focused.SelectedOption.Foreground(info)
	t.Focused.SelectedPrefix = lipgloss.NewStyle().Foreground(info).SetString("[x] ")
	t.Focused.UnselectedPrefix = lipgloss.NewStyle().Foreground(muted).SetString("[ ] ")
	t.Focused.ErrorMessage = t.Focused.ErrorMessage.Foreground(lipgloss.Color("#FF0000"))
	t.Blurred = t.Focused

	return t
}
