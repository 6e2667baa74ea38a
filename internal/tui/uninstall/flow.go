// Package uninstall holds the interactive module picker used by
// `graft uninstall` when no module names are given.
package uninstall

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	huh "github.com/charmbracelet/huh"
	"github.com/jakoblorz/go-graft/internal/models"
	"github.com/jakoblorz/go-graft/internal/tui"
	"github.com/jakoblorz/go-graft/internal/tui/components"
)

// Flow asks which installed modules to remove and confirms the choice.
type Flow struct {
	entries []models.RegistryEntry
	theme   *huh.Theme
}

// NewFlow constructs a Flow over the installed registry entries.
func NewFlow(entries []models.RegistryEntry) *Flow {
	return &Flow{
		entries: entries,
		theme:   tui.NewHuhTheme(),
	}
}

// Run executes the picker and the confirmation; returns nil on user abort or
// when nothing was selected.
func (f *Flow) Run() ([]string, error) {
	if len(f.entries) == 0 {
		return nil, nil
	}

	selected, err := f.selectModules()
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil, nil
		}
		return nil, err
	}
	if len(selected) == 0 {
		return nil, nil
	}

	ok, err := Confirm(fmt.Sprintf("Remove %d module(s)?", len(selected)), selected)
	if err != nil || !ok {
		return nil, err
	}

	return selected, nil
}

func (f *Flow) selectModules() ([]string, error) {
	selected := make([]string, 0, len(f.entries))
	opts := make([]huh.Option[string], 0, len(f.entries))
	for _, entry := range f.entries {
		opts = append(opts, huh.NewOption(OptionLabel(entry), entry.Name))
	}

	keyMap := huh.NewDefaultKeyMap()
	keyMap.MultiSelect.Filter.SetEnabled(len(f.entries) > 10)
	keyMap.MultiSelect.Toggle.SetKeys(" ")
	keyMap.MultiSelect.Toggle.SetHelp("space", "toggle selection")
	keyMap.MultiSelect.Submit.SetKeys("enter")
	keyMap.MultiSelect.Submit.SetHelp("enter", "continue")

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Options(opts...).
				Value(&selected),
		).
			Title("Uninstall Modules").
			Description("Select the modules to remove from this project."),
	).
		WithTheme(f.theme).
		WithShowHelp(true).
		WithProgramOptions(tea.WithAltScreen()).
		WithKeyMap(keyMap)

	if err := form.Run(); err != nil {
		return nil, err
	}

	return selected, nil
}

// Confirm shows a yes/no prompt listing names and reports the answer.
func Confirm(message string, names []string) (bool, error) {
	final, err := tea.NewProgram(components.NewConfirm(message, names...)).Run()
	if err != nil {
		return false, fmt.Errorf("failed to run confirmation: %w", err)
	}

	confirm, ok := final.(components.ConfirmModel)
	return ok && confirm.IsConfirmed(), nil
}

// OptionLabel renders one registry entry as a picker option.
func OptionLabel(entry models.RegistryEntry) string {
	return fmt.Sprintf("%s %s", entry.Name, tui.SubtleStyle.Render("v"+entry.Version))
}
