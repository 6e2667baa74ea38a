package components

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jakoblorz/go-graft/internal/tui"
)

// ConfirmModel is a yes/no prompt for destructive actions. The cursor starts
// on "No", so an accidental enter does nothing.
type ConfirmModel struct {
	message   string
	details   []string
	cursor    int
	confirmed bool
	done      bool
}

const (
	cursorYes = iota
	cursorNo
)

// NewConfirm creates a confirmation prompt. Each detail is listed below the
// message, one per line.
func NewConfirm(message string, details ...string) ConfirmModel {
	return ConfirmModel{
		message: message,
		details: details,
		cursor:  cursorNo,
	}
}

// Init initializes the component
func (m ConfirmModel) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m ConfirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "left", "h", "tab":
		m.cursor = cursorYes
	case "right", "l", "shift+tab":
		m.cursor = cursorNo
	case "enter", " ":
		return m.finish(m.cursor == cursorYes)
	case "y", "Y":
		return m.finish(true)
	case "n", "N", "ctrl+c", "esc", "q":
		return m.finish(false)
	}
	return m, nil
}

func (m ConfirmModel) finish(confirmed bool) (tea.Model, tea.Cmd) {
	m.confirmed = confirmed
	m.done = true
	return m, tea.Quit
}

// View renders the component
func (m ConfirmModel) View() string {
	if m.done {
		return ""
	}

	yes, no := "  Yes", "  No"
	if m.cursor == cursorYes {
		yes = tui.DangerStyle.Render("> Yes")
	} else {
		no = tui.SelectedStyle.Render("> No")
	}

	list := ""
	for _, d := range m.details {
		list += tui.SubtleStyle.Render("  • "+d) + "\n"
	}

	return fmt.Sprintf("%s\n%s\n%s  %s\n%s",
		m.message,
		list,
		yes, no,
		tui.HelpStyle.Render("←→ navigate • enter confirm • y/n quick select"))
}

// IsConfirmed returns whether the user confirmed
func (m ConfirmModel) IsConfirmed() bool {
	return m.confirmed
}

// IsDone returns whether the user finished
func (m ConfirmModel) IsDone() bool {
	return m.done
}
