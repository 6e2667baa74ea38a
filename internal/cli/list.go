package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/jakoblorz/go-graft/internal/filesystem"
	"github.com/jakoblorz/go-graft/internal/registry"
	"github.com/spf13/cobra"
)

// ListCommand handles the list command
type ListCommand struct {
	fs   filesystem.FileSystem
	opts *rootOptions
	json bool
}

// NewListCommand creates a new list command
func NewListCommand(fs filesystem.FileSystem, opts *rootOptions) *cobra.Command {
	cmd := &ListCommand{fs: fs, opts: opts}

	cobraCmd := &cobra.Command{
		Use:   "list",
		Short: "List installed modules",
		Args:  cobra.NoArgs,
		RunE:  cmd.Run,
	}

	cobraCmd.Flags().BoolVar(&cmd.json, "json", false, "Output the registry entries as JSON")

	return cobraCmd
}

// Run executes the list command
func (c *ListCommand) Run(cmd *cobra.Command, args []string) error {
	s, err := loadSession(c.fs, c.opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	reg, err := registry.NewStore(s.project).Load()
	if err != nil {
		return err
	}

	entries := reg.Installed()
	out := cmd.OutOrStdout()

	if c.json {
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal registry entries: %w", err)
		}
		_, _ = fmt.Fprintln(out, string(data))
		return nil
	}

	if len(entries) == 0 {
		_, _ = fmt.Fprintln(out, "No modules installed.")
		return nil
	}

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers("MODULE", "VERSION", "INSTALLED").
		StyleFunc(func(row, col int) lipgloss.Style {
			style := lipgloss.NewStyle().PaddingRight(2)
			if row == table.HeaderRow {
				return style.Bold(true)
			}
			return style
		})

	for _, entry := range entries {
		t.Row(entry.Name, displayVersion(entry.Version), entry.InstalledAt.Local().Format(time.DateTime))
	}

	_, _ = fmt.Fprintln(out, t.String())
	_, _ = fmt.Fprintf(out, "%d module(s) installed\n", len(entries))
	return nil
}

func displayVersion(raw string) string {
	v, err := semver.NewVersion(raw)
	if err != nil {
		return raw
	}
	if v.Prerelease() != "" {
		return v.String() + " (prerelease)"
	}
	return v.String()
}
