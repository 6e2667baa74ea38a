package cli

import (
	"encoding/json"
	"fmt"

	"github.com/jakoblorz/go-graft/internal/filesystem"
	"github.com/jakoblorz/go-graft/internal/manifest"
	"github.com/spf13/cobra"
)

// ValidateCommand handles the validate command
type ValidateCommand struct {
	fs   filesystem.FileSystem
	json bool
}

// NewValidateCommand creates a new validate command
func NewValidateCommand(fs filesystem.FileSystem) *cobra.Command {
	cmd := &ValidateCommand{fs: fs}

	cobraCmd := &cobra.Command{
		Use:   "validate <manifest.json>",
		Short: "Validate a module manifest",
		Long: `Checks a manifest against the manifest schema and reports every problem
found, not just the first. Exits with status 1 when the manifest is invalid.`,
		Args: cobra.ExactArgs(1),
		RunE: cmd.Run,
	}

	cobraCmd.Flags().BoolVar(&cmd.json, "json", false, "Output the result as JSON")

	return cobraCmd
}

// Run executes the validate command
func (c *ValidateCommand) Run(cmd *cobra.Command, args []string) error {
	path, err := absPath(c.fs, args[0])
	if err != nil {
		return err
	}

	result := manifest.NewParser(c.fs).Validate(path)
	out := cmd.OutOrStdout()

	if c.json {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		_, _ = fmt.Fprintln(out, string(data))
	} else if result.Valid {
		_, _ = fmt.Fprintf(out, "✓ %s is valid\n", args[0])
	} else {
		_, _ = fmt.Fprintf(out, "✗ %s is invalid:\n", args[0])
		for _, v := range result.Errors {
			_, _ = fmt.Fprintf(out, "  - %s\n", v)
		}
	}

	if !result.Valid {
		return &ExitError{Code: 1}
	}
	return nil
}
