package cli

import (
	"fmt"
	"time"

	"github.com/jakoblorz/go-graft/internal/filesystem"
	"github.com/jakoblorz/go-graft/internal/transaction"
	"github.com/spf13/cobra"
)

// CleanupCommand handles the cleanup command
type CleanupCommand struct {
	fs   filesystem.FileSystem
	opts *rootOptions
	now  func() time.Time

	maxAgeDays int
	dryRun     bool
}

// NewCleanupCommand creates a new cleanup command
func NewCleanupCommand(fs filesystem.FileSystem, opts *rootOptions) *cobra.Command {
	cmd := &CleanupCommand{fs: fs, opts: opts, now: time.Now}

	cobraCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete stale transaction backups",
		Long: `Deletes backups under .graft/backups that an interrupted install or
uninstall left behind and that are older than the maximum age.

The maximum age defaults to backups.max_age_days from graft.yaml (7 days).`,
		Example: `  # See what would be deleted
  graft cleanup --dry-run

  # Delete every leftover backup
  graft cleanup --max-age-days 0`,
		Args: cobra.NoArgs,
		RunE: cmd.Run,
	}

	cobraCmd.Flags().IntVar(&cmd.maxAgeDays, "max-age-days", 0, "Delete backups older than this many days (default from graft.yaml)")
	cobraCmd.Flags().BoolVar(&cmd.dryRun, "dry-run", false, "List stale backups without deleting them")

	return cobraCmd
}

// Run executes the cleanup command
func (c *CleanupCommand) Run(cmd *cobra.Command, args []string) error {
	s, err := loadSession(c.fs, c.opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	maxAge := s.config.Backups.MaxAgeDays
	if cmd.Flags().Changed("max-age-days") {
		maxAge = c.maxAgeDays
	}
	if maxAge < 0 {
		return fmt.Errorf("--max-age-days must not be negative, got %d", maxAge)
	}

	txm := transaction.NewManager(s.project, transaction.WithClock(c.now), transaction.WithLogger(s.logger))
	out := cmd.OutOrStdout()

	if c.dryRun {
		stale, err := txm.Stale(maxAge)
		if err != nil {
			return err
		}

		for _, info := range stale {
			_, _ = fmt.Fprintf(out, "would remove %s (%d file(s), created %s)\n", info.ID, info.Files, info.CreatedAt.UTC().Format(time.RFC3339))
		}
		_, _ = fmt.Fprintf(out, "%d stale backup(s) older than %d day(s)\n", len(stale), maxAge)
		return nil
	}

	removed, err := txm.Cleanup(maxAge)
	for _, id := range removed {
		_, _ = fmt.Fprintf(out, "removed %s\n", id)
	}
	if err != nil {
		return fmt.Errorf("failed to clean up backups: %w", err)
	}

	_, _ = fmt.Fprintf(out, "✓ Removed %d stale backup(s)\n", len(removed))
	return nil
}
