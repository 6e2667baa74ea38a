package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/jakoblorz/go-graft/internal/doctor"
	"github.com/jakoblorz/go-graft/internal/filesystem"
	"github.com/spf13/cobra"
)

// DoctorCommand handles the doctor command
type DoctorCommand struct {
	fs        filesystem.FileSystem
	opts      *rootOptions
	now       func() time.Time
	lookupEnv func(string) (string, bool)

	json bool
}

// NewDoctorCommand creates a new doctor command
func NewDoctorCommand(fs filesystem.FileSystem, opts *rootOptions) *cobra.Command {
	cmd := &DoctorCommand{
		fs:        fs,
		opts:      opts,
		now:       time.Now,
		lookupEnv: os.LookupEnv,
	}

	cobraCmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the project for drift from its installed modules",
		Long: `Audits the project without changing anything.

Checks configured anchors, the marked blocks of every installed module,
package and Go module dependencies, required environment variables and
leftover transaction backups.

Exit codes:
  0  no problems
  1  at least one error
  2  warnings only`,
		Example: `  # Human-readable report
  graft doctor

  # Machine-readable report for CI
  graft doctor --json`,
		Args: cobra.NoArgs,
		RunE: cmd.Run,
	}

	cobraCmd.Flags().BoolVar(&cmd.json, "json", false, "Output the report as JSON")

	return cobraCmd
}

// Run executes the doctor command
func (c *DoctorCommand) Run(cmd *cobra.Command, args []string) error {
	s, err := loadSession(c.fs, c.opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	d := doctor.New(s.project,
		doctor.WithAnchors(s.config.Anchors),
		doctor.WithHostVersion(s.config.Host.Version),
		doctor.WithLookupEnv(c.lookupEnv),
		doctor.WithClock(c.now),
		doctor.WithLogger(s.logger),
	)

	findings, err := d.CheckAll()
	if err != nil {
		return fmt.Errorf("failed to run checks: %w", err)
	}

	if c.json {
		err = doctor.RenderJSON(cmd.OutOrStdout(), findings)
	} else {
		err = doctor.RenderText(cmd.OutOrStdout(), findings)
	}
	if err != nil {
		return err
	}

	if code := doctor.ExitCode(findings); code != doctor.ExitClean {
		return &ExitError{Code: code}
	}
	return nil
}
