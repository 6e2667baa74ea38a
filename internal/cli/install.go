package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jakoblorz/go-graft/internal/filesystem"
	"github.com/jakoblorz/go-graft/internal/installer"
	"github.com/jakoblorz/go-graft/internal/manifest"
	"github.com/jakoblorz/go-graft/internal/scripts"
	"github.com/spf13/cobra"
)

// InstallCommand handles the install command
type InstallCommand struct {
	fs   filesystem.FileSystem
	opts *rootOptions
	now  func() time.Time
}

// NewInstallCommand creates a new install command
func NewInstallCommand(fs filesystem.FileSystem, opts *rootOptions) *cobra.Command {
	cmd := &InstallCommand{fs: fs, opts: opts, now: time.Now}

	cobraCmd := &cobra.Command{
		Use:   "install <manifest.json>",
		Short: "Install a module into the project",
		Long: `Validates the module manifest and injects every code block it declares.

All target files are backed up before the first edit. If any injection fails
(missing file, missing anchor, module already present) every file is restored
and nothing is recorded in the registry.`,
		Example: `  # Install a module from its manifest
  graft install ./modules/pay/manifest.json

  # Install into a project other than the current one
  graft install --root ../shop ./modules/pay/manifest.json`,
		Args: cobra.ExactArgs(1),
		RunE: cmd.Run,
	}

	return cobraCmd
}

// Run executes the install command
func (c *InstallCommand) Run(cmd *cobra.Command, args []string) error {
	s, err := loadSession(c.fs, c.opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	path, err := absPath(c.fs, args[0])
	if err != nil {
		return err
	}

	m, err := manifest.NewParser(c.fs).Parse(path)
	if err != nil {
		return fmt.Errorf("failed to load manifest: %w", err)
	}

	res, err := newInstaller(cmd, s, c.now).Install(commandContext(cmd), m)
	out := cmd.OutOrStdout()
	if res != nil && res.State == installer.StateCommitted {
		_, _ = fmt.Fprintf(out, "✓ Installed %s@%s (%d file(s) modified)\n", res.Module, res.Version, len(res.Files))
		for _, f := range res.Files {
			_, _ = fmt.Fprintf(out, "  - %s\n", f)
		}
	}
	if err != nil {
		if res != nil && res.State == installer.StateRolledBack {
			_, _ = fmt.Fprintf(out, "✗ Install of %s failed, project restored\n", m.Name)
		}
		return fmt.Errorf("failed to install %s: %w", m.Name, err)
	}

	return nil
}

// newInstaller builds an Installer for the session. Lifecycle scripts only
// run when scripts.enabled is set.
func newInstaller(cmd *cobra.Command, s *session, now func() time.Time) *installer.Installer {
	opts := []installer.Option{
		installer.WithLogger(s.logger),
		installer.WithClock(now),
	}
	if s.config.Scripts.Enabled {
		runner := scripts.NewRunner(s.project.Root,
			scripts.WithOutput(cmd.OutOrStdout(), cmd.ErrOrStderr()),
			scripts.WithLogger(s.logger),
		)
		opts = append(opts, installer.WithScripts(runner))
	}
	return installer.New(s.project, opts...)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
