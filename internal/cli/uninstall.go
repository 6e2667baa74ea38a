package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jakoblorz/go-graft/internal/filesystem"
	"github.com/jakoblorz/go-graft/internal/installer"
	"github.com/jakoblorz/go-graft/internal/models"
	"github.com/jakoblorz/go-graft/internal/registry"
	"github.com/jakoblorz/go-graft/internal/tui/uninstall"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// UninstallCommand handles the uninstall command
type UninstallCommand struct {
	fs   filesystem.FileSystem
	opts *rootOptions
	now  func() time.Time

	yes   bool
	force bool

	// Prompt seams, replaced in tests
	interactive func() bool
	pick        func(entries []models.RegistryEntry) ([]string, error)
	confirm     func(message string, names []string) (bool, error)
}

// NewUninstallCommand creates a new uninstall command
func NewUninstallCommand(fs filesystem.FileSystem, opts *rootOptions) *cobra.Command {
	cmd := &UninstallCommand{
		fs:          fs,
		opts:        opts,
		now:         time.Now,
		interactive: stdioIsTerminal,
		pick: func(entries []models.RegistryEntry) ([]string, error) {
			return uninstall.NewFlow(entries).Run()
		},
		confirm: uninstall.Confirm,
	}

	cobraCmd := &cobra.Command{
		Use:   "uninstall [name...]",
		Short: "Remove installed modules from the project",
		Long: `Removes every marked block an installed module injected and drops it from
the registry. Each module is removed in its own transaction.

Without names, an interactive picker lists the installed modules.`,
		Example: `  # Pick modules interactively
  graft uninstall

  # Remove a module without prompting
  graft uninstall pay --yes

  # Unregister a module whose blocks were already deleted by hand
  graft uninstall pay --yes --force`,
		RunE: cmd.Run,
	}

	cobraCmd.Flags().BoolVarP(&cmd.yes, "yes", "y", false, "Skip the confirmation prompt")
	cobraCmd.Flags().BoolVar(&cmd.force, "force", false, "Skip files and blocks that are already gone")

	return cobraCmd
}

// Run executes the uninstall command
func (c *UninstallCommand) Run(cmd *cobra.Command, args []string) error {
	s, err := loadSession(c.fs, c.opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	names, err := c.selectModules(s, args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(names) == 0 {
		_, _ = fmt.Fprintln(out, "No modules selected.")
		return nil
	}

	inst := newInstaller(cmd, s, c.now)
	var errs []error
	for _, name := range names {
		res, err := inst.UninstallByName(commandContext(cmd), name, installer.UninstallOptions{Force: c.force})
		if err != nil {
			_, _ = fmt.Fprintf(out, "✗ %s: %v\n", name, err)
			errs = append(errs, fmt.Errorf("failed to uninstall %s: %w", name, err))
			continue
		}
		_, _ = fmt.Fprintf(out, "✓ Uninstalled %s@%s (%d file(s) modified)\n", res.Module, res.Version, len(res.Files))
	}

	return errors.Join(errs...)
}

// selectModules returns the modules to remove. A nil result means the user
// backed out.
func (c *UninstallCommand) selectModules(s *session, args []string) ([]string, error) {
	if len(args) == 0 {
		if !c.interactive() {
			return nil, fmt.Errorf("no module names given (run on a terminal to pick interactively)")
		}

		reg, err := registry.NewStore(s.project).Load()
		if err != nil {
			return nil, err
		}
		return c.pick(reg.Installed())
	}

	if c.yes {
		return args, nil
	}
	if !c.interactive() {
		return nil, fmt.Errorf("refusing to uninstall without confirmation; pass --yes")
	}

	ok, err := c.confirm(fmt.Sprintf("Remove %d module(s)?", len(args)), args)
	if err != nil || !ok {
		return nil, err
	}
	return args, nil
}

func stdioIsTerminal() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())
}
