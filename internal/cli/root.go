package cli

import (
	"context"

	"github.com/jakoblorz/go-graft/internal/filesystem"
	"github.com/spf13/cobra"
)

// NewRootCommand creates the root command
func NewRootCommand(fs filesystem.FileSystem) *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "graft",
		Short: "Install and remove code modules in a project",
		Long: `A CLI tool that grafts self-contained feature modules into an existing project.

Each module's code is injected after anchor strings in the project's files,
wrapped in sentinel comments so it can be found and removed again. Every
install and uninstall is transactional: on failure all touched files are
restored byte for byte.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.root, "root", "", "Project root (default: detected from the working directory)")

	// Add subcommands
	rootCmd.AddCommand(NewInstallCommand(fs, opts))
	rootCmd.AddCommand(NewUninstallCommand(fs, opts))
	rootCmd.AddCommand(NewDoctorCommand(fs, opts))
	rootCmd.AddCommand(NewValidateCommand(fs))
	rootCmd.AddCommand(NewListCommand(fs, opts))
	rootCmd.AddCommand(NewCleanupCommand(fs, opts))

	return rootCmd
}

// Execute runs the root command against the real filesystem
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand(filesystem.NewOSFileSystem())
	return rootCmd.ExecuteContext(ctx)
}
