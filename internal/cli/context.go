package cli

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/jakoblorz/go-graft/internal/config"
	"github.com/jakoblorz/go-graft/internal/filesystem"
	"github.com/jakoblorz/go-graft/internal/logging"
	"github.com/jakoblorz/go-graft/internal/project"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	root string
}

// session is the resolved project a command operates on.
type session struct {
	project *project.Project
	config  *config.Config
	logger  *log.Logger
}

// resolveProject uses --root when given, otherwise walks up from the
// working directory.
func (o *rootOptions) resolveProject(fs filesystem.FileSystem) (*project.Project, error) {
	if o.root == "" {
		p, err := project.Detect(fs)
		if err != nil {
			return nil, fmt.Errorf("failed to detect project: %w", err)
		}
		return p, nil
	}

	root, err := absPath(fs, o.root)
	if err != nil {
		return nil, err
	}
	if !fs.Exists(root) {
		return nil, fmt.Errorf("project root %s does not exist", root)
	}
	return project.New(fs, root), nil
}

// loadSession resolves the project, reads graft.yaml and builds a logger
// writing to stderr at the configured level.
func loadSession(fs filesystem.FileSystem, opts *rootOptions, stderr io.Writer) (*session, error) {
	p, err := opts.resolveProject(fs)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(p)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(stderr, cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	return &session{
		project: p,
		config:  cfg,
		logger:  logger.With("root", p.Root),
	}, nil
}

// absPath resolves path against the working directory of fs.
func absPath(fs filesystem.FileSystem, path string) (string, error) {
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}

	cwd, err := fs.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return filepath.Join(cwd, path), nil
}
