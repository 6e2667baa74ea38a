package project

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	gitignore "github.com/denormal/go-gitignore"
	"github.com/jakoblorz/go-graft/internal/filesystem"
)

const (
	// StateDirName is the per-project directory graft keeps its state in.
	StateDirName = ".graft"
	// ConfigFileName is the optional project configuration file.
	ConfigFileName = "graft.yaml"
)

var rootMarkers = []string{StateDirName, ConfigFileName, "package.json"}

// Project is a handle on one project root and the .graft state layout under it.
type Project struct {
	fs   filesystem.FileSystem
	Root string
}

// New creates a Project rooted at root. The directory is not required to
// contain any graft state yet.
func New(fs filesystem.FileSystem, root string) *Project {
	return &Project{
		fs:   fs,
		Root: filepath.Clean(root),
	}
}

// Detect walks up from the working directory to the first directory holding
// .graft/, graft.yaml or package.json.
func Detect(fs filesystem.FileSystem) (*Project, error) {
	cwd, err := fs.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	dir := filepath.Clean(cwd)
	for {
		for _, marker := range rootMarkers {
			if fs.Exists(filepath.Join(dir, marker)) {
				return New(fs, dir), nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, fmt.Errorf("project root not found from %s (no %s, %s or package.json)", cwd, StateDirName, ConfigFileName)
		}
		dir = parent
	}
}

// FileSystem returns the filesystem the project performs I/O through.
func (p *Project) FileSystem() filesystem.FileSystem {
	return p.fs
}

// StateDir returns the path to the .graft directory.
func (p *Project) StateDir() string {
	return filepath.Join(p.Root, StateDirName)
}

// RegistryPath returns the path to the installed-module registry.
func (p *Project) RegistryPath() string {
	return filepath.Join(p.StateDir(), "registry.json")
}

// ModuleDir returns the cache directory for one module.
func (p *Project) ModuleDir(name string) string {
	return filepath.Join(p.StateDir(), "modules", name)
}

// CachedManifestPath returns where the manifest of an installed module is cached.
func (p *Project) CachedManifestPath(name string) string {
	return filepath.Join(p.ModuleDir(name), "manifest.json")
}

// BackupsDir returns the directory transactions keep their backups in.
func (p *Project) BackupsDir() string {
	return filepath.Join(p.StateDir(), "backups")
}

// ConfigPath returns the path to graft.yaml.
func (p *Project) ConfigPath() string {
	return filepath.Join(p.Root, ConfigFileName)
}

// Resolve turns a root-relative path into an absolute one. Paths that would
// leave the project root are rejected.
func (p *Project) Resolve(rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("path %s must be relative to the project root", rel)
	}

	abs := filepath.Join(p.Root, rel)
	back, err := filepath.Rel(p.Root, abs)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", rel, err)
	}
	if back == ".." || strings.HasPrefix(back, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s escapes the project root", rel)
	}

	return abs, nil
}

// BackupsIgnored reports whether the root .gitignore excludes the backups
// directory. A project without a .gitignore reports false.
func (p *Project) BackupsIgnored() (bool, error) {
	ignorePath := filepath.Join(p.Root, ".gitignore")
	if !p.fs.Exists(ignorePath) {
		return false, nil
	}

	data, err := p.fs.ReadFile(ignorePath)
	if err != nil {
		return false, fmt.Errorf("failed to read .gitignore: %w", err)
	}

	ignore := gitignore.New(bytes.NewReader(data), p.Root, nil)
	rel := filepath.ToSlash(filepath.Join(StateDirName, "backups"))
	for _, candidate := range []string{StateDirName, rel} {
		if match := ignore.Relative(candidate, true); match != nil && match.Ignore() {
			return true, nil
		}
	}

	return false, nil
}
