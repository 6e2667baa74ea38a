// Package registry persists which modules are installed in a project along
// with a cached copy of each installed module's manifest.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/jakoblorz/go-graft/internal/manifest"
	"github.com/jakoblorz/go-graft/internal/models"
	"github.com/jakoblorz/go-graft/internal/project"
)

// Store reads and writes .graft/registry.json and .graft/modules/<name>/manifest.json.
type Store struct {
	project *project.Project
	parser  *manifest.Parser
}

// NewStore creates a Store for p.
func NewStore(p *project.Project) *Store {
	return &Store{
		project: p,
		parser:  manifest.NewParser(p.FileSystem()),
	}
}

// Load reads the registry. A project without a registry file has an empty one.
func (s *Store) Load() (*models.Registry, error) {
	path := s.project.RegistryPath()

	data, err := s.project.FileSystem().ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.NewRegistry(), nil
		}
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}

	reg := models.NewRegistry()
	if err := json.Unmarshal(data, reg); err != nil {
		return nil, fmt.Errorf("failed to parse registry %s: %w", path, err)
	}
	if reg.Modules == nil {
		reg.Modules = make(map[string]models.RegistryEntry)
	}

	return reg, nil
}

// Save writes the registry, creating .graft/ when needed.
func (s *Store) Save(reg *models.Registry) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	return s.write(s.project.RegistryPath(), append(data, '\n'))
}

// Add records entry, replacing any previous entry of the same name.
func (s *Store) Add(entry models.RegistryEntry) error {
	reg, err := s.Load()
	if err != nil {
		return err
	}

	reg.Modules[entry.Name] = entry
	return s.Save(reg)
}

// Remove deletes the entry for name. Removing an unknown name is a no-op.
func (s *Store) Remove(name string) error {
	reg, err := s.Load()
	if err != nil {
		return err
	}

	if _, ok := reg.Modules[name]; !ok {
		return nil
	}

	delete(reg.Modules, name)
	return s.Save(reg)
}

// SaveManifest caches m under .graft/modules/<name>/manifest.json.
func (s *Store) SaveManifest(m *models.Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	return s.write(s.project.CachedManifestPath(m.Name), append(data, '\n'))
}

// LoadManifest reads and re-validates the cached manifest of name. Errors
// are the manifest package's typed errors.
func (s *Store) LoadManifest(name string) (*models.Manifest, error) {
	return s.parser.Parse(s.project.CachedManifestPath(name))
}

// RemoveManifest deletes the module's cache directory.
func (s *Store) RemoveManifest(name string) error {
	if err := s.project.FileSystem().RemoveAll(s.project.ModuleDir(name)); err != nil {
		return fmt.Errorf("failed to remove cached manifest for %s: %w", name, err)
	}
	return nil
}

func (s *Store) write(path string, data []byte) error {
	fsys := s.project.FileSystem()
	if err := fsys.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}

	if err := fsys.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
