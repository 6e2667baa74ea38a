package models

import (
	"sort"
	"time"
)

// RegistryEntry records one module installed into a project.
type RegistryEntry struct {
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Installed   bool      `json:"installed"`
	InstalledAt time.Time `json:"installedAt"`
}

// Registry is the on-disk record of installed modules, keyed by module name.
type Registry struct {
	Modules map[string]RegistryEntry `json:"modules"`
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{Modules: make(map[string]RegistryEntry)}
}

// Installed returns the entries marked installed, sorted by name.
func (r *Registry) Installed() []RegistryEntry {
	entries := make([]RegistryEntry, 0, len(r.Modules))
	for _, entry := range r.Modules {
		if entry.Installed {
			entries = append(entries, entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
	return entries
}

// IsInstalled reports whether name has an installed entry.
func (r *Registry) IsInstalled(name string) bool {
	entry, ok := r.Modules[name]
	return ok && entry.Installed
}
