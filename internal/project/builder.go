package project

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jakoblorz/go-graft/internal/filesystem"
)

// Builder helps create test projects on an in-memory filesystem.
type Builder struct {
	fs   *filesystem.MockFileSystem
	root string
}

// NewBuilder creates a Builder with an empty project at root.
func NewBuilder(root string) *Builder {
	fs := filesystem.NewMockFileSystem()
	fs.AddDir(root)
	fs.AddDir(filepath.Join(root, StateDirName))
	fs.SetCurrentDir(root)

	return &Builder{
		fs:   fs,
		root: root,
	}
}

// AddFile adds a file relative to the project root.
func (b *Builder) AddFile(rel, content string) *Builder {
	b.fs.AddFile(filepath.Join(b.root, rel), []byte(content))
	return b
}

// AddPackageJSON writes a package.json declaring deps as runtime dependencies.
func (b *Builder) AddPackageJSON(name string, deps map[string]string) *Builder {
	pkg := packageJSON{Name: name, Dependencies: deps}
	data, err := json.MarshalIndent(pkg, "", "  ")
	if err != nil {
		panic(fmt.Sprintf("failed to marshal package.json: %v", err))
	}
	b.fs.AddFile(filepath.Join(b.root, "package.json"), append(data, '\n'))
	return b
}

// AddGoMod writes a go.mod for modulePath requiring the given module versions.
func (b *Builder) AddGoMod(modulePath string, requires map[string]string) *Builder {
	var sb strings.Builder
	fmt.Fprintf(&sb, "module %s\n\ngo 1.24\n", modulePath)

	if len(requires) > 0 {
		paths := make([]string, 0, len(requires))
		for p := range requires {
			paths = append(paths, p)
		}
		sort.Strings(paths)

		sb.WriteString("\nrequire (\n")
		for _, p := range paths {
			fmt.Fprintf(&sb, "\t%s %s\n", p, requires[p])
		}
		sb.WriteString(")\n")
	}

	b.fs.AddFile(filepath.Join(b.root, "go.mod"), []byte(sb.String()))
	return b
}

// AddConfig writes graft.yaml with the given content.
func (b *Builder) AddConfig(content string) *Builder {
	b.fs.AddFile(filepath.Join(b.root, ConfigFileName), []byte(content))
	return b
}

// Build returns the project handle and its filesystem.
func (b *Builder) Build() (*Project, *filesystem.MockFileSystem) {
	return New(b.fs, b.root), b.fs
}

// FileSystem returns the mock filesystem
func (b *Builder) FileSystem() *filesystem.MockFileSystem {
	return b.fs
}
