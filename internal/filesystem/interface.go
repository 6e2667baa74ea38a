// Package filesystem abstracts the file operations graft performs on a
// project so every component can run against an in-memory tree in tests.
package filesystem

import (
	"io/fs"
)

// FileSystem is the set of operations the project, transaction and
// installer layers need. Paths are absolute.
type FileSystem interface {
	// File operations
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte, perm fs.FileMode) error
	Remove(path string) error

	// Directory operations
	ReadDir(path string) ([]fs.DirEntry, error)
	MkdirAll(path string, perm fs.FileMode) error
	RemoveAll(path string) error

	// Path operations
	Stat(path string) (fs.FileInfo, error)
	Exists(path string) bool
	Getwd() (string, error)

	WalkDir(root string, fn fs.WalkDirFunc) error
}
