package transaction

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/jakoblorz/go-graft/internal/filesystem"
)

// State is the lifecycle position of a Transaction.
type State string

const (
	StatePending    State = "pending"
	StateBackedUp   State = "backed-up"
	StateCommitted  State = "committed"
	StateRolledBack State = "rolled-back"
	StateDiscarded  State = "discarded"
)

// Closed reports whether the state is terminal.
func (s State) Closed() bool {
	return s == StateCommitted || s == StateRolledBack || s == StateDiscarded
}

// Transaction is a single-use backup of a set of project files.
type Transaction struct {
	manager *Manager
	id      string
	dir     string
	state   State

	seen  map[string]struct{}
	files []string
}

// ID returns the transaction id.
func (t *Transaction) ID() string { return t.id }

// State returns the current state.
func (t *Transaction) State() State { return t.state }

// Dir returns the backup directory.
func (t *Transaction) Dir() string { return t.dir }

// Files returns the root-relative paths backed up so far.
func (t *Transaction) Files() []string {
	return append([]string(nil), t.files...)
}

// Backup copies each root-relative path into the backup directory. The first
// missing path aborts with a BackupSourceMissingError; copies made before it
// stay on disk until Rollback or Discard.
func (t *Transaction) Backup(paths []string) error {
	if t.state.Closed() {
		return ErrTransactionClosed
	}

	fsys := t.manager.project.FileSystem()
	for _, rel := range paths {
		rel = filepath.Clean(rel)
		if _, done := t.seen[rel]; done {
			continue
		}

		src, err := t.manager.project.Resolve(rel)
		if err != nil {
			return err
		}

		info, err := fsys.Stat(src)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return &BackupSourceMissingError{Path: rel}
			}
			return fmt.Errorf("failed to stat %s: %w", rel, err)
		}
		if info.IsDir() {
			return fmt.Errorf("cannot back up %s: is a directory", rel)
		}

		if err := copyFile(fsys, src, filepath.Join(t.dir, rel), info.Mode().Perm()); err != nil {
			return fmt.Errorf("failed to back up %s: %w", rel, err)
		}

		t.seen[rel] = struct{}{}
		t.files = append(t.files, rel)
		t.state = StateBackedUp
		t.manager.logger.Debug("backed up file", "id", t.id, "file", rel)
	}

	return nil
}

// Rollback restores every backed-up file over its original path and deletes
// the backup directory. Restoration continues past individual failures; all
// of them are returned joined.
func (t *Transaction) Rollback() error {
	if t.state.Closed() {
		return ErrTransactionClosed
	}

	fsys := t.manager.project.FileSystem()
	var errs []error

	if fsys.Exists(t.dir) {
		walkErr := fsys.WalkDir(t.dir, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if entry.IsDir() {
				return nil
			}

			rel, err := filepath.Rel(t.dir, path)
			if err != nil {
				return err
			}

			info, err := entry.Info()
			if err != nil {
				errs = append(errs, fmt.Errorf("failed to stat backup of %s: %w", rel, err))
				return nil
			}

			dst := filepath.Join(t.manager.project.Root, rel)
			if err := copyFile(fsys, path, dst, info.Mode().Perm()); err != nil {
				errs = append(errs, fmt.Errorf("failed to restore %s: %w", rel, err))
				return nil
			}

			t.manager.logger.Debug("restored file", "id", t.id, "file", rel)
			return nil
		})
		if walkErr != nil {
			errs = append(errs, fmt.Errorf("failed to walk backup %s: %w", t.id, walkErr))
		}
	}

	t.state = StateRolledBack
	if len(errs) > 0 {
		// keep the backup so the remaining files can still be recovered by hand
		return errors.Join(errs...)
	}

	if err := fsys.RemoveAll(t.dir); err != nil {
		return fmt.Errorf("failed to remove backup %s: %w", t.id, err)
	}

	t.manager.logger.Debug("transaction rolled back", "id", t.id, "files", len(t.files))
	return nil
}

// Commit deletes the backup. It cannot be undone.
func (t *Transaction) Commit() error {
	return t.close(StateCommitted)
}

// Discard deletes a possibly partial backup without restoring anything.
func (t *Transaction) Discard() error {
	return t.close(StateDiscarded)
}

func (t *Transaction) close(state State) error {
	if t.state.Closed() {
		return ErrTransactionClosed
	}

	t.state = state
	if err := t.manager.project.FileSystem().RemoveAll(t.dir); err != nil {
		return fmt.Errorf("failed to remove backup %s: %w", t.id, err)
	}

	t.manager.logger.Debug("transaction closed", "id", t.id, "state", state)
	return nil
}

func copyFile(fsys filesystem.FileSystem, src, dst string, perm fs.FileMode) error {
	data, err := fsys.ReadFile(src)
	if err != nil {
		return err
	}

	if err := fsys.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	if perm == 0 {
		perm = 0644
	}
	return fsys.WriteFile(dst, data, perm)
}

func countFiles(fsys filesystem.FileSystem, dir string) (int, error) {
	count := 0
	err := fsys.WalkDir(dir, func(_ string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to read backup %s: %w", filepath.Base(dir), err)
	}
	return count, nil
}
