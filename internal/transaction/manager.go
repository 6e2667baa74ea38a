// Package transaction backs up files before they are mutated so a failed
// multi-file edit can be undone byte for byte.
//
// Each transaction owns .graft/backups/<id>/, which mirrors the project's
// relative paths. Commit and Discard delete that directory; Rollback copies
// every file in it back over the original first. A directory that survives
// a crash is picked up again by Pending and Cleanup.
package transaction

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jakoblorz/go-graft/internal/logging"
	"github.com/jakoblorz/go-graft/internal/project"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const idTimeLayout = "20060102T150405"

// Info describes a backup directory left on disk.
type Info struct {
	ID        string
	CreatedAt time.Time
	Age       time.Duration
	Files     int
}

// Manager creates transactions and maintains the backups directory.
type Manager struct {
	project *project.Project
	now     func() time.Time
	logger  *log.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source used for ids and age calculations.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager for p.
func NewManager(p *project.Project, opts ...Option) *Manager {
	m := &Manager{
		project: p,
		now:     time.Now,
		logger:  logging.Discard(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Begin starts a new transaction. Nothing is written until Backup is called.
func (m *Manager) Begin() (*Transaction, error) {
	id, err := m.newID()
	if err != nil {
		return nil, err
	}

	m.logger.Debug("transaction started", "id", id)

	return &Transaction{
		manager: m,
		id:      id,
		dir:     filepath.Join(m.project.BackupsDir(), id),
		state:   StatePending,
		seen:    map[string]struct{}{},
	}, nil
}

// Pending lists backup directories still on disk, oldest first.
func (m *Manager) Pending() ([]Info, error) {
	fsys := m.project.FileSystem()
	dir := m.project.BackupsDir()
	if !fsys.Exists(dir) {
		return []Info{}, nil
	}

	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read backups directory: %w", err)
	}

	now := m.now()
	infos := []Info{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		created, err := m.createdAt(entry)
		if err != nil {
			return nil, err
		}

		count, err := countFiles(fsys, filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}

		infos = append(infos, Info{
			ID:        entry.Name(),
			CreatedAt: created,
			Age:       now.Sub(created),
			Files:     count,
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})

	return infos, nil
}

// Stale lists the pending backups older than maxAgeDays, oldest first.
func (m *Manager) Stale(maxAgeDays int) ([]Info, error) {
	if maxAgeDays < 0 {
		return nil, fmt.Errorf("max age must not be negative, got %d", maxAgeDays)
	}

	pending, err := m.Pending()
	if err != nil {
		return nil, err
	}

	threshold := time.Duration(maxAgeDays) * 24 * time.Hour
	stale := []Info{}
	for _, info := range pending {
		if info.Age > threshold {
			stale = append(stale, info)
		}
	}
	return stale, nil
}

// Cleanup deletes backup directories older than maxAgeDays and returns their ids.
func (m *Manager) Cleanup(maxAgeDays int) ([]string, error) {
	stale, err := m.Stale(maxAgeDays)
	if err != nil {
		return nil, err
	}

	removed := []string{}
	for _, info := range stale {
		if err := m.project.FileSystem().RemoveAll(filepath.Join(m.project.BackupsDir(), info.ID)); err != nil {
			return removed, fmt.Errorf("failed to remove backup %s: %w", info.ID, err)
		}

		m.logger.Info("removed stale backup", "id", info.ID, "age", info.Age.Round(time.Minute))
		removed = append(removed, info.ID)
	}

	return removed, nil
}

func (m *Manager) newID() (string, error) {
	suffix, err := gonanoid.Generate("0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz", 8)
	if err != nil {
		return "", fmt.Errorf("failed to generate nanoid: %w", err)
	}

	return fmt.Sprintf("%s-%s", m.now().UTC().Format(idTimeLayout), suffix), nil
}

// createdAt reads the timestamp embedded in a transaction id, falling back
// to the directory's modification time for foreign names.
func (m *Manager) createdAt(entry fs.DirEntry) (time.Time, error) {
	if ts, ok := ParseID(entry.Name()); ok {
		return ts, nil
	}

	info, err := entry.Info()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to stat backup %s: %w", entry.Name(), err)
	}
	return info.ModTime(), nil
}

// ParseID extracts the creation time from a transaction id.
func ParseID(id string) (time.Time, bool) {
	stamp, _, ok := strings.Cut(id, "-")
	if !ok {
		return time.Time{}, false
	}

	ts, err := time.Parse(idTimeLayout, stamp)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
