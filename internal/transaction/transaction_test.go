package transaction

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jakoblorz/go-graft/internal/filesystem"
	"github.com/jakoblorz/go-graft/internal/project"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 9, 14, 30, 5, 0, time.UTC)

func setup(t *testing.T) (*Manager, *filesystem.MockFileSystem) {
	t.Helper()
	p, fs := project.NewBuilder("/project").
		AddFile("src/app.ts", "// graft:imports\nconsole.log('app');\n").
		AddFile("src/routes/index.ts", "export const routes = [];\n").
		AddFile(".env", "PORT=3000\n").
		Build()

	return NewManager(p, WithClock(func() time.Time { return fixedNow })), fs
}

func read(t *testing.T, fs *filesystem.MockFileSystem, path string) string {
	t.Helper()
	data, err := fs.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestBegin_IDFormat(t *testing.T) {
	m, fs := setup(t)

	tx, err := m.Begin()
	require.NoError(t, err)
	require.Regexp(t, `^20240309T143005-[0-9A-Za-z]{8}$`, tx.ID())
	require.Equal(t, StatePending, tx.State())
	require.False(t, fs.Exists(tx.Dir()), "nothing is written before Backup")

	ts, ok := ParseID(tx.ID())
	require.True(t, ok)
	require.True(t, fixedNow.Equal(ts))
}

func TestBackup_CopiesFiles(t *testing.T) {
	m, fs := setup(t)
	tx, err := m.Begin()
	require.NoError(t, err)

	require.NoError(t, tx.Backup([]string{"src/app.ts", "src/routes/index.ts", "src/app.ts"}))

	require.Equal(t, StateBackedUp, tx.State())
	require.Equal(t, []string{"src/app.ts", "src/routes/index.ts"}, tx.Files())
	require.Equal(t, "// graft:imports\nconsole.log('app');\n", read(t, fs, filepath.Join(tx.Dir(), "src/app.ts")))
	require.Equal(t, "export const routes = [];\n", read(t, fs, filepath.Join(tx.Dir(), "src/routes/index.ts")))
}

func TestBackup_MissingSource(t *testing.T) {
	m, fs := setup(t)
	tx, err := m.Begin()
	require.NoError(t, err)

	err = tx.Backup([]string{"src/app.ts", "src/missing.ts", ".env"})

	var missing *BackupSourceMissingError
	require.ErrorAs(t, err, &missing)
	require.ErrorIs(t, err, ErrBackupSourceMissing)
	require.Equal(t, "src/missing.ts", missing.Path)

	// earlier copies stay until the caller discards
	require.True(t, fs.Exists(filepath.Join(tx.Dir(), "src/app.ts")))
	require.False(t, fs.Exists(filepath.Join(tx.Dir(), ".env")))

	require.NoError(t, tx.Discard())
	require.False(t, fs.Exists(tx.Dir()))
	require.Equal(t, StateDiscarded, tx.State())
}

func TestBackup_RejectsEscapingPath(t *testing.T) {
	m, _ := setup(t)
	tx, err := m.Begin()
	require.NoError(t, err)

	err = tx.Backup([]string{"../outside.txt"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "escapes the project root")
}

func TestRollback_RestoresExactBytes(t *testing.T) {
	m, fs := setup(t)
	original := read(t, fs, "/project/src/app.ts")

	tx, err := m.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.Backup([]string{"src/app.ts", "src/routes/index.ts"}))

	fs.AddFile("/project/src/app.ts", []byte("mangled"))
	require.NoError(t, fs.Remove("/project/src/routes/index.ts"))

	require.NoError(t, tx.Rollback())

	require.Equal(t, original, read(t, fs, "/project/src/app.ts"))
	require.Equal(t, "export const routes = [];\n", read(t, fs, "/project/src/routes/index.ts"))
	require.False(t, fs.Exists(tx.Dir()))
	require.Equal(t, StateRolledBack, tx.State())
}

func TestRollback_ContinuesPastFailures(t *testing.T) {
	m, fs := setup(t)
	tx, err := m.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.Backup([]string{"src/app.ts", ".env"}))

	fs.AddFile("/project/.env", []byte("PORT=1\n"))
	fs.FailWrites("/project/src/app.ts", errors.New("disk full"))

	err = tx.Rollback()
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to restore src/app.ts")

	require.Equal(t, "PORT=3000\n", read(t, fs, "/project/.env"))
	require.True(t, fs.Exists(tx.Dir()), "backup kept for manual recovery")
}

func TestCommit_DeletesBackup(t *testing.T) {
	m, fs := setup(t)
	tx, err := m.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.Backup([]string{"src/app.ts"}))

	fs.AddFile("/project/src/app.ts", []byte("changed"))
	require.NoError(t, tx.Commit())

	require.False(t, fs.Exists(tx.Dir()))
	require.Equal(t, "changed", read(t, fs, "/project/src/app.ts"))
	require.Equal(t, StateCommitted, tx.State())
}

func TestClosedTransactionRejectsCalls(t *testing.T) {
	m, _ := setup(t)
	tx, err := m.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	require.ErrorIs(t, tx.Backup([]string{"src/app.ts"}), ErrTransactionClosed)
	require.ErrorIs(t, tx.Rollback(), ErrTransactionClosed)
	require.ErrorIs(t, tx.Commit(), ErrTransactionClosed)
	require.ErrorIs(t, tx.Discard(), ErrTransactionClosed)
}

func TestRollback_WithoutBackup(t *testing.T) {
	m, _ := setup(t)
	tx, err := m.Begin()
	require.NoError(t, err)

	require.NoError(t, tx.Rollback())
	require.Equal(t, StateRolledBack, tx.State())
}

func TestPendingAndCleanup(t *testing.T) {
	m, fs := setup(t)

	fs.AddFile("/project/.graft/backups/20240301T100000-aaaaaaaa/src/app.ts", []byte("old"))
	fs.AddFile("/project/.graft/backups/20240308T100000-bbbbbbbb/src/app.ts", []byte("recent"))
	fs.AddFile("/project/.graft/backups/20240308T100000-bbbbbbbb/.env", []byte("recent"))
	fs.AddDir("/project/.graft/backups/manual")
	fs.SetModTime("/project/.graft/backups/manual", fixedNow.Add(-30*24*time.Hour))

	pending, err := m.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 3)
	require.Equal(t, "manual", pending[0].ID)
	require.Equal(t, "20240301T100000-aaaaaaaa", pending[1].ID)
	require.Equal(t, 1, pending[1].Files)
	require.Equal(t, "20240308T100000-bbbbbbbb", pending[2].ID)
	require.Equal(t, 2, pending[2].Files)

	removed, err := m.Cleanup(7)
	require.NoError(t, err)
	require.Equal(t, []string{"manual", "20240301T100000-aaaaaaaa"}, removed)

	require.False(t, fs.Exists("/project/.graft/backups/20240301T100000-aaaaaaaa"))
	require.True(t, fs.Exists("/project/.graft/backups/20240308T100000-bbbbbbbb/src/app.ts"))
}

func TestCleanup_NoBackupsDir(t *testing.T) {
	p := project.New(filesystem.NewMockFileSystem(), "/empty")
	removed, err := NewManager(p).Cleanup(7)
	require.NoError(t, err)
	require.Empty(t, removed)
}

func TestCleanup_NegativeAge(t *testing.T) {
	m, _ := setup(t)
	_, err := m.Cleanup(-1)
	require.Error(t, err)
}

func TestStale_DoesNotDelete(t *testing.T) {
	m, fs := setup(t)
	fs.AddFile("/project/.graft/backups/20240301T100000-aaaaaaaa/src/app.ts", []byte("old"))
	fs.AddFile("/project/.graft/backups/20240309T100000-cccccccc/src/app.ts", []byte("today"))

	stale, err := m.Stale(7)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	require.Equal(t, "20240301T100000-aaaaaaaa", stale[0].ID)
	require.True(t, fs.Exists("/project/.graft/backups/20240301T100000-aaaaaaaa/src/app.ts"))

	stale, err = m.Stale(0)
	require.NoError(t, err)
	require.Len(t, stale, 2)
}
