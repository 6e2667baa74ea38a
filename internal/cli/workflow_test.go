package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jakoblorz/go-graft/internal/filesystem"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestWorkflow_OnDisk(t *testing.T) {
	root := t.TempDir()
	modules := t.TempDir()

	writeFile(t, filepath.Join(root, "package.json"), `{"name": "shop", "dependencies": {"express": "^4.19.0"}}`)
	writeFile(t, filepath.Join(root, "graft.yaml"), "scripts:\n  enabled: true\nlog:\n  level: error\n")
	writeFile(t, filepath.Join(root, "src", "app.ts"), appTS)
	writeFile(t, filepath.Join(modules, "pay.json"), `{
  "name": "pay",
  "version": "1.0.0",
  "dependencies": {"npm": ["express", "stripe@^14.0.0"]},
  "injections": [
    {"file": "src/app.ts", "anchor": "// graft:routes", "code": "app.use(pay());"}
  ],
  "scripts": {
    "postInstall": "echo \"$GRAFT_MODULE@$GRAFT_MODULE_VERSION\" > .installed",
    "preRemove": "echo removed > .removed"
  }
}`)

	fs := filesystem.NewOSFileSystem()

	out, err := runCLI(t, fs, "--root", root, "install", filepath.Join(modules, "pay.json"))
	require.NoError(t, err)
	require.Contains(t, out, "✓ Installed pay@1.0.0")

	marker, err := os.ReadFile(filepath.Join(root, ".installed"))
	require.NoError(t, err)
	require.Equal(t, "pay@1.0.0\n", string(marker))

	entries, err := os.ReadDir(filepath.Join(root, ".graft", "backups"))
	if err == nil {
		require.Empty(t, entries, "committed transaction left a backup")
	}

	out, err = runCLI(t, fs, "--root", root, "doctor")
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 2, exitErr.Code)
	require.Contains(t, out, "stripe")
	require.NotContains(t, out, "express")

	_, err = runCLI(t, fs, "--root", root, "uninstall", "pay", "--yes")
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(root, ".removed"))

	app, err := os.ReadFile(filepath.Join(root, "src", "app.ts"))
	require.NoError(t, err)
	require.Equal(t, appTS, string(app))
}
