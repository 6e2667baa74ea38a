package project

import (
	"path/filepath"
	"testing"

	"github.com/jakoblorz/go-graft/internal/filesystem"
	"github.com/stretchr/testify/require"
)

func TestDetect_WalksUpToStateDir(t *testing.T) {
	fs := filesystem.NewMockFileSystem()
	fs.AddDir("/repo/.graft")
	fs.AddDir("/repo/src/routes")
	fs.SetCurrentDir("/repo/src/routes")

	p, err := Detect(fs)
	require.NoError(t, err)
	require.Equal(t, "/repo", p.Root)
}

func TestDetect_PackageJSON(t *testing.T) {
	fs := filesystem.NewMockFileSystem()
	fs.AddFile("/app/package.json", []byte(`{"name":"app"}`))
	fs.AddDir("/app/lib")
	fs.SetCurrentDir("/app/lib")

	p, err := Detect(fs)
	require.NoError(t, err)
	require.Equal(t, "/app", p.Root)
}

func TestDetect_NearestWins(t *testing.T) {
	fs := filesystem.NewMockFileSystem()
	fs.AddFile("/mono/package.json", []byte(`{}`))
	fs.AddFile("/mono/web/graft.yaml", []byte("host:\n  version: 1.0.0\n"))
	fs.SetCurrentDir("/mono/web")

	p, err := Detect(fs)
	require.NoError(t, err)
	require.Equal(t, "/mono/web", p.Root)
}

func TestDetect_NotFound(t *testing.T) {
	fs := filesystem.NewMockFileSystem()
	fs.AddDir("/nowhere/deep")
	fs.SetCurrentDir("/nowhere/deep")

	_, err := Detect(fs)
	require.Error(t, err)
	require.Contains(t, err.Error(), "project root not found")
}

func TestProject_Layout(t *testing.T) {
	p := New(filesystem.NewMockFileSystem(), "/project/")

	require.Equal(t, "/project", p.Root)
	require.Equal(t, "/project/.graft/registry.json", p.RegistryPath())
	require.Equal(t, "/project/.graft/modules/pay/manifest.json", p.CachedManifestPath("pay"))
	require.Equal(t, "/project/.graft/backups", p.BackupsDir())
	require.Equal(t, "/project/graft.yaml", p.ConfigPath())
}

func TestProject_Resolve(t *testing.T) {
	p := New(filesystem.NewMockFileSystem(), "/project")

	abs, err := p.Resolve("src/app.ts")
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/project", "src", "app.ts"), abs)

	_, err = p.Resolve("../etc/passwd")
	require.Error(t, err)
	require.Contains(t, err.Error(), "escapes the project root")

	_, err = p.Resolve("src/../../outside")
	require.Error(t, err)

	_, err = p.Resolve("/etc/passwd")
	require.Error(t, err)
}

func TestProject_BackupsIgnored(t *testing.T) {
	tests := []struct {
		name      string
		gitignore string
		want      bool
	}{
		{name: "no gitignore", want: false},
		{name: "state dir ignored", gitignore: "node_modules/\n.graft/\n", want: true},
		{name: "backups ignored", gitignore: ".graft/backups/\n", want: true},
		{name: "unrelated entries", gitignore: "dist/\n*.log\n", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder("/project")
			if tt.gitignore != "" {
				b.AddFile(".gitignore", tt.gitignore)
			}
			p, _ := b.Build()

			got, err := p.BackupsIgnored()
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
