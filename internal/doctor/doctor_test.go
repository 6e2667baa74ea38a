package doctor

import (
	"testing"
	"time"

	"github.com/jakoblorz/go-graft/internal/config"
	"github.com/jakoblorz/go-graft/internal/filesystem"
	"github.com/jakoblorz/go-graft/internal/models"
	"github.com/jakoblorz/go-graft/internal/project"
	"github.com/jakoblorz/go-graft/internal/registry"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 9, 14, 30, 5, 0, time.UTC)

func noEnv(string) (string, bool) { return "", false }

func install(t *testing.T, p *project.Project, m *models.Manifest) {
	t.Helper()
	store := registry.NewStore(p)
	require.NoError(t, store.SaveManifest(m))
	require.NoError(t, store.Add(models.RegistryEntry{Name: m.Name, Version: m.Version, Installed: true, InstalledAt: fixedNow}))
}

func newDoctor(p *project.Project, opts ...Option) *Doctor {
	return New(p, append([]Option{WithLookupEnv(noEnv), WithClock(func() time.Time { return fixedNow })}, opts...)...)
}

func payManifest() *models.Manifest {
	return &models.Manifest{
		Name:    "pay",
		Version: "1.0.0",
		Injections: []models.Injection{
			{File: "app.ts", Anchor: "// graft:imports", Code: "import pay;", ModuleName: "pay"},
		},
	}
}

func TestCheckMarkers_MissingBlockIsOneFixableError(t *testing.T) {
	p, _ := project.NewBuilder("/project").
		AddFile("app.ts", "// graft:imports\nconsole.log('app');\n").
		Build()
	install(t, p, payManifest())

	findings, err := newDoctor(p).CheckAll()
	require.NoError(t, err)
	require.Len(t, findings, 1)

	f := findings[0]
	require.Equal(t, models.SeverityError, f.Severity)
	require.Equal(t, CheckMarkersName, f.Check)
	require.Equal(t, "pay", f.Module)
	require.Equal(t, "app.ts", f.File)
	require.True(t, f.Fixable)
}

func TestCheckMarkers_Healthy(t *testing.T) {
	p, _ := project.NewBuilder("/project").
		AddFile("app.ts", "// graft:imports\n\n// [graft:begin:pay]\nimport pay;\n// [graft:end:pay]\n").
		Build()
	install(t, p, payManifest())

	findings, err := newDoctor(p).CheckMarkers()
	require.NoError(t, err)
	require.Empty(t, findings)
}

func TestCheckMarkers_MissingTarget(t *testing.T) {
	p, _ := project.NewBuilder("/project").Build()
	install(t, p, payManifest())

	findings, err := newDoctor(p).CheckMarkers()
	require.NoError(t, err)
	require.Len(t, findings, 1)
	require.Equal(t, models.SeverityError, findings[0].Severity)
	require.Equal(t, "app.ts", findings[0].File)
	require.False(t, findings[0].Fixable)
}

func TestCheckMarkers_OnlyInstalledEntries(t *testing.T) {
	p, _ := project.NewBuilder("/project").AddFile("app.ts", "// graft:imports\n").Build()
	m := payManifest()
	store := registry.NewStore(p)
	require.NoError(t, store.SaveManifest(m))
	require.NoError(t, store.Add(models.RegistryEntry{Name: "pay", Version: "1.0.0", Installed: false}))

	findings, err := newDoctor(p).CheckMarkers()
	require.NoError(t, err)
	require.Empty(t, findings)
}

func TestCheckAll_BadCachedManifestBecomesFinding(t *testing.T) {
	p, fs := project.NewBuilder("/project").
		AddFile("app.ts", "// graft:imports\n").
		Build()
	install(t, p, payManifest())
	install(t, p, &models.Manifest{Name: "auth", Version: "2.0.0"})
	install(t, p, &models.Manifest{Name: "search", Version: "0.3.0"})

	fs.AddFile(p.CachedManifestPath("auth"), []byte(`{"name": "auth", "version": `))
	require.NoError(t, fs.RemoveAll(p.ModuleDir("search")))

	findings, err := newDoctor(p).CheckAll()
	require.NoError(t, err)

	byModule := map[string]models.Finding{}
	for _, f := range findings {
		byModule[f.Module] = f
	}
	require.Len(t, findings, 3)

	require.Equal(t, models.SeverityError, byModule["auth"].Severity)
	require.Contains(t, byModule["auth"].Message, "cached manifest is unusable")
	require.False(t, byModule["auth"].Fixable)

	require.Equal(t, models.SeverityError, byModule["search"].Severity)
	require.Contains(t, byModule["search"].Message, "cached manifest is missing")

	// the healthy-but-drifted module is still audited
	require.Equal(t, "app.ts", byModule["pay"].File)
}

func TestCheckAll_UnreadableRegistry(t *testing.T) {
	p, _ := project.NewBuilder("/project").AddFile(".graft/registry.json", "[").Build()

	_, err := newDoctor(p).CheckAll()
	require.Error(t, err)
	require.Contains(t, err.Error(), "cannot audit project")
}

func TestCheckDependencies_OneWarningPerMissingPackage(t *testing.T) {
	p, _ := project.NewBuilder("/project").
		AddPackageJSON("shop", map[string]string{"react": "^18.2.0"}).
		Build()

	m := payManifest()
	m.Dependencies.NPM = []string{"stripe@^14.0.0", "react@^18.0.0"}
	install(t, p, m)

	findings, err := newDoctor(p).CheckDependencies()
	require.NoError(t, err)
	require.Len(t, findings, 1)
	require.Equal(t, models.SeverityWarning, findings[0].Severity)
	require.Contains(t, findings[0].Message, "stripe")
	require.True(t, findings[0].Fixable)

	m2 := &models.Manifest{Name: "mail", Version: "1.0.0", Dependencies: models.Dependencies{NPM: []string{"nodemailer", "@react-email/components@^0.0.15"}}}
	install(t, p, m2)

	findings, err = newDoctor(p).CheckDependencies()
	require.NoError(t, err)
	require.Len(t, findings, 3, "missing packages are never aggregated")
}

func TestCheckDependencies_GoModules(t *testing.T) {
	p, _ := project.NewBuilder("/project").
		AddGoMod("example.com/shop", map[string]string{"github.com/stripe/stripe-go/v76": "v76.25.0"}).
		Build()

	m := payManifest()
	m.Dependencies.Go = []string{"github.com/stripe/stripe-go/v76@v76.0.0", "github.com/redis/go-redis/v9"}
	install(t, p, m)

	findings, err := newDoctor(p).CheckDependencies()
	require.NoError(t, err)
	require.Len(t, findings, 1)
	require.Contains(t, findings[0].Message, "github.com/redis/go-redis/v9")
	require.Equal(t, "go.mod", findings[0].File)
}

func TestCheckDependencies_PeersAndHost(t *testing.T) {
	p, _ := project.NewBuilder("/project").Build()

	m := payManifest()
	m.Dependencies.Modules = []string{"auth", "db"}
	m.Dependencies.Host = ">=1.2.0"
	install(t, p, m)
	install(t, p, &models.Manifest{Name: "auth", Version: "1.0.0"})

	findings, err := newDoctor(p, WithHostVersion("1.1.9")).CheckDependencies()
	require.NoError(t, err)
	require.Len(t, findings, 2)
	require.Contains(t, findings[0].Message, "peer module db")
	require.Equal(t, models.SeverityWarning, findings[1].Severity)
	require.Contains(t, findings[1].Message, "does not satisfy >=1.2.0")

	findings, err = newDoctor(p, WithHostVersion("1.4.0")).CheckDependencies()
	require.NoError(t, err)
	require.Len(t, findings, 1)

	findings, err = newDoctor(p).CheckDependencies()
	require.NoError(t, err)
	require.Len(t, findings, 2)
	require.Equal(t, models.SeverityInfo, findings[1].Severity)
}

func TestCheckAnchors(t *testing.T) {
	p, _ := project.NewBuilder("/project").
		AddFile("src/app.ts", "// graft:imports\n").
		AddFile("src/routes.ts", "export const routes = [];\n").
		Build()

	d := newDoctor(p, WithAnchors([]config.Anchor{
		{File: "src/app.ts", Anchor: "// graft:imports"},
		{File: "src/routes.ts", Anchor: "// graft:routes"},
		{File: "src/layout.tsx", Anchor: "{/* graft:layout */}"},
	}))

	findings := d.CheckAnchors()
	require.Len(t, findings, 2)
	require.Equal(t, models.Finding{
		Severity: models.SeverityError,
		Check:    CheckAnchorsName,
		Message:  `anchor "// graft:routes" is missing`,
		File:     "src/routes.ts",
	}, findings[0])
	require.Equal(t, models.SeverityWarning, findings[1].Severity)
	require.Equal(t, "src/layout.tsx", findings[1].File)
}

func TestCheckEnv(t *testing.T) {
	p, _ := project.NewBuilder("/project").
		AddFile(".env", "# local settings\nSTRIPE_KEY=sk_test_123\n").
		Build()

	m := payManifest()
	m.Env = []models.EnvVar{
		{Name: "STRIPE_KEY", Required: true},
		{Name: "STRIPE_WEBHOOK_SECRET", Required: true, Description: "webhook signing secret"},
		{Name: "DATABASE_URL", Required: true},
		{Name: "STRIPE_API_VERSION", Required: false},
	}
	install(t, p, m)

	lookup := func(name string) (string, bool) {
		if name == "DATABASE_URL" {
			return "postgres://localhost/shop", true
		}
		return "", false
	}

	findings, err := newDoctor(p, WithLookupEnv(lookup)).CheckEnv()
	require.NoError(t, err)
	require.Len(t, findings, 1)
	require.Contains(t, findings[0].Message, "STRIPE_WEBHOOK_SECRET")
	require.Contains(t, findings[0].Message, "webhook signing secret")
	require.True(t, findings[0].Fixable)
}

func TestCheckTransactions(t *testing.T) {
	p, fs := project.NewBuilder("/project").
		AddFile(".gitignore", "node_modules/\n").
		AddFile(".graft/backups/20240307T120000-Ab3dE6gH/src/app.ts", "backup").
		Build()

	findings, err := newDoctor(p).CheckTransactions()
	require.NoError(t, err)
	require.Len(t, findings, 2)

	require.Equal(t, models.SeverityWarning, findings[0].Severity)
	require.Equal(t, ".graft/backups/20240307T120000-Ab3dE6gH", findings[0].File)
	require.Contains(t, findings[0].Message, "1 files, 2d old")

	require.Equal(t, models.SeverityInfo, findings[1].Severity)
	require.Equal(t, ".gitignore", findings[1].File)

	fs.AddFile("/project/.gitignore", []byte("node_modules/\n.graft/backups/\n"))
	require.NoError(t, fs.RemoveAll("/project/.graft/backups"))

	findings, err = newDoctor(p).CheckTransactions()
	require.NoError(t, err)
	require.Empty(t, findings)
}

func TestCheckAll_CleanProject(t *testing.T) {
	p := project.New(filesystem.NewMockFileSystem(), "/empty")

	findings, err := newDoctor(p).CheckAll()
	require.NoError(t, err)
	require.Empty(t, findings)
	require.Equal(t, ExitClean, ExitCode(findings))
}
