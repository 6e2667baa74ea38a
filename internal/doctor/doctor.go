// Package doctor audits a project against what its registry claims is
// installed. It never modifies anything: every problem it can see is
// reported as a models.Finding, and only failures to start the audit at all
// (an unreadable registry) are returned as errors.
package doctor

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/charmbracelet/log"
	"github.com/jakoblorz/go-graft/internal/config"
	"github.com/jakoblorz/go-graft/internal/logging"
	"github.com/jakoblorz/go-graft/internal/manifest"
	"github.com/jakoblorz/go-graft/internal/marker"
	"github.com/jakoblorz/go-graft/internal/models"
	"github.com/jakoblorz/go-graft/internal/project"
	"github.com/jakoblorz/go-graft/internal/registry"
	"github.com/jakoblorz/go-graft/internal/transaction"
	"github.com/subosito/gotenv"
)

// Check names, in report order.
const (
	CheckAnchorsName      = "anchors"
	CheckMarkersName      = "markers"
	CheckDependenciesName = "dependencies"
	CheckEnvName          = "env"
	CheckTransactionsName = "transactions"
)

// Doctor runs read-only consistency checks against one project.
type Doctor struct {
	project     *project.Project
	registry    *registry.Store
	txm         *transaction.Manager
	anchors     []config.Anchor
	hostVersion string
	lookupEnv   func(string) (string, bool)
	now         func() time.Time
	logger      *log.Logger
}

// Option configures a Doctor.
type Option func(*Doctor)

// WithAnchors sets the (file, anchor) pairs the project is expected to carry.
func WithAnchors(anchors []config.Anchor) Option {
	return func(d *Doctor) {
		d.anchors = anchors
	}
}

// WithHostVersion sets the host version module constraints are checked against.
func WithHostVersion(version string) Option {
	return func(d *Doctor) {
		d.hostVersion = version
	}
}

// WithLookupEnv replaces os.LookupEnv for the env check.
func WithLookupEnv(lookup func(string) (string, bool)) Option {
	return func(d *Doctor) {
		d.lookupEnv = lookup
	}
}

// WithClock overrides the time source used to age leftover backups.
func WithClock(now func() time.Time) Option {
	return func(d *Doctor) {
		d.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(d *Doctor) {
		d.logger = logger
	}
}

// New creates a Doctor for p.
func New(p *project.Project, opts ...Option) *Doctor {
	d := &Doctor{
		project:   p,
		registry:  registry.NewStore(p),
		lookupEnv: os.LookupEnv,
		now:       time.Now,
		logger:    logging.Discard(),
	}

	for _, opt := range opts {
		opt(d)
	}

	d.txm = transaction.NewManager(p, transaction.WithClock(d.now), transaction.WithLogger(d.logger))

	return d
}

// installedModule is a registry entry with its cached manifest, or the
// error that prevented loading it.
type installedModule struct {
	entry    models.RegistryEntry
	manifest *models.Manifest
	err      error
}

func (d *Doctor) installed() ([]installedModule, *models.Registry, error) {
	reg, err := d.registry.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("cannot audit project: %w", err)
	}

	var modules []installedModule
	for _, entry := range reg.Installed() {
		m, err := d.registry.LoadManifest(entry.Name)
		if err != nil {
			d.logger.Debug("cached manifest unusable", "module", entry.Name, "error", err)
		}
		modules = append(modules, installedModule{entry: entry, manifest: m, err: err})
	}

	return modules, reg, nil
}

// CheckAll runs every check and concatenates their findings in report order.
func (d *Doctor) CheckAll() ([]models.Finding, error) {
	findings := d.CheckAnchors()

	for _, check := range []func() ([]models.Finding, error){
		d.CheckMarkers,
		d.CheckDependencies,
		d.CheckEnv,
		d.CheckTransactions,
	} {
		found, err := check()
		if err != nil {
			return nil, err
		}
		findings = append(findings, found...)
	}

	return findings, nil
}

// CheckAnchors verifies the configured anchors still exist. A missing file is
// a warning; a file that lost its anchor is an error, since nothing can be
// installed there any more.
func (d *Doctor) CheckAnchors() []models.Finding {
	findings := []models.Finding{}
	fsys := d.project.FileSystem()

	for _, a := range d.anchors {
		path, err := d.project.Resolve(a.File)
		if err != nil {
			findings = append(findings, models.Finding{
				Severity: models.SeverityError,
				Check:    CheckAnchorsName,
				Message:  err.Error(),
				File:     a.File,
			})
			continue
		}

		if !fsys.Exists(path) {
			findings = append(findings, models.Finding{
				Severity: models.SeverityWarning,
				Check:    CheckAnchorsName,
				Message:  fmt.Sprintf("file for anchor %q does not exist", a.Anchor),
				File:     a.File,
			})
			continue
		}

		data, err := fsys.ReadFile(path)
		if err != nil {
			findings = append(findings, models.Finding{
				Severity: models.SeverityError,
				Check:    CheckAnchorsName,
				Message:  fmt.Sprintf("cannot read file: %v", err),
				File:     a.File,
			})
			continue
		}

		if !strings.Contains(string(data), a.Anchor) {
			findings = append(findings, models.Finding{
				Severity: models.SeverityError,
				Check:    CheckAnchorsName,
				Message:  fmt.Sprintf("anchor %q is missing", a.Anchor),
				File:     a.File,
			})
		}
	}

	return findings
}

// CheckMarkers verifies that every injection of every installed module still
// has its marked block on disk. Modules whose cached manifest is missing or
// unreadable are reported here once.
func (d *Doctor) CheckMarkers() ([]models.Finding, error) {
	modules, _, err := d.installed()
	if err != nil {
		return nil, err
	}

	findings := []models.Finding{}
	fsys := d.project.FileSystem()

	for _, mod := range modules {
		if mod.err != nil {
			findings = append(findings, manifestFinding(mod))
			continue
		}

		for _, inj := range mod.manifest.Injections {
			path, err := d.project.Resolve(inj.File)
			if err != nil || !fsys.Exists(path) {
				findings = append(findings, models.Finding{
					Severity: models.SeverityError,
					Check:    CheckMarkersName,
					Module:   mod.entry.Name,
					Message:  "injection target does not exist",
					File:     inj.File,
				})
				continue
			}

			data, err := fsys.ReadFile(path)
			if err != nil {
				findings = append(findings, models.Finding{
					Severity: models.SeverityError,
					Check:    CheckMarkersName,
					Module:   mod.entry.Name,
					Message:  fmt.Sprintf("cannot read injection target: %v", err),
					File:     inj.File,
				})
				continue
			}

			if !marker.DetectMarkers(string(data), inj.ModuleName).Found {
				findings = append(findings, models.Finding{
					Severity: models.SeverityError,
					Check:    CheckMarkersName,
					Module:   mod.entry.Name,
					Message:  fmt.Sprintf("marked block for %s not found", inj.ModuleName),
					File:     inj.File,
					Fixable:  true,
				})
			}
		}
	}

	return findings, nil
}

func manifestFinding(mod installedModule) models.Finding {
	msg := fmt.Sprintf("cached manifest is unusable: %v", mod.err)
	if errors.Is(mod.err, manifest.ErrManifestNotFound) {
		msg = "cached manifest is missing; the module cannot be audited or uninstalled"
	}

	return models.Finding{
		Severity: models.SeverityError,
		Check:    CheckMarkersName,
		Module:   mod.entry.Name,
		Message:  msg,
		File:     filepath.ToSlash(filepath.Join(project.StateDirName, "modules", mod.entry.Name, "manifest.json")),
	}
}

// CheckDependencies reports one warning per declared dependency the project
// does not satisfy: npm packages, Go modules, peer modules and the host
// version constraint.
func (d *Doctor) CheckDependencies() ([]models.Finding, error) {
	modules, reg, err := d.installed()
	if err != nil {
		return nil, err
	}

	findings := []models.Finding{}

	deps, depsErr := d.project.Dependencies()
	if depsErr != nil {
		findings = append(findings, models.Finding{
			Severity: models.SeverityError,
			Check:    CheckDependenciesName,
			Message:  depsErr.Error(),
		})
	}

	for _, mod := range modules {
		if mod.err != nil {
			continue
		}
		m := mod.manifest

		if depsErr == nil {
			for _, pkg := range m.Dependencies.NPM {
				if deps.HasNPM(pkg) {
					continue
				}
				findings = append(findings, models.Finding{
					Severity: models.SeverityWarning,
					Check:    CheckDependenciesName,
					Module:   m.Name,
					Message:  fmt.Sprintf("npm package %s is not declared in package.json", pkg),
					File:     "package.json",
					Fixable:  true,
				})
			}

			for _, goMod := range m.Dependencies.Go {
				if deps.HasGo(goMod) {
					continue
				}
				findings = append(findings, models.Finding{
					Severity: models.SeverityWarning,
					Check:    CheckDependenciesName,
					Module:   m.Name,
					Message:  fmt.Sprintf("Go module %s is not required in go.mod", goMod),
					File:     "go.mod",
					Fixable:  true,
				})
			}
		}

		for _, peer := range m.Dependencies.Modules {
			if reg.IsInstalled(peer) {
				continue
			}
			findings = append(findings, models.Finding{
				Severity: models.SeverityWarning,
				Check:    CheckDependenciesName,
				Module:   m.Name,
				Message:  fmt.Sprintf("peer module %s is not installed", peer),
				Fixable:  true,
			})
		}

		if f, ok := d.checkHost(m); ok {
			findings = append(findings, f)
		}
	}

	return findings, nil
}

func (d *Doctor) checkHost(m *models.Manifest) (models.Finding, bool) {
	host := strings.TrimSpace(m.Dependencies.Host)
	if host == "" {
		return models.Finding{}, false
	}

	if d.hostVersion == "" {
		return models.Finding{
			Severity: models.SeverityInfo,
			Check:    CheckDependenciesName,
			Module:   m.Name,
			Message:  fmt.Sprintf("requires host %s but host.version is not set in %s", host, project.ConfigFileName),
		}, true
	}

	constraint, err := semver.NewConstraint(host)
	if err != nil {
		return models.Finding{
			Severity: models.SeverityWarning,
			Check:    CheckDependenciesName,
			Module:   m.Name,
			Message:  fmt.Sprintf("invalid host constraint %q: %v", host, err),
		}, true
	}

	version, err := semver.NewVersion(d.hostVersion)
	if err != nil {
		return models.Finding{
			Severity: models.SeverityWarning,
			Check:    CheckDependenciesName,
			Module:   m.Name,
			Message:  fmt.Sprintf("invalid host version %q: %v", d.hostVersion, err),
		}, true
	}

	if !constraint.Check(version) {
		return models.Finding{
			Severity: models.SeverityWarning,
			Check:    CheckDependenciesName,
			Module:   m.Name,
			Message:  fmt.Sprintf("host version %s does not satisfy %s", d.hostVersion, host),
		}, true
	}

	return models.Finding{}, false
}

// CheckEnv reports required environment variables that are set neither in
// the process environment nor in the project's .env file.
func (d *Doctor) CheckEnv() ([]models.Finding, error) {
	modules, _, err := d.installed()
	if err != nil {
		return nil, err
	}

	findings := []models.Finding{}

	dotenv, err := d.readDotEnv()
	if err != nil {
		findings = append(findings, models.Finding{
			Severity: models.SeverityWarning,
			Check:    CheckEnvName,
			Message:  err.Error(),
			File:     ".env",
		})
	}

	for _, mod := range modules {
		if mod.err != nil {
			continue
		}

		for _, v := range mod.manifest.Env {
			if !v.Required {
				continue
			}
			if _, ok := d.lookupEnv(v.Name); ok {
				continue
			}
			if _, ok := dotenv[v.Name]; ok {
				continue
			}

			msg := fmt.Sprintf("required environment variable %s is not set", v.Name)
			if v.Description != "" {
				msg = fmt.Sprintf("%s (%s)", msg, v.Description)
			}
			findings = append(findings, models.Finding{
				Severity: models.SeverityWarning,
				Check:    CheckEnvName,
				Module:   mod.entry.Name,
				Message:  msg,
				File:     ".env",
				Fixable:  true,
			})
		}
	}

	return findings, nil
}

func (d *Doctor) readDotEnv() (gotenv.Env, error) {
	path := filepath.Join(d.project.Root, ".env")
	fsys := d.project.FileSystem()
	if !fsys.Exists(path) {
		return gotenv.Env{}, nil
	}

	data, err := fsys.ReadFile(path)
	if err != nil {
		return gotenv.Env{}, fmt.Errorf("cannot read .env: %w", err)
	}

	env, err := gotenv.StrictParse(bytes.NewReader(data))
	if err != nil {
		return gotenv.Env{}, fmt.Errorf("cannot parse .env: %w", err)
	}
	return env, nil
}

// CheckTransactions reports backups left behind by interrupted installs, and
// a .gitignore that would let them be committed.
func (d *Doctor) CheckTransactions() ([]models.Finding, error) {
	findings := []models.Finding{}

	pending, err := d.txm.Pending()
	if err != nil {
		return nil, fmt.Errorf("cannot audit backups: %w", err)
	}

	for _, info := range pending {
		findings = append(findings, models.Finding{
			Severity: models.SeverityWarning,
			Check:    CheckTransactionsName,
			Message: fmt.Sprintf("leftover backup %s (%d files, %s old) from an interrupted operation; run graft cleanup or restore it by hand",
				info.ID, info.Files, humanizeAge(info.Age)),
			File:    filepath.ToSlash(filepath.Join(project.StateDirName, "backups", info.ID)),
			Fixable: true,
		})
	}

	if d.project.FileSystem().Exists(filepath.Join(d.project.Root, ".gitignore")) {
		ignored, err := d.project.BackupsIgnored()
		if err != nil {
			findings = append(findings, models.Finding{
				Severity: models.SeverityWarning,
				Check:    CheckTransactionsName,
				Message:  err.Error(),
				File:     ".gitignore",
			})
		} else if !ignored {
			findings = append(findings, models.Finding{
				Severity: models.SeverityInfo,
				Check:    CheckTransactionsName,
				Message:  "add .graft/backups/ to .gitignore so backups are never committed",
				File:     ".gitignore",
				Fixable:  true,
			})
		}
	}

	return findings, nil
}

func humanizeAge(age time.Duration) string {
	switch {
	case age < time.Hour:
		return fmt.Sprintf("%dm", int(age.Minutes()))
	case age < 48*time.Hour:
		return fmt.Sprintf("%dh", int(age.Hours()))
	default:
		return fmt.Sprintf("%dd", int(age.Hours()/24))
	}
}
