// Package installer applies and removes a module's injections as one
// all-or-nothing operation.
//
// Every file an operation is going to touch is backed up first. Injections
// are then applied in manifest order, each file written as soon as it is
// edited. If anything fails, the backup is restored and the original error
// is returned; otherwise the backup is committed and the registry updated.
package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jakoblorz/go-graft/internal/logging"
	"github.com/jakoblorz/go-graft/internal/marker"
	"github.com/jakoblorz/go-graft/internal/models"
	"github.com/jakoblorz/go-graft/internal/project"
	"github.com/jakoblorz/go-graft/internal/registry"
	"github.com/jakoblorz/go-graft/internal/scripts"
	"github.com/jakoblorz/go-graft/internal/transaction"
)

// State is the installer's position in one install or uninstall.
type State string

const (
	StatePending    State = "pending"
	StateBackedUp   State = "backed-up"
	StateInjecting  State = "injecting"
	StateCommitted  State = "committed"
	StateRolledBack State = "rolled-back"
)

// Result describes the outcome of an Install or Uninstall call. It is
// returned even when the call fails.
type Result struct {
	Module        string
	Version       string
	State         State
	TransactionID string

	// Files lists the root-relative files the operation touched
	Files []string
}

// ScriptRunner executes lifecycle hooks.
type ScriptRunner interface {
	Run(ctx context.Context, s scripts.Script) error
}

// Installer installs and uninstalls modules in one project.
type Installer struct {
	project  *project.Project
	registry *registry.Store
	txm      *transaction.Manager
	scripts  ScriptRunner
	now      func() time.Time
	logger   *log.Logger
}

// Option configures an Installer.
type Option func(*Installer)

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(i *Installer) {
		i.logger = logger
	}
}

// WithClock overrides the time source for registry timestamps and transaction ids.
func WithClock(now func() time.Time) Option {
	return func(i *Installer) {
		i.now = now
	}
}

// WithScripts enables postInstall and preRemove hooks.
func WithScripts(runner ScriptRunner) Option {
	return func(i *Installer) {
		i.scripts = runner
	}
}

// New creates an Installer for p.
func New(p *project.Project, opts ...Option) *Installer {
	i := &Installer{
		project:  p,
		registry: registry.NewStore(p),
		now:      time.Now,
		logger:   logging.Discard(),
	}

	for _, opt := range opts {
		opt(i)
	}

	i.txm = transaction.NewManager(p, transaction.WithClock(i.now), transaction.WithLogger(i.logger))
	return i
}

// Install applies every injection of m. On failure the project is left
// byte-identical to its state before the call and no registry entry is written.
func (i *Installer) Install(ctx context.Context, m *models.Manifest) (*Result, error) {
	reg, err := i.registry.Load()
	if err != nil {
		return nil, err
	}
	if entry, ok := reg.Modules[m.Name]; ok && entry.Installed {
		return nil, &ModuleAlreadyInstalledError{Module: m.Name, Version: entry.Version}
	}

	res := i.newResult(m)
	inject := func(content string, inj models.Injection) (string, error) {
		return marker.InjectModule(content, inj.Anchor, inj.ModuleName, inj.Code)
	}
	if err := i.apply(ctx, res, m, inject, func() error { return i.register(m) }); err != nil {
		return res, err
	}

	i.logger.Info("module installed", "module", m.Name, "version", m.Version, "files", len(res.Files))

	if err := i.runHook(ctx, m, scripts.HookPostInstall, m.Scripts.PostInstall); err != nil {
		return res, fmt.Errorf("module %s installed but its postInstall script failed: %w", m.Name, err)
	}

	return res, nil
}

// UninstallOptions tunes Uninstall.
type UninstallOptions struct {
	// Force skips injections whose file or marked block is already gone
	// instead of aborting, so a hand-edited project can still be unregistered.
	Force bool
}

// Uninstall removes every marked block m installed. Like Install it either
// fully succeeds or leaves the project untouched.
func (i *Installer) Uninstall(ctx context.Context, m *models.Manifest, opts UninstallOptions) (*Result, error) {
	reg, err := i.registry.Load()
	if err != nil {
		return nil, err
	}
	if !reg.IsInstalled(m.Name) {
		return nil, &ModuleNotInstalledError{Module: m.Name}
	}

	if err := i.runHook(ctx, m, scripts.HookPreRemove, m.Scripts.PreRemove); err != nil {
		return nil, fmt.Errorf("preRemove script failed, module %s left installed: %w", m.Name, err)
	}

	target := m
	if opts.Force {
		target = i.presentInjections(m)
	}

	res := i.newResult(m)
	remove := func(content string, inj models.Injection) (string, error) {
		return marker.RemoveModule(content, inj.ModuleName)
	}
	if err := i.apply(ctx, res, target, remove, func() error { return i.registry.Remove(m.Name) }); err != nil {
		return res, err
	}

	if err := i.registry.RemoveManifest(m.Name); err != nil {
		// an orphaned cache entry is ignored by the registry and overwritten on reinstall
		i.logger.Warn("failed to remove cached manifest", "module", m.Name, "error", err)
	}

	i.logger.Info("module uninstalled", "module", m.Name, "version", m.Version, "files", len(res.Files))
	return res, nil
}

// UninstallByName loads the manifest cached at install time and uninstalls it.
func (i *Installer) UninstallByName(ctx context.Context, name string, opts UninstallOptions) (*Result, error) {
	reg, err := i.registry.Load()
	if err != nil {
		return nil, err
	}
	if !reg.IsInstalled(name) {
		return nil, &ModuleNotInstalledError{Module: name}
	}

	m, err := i.registry.LoadManifest(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load cached manifest for %s: %w", name, err)
	}

	return i.Uninstall(ctx, m, opts)
}

type editFunc func(content string, inj models.Injection) (string, error)

// register caches m and records it as installed. On failure the cache
// directory is removed again.
func (i *Installer) register(m *models.Manifest) error {
	err := i.registry.SaveManifest(m)
	if err == nil {
		err = i.registry.Add(models.RegistryEntry{
			Name:        m.Name,
			Version:     m.Version,
			Installed:   true,
			InstalledAt: i.now().UTC(),
		})
	}
	if err != nil {
		if rmErr := i.registry.RemoveManifest(m.Name); rmErr != nil {
			return errors.Join(err, rmErr)
		}
		return err
	}
	return nil
}

// apply runs edit for each injection of m inside one transaction, then
// finalize. The backup is only committed once finalize succeeds; any failure
// before that restores every file.
func (i *Installer) apply(ctx context.Context, res *Result, m *models.Manifest, edit editFunc, finalize func() error) error {
	tx, err := i.txm.Begin()
	if err != nil {
		return err
	}
	res.TransactionID = tx.ID()

	files := m.InjectionFiles()
	if err := tx.Backup(files); err != nil {
		if discardErr := tx.Discard(); discardErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to discard partial backup: %w", discardErr))
		}
		i.transition(res, StateRolledBack)
		return err
	}
	res.Files = files
	i.transition(res, StateBackedUp)

	i.transition(res, StateInjecting)
	for _, inj := range m.Injections {
		if err := i.editFile(ctx, inj, edit); err != nil {
			return i.rollback(res, tx, err)
		}
	}

	if err := finalize(); err != nil {
		return i.rollback(res, tx, err)
	}

	if err := tx.Commit(); err != nil {
		// the edits are complete; a leftover backup is reported by the doctor
		i.logger.Warn("failed to remove committed backup", "id", tx.ID(), "error", err)
	}
	i.transition(res, StateCommitted)

	return nil
}

func (i *Installer) editFile(ctx context.Context, inj models.Injection, edit editFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := i.project.Resolve(inj.File)
	if err != nil {
		return err
	}

	fsys := i.project.FileSystem()
	info, err := fsys.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", inj.File, err)
	}

	data, err := fsys.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", inj.File, err)
	}

	updated, err := edit(string(data), inj)
	if err != nil {
		return err
	}

	if err := fsys.WriteFile(path, []byte(updated), info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to write %s: %w", inj.File, err)
	}

	i.logger.Debug("edited file", "module", inj.ModuleName, "file", inj.File)
	return nil
}

// rollback restores the backup and returns cause unchanged, joined with the
// rollback failure if there was one.
func (i *Installer) rollback(res *Result, tx *transaction.Transaction, cause error) error {
	i.logger.Warn("rolling back", "module", res.Module, "id", tx.ID(), "error", cause)

	rbErr := tx.Rollback()
	i.transition(res, StateRolledBack)
	if rbErr != nil {
		return errors.Join(cause, fmt.Errorf("rollback of transaction %s failed: %w", tx.ID(), rbErr))
	}
	return cause
}

// presentInjections drops injections whose file or marked block no longer exists.
func (i *Installer) presentInjections(m *models.Manifest) *models.Manifest {
	filtered := *m
	filtered.Injections = nil

	fsys := i.project.FileSystem()
	for _, inj := range m.Injections {
		path, err := i.project.Resolve(inj.File)
		if err != nil || !fsys.Exists(path) {
			i.logger.Warn("skipping missing file", "module", inj.ModuleName, "file", inj.File)
			continue
		}

		data, err := fsys.ReadFile(path)
		if err != nil || !marker.DetectMarkers(string(data), inj.ModuleName).Found {
			i.logger.Warn("skipping file without marked block", "module", inj.ModuleName, "file", inj.File)
			continue
		}

		filtered.Injections = append(filtered.Injections, inj)
	}

	return &filtered
}

func (i *Installer) runHook(ctx context.Context, m *models.Manifest, hook scripts.Hook, source string) error {
	if i.scripts == nil || source == "" {
		return nil
	}

	env := make(map[string]string, len(m.Env))
	for _, v := range m.Env {
		if _, set := os.LookupEnv(v.Name); !set && v.Default != "" {
			env[v.Name] = v.Default
		}
	}

	return i.scripts.Run(ctx, scripts.Script{
		Module:  m.Name,
		Version: m.Version,
		Hook:    hook,
		Source:  source,
		Env:     env,
	})
}

func (i *Installer) newResult(m *models.Manifest) *Result {
	res := &Result{Module: m.Name, Version: m.Version, State: StatePending}
	i.logger.Debug("state", "module", m.Name, "state", res.State)
	return res
}

func (i *Installer) transition(res *Result, state State) {
	res.State = state
	i.logger.Debug("state", "module", res.Module, "state", state)
}
