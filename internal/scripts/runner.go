// Package scripts runs manifest lifecycle hooks with an in-process POSIX
// shell interpreter, so hooks behave the same on every platform.
package scripts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/jakoblorz/go-graft/internal/logging"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// Hook names a lifecycle point a manifest can attach a script to.
type Hook string

const (
	HookPostInstall Hook = "postInstall"
	HookPreRemove   Hook = "preRemove"
)

// ErrScriptFailed is wrapped by ScriptError.
var ErrScriptFailed = errors.New("script failed")

// ScriptError reports a hook that could not be parsed or exited non-zero.
type ScriptError struct {
	Module string
	Hook   Hook
	// Code is the exit status, or -1 when the script never ran to completion
	Code int
	Err  error
}

func (e *ScriptError) Error() string {
	if e.Code >= 0 {
		return fmt.Sprintf("%s script of module %s exited with status %d", e.Hook, e.Module, e.Code)
	}
	return fmt.Sprintf("%s script of module %s failed: %v", e.Hook, e.Module, e.Err)
}

func (e *ScriptError) Unwrap() error { return ErrScriptFailed }

// Script is one hook invocation.
type Script struct {
	Module  string
	Version string
	Hook    Hook
	Source  string

	// Env is overlaid on the process environment
	Env map[string]string
}

// Runner executes scripts with the project root as working directory.
type Runner struct {
	dir    string
	stdout io.Writer
	stderr io.Writer
	logger *log.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithOutput redirects the scripts' stdout and stderr.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(r *Runner) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a Runner working in dir.
func NewRunner(dir string, opts ...Option) *Runner {
	r := &Runner{
		dir:    dir,
		stdout: os.Stdout,
		stderr: os.Stderr,
		logger: logging.Discard(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Run parses and executes s. An empty source is a no-op.
func (r *Runner) Run(ctx context.Context, s Script) error {
	if strings.TrimSpace(s.Source) == "" {
		return nil
	}

	name := fmt.Sprintf("%s:%s", s.Module, s.Hook)
	prog, err := syntax.NewParser().Parse(strings.NewReader(s.Source), name)
	if err != nil {
		return &ScriptError{Module: s.Module, Hook: s.Hook, Code: -1, Err: err}
	}

	runner, err := interp.New(
		interp.Dir(r.dir),
		interp.Env(expand.ListEnviron(r.environ(s)...)),
		interp.StdIO(nil, r.stdout, r.stderr),
	)
	if err != nil {
		return fmt.Errorf("failed to create interpreter: %w", err)
	}

	r.logger.Debug("running script", "module", s.Module, "hook", s.Hook)

	if err := runner.Run(ctx, prog); err != nil {
		if status, ok := interp.IsExitStatus(err); ok {
			return &ScriptError{Module: s.Module, Hook: s.Hook, Code: int(status), Err: err}
		}
		return &ScriptError{Module: s.Module, Hook: s.Hook, Code: -1, Err: err}
	}

	return nil
}

func (r *Runner) environ(s Script) []string {
	env := os.Environ()

	keys := make([]string, 0, len(s.Env))
	for k := range s.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+s.Env[k])
	}

	return append(env,
		"GRAFT_MODULE="+s.Module,
		"GRAFT_MODULE_VERSION="+s.Version,
		"GRAFT_ROOT="+r.dir,
	)
}
