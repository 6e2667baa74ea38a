// Package manifest parses and validates module manifests.
//
// A manifest is JSON on disk. Parsing is three steps: a syntax check with
// encoding/json, unification with the embedded CUE schema (which reports
// every violation, not just the first), and consistency checks CUE cannot
// express, such as duplicate injections and host constraint syntax.
package manifest

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/Masterminds/semver/v3"
	"github.com/jakoblorz/go-graft/internal/filesystem"
	"github.com/jakoblorz/go-graft/internal/models"
)

//go:embed schema.cue
var schemaBytes []byte

// DefaultMaxFileSize caps how large a manifest may be (1MB).
const DefaultMaxFileSize = 1 << 20

// ValidationResult is the non-failing outcome of Validate.
type ValidationResult struct {
	Valid  bool        `json:"valid"`
	Errors []Violation `json:"errors"`
}

// Parser reads manifests through a FileSystem.
type Parser struct {
	fs filesystem.FileSystem
}

// NewParser creates a new Parser.
func NewParser(fs filesystem.FileSystem) *Parser {
	return &Parser{fs: fs}
}

// Parse reads and validates the manifest at path.
func (p *Parser) Parse(path string) (*models.Manifest, error) {
	data, err := p.fs.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ManifestNotFoundError{Path: path}
		}
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	return p.ParseBytes(path, data)
}

// ParseBytes validates data as the manifest found at path. Path is only used
// in error messages.
func (p *Parser) ParseBytes(path string, data []byte) (*models.Manifest, error) {
	if len(data) > DefaultMaxFileSize {
		return nil, fmt.Errorf("%s: file size %d bytes exceeds maximum %d bytes", path, len(data), DefaultMaxFileSize)
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		malformed := &MalformedJSONError{Path: path, Err: err}
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			malformed.Offset = syntaxErr.Offset
		}
		return nil, malformed
	}
	if _, ok := raw.(map[string]any); !ok {
		return nil, &InvalidManifestError{
			Path:       path,
			Violations: []Violation{{Message: "manifest must be a JSON object"}},
		}
	}

	if violations := validateSchema(path, data); len(violations) > 0 {
		return nil, &InvalidManifestError{Path: path, Violations: violations}
	}

	var m models.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &MalformedJSONError{Path: path, Err: err}
	}
	normalize(&m)

	if violations := checkConsistency(&m); len(violations) > 0 {
		return nil, &InvalidManifestError{Path: path, Violations: violations}
	}

	return &m, nil
}

// Validate is Parse without the error: every problem ends up in the result.
func (p *Parser) Validate(path string) ValidationResult {
	if _, err := p.Parse(path); err != nil {
		var invalid *InvalidManifestError
		if errors.As(err, &invalid) {
			return ValidationResult{Valid: false, Errors: invalid.Violations}
		}
		return ValidationResult{Valid: false, Errors: []Violation{{Message: err.Error()}}}
	}

	return ValidationResult{Valid: true, Errors: []Violation{}}
}

func validateSchema(path string, data []byte) []Violation {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaBytes)
	if schema.Err() != nil {
		return []Violation{{Message: fmt.Sprintf("internal error: failed to compile schema: %v", schema.Err())}}
	}

	root := schema.LookupPath(cue.ParsePath("#Manifest"))
	if root.Err() != nil {
		return []Violation{{Message: fmt.Sprintf("internal error: schema definition #Manifest not found: %v", root.Err())}}
	}

	value := ctx.CompileBytes(data, cue.Filename(path))
	if value.Err() != nil {
		return toViolations(value.Err())
	}

	unified := root.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return toViolations(err)
	}

	return nil
}

func toViolations(err error) []Violation {
	seen := map[string]struct{}{}
	var violations []Violation

	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		v := Violation{
			Path:    formatPath(e.Path()),
			Message: fmt.Sprintf(format, args...),
		}

		key := v.Path + "\x00" + v.Message
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		violations = append(violations, v)
	}

	if len(violations) == 0 {
		violations = append(violations, Violation{Message: err.Error()})
	}

	sort.SliceStable(violations, func(i, j int) bool {
		return violations[i].Path < violations[j].Path
	})
	return violations
}

// formatPath converts a CUE path (["injections", "1", "anchor"]) to
// JSON-path notation (injections[1].anchor). Definition selectors are dropped.
func formatPath(path []string) string {
	var b strings.Builder
	for _, part := range path {
		if strings.HasPrefix(part, "#") {
			continue
		}

		if isIndex(part) && b.Len() > 0 {
			b.WriteString("[")
			b.WriteString(part)
			b.WriteString("]")
			continue
		}

		if b.Len() > 0 {
			b.WriteString(".")
		}
		b.WriteString(strings.Trim(part, `"`))
	}
	return b.String()
}

func isIndex(part string) bool {
	if part == "" {
		return false
	}
	for _, c := range part {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func normalize(m *models.Manifest) {
	if m.Dependencies.NPM == nil {
		m.Dependencies.NPM = []string{}
	}
	if m.Dependencies.Go == nil {
		m.Dependencies.Go = []string{}
	}
	if m.Dependencies.Modules == nil {
		m.Dependencies.Modules = []string{}
	}
	if m.Files == nil {
		m.Files = map[string][]models.FileCopy{}
	}
	if m.Injections == nil {
		m.Injections = []models.Injection{}
	}
	if m.Env == nil {
		m.Env = []models.EnvVar{}
	}

	for i := range m.Injections {
		if m.Injections[i].ModuleName == "" {
			m.Injections[i].ModuleName = m.Name
		}
	}
}

func checkConsistency(m *models.Manifest) []Violation {
	var violations []Violation

	type key struct{ file, module string }
	first := map[key]int{}
	for i, inj := range m.Injections {
		k := key{inj.File, inj.ModuleName}
		if j, dup := first[k]; dup {
			violations = append(violations, Violation{
				Path:    fmt.Sprintf("injections[%d]", i),
				Message: fmt.Sprintf("duplicate injection into %s for module %s (first at injections[%d])", inj.File, inj.ModuleName, j),
			})
			continue
		}
		first[k] = i
	}

	if host := strings.TrimSpace(m.Dependencies.Host); host != "" {
		if _, err := semver.NewConstraint(host); err != nil {
			violations = append(violations, Violation{
				Path:    "dependencies.host",
				Message: fmt.Sprintf("invalid version constraint %q: %v", host, err),
			})
		}
	}

	return violations
}
