package project

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jakoblorz/go-graft/internal/filesystem"
	"golang.org/x/mod/modfile"
)

// Dependencies is the set of packages a project declares, keyed by name.
type Dependencies struct {
	HasPackageJSON bool
	HasGoMod       bool

	// NPM maps package name to the declared range
	NPM map[string]string
	// Go maps module path to the required version
	Go map[string]string
}

// HasNPM reports whether the package named by spec (e.g. "stripe@^14.0.0")
// is declared in any package.json dependency section.
func (d Dependencies) HasNPM(spec string) bool {
	_, ok := d.NPM[NPMPackageName(spec)]
	return ok
}

// HasGo reports whether the module named by spec (path with optional @version)
// is required by go.mod.
func (d Dependencies) HasGo(spec string) bool {
	_, ok := d.Go[GoModulePath(spec)]
	return ok
}

// packageJSON represents the dependency sections of package.json.
type packageJSON struct {
	Name                 string            `json:"name"`
	Dependencies         map[string]string `json:"dependencies"`
	DevDependencies      map[string]string `json:"devDependencies"`
	PeerDependencies     map[string]string `json:"peerDependencies"`
	OptionalDependencies map[string]string `json:"optionalDependencies"`
}

// Dependencies reads package.json and go.mod at the project root. Missing
// files produce empty sets; unreadable or malformed files are errors.
func (p *Project) Dependencies() (Dependencies, error) {
	deps := Dependencies{
		NPM: map[string]string{},
		Go:  map[string]string{},
	}

	pkgPath := filepath.Join(p.Root, "package.json")
	if p.fs.Exists(pkgPath) {
		pkg, err := readPackageJSON(p.fs, pkgPath)
		if err != nil {
			return Dependencies{}, fmt.Errorf("failed to read package.json: %w", err)
		}
		deps.HasPackageJSON = true

		// later sections do not override the runtime range
		for _, section := range []map[string]string{
			pkg.Dependencies,
			pkg.DevDependencies,
			pkg.PeerDependencies,
			pkg.OptionalDependencies,
		} {
			for name, rng := range section {
				if _, seen := deps.NPM[name]; !seen {
					deps.NPM[name] = rng
				}
			}
		}
	}

	goModPath := filepath.Join(p.Root, "go.mod")
	if p.fs.Exists(goModPath) {
		data, err := p.fs.ReadFile(goModPath)
		if err != nil {
			return Dependencies{}, fmt.Errorf("failed to read go.mod: %w", err)
		}

		modFile, err := modfile.Parse(goModPath, data, nil)
		if err != nil {
			return Dependencies{}, fmt.Errorf("failed to parse go.mod: %w", err)
		}
		deps.HasGoMod = true

		for _, req := range modFile.Require {
			deps.Go[req.Mod.Path] = req.Mod.Version
		}
	}

	return deps, nil
}

func readPackageJSON(fs filesystem.FileSystem, path string) (packageJSON, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return packageJSON{}, err
	}

	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return packageJSON{}, err
	}

	return pkg, nil
}

// NPMPackageName strips the version range from an npm identifier.
// "stripe@^14.0.0" -> "stripe", "@scope/pkg@1.2.3" -> "@scope/pkg".
func NPMPackageName(spec string) string {
	spec = strings.TrimSpace(spec)
	if i := strings.LastIndex(spec, "@"); i > 0 {
		return spec[:i]
	}
	return spec
}

// GoModulePath strips an optional @version from a module reference.
func GoModulePath(spec string) string {
	spec = strings.TrimSpace(spec)
	if i := strings.Index(spec, "@"); i > 0 {
		return spec[:i]
	}
	return spec
}
