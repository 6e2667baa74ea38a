package models

// Manifest describes one module: what it injects, what it depends on and
// which scripts run around installation. A Manifest is produced once by the
// manifest parser and must not be mutated afterwards.
type Manifest struct {
	// Name is the unique module identifier
	Name string `json:"name"`

	// Version is the semantic version of the module (e.g., 1.4.0)
	Version string `json:"version"`

	Description string `json:"description,omitempty"`
	Author      string `json:"author,omitempty"`

	// Dependencies lists packages, peer modules and the host constraint
	Dependencies Dependencies `json:"dependencies"`

	// Files groups source -> destination copy pairs by purpose (e.g., "components")
	Files map[string][]FileCopy `json:"files,omitempty"`

	// Injections are applied in order during install
	Injections []Injection `json:"injections,omitempty"`

	Scripts Scripts  `json:"scripts"`
	Env     []EnvVar `json:"env,omitempty"`
}

// Dependencies declares what a module expects to find in the host project.
type Dependencies struct {
	// NPM lists package identifiers, optionally with a version range (e.g., "stripe@^14.0.0")
	NPM []string `json:"npm,omitempty"`

	// Go lists module paths, optionally with a version (e.g., "github.com/stripe/stripe-go/v76@v76.0.0")
	Go []string `json:"go,omitempty"`

	// Modules lists peer graft modules that must be installed as well
	Modules []string `json:"modules,omitempty"`

	// Host is a minimum host version constraint (e.g., ">=1.2.0")
	Host string `json:"host,omitempty"`
}

// FileCopy is a single source -> destination pair.
type FileCopy struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

// Injection places Code right after Anchor inside File.
type Injection struct {
	// File is relative to the project root
	File string `json:"file"`

	// Anchor is a literal substring that must exist in File
	Anchor string `json:"anchor"`

	// Code is inserted verbatim between the module's markers
	Code string `json:"code"`

	// ModuleName keys the markers; defaults to the manifest name
	ModuleName string `json:"moduleName,omitempty"`
}

// Scripts are optional shell snippets run around install and removal.
type Scripts struct {
	PostInstall string `json:"postInstall,omitempty"`
	PreRemove   string `json:"preRemove,omitempty"`
}

// EnvVar declares an environment variable the module reads at runtime.
type EnvVar struct {
	Name        string `json:"name"`
	Required    bool   `json:"required"`
	Description string `json:"description,omitempty"`
	Default     string `json:"default,omitempty"`
}

// InjectionFiles returns the distinct files touched by the manifest's
// injections, in first-seen order.
func (m *Manifest) InjectionFiles() []string {
	seen := make(map[string]struct{}, len(m.Injections))
	files := make([]string, 0, len(m.Injections))
	for _, inj := range m.Injections {
		if _, ok := seen[inj.File]; ok {
			continue
		}
		seen[inj.File] = struct{}{}
		files = append(files, inj.File)
	}
	return files
}
