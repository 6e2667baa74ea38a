package manifest

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrManifestNotFound is wrapped by ManifestNotFoundError.
	ErrManifestNotFound = errors.New("manifest not found")
	// ErrMalformedJSON is wrapped by MalformedJSONError.
	ErrMalformedJSON = errors.New("manifest is not valid JSON")
	// ErrInvalidManifest is wrapped by InvalidManifestError.
	ErrInvalidManifest = errors.New("manifest is invalid")
)

// Violation is one schema or consistency problem in a manifest.
type Violation struct {
	// Path is JSON-path style (e.g., "injections[1].anchor"); empty for document-level problems
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	if v.Path == "" {
		return v.Message
	}
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// ManifestNotFoundError is returned when the manifest file does not exist.
type ManifestNotFoundError struct {
	Path string
}

func (e *ManifestNotFoundError) Error() string {
	return fmt.Sprintf("manifest not found: %s", e.Path)
}

func (e *ManifestNotFoundError) Unwrap() error { return ErrManifestNotFound }

// MalformedJSONError is returned when the manifest is not syntactically valid JSON.
type MalformedJSONError struct {
	Path string
	// Offset is the byte offset the decoder stopped at, when known
	Offset int64
	Err    error
}

func (e *MalformedJSONError) Error() string {
	if e.Offset > 0 {
		return fmt.Sprintf("%s: malformed JSON at offset %d: %v", e.Path, e.Offset, e.Err)
	}
	return fmt.Sprintf("%s: malformed JSON: %v", e.Path, e.Err)
}

func (e *MalformedJSONError) Unwrap() []error { return []error{ErrMalformedJSON, e.Err} }

// InvalidManifestError lists every violation found in a syntactically valid manifest.
type InvalidManifestError struct {
	Path       string
	Violations []Violation
}

func (e *InvalidManifestError) Error() string {
	if len(e.Violations) == 1 {
		return fmt.Sprintf("%s: %s", e.Path, e.Violations[0])
	}

	lines := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		lines[i] = v.String()
	}
	return fmt.Sprintf("%s: validation failed:\n  %s", e.Path, strings.Join(lines, "\n  "))
}

func (e *InvalidManifestError) Unwrap() error { return ErrInvalidManifest }
