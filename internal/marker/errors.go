package marker

import (
	"errors"
	"fmt"
)

var (
	// ErrAnchorNotFound is wrapped by AnchorNotFoundError.
	ErrAnchorNotFound = errors.New("anchor not found")
	// ErrAlreadyInjected is wrapped by AlreadyInjectedError.
	ErrAlreadyInjected = errors.New("module already injected")
	// ErrModuleNotFound is wrapped by ModuleNotFoundError.
	ErrModuleNotFound = errors.New("module markers not found")
)

// AnchorNotFoundError is returned when the literal anchor is absent from the content.
type AnchorNotFoundError struct {
	Module string
	Anchor string
}

func (e *AnchorNotFoundError) Error() string {
	return fmt.Sprintf("anchor %q not found (module %s)", e.Anchor, e.Module)
}

func (e *AnchorNotFoundError) Unwrap() error { return ErrAnchorNotFound }

// AlreadyInjectedError is returned when the content already carries the module's markers.
type AlreadyInjectedError struct {
	Module string
}

func (e *AlreadyInjectedError) Error() string {
	return fmt.Sprintf("module %s is already injected", e.Module)
}

func (e *AlreadyInjectedError) Unwrap() error { return ErrAlreadyInjected }

// ModuleNotFoundError is returned when no complete marked block exists for the module.
type ModuleNotFoundError struct {
	Module string
}

func (e *ModuleNotFoundError) Error() string {
	return fmt.Sprintf("no marked block found for module %s", e.Module)
}

func (e *ModuleNotFoundError) Unwrap() error { return ErrModuleNotFound }
