package installer

import (
	"errors"
	"fmt"
)

var (
	// ErrModuleAlreadyInstalled is wrapped by ModuleAlreadyInstalledError.
	ErrModuleAlreadyInstalled = errors.New("module already installed")
	// ErrModuleNotInstalled is wrapped by ModuleNotInstalledError.
	ErrModuleNotInstalled = errors.New("module not installed")
)

// ModuleAlreadyInstalledError is returned when installing a registered module.
type ModuleAlreadyInstalledError struct {
	Module  string
	Version string
}

func (e *ModuleAlreadyInstalledError) Error() string {
	return fmt.Sprintf("module %s is already installed (version %s)", e.Module, e.Version)
}

func (e *ModuleAlreadyInstalledError) Unwrap() error { return ErrModuleAlreadyInstalled }

// ModuleNotInstalledError is returned when uninstalling an unregistered module.
type ModuleNotInstalledError struct {
	Module string
}

func (e *ModuleNotInstalledError) Error() string {
	return fmt.Sprintf("module %s is not installed", e.Module)
}

func (e *ModuleNotInstalledError) Unwrap() error { return ErrModuleNotInstalled }
