// Package logging builds the charmbracelet loggers graft components share.
package logging

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"
)

// New creates a logger writing to w at the named level (debug, info, warn, error).
func New(w io.Writer, level string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	return log.NewWithOptions(w, log.Options{
		Prefix: "graft",
		Level:  lvl,
	}), nil
}

// Discard returns a logger that drops everything. Components default to it
// when no logger is supplied.
func Discard() *log.Logger {
	return log.New(io.Discard)
}
