package transaction

import (
	"errors"
	"fmt"
)

var (
	// ErrTransactionClosed is returned by any call on a committed, rolled back
	// or discarded transaction.
	ErrTransactionClosed = errors.New("transaction already closed")
	// ErrBackupSourceMissing is wrapped by BackupSourceMissingError.
	ErrBackupSourceMissing = errors.New("backup source missing")
)

// BackupSourceMissingError is returned when a file scheduled for backup does not exist.
type BackupSourceMissingError struct {
	Path string
}

func (e *BackupSourceMissingError) Error() string {
	return fmt.Sprintf("cannot back up %s: file does not exist", e.Path)
}

func (e *BackupSourceMissingError) Unwrap() error { return ErrBackupSourceMissing }
