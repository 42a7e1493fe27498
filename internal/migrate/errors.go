package migrate

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds returned by the runner. Concrete errors wrap one of these so
// callers can classify failures with errors.Is.
var (
	// ErrDirectoryNotFound is returned when no candidate path holds .sql files
	ErrDirectoryNotFound = errors.New("migrations directory not found")

	// ErrInvalidFilename marks a .sql file without a usable version prefix
	ErrInvalidFilename = errors.New("invalid migration filename")

	// ErrFileRead is returned when a pending migration file cannot be read
	ErrFileRead = errors.New("migration file could not be read")

	// ErrStatementExecution is returned when a migration's SQL fails
	ErrStatementExecution = errors.New("statement execution failed")

	// ErrTrackingInsertConflict is returned when another runner recorded the
	// same version between our applied check and our own insert
	ErrTrackingInsertConflict = errors.New("tracking insert conflict")
)

// DirectoryNotFoundError lists the candidates that were searched
type DirectoryNotFoundError struct {
	Candidates []string
}

func (e *DirectoryNotFoundError) Error() string {
	if len(e.Candidates) == 0 {
		return "migrations directory not found: no candidate directories configured"
	}
	return fmt.Sprintf("migrations directory not found: none of [%s] contains .sql files",
		strings.Join(e.Candidates, ", "))
}

func (e *DirectoryNotFoundError) Unwrap() error {
	return ErrDirectoryNotFound
}

// InvalidFilenameError describes a file that does not match {version}_{name}.sql
type InvalidFilenameError struct {
	Name   string
	Reason string
}

func (e *InvalidFilenameError) Error() string {
	return fmt.Sprintf("invalid migration filename '%s': %s", e.Name, e.Reason)
}

func (e *InvalidFilenameError) Unwrap() error {
	return ErrInvalidFilename
}

// MigrationError is the single fatal error of a run. It names the file that
// halted the sequence and carries both the failure kind and the underlying
// database or filesystem error.
type MigrationError struct {
	Kind    error
	Version int64
	Name    string
	Err     error
}

func (e *MigrationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("migration %d (%s): %v", e.Version, e.Name, e.Kind)
	}
	return fmt.Sprintf("migration %d (%s): %v: %v", e.Version, e.Name, e.Kind, e.Err)
}

// Unwrap exposes the kind sentinel and the cause to errors.Is / errors.As.
func (e *MigrationError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newMigrationError(kind error, file MigrationFile, err error) *MigrationError {
	return &MigrationError{
		Kind:    kind,
		Version: file.Version,
		Name:    file.Name,
		Err:     err,
	}
}

// IsDirectoryNotFound reports whether err means no migrations directory qualified
func IsDirectoryNotFound(err error) bool {
	return errors.Is(err, ErrDirectoryNotFound)
}
