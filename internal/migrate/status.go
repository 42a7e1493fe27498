package migrate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sellerdesk/seller-backoffice/internal/models"
	"github.com/sellerdesk/seller-backoffice/internal/utils"
)

// Classification values for FileStatus.Status
const (
	StatusApplied  = "applied"
	StatusPending  = "pending"
	StatusInvalid  = "invalid"
	StatusOrphaned = "orphaned"
)

// FileStatus describes one file, or one tracking row without a file
type FileStatus struct {
	Version   int64      `json:"version,omitempty"`
	Name      string     `json:"name"`
	Status    string     `json:"status"`
	AppliedAt *time.Time `json:"applied_at,omitempty"`
	Reason    string     `json:"reason,omitempty"`
}

// Status is a read-only snapshot of the directory against the tracking table
type Status struct {
	Directory string       `json:"directory"`
	Table     string       `json:"table"`
	Ordering  Ordering     `json:"ordering"`
	Files     []FileStatus `json:"files"`
	Orphaned  []FileStatus `json:"orphaned,omitempty"`
	Applied   int          `json:"applied"`
	Pending   int          `json:"pending"`
	Invalid   int          `json:"invalid"`
}

// Status classifies every file in the resolved directory and reports tracking
// rows whose version has no file there. Nothing is written.
func (r *Runner) Status(ctx context.Context) (*Status, error) {
	dir, err := ResolveDirectory(r.dirs)
	if err != nil {
		return nil, err
	}

	names, err := ListSQLFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations in %s: %w", dir, err)
	}

	// Before the first run there is no table, and every file is pending
	var records []models.AppliedRecord
	if r.table.exists(ctx, r.db) {
		records, err = r.table.list(ctx, r.db)
		if err != nil {
			return nil, err
		}
	}
	byVersion := make(map[int64]models.AppliedRecord, len(records))
	for _, record := range records {
		byVersion[record.Version] = record
	}

	status := &Status{
		Directory: dir,
		Table:     r.table.name,
		Ordering:  r.ordering,
	}

	var files []MigrationFile
	var invalid []FileStatus
	for _, name := range names {
		version, err := ParseVersion(name)
		if err != nil {
			reason := err.Error()
			var fnErr *InvalidFilenameError
			if errors.As(err, &fnErr) {
				reason = fnErr.Reason
			}
			invalid = append(invalid, FileStatus{Name: name, Status: StatusInvalid, Reason: reason})
			continue
		}
		files = append(files, newMigrationFile(dir, name, version))
	}
	SortFiles(files, r.ordering)

	present := make(map[int64]bool, len(files))
	for _, file := range files {
		present[file.Version] = true

		entry := FileStatus{Version: file.Version, Name: file.Name, Status: StatusPending}
		if record, ok := byVersion[file.Version]; ok {
			appliedAt := record.AppliedAt
			entry.Status = StatusApplied
			entry.AppliedAt = &appliedAt
			status.Applied++
		} else {
			status.Pending++
		}
		status.Files = append(status.Files, entry)
	}

	status.Files = append(status.Files, invalid...)
	status.Invalid = len(invalid)

	for _, record := range records {
		if present[record.Version] {
			continue
		}
		appliedAt := record.AppliedAt
		status.Orphaned = append(status.Orphaned, FileStatus{
			Version:   record.Version,
			Name:      record.Name,
			Status:    StatusOrphaned,
			AppliedAt: &appliedAt,
		})
	}

	return status, nil
}

// Record returns the tracking row for version
func (r *Runner) Record(ctx context.Context, version int64) (*models.AppliedRecord, error) {
	if version <= 0 {
		return nil, utils.InvalidFieldError("version", "must be a positive integer")
	}

	id := strconv.FormatInt(version, 10)
	if !r.table.exists(ctx, r.db) {
		return nil, utils.WrapNotFoundError("migration", id)
	}

	record, err := r.table.find(ctx, r.db, version)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, utils.WrapNotFoundError("migration", id)
	}
	return record, nil
}
