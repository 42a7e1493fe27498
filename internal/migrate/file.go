package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// filenamePattern is the migration naming contract: {version}_{anything}.sql
var filenamePattern = regexp.MustCompile(`^(\d+)_.*\.sql$`)

// MigrationFile is a versioned unit of SQL discovered on disk
type MigrationFile struct {
	Version int64  // parsed from the leading digits of Name
	Name    string // full filename, stored verbatim in the tracking table
	Path    string
}

// SQL reads the file's full text. Contents are executed as-is.
func (f MigrationFile) SQL() (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Ordering selects the order pending migrations are applied in
type Ordering string

const (
	// OrderByFilename sorts by filename bytes, so 10_x.sql runs before 9_y.sql
	OrderByFilename Ordering = "filename"
	// OrderByVersion sorts by the parsed version, ties broken by filename
	OrderByVersion Ordering = "version"
)

// ParseOrdering converts a configuration value into an Ordering
func ParseOrdering(s string) (Ordering, error) {
	switch Ordering(strings.ToLower(strings.TrimSpace(s))) {
	case "", OrderByFilename:
		return OrderByFilename, nil
	case OrderByVersion:
		return OrderByVersion, nil
	default:
		return "", fmt.Errorf("unknown migration ordering: %s", s)
	}
}

// ParseVersion extracts the positive version number from a migration filename.
// Versions must fit the tracking table's INTEGER column.
func ParseVersion(name string) (int64, error) {
	matches := filenamePattern.FindStringSubmatch(name)
	if matches == nil {
		return 0, &InvalidFilenameError{Name: name, Reason: "expected {version}_{description}.sql"}
	}

	version, err := strconv.ParseInt(matches[1], 10, 32)
	if err != nil {
		return 0, &InvalidFilenameError{Name: name, Reason: "version prefix exceeds 2147483647"}
	}
	if version <= 0 {
		return 0, &InvalidFilenameError{Name: name, Reason: "version must be positive"}
	}

	return version, nil
}

// ListSQLFiles returns the names of regular *.sql files in dir, byte-order sorted
func ListSQLFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		// Follow symlinks, but only to regular files.
		if !entry.Type().IsRegular() {
			info, err := os.Stat(filepath.Join(dir, entry.Name()))
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
		}
		names = append(names, entry.Name())
	}

	sort.Strings(names)
	return names, nil
}

// SortFiles orders files in place according to ordering
func SortFiles(files []MigrationFile, ordering Ordering) {
	switch ordering {
	case OrderByVersion:
		sort.SliceStable(files, func(i, j int) bool {
			if files[i].Version != files[j].Version {
				return files[i].Version < files[j].Version
			}
			return files[i].Name < files[j].Name
		})
	default:
		sort.SliceStable(files, func(i, j int) bool {
			return files[i].Name < files[j].Name
		})
	}
}

func newMigrationFile(dir, name string, version int64) MigrationFile {
	return MigrationFile{
		Version: version,
		Name:    name,
		Path:    filepath.Join(dir, name),
	}
}
