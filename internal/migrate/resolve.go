package migrate

import (
	"os"
)

// ResolveDirectory returns the first candidate that exists and holds at least
// one .sql file. Candidates after the first match are never inspected.
func ResolveDirectory(candidates []string) (string, error) {
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}

		info, err := os.Stat(candidate)
		if err != nil || !info.IsDir() {
			continue
		}

		names, err := ListSQLFiles(candidate)
		if err != nil || len(names) == 0 {
			continue
		}

		return candidate, nil
	}

	return "", &DirectoryNotFoundError{Candidates: candidates}
}
