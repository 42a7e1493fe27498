package migrate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     int64
		wantErr  bool
	}{
		{name: "Zero padded", filename: "007_add_index.sql", want: 7},
		{name: "Unpadded", filename: "10_x.sql", want: 10},
		{name: "Empty description", filename: "3_.sql", want: 3},
		{name: "Description with underscores", filename: "0042_create_seller_inventory.sql", want: 42},
		{name: "No numeric prefix", filename: "bad-file.sql", wantErr: true},
		{name: "Letters before digits", filename: "abc_1.sql", wantErr: true},
		{name: "Missing separator", filename: "001.sql", wantErr: true},
		{name: "Dash separator", filename: "001-init.sql", wantErr: true},
		{name: "Zero version", filename: "0_init.sql", wantErr: true},
		{name: "Largest version", filename: "2147483647_last.sql", want: 2147483647},
		{name: "Version beyond INTEGER", filename: "2147483648_next.sql", wantErr: true},
		{name: "Timestamp version", filename: "20240101120000_add_sellers.sql", wantErr: true},
		{name: "Overflowing version", filename: "99999999999999999999_huge.sql", wantErr: true},
		{name: "Wrong extension", filename: "001_init.sql.bak", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVersion(tt.filename)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidFilename)
				assert.Contains(t, err.Error(), tt.filename)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseOrdering(t *testing.T) {
	tests := []struct {
		input   string
		want    Ordering
		wantErr bool
	}{
		{"", OrderByFilename, false},
		{"filename", OrderByFilename, false},
		{" Version ", OrderByVersion, false},
		{"numeric", "", true},
	}

	for _, tt := range tests {
		t.Run("ordering_"+tt.input, func(t *testing.T) {
			got, err := ParseOrdering(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestListSQLFiles(t *testing.T) {
	dir := t.TempDir()
	writeMigrations(t, dir, map[string]string{
		"9_y.sql":      "SELECT 1;",
		"10_x.sql":     "SELECT 1;",
		"bad-file.sql": "SELECT 1;",
		"README.md":    "docs",
		"001_a.sql~":   "backup",
	})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "002_dir.sql"), 0o755))

	target := filepath.Join(t.TempDir(), "shared.sql")
	require.NoError(t, os.WriteFile(target, []byte("SELECT 1;"), 0o644))
	require.NoError(t, os.Symlink(target, filepath.Join(dir, "11_linked.sql")))
	require.NoError(t, os.Symlink(filepath.Join(dir, "missing.sql"), filepath.Join(dir, "12_dangling.sql")))

	names, err := ListSQLFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"10_x.sql", "11_linked.sql", "9_y.sql", "bad-file.sql"}, names)

	_, err = ListSQLFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestSortFiles(t *testing.T) {
	files := func() []MigrationFile {
		return []MigrationFile{
			{Version: 9, Name: "9_y.sql"},
			{Version: 10, Name: "10_x.sql"},
			{Version: 2, Name: "002_b.sql"},
			{Version: 2, Name: "002_a.sql"},
		}
	}

	names := func(files []MigrationFile) []string {
		out := make([]string, len(files))
		for i, f := range files {
			out[i] = f.Name
		}
		return out
	}

	t.Run("Filename ordering is byte order", func(t *testing.T) {
		f := files()
		SortFiles(f, OrderByFilename)
		assert.Equal(t, []string{"002_a.sql", "002_b.sql", "10_x.sql", "9_y.sql"}, names(f))
	})

	t.Run("Version ordering breaks ties by filename", func(t *testing.T) {
		f := files()
		SortFiles(f, OrderByVersion)
		assert.Equal(t, []string{"002_a.sql", "002_b.sql", "9_y.sql", "10_x.sql"}, names(f))
	})
}

func TestMigrationFile_SQL(t *testing.T) {
	dir := t.TempDir()
	body := "CREATE TABLE a (id INTEGER);\n-- trailing comment\n"
	writeMigrations(t, dir, map[string]string{"001_a.sql": body})

	file := newMigrationFile(dir, "001_a.sql", 1)
	assert.Equal(t, filepath.Join(dir, "001_a.sql"), file.Path)

	text, err := file.SQL()
	require.NoError(t, err)
	assert.Equal(t, body, text)

	_, err = newMigrationFile(dir, "002_missing.sql", 2).SQL()
	assert.Error(t, err)
}
