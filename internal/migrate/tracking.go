package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/sellerdesk/seller-backoffice/internal/models"
	"gorm.io/gorm"
)

// trackingTable issues the queries against the applied-versions relation.
// The quoted name is computed once; it is the only identifier ever spliced
// into SQL text.
type trackingTable struct {
	name   string
	quoted string
}

func newTrackingTable(name string) trackingTable {
	if name == "" {
		name = models.DefaultMigrationsTable
	}
	return trackingTable{name: name, quoted: quoteTable(name)}
}

// quoteTable quotes each part of an optionally schema-qualified name
func quoteTable(name string) string {
	parts := strings.Split(name, ".")
	for i, part := range parts {
		parts[i] = pq.QuoteIdentifier(part)
	}
	return strings.Join(parts, ".")
}

func (t trackingTable) ensure(ctx context.Context, db *gorm.DB) error {
	ddl := "CREATE TABLE IF NOT EXISTS " + t.quoted + ` (
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`
	if err := db.WithContext(ctx).Exec(ddl).Error; err != nil {
		return fmt.Errorf("failed to create tracking table %s: %w", t.name, err)
	}
	return nil
}

// exists reports whether the tracking relation is present
func (t trackingTable) exists(ctx context.Context, db *gorm.DB) bool {
	return db.WithContext(ctx).Migrator().HasTable(t.name)
}

func (t trackingTable) isApplied(ctx context.Context, db *gorm.DB, version int64) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM "+t.quoted+" WHERE version = ?", version).
		Scan(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check migration %d: %w", version, err)
	}
	return count > 0, nil
}

func (t trackingTable) insert(tx *gorm.DB, file MigrationFile) error {
	return tx.Exec("INSERT INTO "+t.quoted+" (version, name) VALUES (?, ?)", file.Version, file.Name).Error
}

func (t trackingTable) list(ctx context.Context, db *gorm.DB) ([]models.AppliedRecord, error) {
	var records []models.AppliedRecord
	err := db.WithContext(ctx).
		Raw("SELECT version, name, applied_at FROM " + t.quoted + " ORDER BY version").
		Scan(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list applied migrations: %w", err)
	}
	return records, nil
}

func (t trackingTable) find(ctx context.Context, db *gorm.DB, version int64) (*models.AppliedRecord, error) {
	var records []models.AppliedRecord
	err := db.WithContext(ctx).
		Raw("SELECT version, name, applied_at FROM "+t.quoted+" WHERE version = ?", version).
		Scan(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to look up migration %d: %w", version, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}
