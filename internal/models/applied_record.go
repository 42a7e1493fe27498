package models

import (
	"time"
)

// DefaultMigrationsTable is the tracking relation used when none is configured
const DefaultMigrationsTable = "schema_migrations"

// AppliedRecord is one row of the migrations tracking table. A row exists for
// a version exactly when that version's migration committed.
type AppliedRecord struct {
	Version   int64     `gorm:"primaryKey;autoIncrement:false" json:"version"`
	Name      string    `gorm:"not null" json:"name"`
	AppliedAt time.Time `json:"applied_at"`
}

// TableName ensures consistent table naming
func (AppliedRecord) TableName() string {
	return DefaultMigrationsTable
}
