package models

import (
	"time"
)

// FixtureTable is a lookup table definition. Only global tables are
// syncable; a sync fully replaces the downstream table's rows while the
// downstream table id stays stable across repeated syncs via UpstreamID.
type FixtureTable struct {
	TableID    string  `gorm:"primaryKey;type:char(36)"`
	Domain     string  `gorm:"size:255;not null;index:idx_fixture_domain_tag,unique"`
	Tag        string  `gorm:"size:255;not null;index:idx_fixture_domain_tag,unique"`
	IsGlobal   bool    `gorm:"not null;default:false"`
	UpstreamID *string `gorm:"type:char(36);index"`
	Fields     JSON    `gorm:"type:json"` // ordered field names
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Rows []FixtureRow `gorm:"foreignKey:TableID;constraint:OnDelete:CASCADE"`
}

// TableName overrides the table name for FixtureTable
func (FixtureTable) TableName() string {
	return "fixture_tables"
}

// FixtureRow is one row of a lookup table, values keyed by field name.
type FixtureRow struct {
	RowID     string `gorm:"primaryKey;type:char(36)"`
	TableID   string `gorm:"type:char(36);not null;index"`
	SortKey   int    `gorm:"not null;default:0"`
	Values    JSON   `gorm:"type:json"`
	CreatedAt time.Time
}

// TableName overrides the table name for FixtureRow
func (FixtureRow) TableName() string {
	return "fixture_rows"
}
