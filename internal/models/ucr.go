package models

import (
	"time"
)

// DataSourceConfig is a user-configurable-report datasource document.
// The aggregation definition (configured filter, named expressions,
// indicators) lives in Document; columns extracted here are the ones the
// sync engine queries or rewrites. Downstream copies carry MasterID.
type DataSourceConfig struct {
	DataSourceID  string  `gorm:"primaryKey;type:char(36)"`
	Rev           uint64  `gorm:"not null;default:0"`
	Domain        string  `gorm:"size:255;not null;index"`
	TableID       string  `gorm:"size:255"`
	DisplayName   string  `gorm:"size:255"`
	ReferencedDoc string  `gorm:"size:64"`
	MasterID      *string `gorm:"type:char(36);index"`
	Document      JSON    `gorm:"type:json"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName overrides the table name for DataSourceConfig
func (DataSourceConfig) TableName() string {
	return "data_source_configs"
}

// ReportConfig is a user-configurable-report report document pointing at
// a datasource via ConfigID. Downstream copies carry MasterID in their
// report meta; clearing it turns the report into a standalone,
// no-longer-synced entity.
type ReportConfig struct {
	ReportID  string  `gorm:"primaryKey;type:char(36)"`
	Rev       uint64  `gorm:"not null;default:0"`
	Domain    string  `gorm:"size:255;not null;index"`
	Title     string  `gorm:"size:255"`
	ConfigID  string  `gorm:"type:char(36);not null;index"`
	MasterID  *string `gorm:"type:char(36);index"`
	Document  JSON    `gorm:"type:json"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides the table name for ReportConfig
func (ReportConfig) TableName() string {
	return "report_configs"
}
