package models

import (
	"time"
)

// CaseSearchConfig enables and tunes claim/search behavior for a domain.
// Synced wholesale together with its child collections: children are
// fully replaced, never merged.
type CaseSearchConfig struct {
	ConfigID  uint64 `gorm:"primaryKey;autoIncrement"`
	Domain    string `gorm:"size:255;not null;uniqueIndex"`
	Enabled   bool   `gorm:"not null;default:false"`
	UpdatedAt time.Time

	FuzzyProperties []CaseSearchFuzzyProperty `gorm:"foreignKey:ConfigID;constraint:OnDelete:CASCADE"`
	IgnorePatterns  []CaseSearchIgnorePattern `gorm:"foreignKey:ConfigID;constraint:OnDelete:CASCADE"`
}

// TableName overrides the table name for CaseSearchConfig
func (CaseSearchConfig) TableName() string {
	return "case_search_configs"
}

// CaseSearchFuzzyProperty marks a case property as fuzzy-matchable.
type CaseSearchFuzzyProperty struct {
	PropertyID uint64 `gorm:"primaryKey;autoIncrement"`
	ConfigID   uint64 `gorm:"not null;index"`
	CaseType   string `gorm:"size:255;not null"`
	Property   string `gorm:"size:255;not null"`
}

// TableName overrides the table name for CaseSearchFuzzyProperty
func (CaseSearchFuzzyProperty) TableName() string {
	return "case_search_fuzzy_properties"
}

// CaseSearchIgnorePattern strips a regex from incoming search values for
// one case property.
type CaseSearchIgnorePattern struct {
	PatternID  uint64 `gorm:"primaryKey;autoIncrement"`
	ConfigID   uint64 `gorm:"not null;index"`
	CaseType   string `gorm:"size:255;not null"`
	CaseProperty string `gorm:"size:255;not null"`
	Regex      string `gorm:"size:255;not null"`
}

// TableName overrides the table name for CaseSearchIgnorePattern
func (CaseSearchIgnorePattern) TableName() string {
	return "case_search_ignore_patterns"
}

// CaseType is a data dictionary entry describing one case type.
type CaseType struct {
	CaseTypeID  uint64 `gorm:"primaryKey;autoIncrement"`
	Domain      string `gorm:"size:255;not null;index:idx_case_type_domain_name,unique"`
	Name        string `gorm:"size:255;not null;index:idx_case_type_domain_name,unique"`
	Description string `gorm:"size:1024"`
	FullyGenerated bool `gorm:"not null;default:false"`
	UpdatedAt   time.Time

	Properties []CaseProperty `gorm:"foreignKey:CaseTypeID;constraint:OnDelete:CASCADE"`
}

// TableName overrides the table name for CaseType
func (CaseType) TableName() string {
	return "case_types"
}

// CaseProperty is a data dictionary entry describing one property of a
// case type.
type CaseProperty struct {
	PropertyID  uint64 `gorm:"primaryKey;autoIncrement"`
	CaseTypeID  uint64 `gorm:"not null;index"`
	Name        string `gorm:"size:255;not null"`
	Description string `gorm:"size:1024"`
	Deprecated  bool   `gorm:"not null;default:false"`
	DataType    string `gorm:"size:64"`
}

// TableName overrides the table name for CaseProperty
func (CaseProperty) TableName() string {
	return "case_properties"
}
