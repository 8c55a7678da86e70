package models

import (
	"time"
)

// FeatureToggle marks a feature flag slug enabled for a domain. The
// enabled set for a domain is the set of rows present.
type FeatureToggle struct {
	ToggleID  uint64 `gorm:"primaryKey;autoIncrement"`
	Domain    string `gorm:"size:255;not null;index:idx_toggle_domain_slug,unique"`
	Slug      string `gorm:"size:255;not null;index:idx_toggle_domain_slug,unique"`
	CreatedAt time.Time
}

// TableName overrides the table name for FeatureToggle
func (FeatureToggle) TableName() string {
	return "feature_toggles"
}

// FeaturePreview marks a feature preview slug enabled for a domain.
type FeaturePreview struct {
	PreviewID uint64 `gorm:"primaryKey;autoIncrement"`
	Domain    string `gorm:"size:255;not null;index:idx_preview_domain_slug,unique"`
	Slug      string `gorm:"size:255;not null;index:idx_preview_domain_slug,unique"`
	CreatedAt time.Time
}

// TableName overrides the table name for FeaturePreview
func (FeaturePreview) TableName() string {
	return "feature_previews"
}

// CustomDataField is one field in a custom data fields definition.
type CustomDataField struct {
	Slug      string   `json:"slug"`
	Label     string   `json:"label"`
	Required  bool     `json:"required"`
	Choices   []string `json:"choices,omitempty"`
	RegexMsg  string   `json:"regex_msg,omitempty"`
	Regex     string   `json:"regex,omitempty"`
	UpstreamID string  `json:"upstream_id,omitempty"`
}

// CustomDataFieldsDef holds the custom data field definitions for one
// (domain, field type) pair out of user, location, or product. The
// definition is replaced wholesale on sync.
type CustomDataFieldsDef struct {
	DefID     uint64 `gorm:"primaryKey;autoIncrement"`
	Domain    string `gorm:"size:255;not null;index:idx_custom_data_domain_type,unique"`
	FieldType string `gorm:"size:64;not null;index:idx_custom_data_domain_type,unique"`
	Fields    JSON   `gorm:"type:json"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides the table name for CustomDataFieldsDef
func (CustomDataFieldsDef) TableName() string {
	return "custom_data_fields_defs"
}

// AutoUpdateRule is a case auto-update rule. Downstream copies carry
// UpstreamID; rules are matched by that back-reference only, never by
// name, since rule names are not guaranteed unique.
type AutoUpdateRule struct {
	RuleID     string `gorm:"primaryKey;type:char(36)"`
	Domain     string `gorm:"size:255;not null;index"`
	Name       string `gorm:"size:255;not null"`
	CaseType   string `gorm:"size:255"`
	Active     bool   `gorm:"not null;default:false"`
	Deleted    bool   `gorm:"not null;default:false"`
	UpstreamID *string `gorm:"type:char(36);index"`
	Criteria   JSON   `gorm:"type:json"`
	Actions    JSON   `gorm:"type:json"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName overrides the table name for AutoUpdateRule
func (AutoUpdateRule) TableName() string {
	return "auto_update_rules"
}
