package models

import (
	"time"
)

// APIClient is a credential a remote downstream installation uses to
// call this installation's linked-data endpoints.
type APIClient struct {
	ClientID  uint64 `gorm:"primaryKey;autoIncrement"`
	Username  string `gorm:"size:255;not null;uniqueIndex"`
	Key       string `gorm:"column:api_key;size:255;not null"`
	Active    bool   `gorm:"not null;default:true"`
	CreatedAt time.Time
}

// TableName overrides the table name for APIClient
func (APIClient) TableName() string {
	return "api_clients"
}

// All returns every model managed by the service, in migration order.
func All() []interface{} {
	return []interface{}{
		&DomainLink{},
		&DomainLinkHistory{},
		&APIClient{},
		&FeatureToggle{},
		&FeaturePreview{},
		&CustomDataFieldsDef{},
		&AutoUpdateRule{},
		&UserRole{},
		&DialerSettings{},
		&OTPSettings{},
		&HMACCalloutSettings{},
		&TableauServer{},
		&TableauVisualization{},
		&CaseSearchConfig{},
		&CaseSearchFuzzyProperty{},
		&CaseSearchIgnorePattern{},
		&CaseType{},
		&CaseProperty{},
		&FixtureTable{},
		&FixtureRow{},
		&DataSourceConfig{},
		&ReportConfig{},
		&Keyword{},
		&KeywordAction{},
		&Application{},
		&MultimediaItem{},
		&ResourceOverride{},
	}
}
