package models

import (
	"time"
)

// DialerSettings configures the click-to-call dialer for a domain.
// Replaced wholesale on sync; not meant to be edited downstream.
type DialerSettings struct {
	SettingsID  uint64 `gorm:"primaryKey;autoIncrement"`
	Domain      string `gorm:"size:255;not null;uniqueIndex"`
	Enabled     bool   `gorm:"not null;default:false"`
	InstanceID  string `gorm:"size:255"`
	DialerType  string `gorm:"size:64"`
	UpdatedAt   time.Time
}

// TableName overrides the table name for DialerSettings
func (DialerSettings) TableName() string {
	return "dialer_settings"
}

// OTPSettings configures a pass-through one-time-password gateway for a
// domain. Replaced wholesale on sync.
type OTPSettings struct {
	SettingsID uint64 `gorm:"primaryKey;autoIncrement"`
	Domain     string `gorm:"size:255;not null;uniqueIndex"`
	Enabled    bool   `gorm:"not null;default:false"`
	ServerURL  string `gorm:"size:512"`
	APIKey     string `gorm:"size:255"`
	APISecret  string `gorm:"size:255"`
	UpdatedAt  time.Time
}

// TableName overrides the table name for OTPSettings
func (OTPSettings) TableName() string {
	return "otp_settings"
}

// HMACCalloutSettings configures signed external callouts for a domain.
// Replaced wholesale on sync.
type HMACCalloutSettings struct {
	SettingsID  uint64 `gorm:"primaryKey;autoIncrement"`
	Domain      string `gorm:"size:255;not null;uniqueIndex"`
	Enabled     bool   `gorm:"not null;default:false"`
	DestinationURL string `gorm:"size:512"`
	APIKey      string `gorm:"size:255"`
	APISecret   string `gorm:"size:255"`
	UpdatedAt   time.Time
}

// TableName overrides the table name for HMACCalloutSettings
func (HMACCalloutSettings) TableName() string {
	return "hmac_callout_settings"
}

// TableauServer is the per-domain tableau server configuration.
type TableauServer struct {
	ServerID        uint64 `gorm:"primaryKey;autoIncrement"`
	Domain          string `gorm:"size:255;not null;uniqueIndex"`
	ServerType      string `gorm:"size:64"`
	ServerName      string `gorm:"size:255"`
	ValidateHostname string `gorm:"size:255"`
	TargetSite      string `gorm:"size:255"`
	UpdatedAt       time.Time
}

// TableName overrides the table name for TableauServer
func (TableauServer) TableName() string {
	return "tableau_servers"
}

// TableauVisualization is one tableau view available in a domain.
// Downstream copies carry UpstreamID.
type TableauVisualization struct {
	VisualizationID string  `gorm:"primaryKey;type:char(36)"`
	Domain          string  `gorm:"size:255;not null;index"`
	ViewURL         string  `gorm:"size:512"`
	Title           string  `gorm:"size:255"`
	UpstreamID      *string `gorm:"type:char(36);index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName overrides the table name for TableauVisualization
func (TableauVisualization) TableName() string {
	return "tableau_visualizations"
}
