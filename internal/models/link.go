package models

import (
	"strings"
	"time"
)

// DomainLink is the persistent record of an upstream -> downstream
// relationship. A downstream domain has at most one active (non-deleted)
// upstream at a time; rows are soft-deleted and reused, never dropped.
type DomainLink struct {
	LinkID       uint64 `gorm:"primaryKey;autoIncrement"`
	LinkedDomain string `gorm:"size:255;not null;index:idx_domain_link_pair,unique"`
	MasterDomain string `gorm:"size:255;not null;index:idx_domain_link_pair,unique"`
	LastPull     *time.Time
	Deleted      bool `gorm:"not null;default:false"`

	// Remote connection info, present only for cross-network links.
	RemoteBaseURL  string `gorm:"size:512"`
	RemoteUsername string `gorm:"size:255"`
	RemoteAPIKey   string `gorm:"size:255"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides the table name for DomainLink
func (DomainLink) TableName() string {
	return "domain_links"
}

// IsRemote reports whether this link crosses an installation boundary.
// Legacy remote links created before the remote fields existed stored a
// URL in the linked-domain column, so that shape also counts as remote.
func (l *DomainLink) IsRemote() bool {
	if l.RemoteBaseURL != "" {
		return true
	}
	return strings.HasPrefix(l.LinkedDomain, "http://") || strings.HasPrefix(l.LinkedDomain, "https://")
}

// DomainLinkHistory is one completed sync action against a link. History
// is append-only: current status of a synced item is derived by taking
// the most recent row per (model type, model detail), never by mutating
// old rows. Rows are marked hidden when the underlying linked content is
// later unlinked, so queries exclude stale entries without losing audit
// data.
type DomainLinkHistory struct {
	HistoryID   uint64    `gorm:"primaryKey;autoIncrement"`
	LinkID      uint64    `gorm:"not null;index:idx_history_link_date"`
	Date        time.Time `gorm:"not null;index:idx_history_link_date"`
	ModelType   string    `gorm:"size:64;not null"`
	ModelDetail JSON      `gorm:"type:json"`
	UserID      string    `gorm:"size:255"`
	Hidden      bool      `gorm:"not null;default:false"`
}

// TableName overrides the table name for DomainLinkHistory
func (DomainLinkHistory) TableName() string {
	return "domain_link_history"
}
