package models

import (
	"time"
)

// Keyword is an inbound SMS keyword. Downstream copies carry UpstreamID;
// on update all child actions are deleted and recreated from the
// upstream definition so downstream action state exactly mirrors
// upstream after every sync.
type Keyword struct {
	KeywordID   string  `gorm:"primaryKey;type:char(36)"`
	Domain      string  `gorm:"size:255;not null;index:idx_keyword_domain_word,unique"`
	Word        string  `gorm:"size:255;not null;index:idx_keyword_domain_word,unique"`
	Description string  `gorm:"size:1024"`
	Delimiter   string  `gorm:"size:16"`
	OverrideOpenSessions bool `gorm:"not null;default:false"`
	UpstreamID  *string `gorm:"type:char(36);index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Actions []KeywordAction `gorm:"foreignKey:KeywordID;constraint:OnDelete:CASCADE"`
}

// TableName overrides the table name for Keyword
func (Keyword) TableName() string {
	return "keywords"
}

// Keyword action recipient types. Group recipients are not stable across
// domains, so keywords with a group recipient are not linkable.
const (
	RecipientSender    = "SENDER"
	RecipientOwner     = "OWNER"
	RecipientUserGroup = "USER_GROUP"
)

// KeywordAction is one response action of a keyword. AppID and
// FormUniqueID reference the application whose form the action starts
// and are remapped to downstream ids on sync.
type KeywordAction struct {
	ActionID      uint64  `gorm:"primaryKey;autoIncrement"`
	KeywordID     string  `gorm:"type:char(36);not null;index"`
	Action        string  `gorm:"size:64;not null"`
	RecipientType string  `gorm:"size:64;not null"`
	RecipientID   string  `gorm:"size:255"`
	AppID         *string `gorm:"type:char(36)"`
	FormUniqueID  *string `gorm:"type:char(36)"`
	MessageContent string `gorm:"size:1024"`
}

// TableName overrides the table name for KeywordAction
func (KeywordAction) TableName() string {
	return "keyword_actions"
}
