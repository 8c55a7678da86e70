package models

import (
	"time"
)

// RolePermissions is the permission payload carried by a UserRole,
// stored as a JSON column. ViewReportList holds report config ids and is
// id-remapped on sync; TableauViewList holds visualization ids.
type RolePermissions struct {
	EditData        bool     `json:"edit_data"`
	EditApps        bool     `json:"edit_apps"`
	EditWebUsers    bool     `json:"edit_web_users"`
	EditMobileUsers bool     `json:"edit_mobile_users"`
	EditReports     bool     `json:"edit_reports"`
	AccessAllReports bool    `json:"access_all_reports"`
	AccessAPIs      bool     `json:"access_apis"`
	ViewReportList  []string `json:"view_report_list"`
	TableauViewList []string `json:"tableau_view_list"`
}

// UserRole is a named permission set within a domain. Downstream copies
// carry UpstreamID; on sync an existing downstream role is matched first
// by that back-reference and then by exact name.
type UserRole struct {
	RoleID       string  `gorm:"primaryKey;type:char(36)"`
	Domain       string  `gorm:"size:255;not null;index"`
	Name         string  `gorm:"size:255;not null"`
	Default      bool    `gorm:"not null;default:false"`
	UpstreamID   *string `gorm:"type:char(36);index"`
	Permissions  JSON    `gorm:"type:json"`
	AssignableBy JSON    `gorm:"type:json"` // role ids allowed to assign this role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName overrides the table name for UserRole
func (UserRole) TableName() string {
	return "user_roles"
}
