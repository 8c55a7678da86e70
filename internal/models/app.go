package models

import (
	"time"

	"gorm.io/datatypes"
)

// Module types. Report modules embed report references that must be
// remapped to downstream report ids on pull.
const (
	ModuleTypeBasic  = "basic"
	ModuleTypeReport = "report"
)

// FormLink is a navigation link from one form to another, by form
// unique id.
type FormLink struct {
	FormID string `json:"form_id"`
}

// Form is one form inside a module. XMLNS is the identity key used when
// merging a pulled app: a downstream form keeps its UniqueID as long as
// a form with the same XMLNS exists, regardless of which upstream the
// pull came from. Version moves only when Source content changes.
type Form struct {
	UniqueID           string     `json:"unique_id"`
	Name               string     `json:"name"`
	XMLNS              string     `json:"xmlns"`
	Version            int        `json:"version"`
	Source             string     `json:"source"`
	IsShadow           bool       `json:"is_shadow,omitempty"`
	ShadowParentFormID string     `json:"shadow_parent_form_id,omitempty"`
	FormLinks          []FormLink `json:"form_links,omitempty"`
}

// ReportModuleConfig references a report config from a report module.
type ReportModuleConfig struct {
	ReportID string `json:"report_id"`
	Header   string `json:"header,omitempty"`
}

// Module is one module of an application document.
type Module struct {
	UniqueID      string               `json:"unique_id"`
	Name          string               `json:"name"`
	ModuleType    string               `json:"module_type"`
	CaseType      string               `json:"case_type,omitempty"`
	Forms         []Form               `json:"forms,omitempty"`
	ReportConfigs []ReportModuleConfig `json:"report_configs,omitempty"`
}

// MediaRef is an entry of an application's multimedia map: the media
// item it points at and the app build version the reference was first
// introduced in. The version is pinned until the media content itself
// changes.
type MediaRef struct {
	MultimediaID string `json:"multimedia_id"`
	Version      int    `json:"version"`
}

// Application is an application document. A downstream linked app
// tracks which upstream it was last pulled from (UpstreamAppID,
// UpstreamVersion) and may be re-pointed to a different upstream over
// its lifetime. FamilyID groups copies of the same app across domains.
//
// LinkedAppTranslations, LinkedAppLogoRefs and LinkedAppAttrs are
// downstream-owned overlays layered on top of whatever was pulled; a
// pull never erases them.
// A build of an app is a copy row with CopyOf set to the editable app's
// id and IsReleased marking it pullable.
type Application struct {
	AppID           string  `gorm:"primaryKey;type:char(36)"`
	Domain          string  `gorm:"size:255;not null;index"`
	Name            string  `gorm:"size:255;not null"`
	Version         int     `gorm:"not null;default:1"`
	CopyOf          *string `gorm:"type:char(36);index"`
	IsReleased      bool    `gorm:"not null;default:false"`
	FamilyID        string  `gorm:"type:char(36);index"`
	UpstreamAppID   *string `gorm:"type:char(36);index"`
	UpstreamVersion *int

	Translations JSON `gorm:"type:json"`

	LinkedAllowlist       JSON `gorm:"type:json"` // domains allowed to pull release source
	LinkedAppTranslations JSON `gorm:"type:json"`
	LinkedAppLogoRefs     JSON `gorm:"type:json"`
	LinkedAppAttrs        JSON `gorm:"type:json"`

	Modules        datatypes.JSONType[[]Module]            `gorm:"type:json"`
	MultimediaMap  datatypes.JSONType[map[string]MediaRef] `gorm:"type:json"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides the table name for Application
func (Application) TableName() string {
	return "applications"
}

// EffectiveTranslations returns the overlay translations when present,
// falling back to the pulled values otherwise.
func (a *Application) EffectiveTranslations(pulled JSON) JSON {
	if len(a.LinkedAppTranslations.JSON) > 0 {
		return a.LinkedAppTranslations
	}
	return pulled
}

// MultimediaItem is a stored multimedia blob shared across domains.
// Identity across a link boundary is carried by UpstreamMediaID or, for
// media uploaded independently on both sides, by ContentHash.
type MultimediaItem struct {
	MediaID        string  `gorm:"primaryKey;type:char(36)"`
	ContentHash    string  `gorm:"size:64;not null;index"`
	MimeType       string  `gorm:"size:128"`
	Content        []byte
	UpstreamMediaID *string `gorm:"type:char(36);index"`
	Domains        JSON    `gorm:"type:json"` // visibility list
	CreatedAt      time.Time
}

// TableName overrides the table name for MultimediaItem
func (MultimediaItem) TableName() string {
	return "multimedia_items"
}

// ResourceOverride pins a pulled form unique id to an operator-chosen
// downstream value, used when mobile clients have hard-coded a resource
// id. Overrides apply to the form and anything referencing it and
// survive re-pulls.
type ResourceOverride struct {
	OverrideRowID uint64 `gorm:"primaryKey;autoIncrement"`
	Domain        string `gorm:"size:255;not null;index:idx_override_domain_app_pre,unique"`
	AppID         string `gorm:"type:char(36);not null;index:idx_override_domain_app_pre,unique"`
	PreExistingID string `gorm:"type:char(36);not null;index:idx_override_domain_app_pre,unique"`
	OverrideID    string `gorm:"type:char(36);not null"`
	CreatedAt     time.Time
}

// TableName overrides the table name for ResourceOverride
func (ResourceOverride) TableName() string {
	return "resource_overrides"
}
