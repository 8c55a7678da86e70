package source

import (
	"encoding/json"

	"github.com/localnerve/spacelink/internal/models"
)

// Payload shapes shared by the local accessor, the remote JSON wire
// format, and the linked-data HTTP handlers. The serving handlers call
// the local accessor directly, which is what keeps the two origins
// byte-compatible.

// TogglesPayload lists the feature flag and preview slugs enabled in
// the upstream domain.
type TogglesPayload struct {
	Toggles  []string `json:"toggles"`
	Previews []string `json:"previews"`
}

// CustomDataPayload maps field type (user, location, product) to its
// field definitions.
type CustomDataPayload struct {
	Definitions map[string][]models.CustomDataField `json:"definitions"`
}

// RolePayload is one upstream user role.
type RolePayload struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	Default      bool                   `json:"default"`
	Permissions  models.RolePermissions `json:"permissions"`
	AssignableBy []string               `json:"assignable_by"`
}

// FixtureRowPayload is one lookup table row.
type FixtureRowPayload struct {
	SortKey int               `json:"sort_key"`
	Values  map[string]string `json:"values"`
}

// FixturePayload is a lookup table definition plus its rows.
type FixturePayload struct {
	TableID  string              `json:"table_id"`
	Tag      string              `json:"tag"`
	IsGlobal bool                `json:"is_global"`
	Fields   []string            `json:"fields"`
	Rows     []FixtureRowPayload `json:"rows"`
}

// FuzzyPropertyPayload is one fuzzy-matchable case property.
type FuzzyPropertyPayload struct {
	CaseType string `json:"case_type"`
	Property string `json:"property"`
}

// IgnorePatternPayload is one search-value strip pattern.
type IgnorePatternPayload struct {
	CaseType     string `json:"case_type"`
	CaseProperty string `json:"case_property"`
	Regex        string `json:"regex"`
}

// CaseSearchPayload is the case-search config with its child
// collections.
type CaseSearchPayload struct {
	Enabled         bool                   `json:"enabled"`
	FuzzyProperties []FuzzyPropertyPayload `json:"fuzzy_properties"`
	IgnorePatterns  []IgnorePatternPayload `json:"ignore_patterns"`
}

// DialerPayload is the dialer settings document.
type DialerPayload struct {
	Enabled    bool   `json:"enabled"`
	InstanceID string `json:"instance_id"`
	DialerType string `json:"dialer_type"`
}

// OTPPayload is the pass-through OTP settings document.
type OTPPayload struct {
	Enabled   bool   `json:"enabled"`
	ServerURL string `json:"server_url"`
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}

// HMACPayload is the HMAC callout settings document.
type HMACPayload struct {
	Enabled        bool   `json:"enabled"`
	DestinationURL string `json:"destination_url"`
	APIKey         string `json:"api_key"`
	APISecret      string `json:"api_secret"`
}

// TableauVisualizationPayload is one upstream tableau view.
type TableauVisualizationPayload struct {
	ID      string `json:"id"`
	ViewURL string `json:"view_url"`
	Title   string `json:"title"`
}

// TableauPayload is the tableau server config plus its visualizations.
type TableauPayload struct {
	ServerType       string                        `json:"server_type"`
	ServerName       string                        `json:"server_name"`
	ValidateHostname string                        `json:"validate_hostname"`
	TargetSite       string                        `json:"target_site"`
	Visualizations   []TableauVisualizationPayload `json:"visualizations"`
}

// CasePropertyPayload is one data dictionary property.
type CasePropertyPayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Deprecated  bool   `json:"deprecated"`
	DataType    string `json:"data_type"`
}

// CaseTypePayload is one data dictionary case type with properties.
type CaseTypePayload struct {
	Name           string                `json:"name"`
	Description    string                `json:"description"`
	FullyGenerated bool                  `json:"fully_generated"`
	Properties     []CasePropertyPayload `json:"properties"`
}

// DictionaryPayload is the whole upstream data dictionary.
type DictionaryPayload struct {
	CaseTypes []CaseTypePayload `json:"case_types"`
}

// RulePayload is one auto-update rule.
type RulePayload struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	CaseType string          `json:"case_type"`
	Active   bool            `json:"active"`
	Criteria json.RawMessage `json:"criteria"`
	Actions  json.RawMessage `json:"actions"`
}

// FixtureListingPayload is one row of the upstream lookup table
// listing. Only global tables are listed; domain-scoped tables cannot
// sync down.
type FixtureListingPayload struct {
	Tag string `json:"tag"`
}

// ReportListingPayload is one row of the upstream report listing.
type ReportListingPayload struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// DataSourcePayload is an upstream UCR datasource document.
type DataSourcePayload struct {
	ID            string          `json:"id"`
	TableID       string          `json:"table_id"`
	DisplayName   string          `json:"display_name"`
	ReferencedDoc string          `json:"referenced_doc"`
	Document      json.RawMessage `json:"document"`
}

// ReportDocPayload is an upstream UCR report document.
type ReportDocPayload struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	ConfigID string          `json:"config_id"`
	Document json.RawMessage `json:"document"`
}

// UCRPayload pairs an upstream report with its datasource.
type UCRPayload struct {
	Report     ReportDocPayload  `json:"report"`
	DataSource DataSourcePayload `json:"datasource"`
}

// KeywordActionPayload is one upstream keyword action.
type KeywordActionPayload struct {
	Action         string  `json:"action"`
	RecipientType  string  `json:"recipient_type"`
	RecipientID    string  `json:"recipient_id"`
	AppID          *string `json:"app_id,omitempty"`
	FormUniqueID   *string `json:"form_unique_id,omitempty"`
	MessageContent string  `json:"message_content"`
}

// KeywordPayload is one upstream keyword with its actions.
type KeywordPayload struct {
	ID                   string                 `json:"id"`
	Word                 string                 `json:"word"`
	Description          string                 `json:"description"`
	Delimiter            string                 `json:"delimiter"`
	OverrideOpenSessions bool                   `json:"override_open_sessions"`
	Actions              []KeywordActionPayload `json:"actions"`
}

// MultimediaBlobPayload carries one multimedia item of an app payload.
// ContentB64 holds the base64 round-trip of the blob; a local pull fills
// Content bytes into it the same way so the merge path never branches on
// origin.
type MultimediaBlobPayload struct {
	ID          string `json:"id"`
	ContentHash string `json:"content_hash"`
	MimeType    string `json:"mime_type"`
	ContentB64  string `json:"content_b64"`
}

// AppPayload is a released application build as served to a pull.
type AppPayload struct {
	ID            string                     `json:"id"`
	Name          string                     `json:"name"`
	Version       int                        `json:"version"`
	FamilyID      string                     `json:"family_id"`
	Modules       []models.Module            `json:"modules"`
	MultimediaMap map[string]models.MediaRef `json:"multimedia_map"`
	Translations  json.RawMessage            `json:"translations,omitempty"`
	Multimedia    []MultimediaBlobPayload    `json:"multimedia,omitempty"`
}

// ReleasedVersionsPayload maps upstream app id to its latest released
// version.
type ReleasedVersionsPayload struct {
	Versions map[string]int `json:"versions"`
}
