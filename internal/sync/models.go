package sync

import (
	"fmt"

	"github.com/localnerve/spacelink/internal/models"
)

// ModelType enumerates every syncable content type. The set is closed:
// dispatch happens through an exhaustive switch in UpdateModel, so a
// new content type does not exist until it has an update function.
type ModelType string

const (
	ModelFlags           ModelType = "toggles"
	ModelPreviews        ModelType = "previews"
	ModelCustomData      ModelType = "custom_user_data"
	ModelUserRoles       ModelType = "roles"
	ModelFixture         ModelType = "fixture"
	ModelCaseSearch      ModelType = "case_search_data"
	ModelDialerSettings  ModelType = "dialer_settings"
	ModelOTPSettings     ModelType = "otp_settings"
	ModelHMACSettings    ModelType = "hmac_callout_settings"
	ModelTableauConfig   ModelType = "tableau_server_and_visualizations"
	ModelDataDictionary  ModelType = "data_dictionary"
	ModelAutoUpdateRules ModelType = "auto_update_rules"
	ModelReport          ModelType = "report"
	ModelKeyword         ModelType = "keyword"
	ModelApp             ModelType = "app"
)

// displayNames are the human-readable names used in release summaries.
var displayNames = map[ModelType]string{
	ModelFlags:           "Feature Flags",
	ModelPreviews:        "Feature Previews",
	ModelCustomData:      "Custom User Data Fields",
	ModelUserRoles:       "User Roles",
	ModelFixture:         "Lookup Table",
	ModelCaseSearch:      "Case Search Settings",
	ModelDialerSettings:  "Dialer Settings",
	ModelOTPSettings:     "OTP Pass-through Settings",
	ModelHMACSettings:    "Signed Callout Settings",
	ModelTableauConfig:   "Tableau Configuration",
	ModelDataDictionary:  "Data Dictionary",
	ModelAutoUpdateRules: "Auto Update Rules",
	ModelReport:          "Report",
	ModelKeyword:         "Keyword",
	ModelApp:             "Application",
}

// DisplayName returns the human-readable name of a model type.
func (t ModelType) DisplayName() string {
	if name, ok := displayNames[t]; ok {
		return name
	}
	return string(t)
}

// SuperuserOnly reports whether a model type is hidden from
// non-superuser pull listings.
func (t ModelType) SuperuserOnly() bool {
	return t == ModelFlags || t == ModelPreviews
}

// Feature flag slugs gating flag-gated model types.
const (
	FlagSyncedCaseSearch = "synced_case_search"
	FlagWidgetDialer     = "widget_dialer"
	FlagGaenOTPServer    = "gaen_otp_server"
	FlagHMACCallout      = "hmac_callout"
)

// RequiredFlag returns the feature flag a downstream domain must have
// enabled before this model type may be pushed to it, or "" when the
// type is not flag-gated.
func (t ModelType) RequiredFlag() string {
	switch t {
	case ModelCaseSearch:
		return FlagSyncedCaseSearch
	case ModelDialerSettings:
		return FlagWidgetDialer
	case ModelOTPSettings:
		return FlagGaenOTPServer
	case ModelHMACSettings:
		return FlagHMACCallout
	default:
		return ""
	}
}

// Detail identifies which instance of a model type a sync touched.
// Domain-level model types carry none.
type Detail interface {
	detailFor() ModelType
}

// AppDetail identifies an application sync.
type AppDetail struct {
	AppID string `json:"app_id"`
}

func (AppDetail) detailFor() ModelType { return ModelApp }

// ReportDetail identifies a report sync.
type ReportDetail struct {
	ReportID string `json:"report_id"`
}

func (ReportDetail) detailFor() ModelType { return ModelReport }

// KeywordDetail identifies a keyword sync.
type KeywordDetail struct {
	KeywordID string `json:"keyword_id"`
}

func (KeywordDetail) detailFor() ModelType { return ModelKeyword }

// FixtureDetail identifies a lookup table sync by tag.
type FixtureDetail struct {
	Tag string `json:"tag"`
}

func (FixtureDetail) detailFor() ModelType { return ModelFixture }

// RuleDetail identifies an auto-update rule sync by upstream rule id.
type RuleDetail struct {
	RuleID string `json:"id"`
}

func (RuleDetail) detailFor() ModelType { return ModelAutoUpdateRules }

// ModelSpec selects one model type plus, where applicable, the instance
// to sync.
type ModelSpec struct {
	Type   ModelType
	Detail Detail
}

// Validate checks that the model type is known and that the detail
// payload matches it.
func (s ModelSpec) Validate() error {
	if _, ok := displayNames[s.Type]; !ok {
		return fmt.Errorf("unknown model type %q", s.Type)
	}
	if s.Detail == nil {
		switch s.Type {
		case ModelApp:
			return fmt.Errorf("app sync requires an app detail")
		case ModelReport:
			return fmt.Errorf("report sync requires a report detail")
		case ModelKeyword:
			return fmt.Errorf("keyword sync requires a keyword detail")
		case ModelFixture:
			return fmt.Errorf("fixture sync requires a fixture detail")
		}
		return nil
	}
	if s.Detail.detailFor() != s.Type {
		return fmt.Errorf("detail payload %T does not belong to model type %s", s.Detail, s.Type)
	}
	return nil
}

// DetailJSON serializes the detail payload for a history row. Domain
// level models produce an empty column.
func (s ModelSpec) DetailJSON() (models.JSON, error) {
	if s.Detail == nil {
		return models.JSON{}, nil
	}
	return models.NewJSON(s.Detail)
}

// DecodeDetail parses a stored history detail back into its typed
// payload for the given model type.
func DecodeDetail(t ModelType, raw models.JSON) (Detail, error) {
	if len(raw.JSON) == 0 {
		return nil, nil
	}
	switch t {
	case ModelApp:
		var d AppDetail
		if err := raw.Decode(&d); err != nil {
			return nil, err
		}
		return d, nil
	case ModelReport:
		var d ReportDetail
		if err := raw.Decode(&d); err != nil {
			return nil, err
		}
		return d, nil
	case ModelKeyword:
		var d KeywordDetail
		if err := raw.Decode(&d); err != nil {
			return nil, err
		}
		return d, nil
	case ModelFixture:
		var d FixtureDetail
		if err := raw.Decode(&d); err != nil {
			return nil, err
		}
		return d, nil
	case ModelAutoUpdateRules:
		var d RuleDetail
		if err := raw.Decode(&d); err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, nil
	}
}
