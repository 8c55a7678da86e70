package source

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/localnerve/spacelink/internal/remote"
)

// RemoteSource reads upstream content from a remote installation over
// authenticated HTTP. Endpoint payloads deserialize into the exact
// shapes the local accessor produces.
type RemoteSource struct {
	client *remote.Client
	domain string
}

// NewRemoteSource creates a RemoteSource for the master domain served
// by client.
func NewRemoteSource(client *remote.Client, masterDomain string) *RemoteSource {
	return &RemoteSource{client: client, domain: masterDomain}
}

func (s *RemoteSource) path(endpoint string) string {
	return fmt.Sprintf("/a/%s/linked/%s", url.PathEscape(s.domain), endpoint)
}

func (s *RemoteSource) Toggles(ctx context.Context) (*TogglesPayload, error) {
	var payload TogglesPayload
	if err := s.client.GetJSON(ctx, s.path("toggles"), nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (s *RemoteSource) CustomData(ctx context.Context, limitTypes []string) (*CustomDataPayload, error) {
	params := url.Values{}
	for _, t := range limitTypes {
		params.Add("field_type", t)
	}
	var payload CustomDataPayload
	if err := s.client.GetJSON(ctx, s.path("custom_data_models"), params, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (s *RemoteSource) UserRoles(ctx context.Context) ([]RolePayload, error) {
	var payload []RolePayload
	if err := s.client.GetJSON(ctx, s.path("user_roles"), nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (s *RemoteSource) Fixture(ctx context.Context, tag string) (*FixturePayload, error) {
	var payload FixturePayload
	if err := s.client.GetJSON(ctx, s.path("fixture/"+url.PathEscape(tag)), nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (s *RemoteSource) CaseSearchConfig(ctx context.Context) (*CaseSearchPayload, error) {
	var payload CaseSearchPayload
	if err := s.client.GetJSON(ctx, s.path("case_search_config"), nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (s *RemoteSource) DialerSettings(ctx context.Context) (*DialerPayload, error) {
	var payload DialerPayload
	if err := s.client.GetJSON(ctx, s.path("dialer_settings"), nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (s *RemoteSource) OTPSettings(ctx context.Context) (*OTPPayload, error) {
	var payload OTPPayload
	if err := s.client.GetJSON(ctx, s.path("otp_settings"), nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (s *RemoteSource) HMACCalloutSettings(ctx context.Context) (*HMACPayload, error) {
	var payload HMACPayload
	if err := s.client.GetJSON(ctx, s.path("hmac_callout_settings"), nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (s *RemoteSource) TableauConfig(ctx context.Context) (*TableauPayload, error) {
	var payload TableauPayload
	if err := s.client.GetJSON(ctx, s.path("tableau_config"), nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (s *RemoteSource) DataDictionary(ctx context.Context) (*DictionaryPayload, error) {
	var payload DictionaryPayload
	if err := s.client.GetJSON(ctx, s.path("data_dictionary"), nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (s *RemoteSource) AutoUpdateRules(ctx context.Context) ([]RulePayload, error) {
	var payload []RulePayload
	if err := s.client.GetJSON(ctx, s.path("auto_update_rules"), nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (s *RemoteSource) FixtureList(ctx context.Context) ([]FixtureListingPayload, error) {
	var payload []FixtureListingPayload
	if err := s.client.GetJSON(ctx, s.path("fixtures"), nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (s *RemoteSource) ReportList(ctx context.Context) ([]ReportListingPayload, error) {
	var payload []ReportListingPayload
	if err := s.client.GetJSON(ctx, s.path("reports"), nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (s *RemoteSource) UCRConfig(ctx context.Context, reportID string) (*UCRPayload, error) {
	var payload UCRPayload
	if err := s.client.GetJSON(ctx, s.path("ucr_config/"+url.PathEscape(reportID)), nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (s *RemoteSource) Keywords(ctx context.Context) ([]KeywordPayload, error) {
	var payload []KeywordPayload
	if err := s.client.GetJSON(ctx, s.path("keywords"), nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (s *RemoteSource) AppByVersion(ctx context.Context, appID string, version int) (*AppPayload, error) {
	endpoint := fmt.Sprintf("app_by_version/%s/%s", url.PathEscape(appID), strconv.Itoa(version))
	var payload AppPayload
	if err := s.client.GetJSON(ctx, s.path(endpoint), nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (s *RemoteSource) ReleasedAppVersions(ctx context.Context) (*ReleasedVersionsPayload, error) {
	var payload ReleasedVersionsPayload
	if err := s.client.GetJSON(ctx, s.path("released_app_versions"), nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (s *RemoteSource) ReleaseSource(ctx context.Context, appID string) (*AppPayload, error) {
	var payload AppPayload
	if err := s.client.GetJSON(ctx, s.path("release_source/"+url.PathEscape(appID)), nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}
