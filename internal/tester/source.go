package tester

import (
	"context"
	"fmt"

	"github.com/localnerve/spacelink/internal/source"
)

// FakeSource is a canned ContentSource for tests. Unset payload fields
// return empty payloads; Fail lists method names that should return an
// error instead.
type FakeSource struct {
	TogglesPayload    *source.TogglesPayload
	CustomDataPayload *source.CustomDataPayload
	Roles             []source.RolePayload
	FixturePayload    *source.FixturePayload
	CaseSearch        *source.CaseSearchPayload
	Dialer            *source.DialerPayload
	OTP               *source.OTPPayload
	HMAC              *source.HMACPayload
	Tableau           *source.TableauPayload
	Dictionary        *source.DictionaryPayload
	Rules             []source.RulePayload
	UCR               *source.UCRPayload
	FixtureListings   []source.FixtureListingPayload
	ReportListings    []source.ReportListingPayload
	KeywordList       []source.KeywordPayload
	App               *source.AppPayload
	Released          *source.ReleasedVersionsPayload

	Fail map[string]bool

	// Calls counts invocations per method name.
	Calls map[string]int
}

func (f *FakeSource) note(method string) error {
	if f.Calls == nil {
		f.Calls = make(map[string]int)
	}
	f.Calls[method]++
	if f.Fail[method] {
		return fmt.Errorf("%s failed", method)
	}
	return nil
}

func (f *FakeSource) Toggles(ctx context.Context) (*source.TogglesPayload, error) {
	if err := f.note("Toggles"); err != nil {
		return nil, err
	}
	if f.TogglesPayload == nil {
		return &source.TogglesPayload{}, nil
	}
	return f.TogglesPayload, nil
}

func (f *FakeSource) CustomData(ctx context.Context, limitTypes []string) (*source.CustomDataPayload, error) {
	if err := f.note("CustomData"); err != nil {
		return nil, err
	}
	if f.CustomDataPayload == nil {
		return &source.CustomDataPayload{}, nil
	}
	return f.CustomDataPayload, nil
}

func (f *FakeSource) UserRoles(ctx context.Context) ([]source.RolePayload, error) {
	if err := f.note("UserRoles"); err != nil {
		return nil, err
	}
	return f.Roles, nil
}

func (f *FakeSource) Fixture(ctx context.Context, tag string) (*source.FixturePayload, error) {
	if err := f.note("Fixture"); err != nil {
		return nil, err
	}
	if f.FixturePayload == nil {
		return &source.FixturePayload{Tag: tag, IsGlobal: true}, nil
	}
	return f.FixturePayload, nil
}

func (f *FakeSource) FixtureList(ctx context.Context) ([]source.FixtureListingPayload, error) {
	if err := f.note("FixtureList"); err != nil {
		return nil, err
	}
	return f.FixtureListings, nil
}

func (f *FakeSource) CaseSearchConfig(ctx context.Context) (*source.CaseSearchPayload, error) {
	if err := f.note("CaseSearchConfig"); err != nil {
		return nil, err
	}
	if f.CaseSearch == nil {
		return &source.CaseSearchPayload{}, nil
	}
	return f.CaseSearch, nil
}

func (f *FakeSource) DialerSettings(ctx context.Context) (*source.DialerPayload, error) {
	if err := f.note("DialerSettings"); err != nil {
		return nil, err
	}
	if f.Dialer == nil {
		return &source.DialerPayload{}, nil
	}
	return f.Dialer, nil
}

func (f *FakeSource) OTPSettings(ctx context.Context) (*source.OTPPayload, error) {
	if err := f.note("OTPSettings"); err != nil {
		return nil, err
	}
	if f.OTP == nil {
		return &source.OTPPayload{}, nil
	}
	return f.OTP, nil
}

func (f *FakeSource) HMACCalloutSettings(ctx context.Context) (*source.HMACPayload, error) {
	if err := f.note("HMACCalloutSettings"); err != nil {
		return nil, err
	}
	if f.HMAC == nil {
		return &source.HMACPayload{}, nil
	}
	return f.HMAC, nil
}

func (f *FakeSource) TableauConfig(ctx context.Context) (*source.TableauPayload, error) {
	if err := f.note("TableauConfig"); err != nil {
		return nil, err
	}
	if f.Tableau == nil {
		return &source.TableauPayload{}, nil
	}
	return f.Tableau, nil
}

func (f *FakeSource) DataDictionary(ctx context.Context) (*source.DictionaryPayload, error) {
	if err := f.note("DataDictionary"); err != nil {
		return nil, err
	}
	if f.Dictionary == nil {
		return &source.DictionaryPayload{}, nil
	}
	return f.Dictionary, nil
}

func (f *FakeSource) AutoUpdateRules(ctx context.Context) ([]source.RulePayload, error) {
	if err := f.note("AutoUpdateRules"); err != nil {
		return nil, err
	}
	return f.Rules, nil
}

func (f *FakeSource) UCRConfig(ctx context.Context, reportID string) (*source.UCRPayload, error) {
	if err := f.note("UCRConfig"); err != nil {
		return nil, err
	}
	if f.UCR == nil {
		return nil, fmt.Errorf("no report %s", reportID)
	}
	return f.UCR, nil
}

func (f *FakeSource) ReportList(ctx context.Context) ([]source.ReportListingPayload, error) {
	if err := f.note("ReportList"); err != nil {
		return nil, err
	}
	return f.ReportListings, nil
}

func (f *FakeSource) Keywords(ctx context.Context) ([]source.KeywordPayload, error) {
	if err := f.note("Keywords"); err != nil {
		return nil, err
	}
	return f.KeywordList, nil
}

func (f *FakeSource) AppByVersion(ctx context.Context, appID string, version int) (*source.AppPayload, error) {
	if err := f.note("AppByVersion"); err != nil {
		return nil, err
	}
	if f.App == nil {
		return nil, fmt.Errorf("no app %s", appID)
	}
	return f.App, nil
}

func (f *FakeSource) ReleasedAppVersions(ctx context.Context) (*source.ReleasedVersionsPayload, error) {
	if err := f.note("ReleasedAppVersions"); err != nil {
		return nil, err
	}
	if f.Released == nil {
		return &source.ReleasedVersionsPayload{Versions: map[string]int{}}, nil
	}
	return f.Released, nil
}

func (f *FakeSource) ReleaseSource(ctx context.Context, appID string) (*source.AppPayload, error) {
	if err := f.note("ReleaseSource"); err != nil {
		return nil, err
	}
	if f.App == nil {
		return nil, fmt.Errorf("no app %s", appID)
	}
	return f.App, nil
}
