package source

import (
	"context"

	"gorm.io/gorm"

	"github.com/localnerve/spacelink/internal/config"
	"github.com/localnerve/spacelink/internal/models"
	"github.com/localnerve/spacelink/internal/remote"
)

// ContentSource reads syncable content from the upstream side of a
// link. The per-model update functions receive one and never care
// whether it is backed by the local data store or a remote installation;
// the local/remote decision happens exactly once, in ForLink.
type ContentSource interface {
	Toggles(ctx context.Context) (*TogglesPayload, error)
	CustomData(ctx context.Context, limitTypes []string) (*CustomDataPayload, error)
	UserRoles(ctx context.Context) ([]RolePayload, error)
	Fixture(ctx context.Context, tag string) (*FixturePayload, error)
	FixtureList(ctx context.Context) ([]FixtureListingPayload, error)
	CaseSearchConfig(ctx context.Context) (*CaseSearchPayload, error)
	DialerSettings(ctx context.Context) (*DialerPayload, error)
	OTPSettings(ctx context.Context) (*OTPPayload, error)
	HMACCalloutSettings(ctx context.Context) (*HMACPayload, error)
	TableauConfig(ctx context.Context) (*TableauPayload, error)
	DataDictionary(ctx context.Context) (*DictionaryPayload, error)
	AutoUpdateRules(ctx context.Context) ([]RulePayload, error)
	UCRConfig(ctx context.Context, reportID string) (*UCRPayload, error)
	ReportList(ctx context.Context) ([]ReportListingPayload, error)
	Keywords(ctx context.Context) ([]KeywordPayload, error)
	AppByVersion(ctx context.Context, appID string, version int) (*AppPayload, error)
	ReleasedAppVersions(ctx context.Context) (*ReleasedVersionsPayload, error)
	ReleaseSource(ctx context.Context, appID string) (*AppPayload, error)
}

// ForLink constructs the ContentSource for a link: a direct database
// reader for local links, an authenticated HTTP client for remote ones.
func ForLink(db *gorm.DB, link *models.DomainLink, cfg *config.Config) ContentSource {
	if link.IsRemote() {
		client := remote.NewClient(link, cfg.BaseURL, cfg.RemoteTimeout, cfg.RemoteMaxRetries)
		return NewRemoteSource(client, link.MasterDomain)
	}
	return NewLocalSource(db, link.MasterDomain)
}
