// local.go
//
// Linked project space synchronization service
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of spacelink.
// spacelink is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// spacelink is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with spacelink.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package source

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"gorm.io/gorm"

	"github.com/localnerve/spacelink/internal/models"
	"github.com/localnerve/spacelink/internal/types"
)

// LocalSource reads upstream content straight from the local data store
// of the master domain. The linked-data HTTP handlers serve from the
// same functions, which is what keeps the remote wire shape identical.
type LocalSource struct {
	db     *gorm.DB
	domain string
}

// NewLocalSource creates a LocalSource over the master domain.
func NewLocalSource(db *gorm.DB, masterDomain string) *LocalSource {
	return &LocalSource{db: db, domain: masterDomain}
}

func (s *LocalSource) Toggles(ctx context.Context) (*TogglesPayload, error) {
	payload := &TogglesPayload{Toggles: []string{}, Previews: []string{}}

	if err := s.db.WithContext(ctx).Model(&models.FeatureToggle{}).
		Where("domain = ?", s.domain).Order("slug").
		Pluck("slug", &payload.Toggles).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&models.FeaturePreview{}).
		Where("domain = ?", s.domain).Order("slug").
		Pluck("slug", &payload.Previews).Error; err != nil {
		return nil, err
	}
	return payload, nil
}

func (s *LocalSource) CustomData(ctx context.Context, limitTypes []string) (*CustomDataPayload, error) {
	query := s.db.WithContext(ctx).Where("domain = ?", s.domain)
	if len(limitTypes) > 0 {
		query = query.Where("field_type IN ?", limitTypes)
	}

	var defs []models.CustomDataFieldsDef
	if err := query.Find(&defs).Error; err != nil {
		return nil, err
	}

	payload := &CustomDataPayload{Definitions: make(map[string][]models.CustomDataField)}
	for _, def := range defs {
		var fields []models.CustomDataField
		if err := def.Fields.Decode(&fields); err != nil {
			return nil, err
		}
		payload.Definitions[def.FieldType] = fields
	}
	return payload, nil
}

func (s *LocalSource) UserRoles(ctx context.Context) ([]RolePayload, error) {
	var roles []models.UserRole
	if err := s.db.WithContext(ctx).
		Where("domain = ?", s.domain).Order("name").
		Find(&roles).Error; err != nil {
		return nil, err
	}

	payloads := make([]RolePayload, 0, len(roles))
	for _, role := range roles {
		p := RolePayload{
			ID:      role.RoleID,
			Name:    role.Name,
			Default: role.Default,
		}
		if err := role.Permissions.Decode(&p.Permissions); err != nil {
			return nil, err
		}
		if err := role.AssignableBy.Decode(&p.AssignableBy); err != nil {
			return nil, err
		}
		payloads = append(payloads, p)
	}
	return payloads, nil
}

func (s *LocalSource) Fixture(ctx context.Context, tag string) (*FixturePayload, error) {
	var table models.FixtureTable
	err := s.db.WithContext(ctx).Preload("Rows", func(db *gorm.DB) *gorm.DB {
		return db.Order("sort_key")
	}).Where("domain = ? AND tag = ?", s.domain, tag).First(&table).Error
	if err == gorm.ErrRecordNotFound {
		return nil, types.NewDomainLinkError("lookup table %s not found in %s", tag, s.domain)
	}
	if err != nil {
		return nil, err
	}

	payload := &FixturePayload{
		TableID:  table.TableID,
		Tag:      table.Tag,
		IsGlobal: table.IsGlobal,
	}
	if err := table.Fields.Decode(&payload.Fields); err != nil {
		return nil, err
	}
	for _, row := range table.Rows {
		rp := FixtureRowPayload{SortKey: row.SortKey}
		if err := row.Values.Decode(&rp.Values); err != nil {
			return nil, err
		}
		payload.Rows = append(payload.Rows, rp)
	}
	return payload, nil
}

func (s *LocalSource) FixtureList(ctx context.Context) ([]FixtureListingPayload, error) {
	var tags []string
	if err := s.db.WithContext(ctx).Model(&models.FixtureTable{}).
		Where("domain = ? AND is_global = ?", s.domain, true).Order("tag").
		Pluck("tag", &tags).Error; err != nil {
		return nil, err
	}
	listings := make([]FixtureListingPayload, 0, len(tags))
	for _, tag := range tags {
		listings = append(listings, FixtureListingPayload{Tag: tag})
	}
	return listings, nil
}

func (s *LocalSource) CaseSearchConfig(ctx context.Context) (*CaseSearchPayload, error) {
	var cfg models.CaseSearchConfig
	err := s.db.WithContext(ctx).
		Preload("FuzzyProperties").Preload("IgnorePatterns").
		Where("domain = ?", s.domain).First(&cfg).Error
	if err == gorm.ErrRecordNotFound {
		return &CaseSearchPayload{}, nil
	}
	if err != nil {
		return nil, err
	}

	payload := &CaseSearchPayload{Enabled: cfg.Enabled}
	for _, fp := range cfg.FuzzyProperties {
		payload.FuzzyProperties = append(payload.FuzzyProperties, FuzzyPropertyPayload{
			CaseType: fp.CaseType,
			Property: fp.Property,
		})
	}
	for _, ip := range cfg.IgnorePatterns {
		payload.IgnorePatterns = append(payload.IgnorePatterns, IgnorePatternPayload{
			CaseType:     ip.CaseType,
			CaseProperty: ip.CaseProperty,
			Regex:        ip.Regex,
		})
	}
	return payload, nil
}

func (s *LocalSource) DialerSettings(ctx context.Context) (*DialerPayload, error) {
	var settings models.DialerSettings
	err := s.db.WithContext(ctx).Where("domain = ?", s.domain).First(&settings).Error
	if err == gorm.ErrRecordNotFound {
		return &DialerPayload{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &DialerPayload{
		Enabled:    settings.Enabled,
		InstanceID: settings.InstanceID,
		DialerType: settings.DialerType,
	}, nil
}

func (s *LocalSource) OTPSettings(ctx context.Context) (*OTPPayload, error) {
	var settings models.OTPSettings
	err := s.db.WithContext(ctx).Where("domain = ?", s.domain).First(&settings).Error
	if err == gorm.ErrRecordNotFound {
		return &OTPPayload{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &OTPPayload{
		Enabled:   settings.Enabled,
		ServerURL: settings.ServerURL,
		APIKey:    settings.APIKey,
		APISecret: settings.APISecret,
	}, nil
}

func (s *LocalSource) HMACCalloutSettings(ctx context.Context) (*HMACPayload, error) {
	var settings models.HMACCalloutSettings
	err := s.db.WithContext(ctx).Where("domain = ?", s.domain).First(&settings).Error
	if err == gorm.ErrRecordNotFound {
		return &HMACPayload{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &HMACPayload{
		Enabled:        settings.Enabled,
		DestinationURL: settings.DestinationURL,
		APIKey:         settings.APIKey,
		APISecret:      settings.APISecret,
	}, nil
}

func (s *LocalSource) TableauConfig(ctx context.Context) (*TableauPayload, error) {
	payload := &TableauPayload{}

	var server models.TableauServer
	err := s.db.WithContext(ctx).Where("domain = ?", s.domain).First(&server).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, err
	}
	if err == nil {
		payload.ServerType = server.ServerType
		payload.ServerName = server.ServerName
		payload.ValidateHostname = server.ValidateHostname
		payload.TargetSite = server.TargetSite
	}

	var vizs []models.TableauVisualization
	if err := s.db.WithContext(ctx).
		Where("domain = ?", s.domain).Order("view_url").
		Find(&vizs).Error; err != nil {
		return nil, err
	}
	for _, viz := range vizs {
		payload.Visualizations = append(payload.Visualizations, TableauVisualizationPayload{
			ID:      viz.VisualizationID,
			ViewURL: viz.ViewURL,
			Title:   viz.Title,
		})
	}
	return payload, nil
}

func (s *LocalSource) DataDictionary(ctx context.Context) (*DictionaryPayload, error) {
	var caseTypes []models.CaseType
	if err := s.db.WithContext(ctx).Preload("Properties").
		Where("domain = ?", s.domain).Order("name").
		Find(&caseTypes).Error; err != nil {
		return nil, err
	}

	payload := &DictionaryPayload{}
	for _, ct := range caseTypes {
		ctp := CaseTypePayload{
			Name:           ct.Name,
			Description:    ct.Description,
			FullyGenerated: ct.FullyGenerated,
		}
		for _, prop := range ct.Properties {
			ctp.Properties = append(ctp.Properties, CasePropertyPayload{
				Name:        prop.Name,
				Description: prop.Description,
				Deprecated:  prop.Deprecated,
				DataType:    prop.DataType,
			})
		}
		payload.CaseTypes = append(payload.CaseTypes, ctp)
	}
	return payload, nil
}

func (s *LocalSource) AutoUpdateRules(ctx context.Context) ([]RulePayload, error) {
	var rules []models.AutoUpdateRule
	if err := s.db.WithContext(ctx).
		Where("domain = ? AND deleted = ?", s.domain, false).
		Find(&rules).Error; err != nil {
		return nil, err
	}

	payloads := make([]RulePayload, 0, len(rules))
	for _, rule := range rules {
		payloads = append(payloads, RulePayload{
			ID:       rule.RuleID,
			Name:     rule.Name,
			CaseType: rule.CaseType,
			Active:   rule.Active,
			Criteria: json.RawMessage(rule.Criteria.JSON),
			Actions:  json.RawMessage(rule.Actions.JSON),
		})
	}
	return payloads, nil
}

func (s *LocalSource) UCRConfig(ctx context.Context, reportID string) (*UCRPayload, error) {
	var report models.ReportConfig
	err := s.db.WithContext(ctx).
		Where("report_id = ? AND domain = ?", reportID, s.domain).
		First(&report).Error
	if err == gorm.ErrRecordNotFound {
		return nil, types.NewDomainLinkError("report %s not found in %s", reportID, s.domain)
	}
	if err != nil {
		return nil, err
	}

	var datasource models.DataSourceConfig
	err = s.db.WithContext(ctx).
		Where("data_source_id = ?", report.ConfigID).
		First(&datasource).Error
	if err == gorm.ErrRecordNotFound {
		return nil, types.NewDomainLinkError("datasource %s for report %s not found", report.ConfigID, reportID)
	}
	if err != nil {
		return nil, err
	}

	return &UCRPayload{
		Report: ReportDocPayload{
			ID:       report.ReportID,
			Title:    report.Title,
			ConfigID: report.ConfigID,
			Document: json.RawMessage(report.Document.JSON),
		},
		DataSource: DataSourcePayload{
			ID:            datasource.DataSourceID,
			TableID:       datasource.TableID,
			DisplayName:   datasource.DisplayName,
			ReferencedDoc: datasource.ReferencedDoc,
			Document:      json.RawMessage(datasource.Document.JSON),
		},
	}, nil
}

func (s *LocalSource) ReportList(ctx context.Context) ([]ReportListingPayload, error) {
	var reports []models.ReportConfig
	if err := s.db.WithContext(ctx).
		Where("domain = ?", s.domain).Order("title").
		Find(&reports).Error; err != nil {
		return nil, err
	}
	listings := make([]ReportListingPayload, 0, len(reports))
	for _, report := range reports {
		listings = append(listings, ReportListingPayload{ID: report.ReportID, Title: report.Title})
	}
	return listings, nil
}

func (s *LocalSource) Keywords(ctx context.Context) ([]KeywordPayload, error) {
	var keywords []models.Keyword
	if err := s.db.WithContext(ctx).Preload("Actions").
		Where("domain = ?", s.domain).Order("word").
		Find(&keywords).Error; err != nil {
		return nil, err
	}

	payloads := make([]KeywordPayload, 0, len(keywords))
	for _, kw := range keywords {
		p := KeywordPayload{
			ID:                   kw.KeywordID,
			Word:                 kw.Word,
			Description:          kw.Description,
			Delimiter:            kw.Delimiter,
			OverrideOpenSessions: kw.OverrideOpenSessions,
		}
		for _, action := range kw.Actions {
			p.Actions = append(p.Actions, KeywordActionPayload{
				Action:         action.Action,
				RecipientType:  action.RecipientType,
				RecipientID:    action.RecipientID,
				AppID:          action.AppID,
				FormUniqueID:   action.FormUniqueID,
				MessageContent: action.MessageContent,
			})
		}
		payloads = append(payloads, p)
	}
	return payloads, nil
}

func (s *LocalSource) AppByVersion(ctx context.Context, appID string, version int) (*AppPayload, error) {
	var build models.Application
	err := s.db.WithContext(ctx).
		Where("domain = ? AND copy_of = ? AND version = ?", s.domain, appID, version).
		First(&build).Error
	if err == gorm.ErrRecordNotFound {
		return nil, types.NewDomainLinkError("app %s has no build at version %d", appID, version)
	}
	if err != nil {
		return nil, err
	}
	return s.appToPayload(ctx, &build)
}

func (s *LocalSource) ReleasedAppVersions(ctx context.Context) (*ReleasedVersionsPayload, error) {
	type row struct {
		CopyOf  string
		Version int
	}
	var rows []row
	err := s.db.WithContext(ctx).Model(&models.Application{}).
		Select("copy_of, MAX(version) AS version").
		Where("domain = ? AND copy_of IS NOT NULL AND is_released = ?", s.domain, true).
		Group("copy_of").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	payload := &ReleasedVersionsPayload{Versions: make(map[string]int, len(rows))}
	for _, r := range rows {
		payload.Versions[r.CopyOf] = r.Version
	}
	return payload, nil
}

func (s *LocalSource) ReleaseSource(ctx context.Context, appID string) (*AppPayload, error) {
	var build models.Application
	err := s.db.WithContext(ctx).
		Where("domain = ? AND copy_of = ? AND is_released = ?", s.domain, appID, true).
		Order("version DESC").
		First(&build).Error
	if err == gorm.ErrRecordNotFound {
		return nil, types.NewDomainLinkError("app %s has no released build", appID)
	}
	if err != nil {
		return nil, err
	}
	return s.appToPayload(ctx, &build)
}

// appToPayload serializes a build row, embedding its multimedia blobs so
// the merge path handles local and remote pulls the same way.
func (s *LocalSource) appToPayload(ctx context.Context, build *models.Application) (*AppPayload, error) {
	familyID := build.FamilyID
	if familyID == "" && build.CopyOf != nil {
		familyID = *build.CopyOf
	}

	// A build that is itself a linked app serves its overlay
	// translations down the chain, not the values it pulled.
	translations := build.EffectiveTranslations(build.Translations)

	payload := &AppPayload{
		ID:            build.AppID,
		Name:          build.Name,
		Version:       build.Version,
		FamilyID:      familyID,
		Modules:       build.Modules.Data(),
		MultimediaMap: build.MultimediaMap.Data(),
		Translations:  json.RawMessage(translations.JSON),
	}

	ids := make([]string, 0, len(payload.MultimediaMap))
	for _, ref := range payload.MultimediaMap {
		ids = append(ids, ref.MultimediaID)
	}
	if len(ids) > 0 {
		var items []models.MultimediaItem
		if err := s.db.WithContext(ctx).Where("media_id IN ?", ids).Find(&items).Error; err != nil {
			return nil, err
		}
		for _, item := range items {
			payload.Multimedia = append(payload.Multimedia, MultimediaBlobPayload{
				ID:          item.MediaID,
				ContentHash: item.ContentHash,
				MimeType:    item.MimeType,
				ContentB64:  base64.StdEncoding.EncodeToString(item.Content),
			})
		}
	}
	return payload, nil
}
