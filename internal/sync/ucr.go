package sync

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/localnerve/spacelink/internal/models"
	"github.com/localnerve/spacelink/internal/source"
	"github.com/localnerve/spacelink/internal/types"
)

// CreateLinkedUCR creates the downstream copy of an upstream report and
// its datasource. The datasource is deduplicated by back-reference: two
// reports over the same upstream datasource share one downstream
// datasource row.
func (e *Engine) CreateLinkedUCR(ctx context.Context, link *models.DomainLink, src source.ContentSource, reportID string) (*models.ReportConfig, error) {
	payload, err := src.UCRConfig(ctx, reportID)
	if err != nil {
		return nil, err
	}

	var report *models.ReportConfig
	err = e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		datasource, err := e.syncLinkedDataSource(tx, link, &payload.DataSource)
		if err != nil {
			return err
		}

		doc, err := e.rewriteDocumentAppIDs(tx, link.LinkedDomain, payload.Report.Document)
		if err != nil {
			return err
		}
		masterID := payload.Report.ID
		report = &models.ReportConfig{
			ReportID: uuid.New().String(),
			Domain:   link.LinkedDomain,
			Title:    payload.Report.Title,
			ConfigID: datasource.DataSourceID,
			MasterID: &masterID,
			Document: models.RawJSON(doc),
		}
		return tx.Create(report).Error
	})
	if err != nil {
		return nil, err
	}

	e.rebuildIndicators(link.LinkedDomain, report.ConfigID)
	return report, nil
}

// SyncLinkedUCR creates the downstream copy of an upstream report on
// the first pull and overwrites it on every pull after that. This is
// the dispatch entry point; Create and Update stay callable on their
// own for flows that know which side of the transition they are on.
func (e *Engine) SyncLinkedUCR(ctx context.Context, link *models.DomainLink, src source.ContentSource, upstreamReportID string) error {
	var count int64
	err := e.DB.WithContext(ctx).Model(&models.ReportConfig{}).
		Where("domain = ? AND master_id = ?", link.LinkedDomain, upstreamReportID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		_, err := e.CreateLinkedUCR(ctx, link, src, upstreamReportID)
		return err
	}
	return e.UpdateLinkedUCR(ctx, link, src, upstreamReportID)
}

// UpdateLinkedUCR overwrites an already-linked downstream report and its
// datasource with the current upstream documents. Downstream identity
// (ids, revisions, domain) survives the overwrite.
func (e *Engine) UpdateLinkedUCR(ctx context.Context, link *models.DomainLink, src source.ContentSource, upstreamReportID string) error {
	payload, err := src.UCRConfig(ctx, upstreamReportID)
	if err != nil {
		return err
	}

	var configID string
	err = e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var report models.ReportConfig
		err := tx.Where("domain = ? AND master_id = ?", link.LinkedDomain, upstreamReportID).
			First(&report).Error
		if err == gorm.ErrRecordNotFound {
			return types.NewDomainLinkError(
				"report %s is not linked into %s", upstreamReportID, link.LinkedDomain)
		}
		if err != nil {
			return err
		}

		datasource, err := e.syncLinkedDataSource(tx, link, &payload.DataSource)
		if err != nil {
			return err
		}

		doc, err := e.rewriteDocumentAppIDs(tx, link.LinkedDomain, payload.Report.Document)
		if err != nil {
			return err
		}
		configID = datasource.DataSourceID

		updates := map[string]interface{}{
			"title":     payload.Report.Title,
			"config_id": datasource.DataSourceID,
			"document":  models.RawJSON(doc),
			"rev":       gorm.Expr("rev + 1"),
		}
		return tx.Model(&report).Updates(updates).Error
	})
	if err != nil {
		return err
	}

	e.rebuildIndicators(link.LinkedDomain, configID)
	return nil
}

// UnlinkReport detaches a downstream report from its upstream master.
// The report and its datasource stay behind as ordinary domain-local
// documents that future pulls no longer touch.
func (e *Engine) UnlinkReport(ctx context.Context, domain, reportID string) error {
	var report models.ReportConfig
	err := e.DB.WithContext(ctx).
		Where("domain = ? AND report_id = ?", domain, reportID).
		First(&report).Error
	if err == gorm.ErrRecordNotFound {
		return types.NewDomainLinkError("report %s not found in %s", reportID, domain)
	}
	if err != nil {
		return err
	}
	if report.MasterID == nil {
		return nil
	}
	return e.DB.WithContext(ctx).Model(&report).Update("master_id", nil).Error
}

// syncLinkedDataSource finds-or-creates the downstream datasource for an
// upstream one and overwrites its document.
func (e *Engine) syncLinkedDataSource(tx *gorm.DB, link *models.DomainLink, payload *source.DataSourcePayload) (*models.DataSourceConfig, error) {
	doc, err := e.rewriteDocumentAppIDs(tx, link.LinkedDomain, payload.Document)
	if err != nil {
		return nil, err
	}

	var datasource models.DataSourceConfig
	err = tx.Where("domain = ? AND master_id = ?", link.LinkedDomain, payload.ID).
		First(&datasource).Error
	if err == gorm.ErrRecordNotFound {
		masterID := payload.ID
		datasource = models.DataSourceConfig{
			DataSourceID:  uuid.New().String(),
			Domain:        link.LinkedDomain,
			TableID:       payload.TableID,
			DisplayName:   payload.DisplayName,
			ReferencedDoc: payload.ReferencedDoc,
			MasterID:      &masterID,
			Document:      models.RawJSON(doc),
		}
		return &datasource, tx.Create(&datasource).Error
	}
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"table_id":       payload.TableID,
		"display_name":   payload.DisplayName,
		"referenced_doc": payload.ReferencedDoc,
		"document":       models.RawJSON(doc),
		"rev":            gorm.Expr("rev + 1"),
	}
	return &datasource, tx.Model(&datasource).Updates(updates).Error
}

func (e *Engine) rebuildIndicators(domain, dataSourceID string) {
	if e.RebuildIndicators != nil {
		e.RebuildIndicators(domain, dataSourceID)
	}
}

// rewriteDocumentAppIDs walks a UCR document and replaces upstream app
// ids with the downstream linked app ids. App ids appear in two shapes:
// as the value of an "app_id" key, and as the "property_value" of a
// filter whose "property_name" is "app_id".
func (e *Engine) rewriteDocumentAppIDs(tx *gorm.DB, domain string, raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 {
		return raw, nil
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	resolved := make(map[string]string)
	resolve := func(upstreamAppID string) (string, error) {
		if downstream, ok := resolved[upstreamAppID]; ok {
			return downstream, nil
		}
		downstream, err := downstreamAppID(tx, domain, upstreamAppID)
		if err != nil {
			return "", err
		}
		resolved[upstreamAppID] = downstream
		return downstream, nil
	}

	rewritten, err := rewriteAppIDValue(doc, resolve)
	if err != nil {
		return nil, err
	}
	return json.Marshal(rewritten)
}

func rewriteAppIDValue(node interface{}, resolve func(string) (string, error)) (interface{}, error) {
	switch v := node.(type) {
	case map[string]interface{}:
		if name, ok := v["property_name"].(string); ok && name == "app_id" {
			if value, ok := v["property_value"].(string); ok {
				downstream, err := resolve(value)
				if err != nil {
					return nil, err
				}
				v["property_value"] = downstream
			}
		}
		for key, child := range v {
			if key == "app_id" {
				if value, ok := child.(string); ok {
					downstream, err := resolve(value)
					if err != nil {
						return nil, err
					}
					v[key] = downstream
					continue
				}
			}
			rewritten, err := rewriteAppIDValue(child, resolve)
			if err != nil {
				return nil, err
			}
			v[key] = rewritten
		}
		return v, nil
	case []interface{}:
		for i, child := range v {
			rewritten, err := rewriteAppIDValue(child, resolve)
			if err != nil {
				return nil, err
			}
			v[i] = rewritten
		}
		return v, nil
	default:
		return node, nil
	}
}

// downstreamAppID resolves the downstream linked app descended from an
// upstream app. Zero or several candidates are both errors; ambiguity is
// surfaced, never tie-broken.
func downstreamAppID(tx *gorm.DB, domain, upstreamAppID string) (string, error) {
	var apps []models.Application
	err := tx.Where("domain = ? AND family_id = ? AND copy_of IS NULL", domain, upstreamAppID).
		Find(&apps).Error
	if err != nil {
		return "", err
	}
	if len(apps) == 0 {
		return "", types.NewDomainLinkError(
			"domain %s has no app linked to upstream app %s", domain, upstreamAppID)
	}
	if len(apps) > 1 {
		return "", types.NewDomainLinkError(
			"domain %s has multiple apps linked to upstream app %s", domain, upstreamAppID)
	}
	return apps[0].AppID, nil
}
