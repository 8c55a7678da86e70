// engine.go
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

package sync

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/localnerve/spacelink/internal/appsync"
	"github.com/localnerve/spacelink/internal/cache"
	"github.com/localnerve/spacelink/internal/config"
	"github.com/localnerve/spacelink/internal/models"
	"github.com/localnerve/spacelink/internal/source"
)

// Engine runs per-model update functions against a link. Every update
// is idempotent: running twice with no upstream change leaves the
// downstream state semantically unchanged.
type Engine struct {
	DB     *gorm.DB
	Cache  cache.KV
	Config *config.Config

	// RebuildIndicators, when set, dispatches an asynchronous indicator
	// rebuild for a downstream datasource after a UCR sync. The sync
	// does not wait for rebuild completion.
	RebuildIndicators func(domain, dataSourceID string)
}

// NewEngine creates an Engine.
func NewEngine(db *gorm.DB, kv cache.KV, cfg *config.Config) *Engine {
	return &Engine{DB: db, Cache: kv, Config: cfg}
}

// SourceFor resolves the content source for a link once; all update
// calls for that link should share the result.
func (e *Engine) SourceFor(link *models.DomainLink) source.ContentSource {
	return source.ForLink(e.DB, link, e.Config)
}

// UpdateModel dispatches a model spec to its update function. The
// switch is exhaustive over ModelType.
func (e *Engine) UpdateModel(ctx context.Context, link *models.DomainLink, src source.ContentSource, spec ModelSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}

	switch spec.Type {
	case ModelFlags:
		return e.UpdateToggles(ctx, link, src)
	case ModelPreviews:
		return e.UpdatePreviews(ctx, link, src)
	case ModelCustomData:
		return e.UpdateCustomData(ctx, link, src, nil)
	case ModelUserRoles:
		return e.UpdateUserRoles(ctx, link, src)
	case ModelFixture:
		detail := spec.Detail.(FixtureDetail)
		return e.UpdateFixture(ctx, link, src, detail.Tag)
	case ModelCaseSearch:
		return e.UpdateCaseSearchConfig(ctx, link, src)
	case ModelDialerSettings:
		return e.UpdateDialerSettings(ctx, link, src)
	case ModelOTPSettings:
		return e.UpdateOTPSettings(ctx, link, src)
	case ModelHMACSettings:
		return e.UpdateHMACCalloutSettings(ctx, link, src)
	case ModelTableauConfig:
		return e.UpdateTableauConfig(ctx, link, src)
	case ModelDataDictionary:
		return e.UpdateDataDictionary(ctx, link, src)
	case ModelAutoUpdateRules:
		var ruleID string
		if spec.Detail != nil {
			ruleID = spec.Detail.(RuleDetail).RuleID
		}
		return e.UpdateAutoUpdateRules(ctx, link, src, ruleID)
	case ModelReport:
		detail := spec.Detail.(ReportDetail)
		return e.SyncLinkedUCR(ctx, link, src, detail.ReportID)
	case ModelKeyword:
		detail := spec.Detail.(KeywordDetail)
		return e.SyncKeyword(ctx, link, src, detail.KeywordID)
	case ModelApp:
		detail := spec.Detail.(AppDetail)
		reportMap, err := e.DownstreamReportMap(link.LinkedDomain)
		if err != nil {
			return err
		}
		return appsync.UpdateLinkedApp(ctx, e.DB, link, src, appsync.PullOptions{
			UpstreamAppID:    detail.AppID,
			ReportMap:        reportMap,
			StrictMultimedia: e.strictMultimedia(link.LinkedDomain),
		})
	default:
		return fmt.Errorf("unknown model type %q", spec.Type)
	}
}

// DownstreamReportMap maps upstream report ids to the downstream linked
// report ids of a domain. Used to remap report modules on app pulls.
func (e *Engine) DownstreamReportMap(domain string) (map[string]string, error) {
	var reports []models.ReportConfig
	if err := e.DB.
		Where("domain = ? AND master_id IS NOT NULL", domain).
		Find(&reports).Error; err != nil {
		return nil, err
	}
	m := make(map[string]string, len(reports))
	for _, report := range reports {
		m[*report.MasterID] = report.ReportID
	}
	return m, nil
}

// HasFlag reports whether a feature flag is enabled for a domain.
func (e *Engine) HasFlag(domain, slug string) (bool, error) {
	var count int64
	err := e.DB.Model(&models.FeatureToggle{}).
		Where("domain = ? AND slug = ?", domain, slug).
		Count(&count).Error
	return count > 0, err
}

const flagStrictMultimedia = "strict_linked_multimedia"

func (e *Engine) strictMultimedia(domain string) bool {
	strict, err := e.HasFlag(domain, flagStrictMultimedia)
	if err != nil {
		return false
	}
	return strict
}
