// appsync.go
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

// Package appsync pulls a released upstream application build into a
// downstream linked application. The merge preserves referential
// stability under two kinds of churn: repeated pulls from the same
// evolving upstream, and a linked app being re-pointed to a different
// upstream app over its lifetime.
package appsync

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/localnerve/spacelink/internal/models"
	"github.com/localnerve/spacelink/internal/source"
	"github.com/localnerve/spacelink/internal/types"
)

// PullOptions parameterizes one app pull.
type PullOptions struct {
	// UpstreamAppID is the upstream editable app to pull the latest
	// released build of.
	UpstreamAppID string

	// ReportMap maps upstream report ids to downstream linked report
	// ids. A report module referencing an unmapped upstream report
	// fails the pull with an AppEditingError.
	ReportMap map[string]string

	// StrictMultimedia makes multimedia that is still missing after the
	// pull an error instead of a tolerated gap.
	StrictMultimedia bool
}

// UpdateLinkedApp pulls the latest released build of the upstream app
// into the downstream domain's linked app, creating the linked app on
// first pull.
func UpdateLinkedApp(ctx context.Context, db *gorm.DB, link *models.DomainLink, src source.ContentSource, opts PullOptions) error {
	payload, err := src.ReleaseSource(ctx, opts.UpstreamAppID)
	if err != nil {
		return err
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		app, err := linkedAppFor(tx, link.LinkedDomain, opts.UpstreamAppID, payload)
		if err != nil {
			return err
		}

		overrides, err := overrideMap(tx, link.LinkedDomain, app.AppID)
		if err != nil {
			return err
		}

		modules, err := mergeModules(app.Modules.Data(), payload.Modules, overrides, opts.ReportMap)
		if err != nil {
			return err
		}

		mediaMap, err := mergeMultimedia(tx, link.LinkedDomain, app, payload, opts.StrictMultimedia)
		if err != nil {
			return err
		}

		upstreamAppID := opts.UpstreamAppID
		upstreamVersion := payload.Version
		app.Name = payload.Name
		app.FamilyID = payload.FamilyID
		app.UpstreamAppID = &upstreamAppID
		app.UpstreamVersion = &upstreamVersion
		app.Version = payload.Version
		app.Translations = models.RawJSON(payload.Translations)
		app.Modules = datatypes.NewJSONType(modules)
		app.MultimediaMap = datatypes.NewJSONType(mediaMap)
		// Downstream overlays (linked_app_translations, logo refs,
		// attrs) are never touched by a pull.
		return tx.Save(app).Error
	})
}

// linkedAppFor resolves the downstream linked app descended from the
// upstream app, creating it on first pull. Several candidates raise;
// ambiguity is never tie-broken.
func linkedAppFor(tx *gorm.DB, domain, upstreamAppID string, payload *source.AppPayload) (*models.Application, error) {
	var apps []models.Application
	err := tx.Where("domain = ? AND copy_of IS NULL", domain).
		Where("upstream_app_id = ? OR family_id = ?", upstreamAppID, upstreamAppID).
		Find(&apps).Error
	if err != nil {
		return nil, err
	}
	if len(apps) > 1 {
		return nil, types.NewDomainLinkError(
			"domain %s has multiple apps linked to upstream app %s", domain, upstreamAppID)
	}
	if len(apps) == 1 {
		return &apps[0], nil
	}

	app := models.Application{
		AppID:    uuid.New().String(),
		Domain:   domain,
		Name:     payload.Name,
		FamilyID: payload.FamilyID,
	}
	if err := tx.Create(&app).Error; err != nil {
		return nil, err
	}
	return &app, nil
}

// overrideMap loads the operator-pinned resource id overrides for an
// app: pre-existing form unique id to the id mobile clients expect.
func overrideMap(tx *gorm.DB, domain, appID string) (map[string]string, error) {
	var rows []models.ResourceOverride
	err := tx.Where("domain = ? AND app_id = ?", domain, appID).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	m := make(map[string]string, len(rows))
	for _, row := range rows {
		m[row.PreExistingID] = row.OverrideID
	}
	return m, nil
}

// mergeModules rebuilds the module list from the upstream payload while
// keeping downstream form identity. Form identity is keyed by XMLNS:
// a downstream form with the same XMLNS keeps its unique id no matter
// which upstream the pull came from, so shadow forms, form links and
// resource overrides keep resolving across masters. Form versions move
// only when form content changed.
func mergeModules(existing, upstream []models.Module, overrides, reportMap map[string]string) ([]models.Module, error) {
	byXMLNS := make(map[string]models.Form)
	for _, module := range existing {
		for _, form := range module.Forms {
			byXMLNS[form.XMLNS] = form
		}
	}

	// idMap carries upstream form unique id to the downstream id chosen
	// for it, for the reference-rewriting pass.
	idMap := make(map[string]string)

	merged := make([]models.Module, len(upstream))
	for i, module := range upstream {
		out := module
		out.Forms = make([]models.Form, len(module.Forms))
		for j, form := range module.Forms {
			downstream := form
			prev, known := byXMLNS[form.XMLNS]
			if known {
				downstream.UniqueID = prev.UniqueID
				if prev.Source == form.Source {
					downstream.Version = prev.Version
				} else {
					downstream.Version = prev.Version + 1
				}
			} else {
				downstream.UniqueID = uuid.New().String()
			}
			if override, ok := overrides[downstream.UniqueID]; ok {
				downstream.UniqueID = override
			}
			idMap[form.UniqueID] = downstream.UniqueID
			out.Forms[j] = downstream
		}

		if module.ModuleType == models.ModuleTypeReport {
			out.ReportConfigs = make([]models.ReportModuleConfig, len(module.ReportConfigs))
			for j, rc := range module.ReportConfigs {
				mapped, ok := reportMap[rc.ReportID]
				if !ok {
					return nil, types.NewAppEditingError(
						"report module references report %s with no downstream copy", rc.ReportID)
				}
				rc.ReportID = mapped
				out.ReportConfigs[j] = rc
			}
		}
		merged[i] = out
	}

	// Second pass rewrites form references now that every form's
	// downstream id is known.
	for i := range merged {
		for j := range merged[i].Forms {
			form := &merged[i].Forms[j]
			if form.IsShadow && form.ShadowParentFormID != "" {
				if mapped, ok := idMap[form.ShadowParentFormID]; ok {
					form.ShadowParentFormID = mapped
				}
			}
			for k, fl := range form.FormLinks {
				if mapped, ok := idMap[fl.FormID]; ok {
					form.FormLinks[k].FormID = mapped
				}
			}
		}
	}
	return merged, nil
}
