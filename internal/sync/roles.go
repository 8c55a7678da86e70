package sync

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/localnerve/spacelink/internal/models"
	"github.com/localnerve/spacelink/internal/source"
)

// UpdateUserRoles syncs every upstream role into the downstream domain.
// Existing downstream roles are matched first by upstream back-reference
// and then by exact name. Report-list permissions are id-remapped to
// downstream report ids, with unmapped (dynamic) reports stripped.
// Assignable-by lists are remapped through the roles synced in the same
// pass. Tableau permission lists keep only visualizations that are both
// linked downstream and referenced upstream, plus downstream-only
// visualizations that have no upstream link at all.
func (e *Engine) UpdateUserRoles(ctx context.Context, link *models.DomainLink, src source.ContentSource) error {
	payloads, err := src.UserRoles(ctx)
	if err != nil {
		return err
	}

	reportMap, err := e.DownstreamReportMap(link.LinkedDomain)
	if err != nil {
		return err
	}
	vizByUpstream, unlinkableViz, err := e.downstreamVisualizations(ctx, link.LinkedDomain)
	if err != nil {
		return err
	}

	// First pass: create or overwrite each role, recording the upstream
	// to downstream id mapping for the assignable-by remap.
	roleMap := make(map[string]string, len(payloads))
	downstream := make([]*models.UserRole, 0, len(payloads))

	for _, p := range payloads {
		role, err := e.matchRole(ctx, link.LinkedDomain, p)
		if err != nil {
			return err
		}

		perms := p.Permissions
		perms.ViewReportList = remapIDs(perms.ViewReportList, reportMap, false)
		perms.TableauViewList = e.remapTableauList(perms.TableauViewList, role, vizByUpstream, unlinkableViz)

		role.Name = p.Name
		role.Default = p.Default
		role.Permissions, err = models.NewJSON(perms)
		if err != nil {
			return err
		}
		upstreamID := p.ID
		role.UpstreamID = &upstreamID

		if err := e.DB.WithContext(ctx).
			Clauses(clause.OnConflict{UpdateAll: true}).
			Create(role).Error; err != nil {
			return err
		}
		roleMap[p.ID] = role.RoleID
		downstream = append(downstream, role)
	}

	// Second pass: assignable-by references resolve against the roles
	// just synced.
	for i, p := range payloads {
		role := downstream[i]
		assignable := remapIDs(p.AssignableBy, roleMap, false)
		role.AssignableBy, err = models.NewJSON(assignable)
		if err != nil {
			return err
		}
		if err := e.DB.WithContext(ctx).Model(role).
			Update("assignable_by", role.AssignableBy).Error; err != nil {
			return err
		}
	}
	return nil
}

// matchRole finds the downstream role for an upstream payload: by
// back-reference first, by exact name second, new row otherwise.
func (e *Engine) matchRole(ctx context.Context, domain string, p source.RolePayload) (*models.UserRole, error) {
	var role models.UserRole

	err := e.DB.WithContext(ctx).
		Where("domain = ? AND upstream_id = ?", domain, p.ID).
		First(&role).Error
	if err == nil {
		return &role, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	err = e.DB.WithContext(ctx).
		Where("domain = ? AND name = ?", domain, p.Name).
		First(&role).Error
	if err == nil {
		return &role, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	return &models.UserRole{
		RoleID: uuid.New().String(),
		Domain: domain,
	}, nil
}

// downstreamVisualizations indexes a domain's tableau visualizations:
// by upstream id for linked ones, and as a set of ids for the ones with
// no upstream link.
func (e *Engine) downstreamVisualizations(ctx context.Context, domain string) (map[string]string, map[string]bool, error) {
	var vizs []models.TableauVisualization
	if err := e.DB.WithContext(ctx).Where("domain = ?", domain).Find(&vizs).Error; err != nil {
		return nil, nil, err
	}

	byUpstream := make(map[string]string)
	unlinkable := make(map[string]bool)
	for _, viz := range vizs {
		if viz.UpstreamID != nil {
			byUpstream[*viz.UpstreamID] = viz.VisualizationID
		} else {
			unlinkable[viz.VisualizationID] = true
		}
	}
	return byUpstream, unlinkable, nil
}

// remapTableauList translates the upstream visualization list through
// the downstream links and preserves any downstream-only entries the
// existing role referenced.
func (e *Engine) remapTableauList(upstreamList []string, existing *models.UserRole, vizByUpstream map[string]string, unlinkableViz map[string]bool) []string {
	result := remapIDs(upstreamList, vizByUpstream, false)

	var current models.RolePermissions
	if err := existing.Permissions.Decode(&current); err == nil {
		for _, id := range current.TableauViewList {
			if unlinkableViz[id] {
				result = append(result, id)
			}
		}
	}
	return result
}

// remapIDs translates ids through mapping. Unmapped ids are dropped
// unless keepUnmapped is set.
func remapIDs(ids []string, mapping map[string]string, keepUnmapped bool) []string {
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if mapped, ok := mapping[id]; ok {
			result = append(result, mapped)
		} else if keepUnmapped {
			result = append(result, id)
		}
	}
	return result
}
