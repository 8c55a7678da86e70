package sync

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/localnerve/spacelink/internal/models"
	"github.com/localnerve/spacelink/internal/source"
)

// UpdateAutoUpdateRules syncs the upstream auto-update rules into the
// downstream domain. Rules are matched by back-reference only; rule
// names are not unique, so a downstream rule without an upstream back-
// reference is never captured by a sync. Downstream rules whose
// upstream counterpart was deleted are left in place.
//
// ruleID narrows the sync to a single upstream rule when non-empty.
func (e *Engine) UpdateAutoUpdateRules(ctx context.Context, link *models.DomainLink, src source.ContentSource, ruleID string) error {
	payloads, err := src.AutoUpdateRules(ctx)
	if err != nil {
		return err
	}

	return e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, rp := range payloads {
			if ruleID != "" && rp.ID != ruleID {
				continue
			}

			criteria, err := models.NewJSON(rp.Criteria)
			if err != nil {
				return err
			}
			actions, err := models.NewJSON(rp.Actions)
			if err != nil {
				return err
			}

			var rule models.AutoUpdateRule
			err = tx.Where("domain = ? AND upstream_id = ?", link.LinkedDomain, rp.ID).
				First(&rule).Error
			if err == gorm.ErrRecordNotFound {
				upstreamID := rp.ID
				rule = models.AutoUpdateRule{
					RuleID:     uuid.New().String(),
					Domain:     link.LinkedDomain,
					UpstreamID: &upstreamID,
				}
			} else if err != nil {
				return err
			}

			rule.Name = rp.Name
			rule.CaseType = rp.CaseType
			rule.Active = rp.Active
			rule.Deleted = false
			rule.Criteria = criteria
			rule.Actions = actions
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).
				Create(&rule).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
