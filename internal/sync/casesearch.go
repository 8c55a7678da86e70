package sync

import (
	"context"

	"gorm.io/gorm"

	"github.com/localnerve/spacelink/internal/models"
	"github.com/localnerve/spacelink/internal/source"
)

// UpdateCaseSearchConfig replaces the downstream case-search config and
// both of its child collections with the upstream state. Children are
// never merged.
func (e *Engine) UpdateCaseSearchConfig(ctx context.Context, link *models.DomainLink, src source.ContentSource) error {
	payload, err := src.CaseSearchConfig(ctx)
	if err != nil {
		return err
	}

	return e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cfg models.CaseSearchConfig
		err := tx.Where("domain = ?", link.LinkedDomain).First(&cfg).Error
		if err == gorm.ErrRecordNotFound {
			cfg = models.CaseSearchConfig{Domain: link.LinkedDomain}
			if err := tx.Create(&cfg).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		if err := tx.Model(&cfg).Update("enabled", payload.Enabled).Error; err != nil {
			return err
		}

		if err := tx.Where("config_id = ?", cfg.ConfigID).
			Delete(&models.CaseSearchFuzzyProperty{}).Error; err != nil {
			return err
		}
		for _, fp := range payload.FuzzyProperties {
			prop := models.CaseSearchFuzzyProperty{
				ConfigID: cfg.ConfigID,
				CaseType: fp.CaseType,
				Property: fp.Property,
			}
			if err := tx.Create(&prop).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("config_id = ?", cfg.ConfigID).
			Delete(&models.CaseSearchIgnorePattern{}).Error; err != nil {
			return err
		}
		for _, ip := range payload.IgnorePatterns {
			pattern := models.CaseSearchIgnorePattern{
				ConfigID:     cfg.ConfigID,
				CaseType:     ip.CaseType,
				CaseProperty: ip.CaseProperty,
				Regex:        ip.Regex,
			}
			if err := tx.Create(&pattern).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateDataDictionary replaces the downstream data dictionary with the
// upstream one: case types are matched by name, properties are fully
// recreated under each type, and downstream-only case types are removed.
func (e *Engine) UpdateDataDictionary(ctx context.Context, link *models.DomainLink, src source.ContentSource) error {
	payload, err := src.DataDictionary(ctx)
	if err != nil {
		return err
	}

	return e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seen := make([]string, 0, len(payload.CaseTypes))
		for _, ctp := range payload.CaseTypes {
			var caseType models.CaseType
			err := tx.Where("domain = ? AND name = ?", link.LinkedDomain, ctp.Name).
				First(&caseType).Error
			if err == gorm.ErrRecordNotFound {
				caseType = models.CaseType{
					Domain: link.LinkedDomain,
					Name:   ctp.Name,
				}
				if err := tx.Create(&caseType).Error; err != nil {
					return err
				}
			} else if err != nil {
				return err
			}

			updates := map[string]interface{}{
				"description":     ctp.Description,
				"fully_generated": ctp.FullyGenerated,
			}
			if err := tx.Model(&caseType).Updates(updates).Error; err != nil {
				return err
			}

			if err := tx.Where("case_type_id = ?", caseType.CaseTypeID).
				Delete(&models.CaseProperty{}).Error; err != nil {
				return err
			}
			for _, pp := range ctp.Properties {
				prop := models.CaseProperty{
					CaseTypeID:  caseType.CaseTypeID,
					Name:        pp.Name,
					Description: pp.Description,
					Deprecated:  pp.Deprecated,
					DataType:    pp.DataType,
				}
				if err := tx.Create(&prop).Error; err != nil {
					return err
				}
			}
			seen = append(seen, ctp.Name)
		}

		// Wholesale replace: case types absent upstream go away with
		// their properties.
		staleQuery := tx.Model(&models.CaseType{}).Where("domain = ?", link.LinkedDomain)
		if len(seen) > 0 {
			staleQuery = staleQuery.Where("name NOT IN ?", seen)
		}
		var staleIDs []uint64
		if err := staleQuery.Pluck("case_type_id", &staleIDs).Error; err != nil {
			return err
		}
		if len(staleIDs) == 0 {
			return nil
		}
		if err := tx.Where("case_type_id IN ?", staleIDs).
			Delete(&models.CaseProperty{}).Error; err != nil {
			return err
		}
		return tx.Where("case_type_id IN ?", staleIDs).
			Delete(&models.CaseType{}).Error
	})
}
