package sync

import (
	"context"

	"gorm.io/gorm"

	"github.com/localnerve/spacelink/internal/models"
	"github.com/localnerve/spacelink/internal/source"
)

// UpdateToggles syncs feature flags with union-only semantics: a flag
// enabled upstream becomes enabled downstream, and a flag already
// enabled downstream is never disabled by a sync.
func (e *Engine) UpdateToggles(ctx context.Context, link *models.DomainLink, src source.ContentSource) error {
	payload, err := src.Toggles(ctx)
	if err != nil {
		return err
	}

	for _, slug := range payload.Toggles {
		toggle := models.FeatureToggle{Domain: link.LinkedDomain, Slug: slug}
		if err := e.DB.WithContext(ctx).
			Where("domain = ? AND slug = ?", link.LinkedDomain, slug).
			FirstOrCreate(&toggle).Error; err != nil {
			return err
		}
	}
	return nil
}

// UpdatePreviews syncs feature previews, with the same union-only
// semantics as UpdateToggles.
func (e *Engine) UpdatePreviews(ctx context.Context, link *models.DomainLink, src source.ContentSource) error {
	payload, err := src.Toggles(ctx)
	if err != nil {
		return err
	}

	for _, slug := range payload.Previews {
		preview := models.FeaturePreview{Domain: link.LinkedDomain, Slug: slug}
		if err := e.DB.WithContext(ctx).
			Where("domain = ? AND slug = ?", link.LinkedDomain, slug).
			FirstOrCreate(&preview).Error; err != nil {
			return err
		}
	}
	return nil
}

// UpdateCustomData replaces the downstream custom data field
// definitions with the upstream versions. limitTypes narrows the sync
// to specific field types; nil syncs every type the upstream defines.
// Definitions are not meant to be edited downstream, so this is a
// wholesale overwrite.
func (e *Engine) UpdateCustomData(ctx context.Context, link *models.DomainLink, src source.ContentSource, limitTypes []string) error {
	payload, err := src.CustomData(ctx, limitTypes)
	if err != nil {
		return err
	}

	for fieldType, fields := range payload.Definitions {
		fieldsJSON, err := models.NewJSON(fields)
		if err != nil {
			return err
		}

		var def models.CustomDataFieldsDef
		err = e.DB.WithContext(ctx).
			Where("domain = ? AND field_type = ?", link.LinkedDomain, fieldType).
			First(&def).Error
		if err != nil && err != gorm.ErrRecordNotFound {
			return err
		}
		if err == gorm.ErrRecordNotFound {
			def = models.CustomDataFieldsDef{
				Domain:    link.LinkedDomain,
				FieldType: fieldType,
				Fields:    fieldsJSON,
			}
			if err := e.DB.WithContext(ctx).Create(&def).Error; err != nil {
				return err
			}
			continue
		}

		def.Fields = fieldsJSON
		if err := e.DB.WithContext(ctx).Save(&def).Error; err != nil {
			return err
		}
	}
	return nil
}
