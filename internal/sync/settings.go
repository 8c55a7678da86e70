package sync

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/localnerve/spacelink/internal/models"
	"github.com/localnerve/spacelink/internal/source"
)

// UpdateDialerSettings overwrites the downstream dialer settings with
// the upstream document.
func (e *Engine) UpdateDialerSettings(ctx context.Context, link *models.DomainLink, src source.ContentSource) error {
	payload, err := src.DialerSettings(ctx)
	if err != nil {
		return err
	}
	updates := map[string]interface{}{
		"enabled":     payload.Enabled,
		"instance_id": payload.InstanceID,
		"dialer_type": payload.DialerType,
	}
	return upsertDomainSettings(e.DB.WithContext(ctx), link.LinkedDomain,
		&models.DialerSettings{Domain: link.LinkedDomain}, updates)
}

// UpdateOTPSettings overwrites the downstream pass-through OTP settings
// with the upstream document.
func (e *Engine) UpdateOTPSettings(ctx context.Context, link *models.DomainLink, src source.ContentSource) error {
	payload, err := src.OTPSettings(ctx)
	if err != nil {
		return err
	}
	updates := map[string]interface{}{
		"enabled":    payload.Enabled,
		"server_url": payload.ServerURL,
		"api_key":    payload.APIKey,
		"api_secret": payload.APISecret,
	}
	return upsertDomainSettings(e.DB.WithContext(ctx), link.LinkedDomain,
		&models.OTPSettings{Domain: link.LinkedDomain}, updates)
}

// UpdateHMACCalloutSettings overwrites the downstream HMAC callout
// settings with the upstream document.
func (e *Engine) UpdateHMACCalloutSettings(ctx context.Context, link *models.DomainLink, src source.ContentSource) error {
	payload, err := src.HMACCalloutSettings(ctx)
	if err != nil {
		return err
	}
	updates := map[string]interface{}{
		"enabled":         payload.Enabled,
		"destination_url": payload.DestinationURL,
		"api_key":         payload.APIKey,
		"api_secret":      payload.APISecret,
	}
	return upsertDomainSettings(e.DB.WithContext(ctx), link.LinkedDomain,
		&models.HMACCalloutSettings{Domain: link.LinkedDomain}, updates)
}

// upsertDomainSettings finds-or-creates the single per-domain settings
// row and applies the column updates to it.
func upsertDomainSettings(db *gorm.DB, domain string, model interface{}, updates map[string]interface{}) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("domain = ?", domain).FirstOrCreate(model).Error; err != nil {
			return err
		}
		return tx.Model(model).Updates(updates).Error
	})
}

// UpdateTableauConfig overwrites the downstream tableau server config
// and syncs the visualization rows. Visualizations are matched by
// back-reference; upstream views without a downstream copy are created,
// downstream copies whose upstream view disappeared are removed, and
// downstream-only views (no back-reference) are left alone.
func (e *Engine) UpdateTableauConfig(ctx context.Context, link *models.DomainLink, src source.ContentSource) error {
	payload, err := src.TableauConfig(ctx)
	if err != nil {
		return err
	}

	return e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var server models.TableauServer
		err := tx.Where("domain = ?", link.LinkedDomain).
			FirstOrCreate(&server, models.TableauServer{Domain: link.LinkedDomain}).Error
		if err != nil {
			return err
		}
		updates := map[string]interface{}{
			"server_type":       payload.ServerType,
			"server_name":       payload.ServerName,
			"validate_hostname": payload.ValidateHostname,
			"target_site":       payload.TargetSite,
		}
		if err := tx.Model(&server).Updates(updates).Error; err != nil {
			return err
		}

		var existing []models.TableauVisualization
		if err := tx.Where("domain = ? AND upstream_id IS NOT NULL", link.LinkedDomain).
			Find(&existing).Error; err != nil {
			return err
		}
		byUpstream := make(map[string]*models.TableauVisualization, len(existing))
		for i := range existing {
			byUpstream[*existing[i].UpstreamID] = &existing[i]
		}

		seen := make(map[string]bool, len(payload.Visualizations))
		for _, vp := range payload.Visualizations {
			seen[vp.ID] = true
			if viz, ok := byUpstream[vp.ID]; ok {
				err := tx.Model(viz).Updates(map[string]interface{}{
					"view_url": vp.ViewURL,
					"title":    vp.Title,
				}).Error
				if err != nil {
					return err
				}
				continue
			}
			upstreamID := vp.ID
			viz := models.TableauVisualization{
				VisualizationID: uuid.New().String(),
				Domain:          link.LinkedDomain,
				ViewURL:         vp.ViewURL,
				Title:           vp.Title,
				UpstreamID:      &upstreamID,
			}
			if err := tx.Create(&viz).Error; err != nil {
				return err
			}
		}

		for upstreamID, viz := range byUpstream {
			if seen[upstreamID] {
				continue
			}
			if err := tx.Delete(viz).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
