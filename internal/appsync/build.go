package appsync

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/localnerve/spacelink/internal/models"
	"github.com/localnerve/spacelink/internal/types"
)

// BuildAndRelease snapshots the downstream linked app descended from an
// upstream app into a new build row and marks it released, so the
// domain's own mobile clients (and further downstream links) can pull
// it.
func BuildAndRelease(ctx context.Context, db *gorm.DB, domain, upstreamAppID string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var apps []models.Application
		err := tx.Where("domain = ? AND copy_of IS NULL", domain).
			Where("upstream_app_id = ? OR family_id = ?", upstreamAppID, upstreamAppID).
			Find(&apps).Error
		if err != nil {
			return err
		}
		if len(apps) == 0 {
			return types.NewDomainLinkError(
				"domain %s has no app linked to upstream app %s", domain, upstreamAppID)
		}
		if len(apps) > 1 {
			return types.NewDomainLinkError(
				"domain %s has multiple apps linked to upstream app %s", domain, upstreamAppID)
		}
		app := apps[0]

		var lastBuild int
		err = tx.Model(&models.Application{}).
			Select("COALESCE(MAX(version), 0)").
			Where("domain = ? AND copy_of = ?", domain, app.AppID).
			Scan(&lastBuild).Error
		if err != nil {
			return err
		}

		appID := app.AppID
		build := app
		build.AppID = uuid.New().String()
		build.CopyOf = &appID
		build.Version = lastBuild + 1
		build.IsReleased = true
		return tx.Create(&build).Error
	})
}
