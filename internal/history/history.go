// Package history records and reads the append-only audit trail of
// pulls over a domain link.
package history

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/hints"

	"github.com/localnerve/spacelink/internal/models"
	"github.com/localnerve/spacelink/internal/sync"
)

// Record appends one history row for a completed sync.
func Record(ctx context.Context, db *gorm.DB, link *models.DomainLink, spec sync.ModelSpec, userID string) error {
	detail, err := spec.DetailJSON()
	if err != nil {
		return err
	}
	row := models.DomainLinkHistory{
		LinkID:      link.LinkID,
		Date:        time.Now().UTC(),
		ModelType:   string(spec.Type),
		ModelDetail: detail,
		UserID:      userID,
	}
	return db.WithContext(ctx).Create(&row).Error
}

// MarkHidden hides a history row from pull listings without deleting
// it; the trail stays append-only.
func MarkHidden(ctx context.Context, db *gorm.DB, historyID uint64) error {
	return db.WithContext(ctx).Model(&models.DomainLinkHistory{}).
		Where("history_id = ?", historyID).
		Update("hidden", true).Error
}

// MostRecent returns the newest visible history row per
// (model_type, model_detail) for a link. Rows come back ordered by
// descending date and are reduced in a single pass.
func MostRecent(ctx context.Context, db *gorm.DB, linkID uint64) ([]models.DomainLinkHistory, error) {
	query := db.WithContext(ctx)
	if db.Dialector.Name() == "mysql" {
		query = query.Clauses(hints.UseIndex("idx_history_link_date"))
	}

	var rows []models.DomainLinkHistory
	err := query.
		Where("link_id = ? AND hidden = ?", linkID, false).
		Order("date DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(rows))
	recent := make([]models.DomainLinkHistory, 0, len(rows))
	for _, row := range rows {
		key := row.ModelType + "\x00" + string(row.ModelDetail.JSON)
		if seen[key] {
			continue
		}
		seen[key] = true
		recent = append(recent, row)
	}
	return recent, nil
}
