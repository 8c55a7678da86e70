package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/localnerve/spacelink/internal/models"
	"github.com/localnerve/spacelink/internal/source"
	"github.com/localnerve/spacelink/internal/types"
)

const fixtureCacheTTL = 30 * time.Minute

func fixtureCacheKey(domain, tag string) string {
	return fmt.Sprintf("fixture-items:%s:%s", domain, tag)
}

// UpdateFixture syncs one lookup table. The upstream table must be
// global; the downstream table's rows are fully replaced on every sync
// while the downstream table id stays stable. The item-listing cache is
// rewritten after the row replacement, so a cache populated before the
// bulk delete is never served afterwards.
func (e *Engine) UpdateFixture(ctx context.Context, link *models.DomainLink, src source.ContentSource, tag string) error {
	payload, err := src.Fixture(ctx, tag)
	if err != nil {
		return err
	}
	if !payload.IsGlobal {
		return &types.UnsupportedActionError{
			Message: fmt.Sprintf("lookup table %s is not global and cannot be synced", tag),
		}
	}

	fieldsJSON, err := models.NewJSON(payload.Fields)
	if err != nil {
		return err
	}

	var table models.FixtureTable
	rowIDs := make([]string, 0, len(payload.Rows))

	err = e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		table, err = matchFixtureTable(tx, link.LinkedDomain, payload.TableID, tag)
		if err != nil {
			return err
		}

		table.Tag = payload.Tag
		table.IsGlobal = true
		table.Fields = fieldsJSON
		upstreamID := payload.TableID
		table.UpstreamID = &upstreamID
		if err := tx.Save(&table).Error; err != nil {
			return err
		}

		// Full replace: delete all downstream rows, then recreate from
		// the upstream row set.
		if err := tx.Where("table_id = ?", table.TableID).
			Delete(&models.FixtureRow{}).Error; err != nil {
			return err
		}
		for _, rp := range payload.Rows {
			valuesJSON, err := models.NewJSON(rp.Values)
			if err != nil {
				return err
			}
			row := models.FixtureRow{
				RowID:   uuid.New().String(),
				TableID: table.TableID,
				SortKey: rp.SortKey,
				Values:  valuesJSON,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			rowIDs = append(rowIDs, row.RowID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// The item cache may hold row ids captured before the delete; it is
	// rewritten unconditionally rather than trusted.
	if e.Cache != nil {
		key := fixtureCacheKey(link.LinkedDomain, payload.Tag)
		if err := e.Cache.Delete(ctx, key); err != nil {
			return err
		}
		if err := e.Cache.Set(ctx, key, rowIDs, fixtureCacheTTL); err != nil {
			return err
		}
	}
	return nil
}

// FixtureRowIDs returns the row ids of a downstream lookup table,
// serving from the item-listing cache when warm.
func (e *Engine) FixtureRowIDs(ctx context.Context, domain, tag string) ([]string, error) {
	key := fixtureCacheKey(domain, tag)

	if e.Cache != nil {
		var cached []string
		ok, err := e.Cache.Get(ctx, key, &cached)
		if err != nil {
			return nil, err
		}
		if ok {
			return cached, nil
		}
	}

	var table models.FixtureTable
	err := e.DB.WithContext(ctx).
		Where("domain = ? AND tag = ?", domain, tag).
		First(&table).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var ids []string
	if err := e.DB.WithContext(ctx).Model(&models.FixtureRow{}).
		Where("table_id = ?", table.TableID).Order("sort_key").
		Pluck("row_id", &ids).Error; err != nil {
		return nil, err
	}

	if e.Cache != nil {
		if err := e.Cache.Set(ctx, key, ids, fixtureCacheTTL); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// matchFixtureTable resolves the downstream table for an upstream
// table: by back-reference first, by tag second, new row otherwise.
func matchFixtureTable(tx *gorm.DB, domain, upstreamID, tag string) (models.FixtureTable, error) {
	var table models.FixtureTable

	err := tx.Where("domain = ? AND upstream_id = ?", domain, upstreamID).
		First(&table).Error
	if err == nil {
		return table, nil
	}
	if err != gorm.ErrRecordNotFound {
		return table, err
	}

	err = tx.Where("domain = ? AND tag = ?", domain, tag).First(&table).Error
	if err == nil {
		return table, nil
	}
	if err != gorm.ErrRecordNotFound {
		return table, err
	}

	table = models.FixtureTable{
		TableID: uuid.New().String(),
		Domain:  domain,
		Tag:     tag,
	}
	return table, tx.Create(&table).Error
}
