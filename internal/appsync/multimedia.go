package appsync

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/localnerve/spacelink/internal/models"
	"github.com/localnerve/spacelink/internal/source"
	"github.com/localnerve/spacelink/internal/types"
)

// mergeMultimedia rebuilds the app's multimedia map from the upstream
// payload. Media already present locally is matched by upstream
// back-reference first and by raw content hash second and is never
// re-fetched; anything else is materialized from the blobs embedded in
// the payload. A map entry's version stays pinned to the build it was
// introduced in until the media content itself changes.
//
// Missing media (in the upstream map but with no local item and no
// embedded blob) is tolerated unless strict is set.
func mergeMultimedia(tx *gorm.DB, domain string, app *models.Application, payload *source.AppPayload, strict bool) (map[string]models.MediaRef, error) {
	oldMap := app.MultimediaMap.Data()

	blobs := make(map[string]*source.MultimediaBlobPayload, len(payload.Multimedia))
	for i := range payload.Multimedia {
		blobs[payload.Multimedia[i].ID] = &payload.Multimedia[i]
	}

	merged := make(map[string]models.MediaRef, len(payload.MultimediaMap))
	for path, ref := range payload.MultimediaMap {
		blob := blobs[ref.MultimediaID]
		item, err := resolveMedia(tx, ref.MultimediaID, blob)
		if err != nil {
			return nil, err
		}
		if item == nil {
			if strict {
				return nil, &types.MultimediaMissingError{MediaID: ref.MultimediaID}
			}
			// Keep whatever the previous pull left for this path.
			if old, ok := oldMap[path]; ok {
				merged[path] = old
			}
			continue
		}

		contentChanged := blob != nil && blob.ContentHash != "" && item.ContentHash != blob.ContentHash
		if contentChanged {
			content, err := base64.StdEncoding.DecodeString(blob.ContentB64)
			if err != nil {
				return nil, err
			}
			updates := map[string]interface{}{
				"content":      content,
				"content_hash": blob.ContentHash,
			}
			if err := tx.Model(item).Updates(updates).Error; err != nil {
				return nil, err
			}
		}
		if err := addDomain(tx, item, domain); err != nil {
			return nil, err
		}

		version := ref.Version
		if old, ok := oldMap[path]; ok && old.MultimediaID == item.MediaID && !contentChanged {
			version = old.Version
		} else if contentChanged {
			version = payload.Version
		}
		merged[path] = models.MediaRef{MultimediaID: item.MediaID, Version: version}
	}
	return merged, nil
}

// resolveMedia finds the local item for an upstream media id, creating
// it from the embedded blob when nothing matches. Returns nil when the
// media is missing entirely.
func resolveMedia(tx *gorm.DB, upstreamMediaID string, blob *source.MultimediaBlobPayload) (*models.MultimediaItem, error) {
	var item models.MultimediaItem
	err := tx.Where("upstream_media_id = ? OR media_id = ?", upstreamMediaID, upstreamMediaID).
		First(&item).Error
	if err == nil {
		return &item, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	if blob != nil && blob.ContentHash != "" {
		// Media uploaded independently on both sides matches by hash;
		// record the back-reference so the next pull is a direct hit.
		err = tx.Where("content_hash = ?", blob.ContentHash).First(&item).Error
		if err == nil {
			if item.UpstreamMediaID == nil {
				if err := tx.Model(&item).Update("upstream_media_id", upstreamMediaID).Error; err != nil {
					return nil, err
				}
			}
			return &item, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, err
		}
	}

	if blob == nil {
		return nil, nil
	}

	content, err := base64.StdEncoding.DecodeString(blob.ContentB64)
	if err != nil {
		return nil, err
	}
	hash := blob.ContentHash
	if hash == "" {
		sum := sha256.Sum256(content)
		hash = hex.EncodeToString(sum[:])
	}
	upstream := upstreamMediaID
	item = models.MultimediaItem{
		MediaID:         uuid.New().String(),
		ContentHash:     hash,
		MimeType:        blob.MimeType,
		Content:         content,
		UpstreamMediaID: &upstream,
		Domains:         models.MustJSON([]string{}),
	}
	if err := tx.Create(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// addDomain grants a domain access to a media item's visibility list.
func addDomain(tx *gorm.DB, item *models.MultimediaItem, domain string) error {
	var domains []string
	if err := item.Domains.Decode(&domains); err != nil {
		return err
	}
	for _, d := range domains {
		if d == domain {
			return nil
		}
	}
	domains = append(domains, domain)
	value, err := models.NewJSON(domains)
	if err != nil {
		return err
	}
	item.Domains = value
	return tx.Model(item).Update("domains", value).Error
}

// PullMissingMultimedia re-pulls the upstream build payload and fills in
// any media items the linked app references but local storage lacks.
// Used by the force-pull maintenance command after an earlier tolerant
// pull left gaps.
func PullMissingMultimedia(ctx context.Context, db *gorm.DB, link *models.DomainLink, src source.ContentSource, upstreamAppID string) error {
	payload, err := src.ReleaseSource(ctx, upstreamAppID)
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		blobs := make(map[string]*source.MultimediaBlobPayload, len(payload.Multimedia))
		for i := range payload.Multimedia {
			blobs[payload.Multimedia[i].ID] = &payload.Multimedia[i]
		}
		for _, ref := range payload.MultimediaMap {
			item, err := resolveMedia(tx, ref.MultimediaID, blobs[ref.MultimediaID])
			if err != nil {
				return err
			}
			if item == nil {
				return &types.MultimediaMissingError{MediaID: ref.MultimediaID}
			}
			if err := addDomain(tx, item, link.LinkedDomain); err != nil {
				return err
			}
		}
		return nil
	})
}
