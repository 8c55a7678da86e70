package sync

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/localnerve/spacelink/internal/models"
	"github.com/localnerve/spacelink/internal/source"
	"github.com/localnerve/spacelink/internal/types"
)

// IsKeywordLinkable reports whether an upstream keyword can be linked
// down. Group recipients reference a user group in the upstream domain
// and have no stable downstream equivalent.
func IsKeywordLinkable(payload *source.KeywordPayload) bool {
	for _, action := range payload.Actions {
		if action.RecipientType == models.RecipientUserGroup {
			return false
		}
	}
	return true
}

// SyncKeyword creates the downstream copy of an upstream keyword on the
// first pull and overwrites it afterwards.
func (e *Engine) SyncKeyword(ctx context.Context, link *models.DomainLink, src source.ContentSource, upstreamKeywordID string) error {
	var count int64
	err := e.DB.WithContext(ctx).Model(&models.Keyword{}).
		Where("domain = ? AND upstream_id = ?", link.LinkedDomain, upstreamKeywordID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		_, err := e.CreateLinkedKeyword(ctx, link, src, upstreamKeywordID)
		return err
	}
	return e.UpdateKeyword(ctx, link, src, upstreamKeywordID)
}

// CreateLinkedKeyword creates the downstream copy of one upstream
// keyword. Returns the new downstream keyword id. Group-recipient
// keywords are allowed through here: they sync once, and the repeat
// path is what withholds them.
func (e *Engine) CreateLinkedKeyword(ctx context.Context, link *models.DomainLink, src source.ContentSource, upstreamKeywordID string) (string, error) {
	payload, err := fetchKeyword(ctx, src, upstreamKeywordID)
	if err != nil {
		return "", err
	}

	keyword := models.Keyword{
		KeywordID: uuid.New().String(),
		Domain:    link.LinkedDomain,
	}
	err = e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return applyKeywordPayload(tx, &keyword, payload, link.LinkedDomain, true)
	})
	if err != nil {
		return "", err
	}
	return keyword.KeywordID, nil
}

// UpdateKeyword overwrites an already-linked downstream keyword with
// the current upstream definition. Actions are deleted and recreated,
// never merged, so the downstream action list exactly mirrors upstream
// after every sync. Group-recipient keywords are withheld here: the
// recipient references an upstream user group with no downstream
// equivalent, so only the one-time create is allowed.
func (e *Engine) UpdateKeyword(ctx context.Context, link *models.DomainLink, src source.ContentSource, upstreamKeywordID string) error {
	payload, err := fetchKeyword(ctx, src, upstreamKeywordID)
	if err != nil {
		return err
	}
	if !IsKeywordLinkable(payload) {
		return types.NewDomainLinkError(
			"keyword %s has a user group recipient and cannot be linked", payload.Word)
	}

	return e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var keyword models.Keyword
		err := tx.Where("domain = ? AND upstream_id = ?", link.LinkedDomain, upstreamKeywordID).
			First(&keyword).Error
		if err == gorm.ErrRecordNotFound {
			return types.NewDomainLinkError(
				"keyword %s is not linked into %s", upstreamKeywordID, link.LinkedDomain)
		}
		if err != nil {
			return err
		}
		return applyKeywordPayload(tx, &keyword, payload, link.LinkedDomain, false)
	})
}

// UnlinkKeyword detaches a downstream keyword from its upstream master;
// it stays behind as an ordinary domain keyword.
func (e *Engine) UnlinkKeyword(ctx context.Context, domain, keywordID string) error {
	var keyword models.Keyword
	err := e.DB.WithContext(ctx).
		Where("domain = ? AND keyword_id = ?", domain, keywordID).
		First(&keyword).Error
	if err == gorm.ErrRecordNotFound {
		return types.NewDomainLinkError("keyword %s not found in %s", keywordID, domain)
	}
	if err != nil {
		return err
	}
	if keyword.UpstreamID == nil {
		return nil
	}
	return e.DB.WithContext(ctx).Model(&keyword).Update("upstream_id", nil).Error
}

func fetchKeyword(ctx context.Context, src source.ContentSource, upstreamKeywordID string) (*source.KeywordPayload, error) {
	payloads, err := src.Keywords(ctx)
	if err != nil {
		return nil, err
	}
	for i := range payloads {
		if payloads[i].ID == upstreamKeywordID {
			return &payloads[i], nil
		}
	}
	return nil, types.NewDomainLinkError("upstream keyword %s not found", upstreamKeywordID)
}

// applyKeywordPayload writes the upstream keyword fields and recreates
// the action rows. App references in actions are remapped to the
// downstream linked app; an upstream app with zero or several downstream
// descendants fails the sync.
func applyKeywordPayload(tx *gorm.DB, keyword *models.Keyword, payload *source.KeywordPayload, domain string, create bool) error {
	upstreamID := payload.ID
	keyword.Word = payload.Word
	keyword.Description = payload.Description
	keyword.Delimiter = payload.Delimiter
	keyword.OverrideOpenSessions = payload.OverrideOpenSessions
	keyword.UpstreamID = &upstreamID

	if create {
		if err := tx.Create(keyword).Error; err != nil {
			return err
		}
	} else {
		updates := map[string]interface{}{
			"word":                   keyword.Word,
			"description":            keyword.Description,
			"delimiter":              keyword.Delimiter,
			"override_open_sessions": keyword.OverrideOpenSessions,
			"upstream_id":            keyword.UpstreamID,
		}
		if err := tx.Model(keyword).Updates(updates).Error; err != nil {
			return err
		}
	}

	if err := tx.Where("keyword_id = ?", keyword.KeywordID).
		Delete(&models.KeywordAction{}).Error; err != nil {
		return err
	}
	for _, ap := range payload.Actions {
		action := models.KeywordAction{
			KeywordID:      keyword.KeywordID,
			Action:         ap.Action,
			RecipientType:  ap.RecipientType,
			RecipientID:    ap.RecipientID,
			FormUniqueID:   ap.FormUniqueID,
			MessageContent: ap.MessageContent,
		}
		if ap.AppID != nil {
			downstream, err := downstreamAppID(tx, domain, *ap.AppID)
			if err != nil {
				return err
			}
			action.AppID = &downstream
		}
		if err := tx.Create(&action).Error; err != nil {
			return err
		}
	}
	return nil
}
