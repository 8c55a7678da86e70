// registry.go
//
// Linked project space synchronization service
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of spacelink.
// spacelink is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// spacelink is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with spacelink.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package registry

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/localnerve/spacelink/internal/models"
	"github.com/localnerve/spacelink/internal/types"
)

// RemoteDetails carries the connection info for a cross-network link.
type RemoteDetails struct {
	URLBase  string `json:"url_base"`
	Username string `json:"username"`
	APIKey   string `json:"api_key"`
}

// Registry is the one write path for DomainLink rows. Every mutation
// goes through it so the memoized link lookups can never miss an
// invalidation.
type Registry struct {
	db    *gorm.DB
	cache *gocache.Cache
}

// New creates a Registry over db.
func New(db *gorm.DB) *Registry {
	return &Registry{
		db:    db,
		cache: gocache.New(5*time.Minute, 10*time.Minute),
	}
}

// LinkDomains establishes linkedDomain as a downstream of masterDomain.
// It is idempotent: calling again with identical arguments returns the
// existing active link unchanged, and linking a previously soft-deleted
// pair reactivates the old row rather than creating a duplicate. A
// downstream domain with an active link to a different master is an
// error.
func (r *Registry) LinkDomains(linkedDomain, masterDomain string, remote *RemoteDetails) (*models.DomainLink, error) {
	var result models.DomainLink

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var active models.DomainLink
		err := tx.Where("linked_domain = ? AND deleted = ?", linkedDomain, false).
			First(&active).Error
		if err == nil {
			if active.MasterDomain != masterDomain {
				return types.NewDomainLinkError(
					"domain %s is already linked to upstream %s", linkedDomain, active.MasterDomain)
			}
			result = active
			return nil
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}

		// Reactivate a soft-deleted row for the same pair if one exists.
		var dormant models.DomainLink
		err = tx.Where("linked_domain = ? AND master_domain = ? AND deleted = ?",
			linkedDomain, masterDomain, true).First(&dormant).Error
		if err == nil {
			dormant.Deleted = false
			applyRemote(&dormant, remote)
			if err := tx.Save(&dormant).Error; err != nil {
				return err
			}
			result = dormant
			r.invalidate(linkedDomain, masterDomain)
			return nil
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}

		link := models.DomainLink{
			LinkedDomain: linkedDomain,
			MasterDomain: masterDomain,
		}
		applyRemote(&link, remote)
		if err := tx.Create(&link).Error; err != nil {
			return err
		}
		result = link
		r.invalidate(linkedDomain, masterDomain)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"linked": linkedDomain,
		"master": masterDomain,
		"remote": result.IsRemote(),
	}).Info("domain link established")

	return &result, nil
}

// Unlink soft-deletes a link. History rows are retained.
func (r *Registry) Unlink(link *models.DomainLink) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.DomainLink{}).
			Where("link_id = ?", link.LinkID).
			Update("deleted", true).Error; err != nil {
			return err
		}
		link.Deleted = true
		r.invalidate(link.LinkedDomain, link.MasterDomain)
		return nil
	})
}

// TouchLastPull records the time of a completed pull on the link.
func (r *Registry) TouchLastPull(link *models.DomainLink, at time.Time) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.DomainLink{}).
			Where("link_id = ?", link.LinkID).
			Update("last_pull", at).Error; err != nil {
			return err
		}
		link.LastPull = &at
		r.invalidate(link.LinkedDomain, link.MasterDomain)
		return nil
	})
}

// LinkForDownstream returns the active upstream link of a downstream
// domain, or nil when the domain is not linked.
func (r *Registry) LinkForDownstream(domain string) (*models.DomainLink, error) {
	if cached, ok := r.cache.Get(downstreamKey(domain)); ok {
		link := cached.(models.DomainLink)
		return &link, nil
	}

	var link models.DomainLink
	err := r.db.Where("linked_domain = ? AND deleted = ?", domain, false).
		First(&link).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	r.cache.Set(downstreamKey(domain), link, gocache.DefaultExpiration)
	return &link, nil
}

// LinksForUpstream returns every active link for which domain is the
// master.
func (r *Registry) LinksForUpstream(domain string) ([]models.DomainLink, error) {
	if cached, ok := r.cache.Get(upstreamKey(domain)); ok {
		return cached.([]models.DomainLink), nil
	}

	var links []models.DomainLink
	err := r.db.Where("master_domain = ? AND deleted = ?", domain, false).
		Order("linked_domain").Find(&links).Error
	if err != nil {
		return nil, err
	}

	r.cache.Set(upstreamKey(domain), links, gocache.DefaultExpiration)
	return links, nil
}

// IsActiveDownstream reports whether candidate is an active downstream
// of masterDomain.
func (r *Registry) IsActiveDownstream(masterDomain, candidate string) (bool, error) {
	links, err := r.LinksForUpstream(masterDomain)
	if err != nil {
		return false, err
	}
	for i := range links {
		if links[i].LinkedDomain == candidate {
			return true, nil
		}
	}
	return false, nil
}

func applyRemote(link *models.DomainLink, remote *RemoteDetails) {
	if remote == nil {
		return
	}
	link.RemoteBaseURL = remote.URLBase
	link.RemoteUsername = remote.Username
	link.RemoteAPIKey = remote.APIKey
}

// invalidate runs inside the mutating transaction so a read issued
// right after the write never sees a stale memoized value.
func (r *Registry) invalidate(linkedDomain, masterDomain string) {
	r.cache.Delete(downstreamKey(linkedDomain))
	r.cache.Delete(upstreamKey(masterDomain))
}

func downstreamKey(domain string) string { return "down:" + domain }
func upstreamKey(domain string) string   { return "up:" + domain }
