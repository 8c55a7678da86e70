// release.go
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

// Package release pushes content models from a master domain to its
// downstream domains. One release request is one background task;
// domains and models are processed sequentially inside it and no
// single failure aborts the rest of the batch.
package release

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/localnerve/spacelink/internal/appsync"
	"github.com/localnerve/spacelink/internal/history"
	"github.com/localnerve/spacelink/internal/models"
	"github.com/localnerve/spacelink/internal/registry"
	"github.com/localnerve/spacelink/internal/source"
	"github.com/localnerve/spacelink/internal/sync"
)

// Request describes one release: which models to push from the master
// domain to which downstream domains.
type Request struct {
	MasterDomain string
	Domains      []string
	Models       []sync.ModelSpec

	// BuildAndRelease makes an app push additionally create a released
	// build of the downstream app after pulling.
	BuildAndRelease bool

	UserID string
	Email  string
}

// Releaser runs release requests.
type Releaser struct {
	engine   *sync.Engine
	registry *registry.Registry
	mailer   *Mailer
}

// NewReleaser creates a Releaser. The mailer may be nil; no summary
// email is sent then.
func NewReleaser(engine *sync.Engine, reg *registry.Registry, mailer *Mailer) *Releaser {
	return &Releaser{engine: engine, registry: reg, mailer: mailer}
}

// Run executes one release request and returns the per-domain outcome.
// Every per-model failure is contained: logged, converted to a domain
// error message, and the batch continues.
func (r *Releaser) Run(ctx context.Context, req Request) *Manager {
	manager := NewManager()

	for _, domain := range req.Domains {
		r.releaseToDomain(ctx, req, domain, manager)
	}

	if r.mailer != nil && req.Email != "" {
		if err := r.mailer.SendSummary(req.Email, req.MasterDomain, manager); err != nil {
			logrus.WithError(err).WithField("master", req.MasterDomain).
				Error("failed to send release summary email")
		}
	}
	return manager
}

func (r *Releaser) releaseToDomain(ctx context.Context, req Request, domain string, manager *Manager) {
	link, err := r.registry.LinkForDownstream(domain)
	if err != nil {
		manager.AddError(domain, fmt.Sprintf("could not load link: %v", err))
		return
	}
	if link == nil || link.MasterDomain != req.MasterDomain {
		manager.AddError(domain, fmt.Sprintf("domain %s is no longer linked to %s", domain, req.MasterDomain))
		return
	}

	src := r.engine.SourceFor(link)

	for _, spec := range req.Models {
		name := spec.Type.DisplayName()

		if flag := spec.Type.RequiredFlag(); flag != "" {
			enabled, err := r.engine.HasFlag(domain, flag)
			if err == nil && !enabled {
				manager.AddError(domain, fmt.Sprintf("%s: flag not enabled for %s", name, domain))
				continue
			}
		}

		if err := r.updateModel(ctx, link, src, spec); err != nil {
			notifyException(domain, spec, err)
			manager.AddError(domain, fmt.Sprintf("could not update %s: %v", name, err))
			continue
		}

		if spec.Type == sync.ModelApp && req.BuildAndRelease {
			detail := spec.Detail.(sync.AppDetail)
			if err := appsync.BuildAndRelease(ctx, r.engine.DB, domain, detail.AppID); err != nil {
				notifyException(domain, spec, err)
				manager.AddError(domain, fmt.Sprintf(
					"updated %s but did not build or release: %v", name, err))
				continue
			}
		}

		if err := history.Record(ctx, r.engine.DB, link, spec, req.UserID); err != nil {
			logrus.WithError(err).WithField("domain", domain).
				Error("failed to record sync history")
		}
		if err := r.registry.TouchLastPull(link, time.Now().UTC()); err != nil {
			logrus.WithError(err).WithField("domain", domain).
				Error("failed to update last pull time")
		}
		manager.AddSuccess(domain, fmt.Sprintf("updated %s", name))
	}
}

// updateModel wraps one per-model update in a panic guard so a defect
// in a single update function degrades to a per-domain error message.
func (r *Releaser) updateModel(ctx context.Context, link *models.DomainLink, src source.ContentSource, spec sync.ModelSpec) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("panic: %v", recovered)
		}
	}()
	return r.engine.UpdateModel(ctx, link, src, spec)
}

// notifyException centrally logs a contained per-model failure.
func notifyException(domain string, spec sync.ModelSpec, err error) {
	logrus.WithError(err).WithFields(logrus.Fields{
		"domain":     domain,
		"model_type": spec.Type,
	}).Error("release model update failed")
}
