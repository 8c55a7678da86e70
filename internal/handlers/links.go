// links.go
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

package handlers

import (
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/localnerve/spacelink/internal/history"
	"github.com/localnerve/spacelink/internal/models"
	"github.com/localnerve/spacelink/internal/registry"
	"github.com/localnerve/spacelink/internal/release"
	srcpkg "github.com/localnerve/spacelink/internal/source"
	"github.com/localnerve/spacelink/internal/sync"
	"github.com/localnerve/spacelink/internal/types"
	"github.com/localnerve/spacelink/internal/utils"
)

// LinkHandler handles link management routes
type LinkHandler struct {
	Registry   *registry.Registry
	Engine     *sync.Engine
	Dispatcher *release.Dispatcher
	Releaser   *release.Releaser
}

// CreateLinkRequest is the body of POST /api/links.
type CreateLinkRequest struct {
	LinkedDomain   string `json:"linked_domain"`
	MasterDomain   string `json:"master_domain"`
	RemoteBaseURL  string `json:"remote_base_url,omitempty"`
	RemoteUsername string `json:"remote_username,omitempty"`
	RemoteAPIKey   string `json:"remote_api_key,omitempty"`
}

// ModelSpecRequest is one content model descriptor in a push or pull
// body.
type ModelSpecRequest struct {
	Type   string          `json:"type"`
	Detail json.RawMessage `json:"detail,omitempty"`
}

// ReleaseRequest is the body of POST /api/links/release.
type ReleaseRequest struct {
	MasterDomain    string             `json:"master_domain"`
	Domains         []string           `json:"domains"`
	Models          []ModelSpecRequest `json:"models"`
	BuildAndRelease bool               `json:"build_and_release"`
	Email           string             `json:"email,omitempty"`
}

// CreateLink handles POST /api/links
// @Summary Link a downstream domain to a master domain
// @Tags Links
// @Accept json
// @Produce json
// @Param body body CreateLinkRequest true "Link definition"
// @Success 200 {object} models.DomainLink
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /links [post]
func (h *LinkHandler) CreateLink(c *fiber.Ctx) error {
	var req CreateLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, "invalid request body", fiber.StatusBadRequest, "links.create")
	}
	if req.LinkedDomain == "" || req.MasterDomain == "" {
		return utils.ErrorResponse(c, "linked_domain and master_domain are required",
			fiber.StatusBadRequest, "links.create")
	}

	var remote *registry.RemoteDetails
	if req.RemoteBaseURL != "" {
		remote = &registry.RemoteDetails{
			URLBase:  req.RemoteBaseURL,
			Username: req.RemoteUsername,
			APIKey:   req.RemoteAPIKey,
		}
	}

	link, err := h.Registry.LinkDomains(req.LinkedDomain, req.MasterDomain, remote)
	if err != nil {
		return asCustomError(err)
	}
	return utils.SuccessResponse(c, link, fiber.StatusOK)
}

// DeleteLink handles DELETE /api/links/:domain
// @Summary Unlink a downstream domain
// @Tags Links
// @Produce json
// @Param domain path string true "Downstream domain"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /links/{domain} [delete]
func (h *LinkHandler) DeleteLink(c *fiber.Ctx) error {
	domain := c.Params("domain")
	link, err := h.Registry.LinkForDownstream(domain)
	if err != nil {
		return err
	}
	if link == nil {
		return utils.NotFoundResponse(c, "domain is not linked")
	}
	if err := h.Registry.Unlink(link); err != nil {
		return asCustomError(err)
	}
	return utils.MutationSuccessResponse(c, 1)
}

// ListLinks handles GET /api/links/upstream/:domain
// @Summary List the active downstream links of a master domain
// @Tags Links
// @Produce json
// @Param domain path string true "Master domain"
// @Success 200 {array} models.DomainLink
// @Router /links/upstream/{domain} [get]
func (h *LinkHandler) ListLinks(c *fiber.Ctx) error {
	links, err := h.Registry.LinksForUpstream(c.Params("domain"))
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, links, fiber.StatusOK)
}

// GetPullable handles GET /api/links/:domain/pullable
// @Summary List models available to pull for a downstream domain
// @Tags Links
// @Produce json
// @Param domain path string true "Downstream domain"
// @Param superuser query bool false "Include superuser-only model types"
// @Success 200 {object} history.PullView
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /links/{domain}/pullable [get]
func (h *LinkHandler) GetPullable(c *fiber.Ctx) error {
	domain := c.Params("domain")
	link, err := h.Registry.LinkForDownstream(domain)
	if err != nil {
		return err
	}
	if link == nil {
		return utils.NotFoundResponse(c, "domain is not linked")
	}

	recent, err := history.MostRecent(c.Context(), h.Engine.DB, link.LinkID)
	if err != nil {
		return err
	}

	src := h.Engine.SourceFor(link)
	candidates, err := pullCandidates(c, src)
	if err != nil {
		return asCustomError(err)
	}

	superuser := c.QueryBool("superuser", false)
	view, err := history.BuildPullView(recent, candidates, superuser)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, view, fiber.StatusOK)
}

// HideHistory handles POST /api/links/history/:id/hide
// @Summary Hide a history row from pull listings
// @Tags Links
// @Produce json
// @Param id path int true "History row id"
// @Success 200 {object} utils.SuccessResponseStruct
// @Router /links/history/{id}/hide [post]
func (h *LinkHandler) HideHistory(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return utils.ErrorResponse(c, "id must be an integer", fiber.StatusBadRequest, "links.history")
	}
	if err := history.MarkHidden(c.Context(), h.Engine.DB, id); err != nil {
		return err
	}
	return utils.MutationSuccessResponse(c, 1)
}

// Release handles POST /api/links/release
//
// The release itself runs as a background task; the response reports
// acceptance, not completion.
// @Summary Push content models to downstream domains
// @Tags Links
// @Accept json
// @Produce json
// @Param body body ReleaseRequest true "Release definition"
// @Success 202 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /links/release [post]
func (h *LinkHandler) Release(c *fiber.Ctx) error {
	req, err := parseReleaseRequest(c)
	if err != nil {
		return err
	}
	h.Dispatcher.Enqueue(*req)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "release queued",
		"ok":      true,
	})
}

// Pull handles POST /api/links/:domain/pull
//
// Unlike Release this runs synchronously for one downstream domain and
// returns the per-model outcome.
// @Summary Pull content models into a downstream domain
// @Tags Links
// @Accept json
// @Produce json
// @Param domain path string true "Downstream domain"
// @Param body body ReleaseRequest true "Models to pull"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /links/{domain}/pull [post]
func (h *LinkHandler) Pull(c *fiber.Ctx) error {
	domain := c.Params("domain")
	link, err := h.Registry.LinkForDownstream(domain)
	if err != nil {
		return err
	}
	if link == nil {
		return utils.NotFoundResponse(c, "domain is not linked")
	}

	req, err := parseReleaseRequest(c)
	if err != nil {
		return err
	}
	req.MasterDomain = link.MasterDomain
	req.Domains = []string{domain}

	manager := h.Releaser.Run(c.Context(), *req)
	return utils.SuccessResponse(c, fiber.Map{
		"successes": manager.SuccessesForDomain(domain),
		"errors":    manager.ErrorsForDomain(domain),
	}, fiber.StatusOK)
}

func parseReleaseRequest(c *fiber.Ctx) (*release.Request, error) {
	var req ReleaseRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, &types.CustomError{
			Code:    fiber.StatusBadRequest,
			Message: "invalid request body",
			Type:    "links.release",
		}
	}

	specs := make([]sync.ModelSpec, 0, len(req.Models))
	for _, m := range req.Models {
		spec, err := decodeModelSpec(m)
		if err != nil {
			return nil, &types.CustomError{
				Code:    fiber.StatusBadRequest,
				Message: err.Error(),
				Type:    "links.release",
			}
		}
		specs = append(specs, spec)
	}

	userID := ""
	if user, ok := c.Locals("user").(map[string]interface{}); ok {
		if id, ok := user["id"].(string); ok {
			userID = id
		}
	}

	return &release.Request{
		MasterDomain:    req.MasterDomain,
		Domains:         req.Domains,
		Models:          specs,
		BuildAndRelease: req.BuildAndRelease,
		UserID:          userID,
		Email:           req.Email,
	}, nil
}

func decodeModelSpec(m ModelSpecRequest) (sync.ModelSpec, error) {
	modelType := sync.ModelType(m.Type)
	detail, err := sync.DecodeDetail(modelType, models.RawJSON(m.Detail))
	if err != nil {
		return sync.ModelSpec{}, err
	}
	spec := sync.ModelSpec{Type: modelType, Detail: detail}
	return spec, spec.Validate()
}

// pullCandidates assembles the upstream item listings used by the pull
// view: released apps, global lookup tables, reports, and linkable
// keywords from the content source.
func pullCandidates(c *fiber.Ctx, src srcpkg.ContentSource) (history.Candidates, error) {
	candidates := history.Candidates{
		Apps:     map[string]string{},
		Fixtures: map[string]string{},
		Reports:  map[string]string{},
		Keywords: map[string]string{},
	}

	versions, err := src.ReleasedAppVersions(c.Context())
	if err != nil {
		return candidates, err
	}
	for appID := range versions.Versions {
		candidates.Apps[appID] = appID
	}

	fixtures, err := src.FixtureList(c.Context())
	if err != nil {
		return candidates, err
	}
	for _, fixture := range fixtures {
		candidates.Fixtures[fixture.Tag] = fixture.Tag
	}

	reports, err := src.ReportList(c.Context())
	if err != nil {
		return candidates, err
	}
	for _, report := range reports {
		candidates.Reports[report.ID] = report.Title
	}

	keywords, err := src.Keywords(c.Context())
	if err != nil {
		return candidates, err
	}
	for _, kw := range keywords {
		if sync.IsKeywordLinkable(&kw) {
			candidates.Keywords[kw.ID] = kw.Word
		}
	}
	return candidates, nil
}
