// linked_data.go
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
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/localnerve/spacelink/internal/models"
	"github.com/localnerve/spacelink/internal/remote"
	"github.com/localnerve/spacelink/internal/source"
	"github.com/localnerve/spacelink/internal/types"
)

// LinkedDataHandler serves the per-model GET endpoints a downstream
// installation pulls from. Every endpoint serves through the local
// content accessor, which is what keeps the wire shape identical to a
// local pull.
type LinkedDataHandler struct {
	DB *gorm.DB
}

func (h *LinkedDataHandler) local(c *fiber.Ctx) *source.LocalSource {
	return source.NewLocalSource(h.DB, c.Params("domain"))
}

// GetToggles handles GET /a/:domain/linked/toggles
// @Summary Get enabled feature flags and previews
// @Tags LinkedData
// @Produce json
// @Param domain path string true "Master domain"
// @Success 200 {object} source.TogglesPayload
// @Failure 403 {object} utils.ErrorResponseStruct
// @Router /a/{domain}/linked/toggles [get]
func (h *LinkedDataHandler) GetToggles(c *fiber.Ctx) error {
	payload, err := h.local(c).Toggles(c.Context())
	if err != nil {
		return asCustomError(err)
	}
	return c.JSON(payload)
}

// GetCustomData handles GET /a/:domain/linked/custom_data_models
// @Summary Get custom data field definitions
// @Tags LinkedData
// @Produce json
// @Param domain path string true "Master domain"
// @Param field_type query string false "Limit to field types"
// @Success 200 {object} source.CustomDataPayload
// @Router /a/{domain}/linked/custom_data_models [get]
func (h *LinkedDataHandler) GetCustomData(c *fiber.Ctx) error {
	payload, err := h.local(c).CustomData(c.Context(), parseFieldTypes(c))
	if err != nil {
		return asCustomError(err)
	}
	return c.JSON(payload)
}

// GetUserRoles handles GET /a/:domain/linked/user_roles
// @Summary Get user roles
// @Tags LinkedData
// @Produce json
// @Param domain path string true "Master domain"
// @Success 200 {array} source.RolePayload
// @Router /a/{domain}/linked/user_roles [get]
func (h *LinkedDataHandler) GetUserRoles(c *fiber.Ctx) error {
	payload, err := h.local(c).UserRoles(c.Context())
	if err != nil {
		return asCustomError(err)
	}
	return c.JSON(payload)
}

// GetFixture handles GET /a/:domain/linked/fixture/:tag
// @Summary Get one lookup table with rows
// @Tags LinkedData
// @Produce json
// @Param domain path string true "Master domain"
// @Param tag path string true "Lookup table tag"
// @Success 200 {object} source.FixturePayload
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /a/{domain}/linked/fixture/{tag} [get]
func (h *LinkedDataHandler) GetFixture(c *fiber.Ctx) error {
	payload, err := h.local(c).Fixture(c.Context(), c.Params("tag"))
	if err != nil {
		return asCustomError(err)
	}
	return c.JSON(payload)
}

// GetFixtureList handles GET /a/:domain/linked/fixtures
// @Summary List global lookup table tags
// @Tags LinkedData
// @Produce json
// @Param domain path string true "Master domain"
// @Success 200 {array} source.FixtureListingPayload
// @Router /a/{domain}/linked/fixtures [get]
func (h *LinkedDataHandler) GetFixtureList(c *fiber.Ctx) error {
	payload, err := h.local(c).FixtureList(c.Context())
	if err != nil {
		return asCustomError(err)
	}
	return c.JSON(payload)
}

// GetReportList handles GET /a/:domain/linked/reports
// @Summary List reports with titles
// @Tags LinkedData
// @Produce json
// @Param domain path string true "Master domain"
// @Success 200 {array} source.ReportListingPayload
// @Router /a/{domain}/linked/reports [get]
func (h *LinkedDataHandler) GetReportList(c *fiber.Ctx) error {
	payload, err := h.local(c).ReportList(c.Context())
	if err != nil {
		return asCustomError(err)
	}
	return c.JSON(payload)
}

// GetCaseSearchConfig handles GET /a/:domain/linked/case_search_config
// @Summary Get case search configuration
// @Tags LinkedData
// @Produce json
// @Param domain path string true "Master domain"
// @Success 200 {object} source.CaseSearchPayload
// @Router /a/{domain}/linked/case_search_config [get]
func (h *LinkedDataHandler) GetCaseSearchConfig(c *fiber.Ctx) error {
	payload, err := h.local(c).CaseSearchConfig(c.Context())
	if err != nil {
		return asCustomError(err)
	}
	return c.JSON(payload)
}

// GetDialerSettings handles GET /a/:domain/linked/dialer_settings
func (h *LinkedDataHandler) GetDialerSettings(c *fiber.Ctx) error {
	payload, err := h.local(c).DialerSettings(c.Context())
	if err != nil {
		return asCustomError(err)
	}
	return c.JSON(payload)
}

// GetOTPSettings handles GET /a/:domain/linked/otp_settings
func (h *LinkedDataHandler) GetOTPSettings(c *fiber.Ctx) error {
	payload, err := h.local(c).OTPSettings(c.Context())
	if err != nil {
		return asCustomError(err)
	}
	return c.JSON(payload)
}

// GetHMACCalloutSettings handles GET /a/:domain/linked/hmac_callout_settings
func (h *LinkedDataHandler) GetHMACCalloutSettings(c *fiber.Ctx) error {
	payload, err := h.local(c).HMACCalloutSettings(c.Context())
	if err != nil {
		return asCustomError(err)
	}
	return c.JSON(payload)
}

// GetTableauConfig handles GET /a/:domain/linked/tableau_config
func (h *LinkedDataHandler) GetTableauConfig(c *fiber.Ctx) error {
	payload, err := h.local(c).TableauConfig(c.Context())
	if err != nil {
		return asCustomError(err)
	}
	return c.JSON(payload)
}

// GetDataDictionary handles GET /a/:domain/linked/data_dictionary
func (h *LinkedDataHandler) GetDataDictionary(c *fiber.Ctx) error {
	payload, err := h.local(c).DataDictionary(c.Context())
	if err != nil {
		return asCustomError(err)
	}
	return c.JSON(payload)
}

// GetAutoUpdateRules handles GET /a/:domain/linked/auto_update_rules
func (h *LinkedDataHandler) GetAutoUpdateRules(c *fiber.Ctx) error {
	payload, err := h.local(c).AutoUpdateRules(c.Context())
	if err != nil {
		return asCustomError(err)
	}
	return c.JSON(payload)
}

// GetUCRConfig handles GET /a/:domain/linked/ucr_config/:id
// @Summary Get a report and its datasource
// @Tags LinkedData
// @Produce json
// @Param domain path string true "Master domain"
// @Param id path string true "Report id"
// @Success 200 {object} source.UCRPayload
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /a/{domain}/linked/ucr_config/{id} [get]
func (h *LinkedDataHandler) GetUCRConfig(c *fiber.Ctx) error {
	payload, err := h.local(c).UCRConfig(c.Context(), c.Params("id"))
	if err != nil {
		return asCustomError(err)
	}
	return c.JSON(payload)
}

// GetKeywords handles GET /a/:domain/linked/keywords
func (h *LinkedDataHandler) GetKeywords(c *fiber.Ctx) error {
	payload, err := h.local(c).Keywords(c.Context())
	if err != nil {
		return asCustomError(err)
	}
	return c.JSON(payload)
}

// GetAppByVersion handles GET /a/:domain/linked/app_by_version/:app_id/:version
func (h *LinkedDataHandler) GetAppByVersion(c *fiber.Ctx) error {
	version, err := strconv.Atoi(c.Params("version"))
	if err != nil {
		return &types.CustomError{
			Code:    fiber.StatusBadRequest,
			Message: "version must be an integer",
			Type:    "links.app",
		}
	}
	payload, err := h.local(c).AppByVersion(c.Context(), c.Params("app_id"), version)
	if err != nil {
		return asCustomError(err)
	}
	return c.JSON(payload)
}

// GetReleasedAppVersions handles GET /a/:domain/linked/released_app_versions
func (h *LinkedDataHandler) GetReleasedAppVersions(c *fiber.Ctx) error {
	payload, err := h.local(c).ReleasedAppVersions(c.Context())
	if err != nil {
		return asCustomError(err)
	}
	return c.JSON(payload)
}

// GetReleaseSource handles GET /a/:domain/linked/release_source/:app_id
//
// Unlike the other linked-data endpoints this one is not gated on the
// partner check; the app's own allowlist decides who may pull its
// latest released source.
// @Summary Get the latest released build of an app
// @Tags LinkedData
// @Produce json
// @Param domain path string true "Master domain"
// @Param app_id path string true "App id"
// @Success 200 {object} source.AppPayload
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /a/{domain}/linked/release_source/{app_id} [get]
func (h *LinkedDataHandler) GetReleaseSource(c *fiber.Ctx) error {
	domain := c.Params("domain")
	appID := c.Params("app_id")

	var app models.Application
	err := h.DB.Where("domain = ? AND app_id = ?", domain, appID).First(&app).Error
	if err == gorm.ErrRecordNotFound {
		return &types.CustomError{
			Code:    fiber.StatusNotFound,
			Message: "app not found",
			Type:    "links.app",
		}
	}
	if err != nil {
		return err
	}

	requester := c.Get(remote.CallerHeader)
	allowed, err := requesterAllowed(&app, requester)
	if err != nil {
		return err
	}
	if !allowed {
		return &types.CustomError{
			Code:    fiber.StatusForbidden,
			Message: "requester is not on the app release allowlist",
			Type:    "links.authorization.allowlist",
		}
	}

	payload, err := h.local(c).ReleaseSource(c.Context(), appID)
	if err != nil {
		return asCustomError(err)
	}
	return c.JSON(payload)
}

func requesterAllowed(app *models.Application, requester string) (bool, error) {
	if requester == "" {
		return false, nil
	}
	var allowlist []string
	if err := app.LinkedAllowlist.Decode(&allowlist); err != nil {
		return false, err
	}
	for _, entry := range allowlist {
		if entry == requester {
			return true, nil
		}
	}
	return false, nil
}
