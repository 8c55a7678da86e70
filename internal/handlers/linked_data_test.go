package handlers_test

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/localnerve/spacelink/internal/handlers"
	"github.com/localnerve/spacelink/internal/models"
	"github.com/localnerve/spacelink/internal/remote"
	"github.com/localnerve/spacelink/internal/source"
	"github.com/localnerve/spacelink/internal/tester"
	"github.com/localnerve/spacelink/internal/types"
)

// testErrorHandler mirrors the server's central error handler closely
// enough to assert status codes in unit tests.
func testErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}
	if e, ok := err.(*types.CustomError); ok {
		code = e.Code
		message = e.Message
	}
	return c.Status(code).JSON(fiber.Map{"message": message, "ok": false})
}

func newDataApp(t *testing.T) (*fiber.App, *gorm.DB) {
	db := tester.DB(t)
	app := fiber.New(fiber.Config{ErrorHandler: testErrorHandler})
	h := &handlers.LinkedDataHandler{DB: db}
	app.Get("/a/:domain/linked/toggles", h.GetToggles)
	app.Get("/a/:domain/linked/fixture/:tag", h.GetFixture)
	app.Get("/a/:domain/linked/fixtures", h.GetFixtureList)
	app.Get("/a/:domain/linked/reports", h.GetReportList)
	app.Get("/a/:domain/linked/app_by_version/:app_id/:version", h.GetAppByVersion)
	app.Get("/a/:domain/linked/release_source/:app_id", h.GetReleaseSource)
	return app, db
}

// TestGetToggles tests the GET /a/:domain/linked/toggles endpoint.
func TestGetToggles(t *testing.T) {
	app, db := newDataApp(t)

	db.Create(&models.FeatureToggle{Domain: "parent", Slug: "widget_dialer"})
	db.Create(&models.FeatureToggle{Domain: "parent", Slug: "beta_search"})
	db.Create(&models.FeatureToggle{Domain: "other", Slug: "not_yours"})
	db.Create(&models.FeaturePreview{Domain: "parent", Slug: "case_tiles"})

	req := httptest.NewRequest("GET", "/a/parent/linked/toggles", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var payload source.TogglesPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(payload.Toggles) != 2 || payload.Toggles[0] != "beta_search" || payload.Toggles[1] != "widget_dialer" {
		t.Errorf("unexpected toggles %v", payload.Toggles)
	}
	if len(payload.Previews) != 1 || payload.Previews[0] != "case_tiles" {
		t.Errorf("unexpected previews %v", payload.Previews)
	}
}

// TestGetFixtureNotFound tests that a missing lookup table renders 404.
func TestGetFixtureNotFound(t *testing.T) {
	app, _ := newDataApp(t)

	req := httptest.NewRequest("GET", "/a/parent/linked/fixture/missing", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 404 {
		t.Errorf("Expected status 404, got %d", resp.StatusCode)
	}
}

// TestGetFixtureList tests that only global lookup tables of the
// domain are listed.
func TestGetFixtureList(t *testing.T) {
	app, db := newDataApp(t)

	db.Create(&models.FixtureTable{TableID: "t1", Domain: "parent", Tag: "regions", IsGlobal: true})
	db.Create(&models.FixtureTable{TableID: "t2", Domain: "parent", Tag: "private", IsGlobal: false})
	db.Create(&models.FixtureTable{TableID: "t3", Domain: "other", Tag: "elsewhere", IsGlobal: true})

	req := httptest.NewRequest("GET", "/a/parent/linked/fixtures", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	var listings []source.FixtureListingPayload
	if err := json.NewDecoder(resp.Body).Decode(&listings); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(listings) != 1 || listings[0].Tag != "regions" {
		t.Errorf("unexpected listings %v", listings)
	}
}

// TestGetReportList tests the report id and title listing.
func TestGetReportList(t *testing.T) {
	app, db := newDataApp(t)

	db.Create(&models.ReportConfig{ReportID: "r1", Domain: "parent", Title: "Visits", ConfigID: "ds1"})
	db.Create(&models.ReportConfig{ReportID: "r2", Domain: "other", Title: "Not Yours", ConfigID: "ds2"})

	req := httptest.NewRequest("GET", "/a/parent/linked/reports", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	var listings []source.ReportListingPayload
	if err := json.NewDecoder(resp.Body).Decode(&listings); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(listings) != 1 || listings[0].ID != "r1" || listings[0].Title != "Visits" {
		t.Errorf("unexpected listings %v", listings)
	}
}

// TestGetAppByVersionBadVersion tests the non-integer version guard.
func TestGetAppByVersionBadVersion(t *testing.T) {
	app, _ := newDataApp(t)

	req := httptest.NewRequest("GET", "/a/parent/linked/app_by_version/app-1/latest", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 400 {
		t.Errorf("Expected status 400, got %d", resp.StatusCode)
	}
}

// TestGetReleaseSourceAllowlist tests that release source access is
// decided by the app's own allowlist, not the partner check.
func TestGetReleaseSourceAllowlist(t *testing.T) {
	app, db := newDataApp(t)

	db.Create(&models.Application{
		AppID:           "app-1",
		Domain:          "parent",
		Name:            "Referral",
		Version:         5,
		LinkedAllowlist: models.RawJSON([]byte(`["https://child.example.com"]`)),
	})
	appID := "app-1"
	db.Create(&models.Application{
		AppID:      "build-1",
		Domain:     "parent",
		Name:       "Referral",
		Version:    4,
		CopyOf:     &appID,
		FamilyID:   "app-1",
		IsReleased: true,
	})

	// No requester header.
	req := httptest.NewRequest("GET", "/a/parent/linked/release_source/app-1", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 403 {
		t.Errorf("missing header: expected 403, got %d", resp.StatusCode)
	}

	// Requester not on the allowlist.
	req = httptest.NewRequest("GET", "/a/parent/linked/release_source/app-1", nil)
	req.Header.Set(remote.CallerHeader, "https://stranger.example.com")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 403 {
		t.Errorf("stranger: expected 403, got %d", resp.StatusCode)
	}

	// Allowlisted requester gets the latest released build.
	req = httptest.NewRequest("GET", "/a/parent/linked/release_source/app-1", nil)
	req.Header.Set(remote.CallerHeader, "https://child.example.com")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("allowlisted: expected 200, got %d", resp.StatusCode)
	}
	var payload source.AppPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if payload.ID != "build-1" || payload.Version != 4 {
		t.Errorf("unexpected build %s v%d", payload.ID, payload.Version)
	}

	// Unknown app renders 404.
	req = httptest.NewRequest("GET", "/a/parent/linked/release_source/nope", nil)
	req.Header.Set(remote.CallerHeader, "https://child.example.com")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 404 {
		t.Errorf("unknown app: expected 404, got %d", resp.StatusCode)
	}
}
