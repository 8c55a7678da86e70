package appsync_test

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/localnerve/spacelink/internal/appsync"
	"github.com/localnerve/spacelink/internal/models"
	"github.com/localnerve/spacelink/internal/source"
	"github.com/localnerve/spacelink/internal/tester"
	"github.com/localnerve/spacelink/internal/types"
)

func newTestLink(t *testing.T) (*gorm.DB, *models.DomainLink) {
	t.Helper()
	db := tester.DB(t)
	link := &models.DomainLink{LinkedDomain: "child", MasterDomain: "parent"}
	if err := db.Create(link).Error; err != nil {
		t.Fatalf("Failed to create link: %v", err)
	}
	return db, link
}

func appPayload(version int, forms ...models.Form) *source.AppPayload {
	return &source.AppPayload{
		ID:       "up-app",
		Name:     "Clinic",
		Version:  version,
		FamilyID: "up-app",
		Modules: []models.Module{{
			UniqueID:   "m1",
			Name:       "Visits",
			ModuleType: models.ModuleTypeBasic,
			Forms:      forms,
		}},
	}
}

func loadLinkedApp(t *testing.T, db *gorm.DB) models.Application {
	t.Helper()
	var app models.Application
	if err := db.Where("domain = ? AND copy_of IS NULL", "child").First(&app).Error; err != nil {
		t.Fatalf("Failed to load linked app: %v", err)
	}
	return app
}

// TestUpdateLinkedAppFirstPull tests that the first pull creates the
// linked app with fresh downstream form ids
func TestUpdateLinkedAppFirstPull(t *testing.T) {
	db, link := newTestLink(t)

	src := &tester.FakeSource{App: appPayload(3, models.Form{
		UniqueID: "up-f1", Name: "Register", XMLNS: "http://forms/register", Version: 3, Source: "<xform/>",
	})}

	err := appsync.UpdateLinkedApp(context.Background(), db, link, src, appsync.PullOptions{
		UpstreamAppID: "up-app",
	})
	if err != nil {
		t.Fatalf("Failed to pull app: %v", err)
	}

	app := loadLinkedApp(t, db)
	if app.Version != 3 {
		t.Errorf("Expected app version 3, got %d", app.Version)
	}
	if app.UpstreamAppID == nil || *app.UpstreamAppID != "up-app" {
		t.Error("Expected upstream app reference recorded")
	}

	modules := app.Modules.Data()
	if len(modules) != 1 || len(modules[0].Forms) != 1 {
		t.Fatalf("Expected 1 module with 1 form, got %+v", modules)
	}
	form := modules[0].Forms[0]
	if form.UniqueID == "up-f1" {
		t.Error("Expected downstream form to get its own unique id")
	}
	if form.Version != 3 {
		t.Errorf("Expected new form to carry upstream version 3, got %d", form.Version)
	}
}

// TestFormIdentityAcrossMasters tests that a form keeps its downstream
// id and version when the app is re-pointed to a different upstream
// carrying the same form
func TestFormIdentityAcrossMasters(t *testing.T) {
	db, link := newTestLink(t)

	register := models.Form{
		UniqueID: "m1-f1", Name: "Register", XMLNS: "http://forms/register", Version: 2, Source: "<xform/>",
	}

	// Pull from master one.
	src := &tester.FakeSource{App: appPayload(2, register)}
	if err := appsync.UpdateLinkedApp(context.Background(), db, link, src, appsync.PullOptions{
		UpstreamAppID: "up-app",
	}); err != nil {
		t.Fatalf("Failed to pull from first master: %v", err)
	}
	first := loadLinkedApp(t, db)
	firstForm := first.Modules.Data()[0].Forms[0]

	// Re-point the linked app to master two: same XMLNS and source,
	// different upstream ids and a different upstream version numbering.
	if err := db.Model(&models.Application{}).Where("app_id = ?", first.AppID).
		Update("upstream_app_id", "up-app-2").Error; err != nil {
		t.Fatalf("Failed to re-point app: %v", err)
	}
	register2 := register
	register2.UniqueID = "m2-f9"
	register2.Version = 7
	payload2 := appPayload(7, register2)
	payload2.ID = "up-app-2"
	payload2.FamilyID = first.FamilyID
	src = &tester.FakeSource{App: payload2}

	if err := appsync.UpdateLinkedApp(context.Background(), db, link, src, appsync.PullOptions{
		UpstreamAppID: "up-app-2",
	}); err != nil {
		t.Fatalf("Failed to pull from second master: %v", err)
	}
	second := loadLinkedApp(t, db)
	secondForm := second.Modules.Data()[0].Forms[0]

	if secondForm.UniqueID != firstForm.UniqueID {
		t.Error("Expected form to keep its downstream id across masters")
	}
	if secondForm.Version != firstForm.Version {
		t.Errorf("Expected version pinned at %d for unchanged source, got %d",
			firstForm.Version, secondForm.Version)
	}
}

// TestFormVersionMovesOnSourceChange tests that a changed form source
// bumps the downstream form version exactly once
func TestFormVersionMovesOnSourceChange(t *testing.T) {
	db, link := newTestLink(t)

	form := models.Form{
		UniqueID: "up-f1", Name: "Register", XMLNS: "http://forms/register", Version: 1, Source: "<v1/>",
	}
	src := &tester.FakeSource{App: appPayload(1, form)}
	opts := appsync.PullOptions{UpstreamAppID: "up-app"}

	if err := appsync.UpdateLinkedApp(context.Background(), db, link, src, opts); err != nil {
		t.Fatalf("Failed to pull: %v", err)
	}
	v1 := loadLinkedApp(t, db).Modules.Data()[0].Forms[0].Version

	// Unchanged re-pull: version pinned.
	if err := appsync.UpdateLinkedApp(context.Background(), db, link, src, opts); err != nil {
		t.Fatalf("Failed to re-pull: %v", err)
	}
	if got := loadLinkedApp(t, db).Modules.Data()[0].Forms[0].Version; got != v1 {
		t.Errorf("Expected version pinned at %d on unchanged pull, got %d", v1, got)
	}

	// Changed source: version moves.
	form.Source = "<v2/>"
	src.App = appPayload(2, form)
	if err := appsync.UpdateLinkedApp(context.Background(), db, link, src, opts); err != nil {
		t.Fatalf("Failed to pull changed form: %v", err)
	}
	if got := loadLinkedApp(t, db).Modules.Data()[0].Forms[0].Version; got != v1+1 {
		t.Errorf("Expected version %d after source change, got %d", v1+1, got)
	}
}

// TestReportModuleRemap tests that report modules are remapped to
// downstream report ids and unmapped references fail the pull
func TestReportModuleRemap(t *testing.T) {
	db, link := newTestLink(t)

	payload := appPayload(1)
	payload.Modules = append(payload.Modules, models.Module{
		UniqueID:   "m2",
		Name:       "Reports",
		ModuleType: models.ModuleTypeReport,
		ReportConfigs: []models.ReportModuleConfig{
			{ReportID: "up-report", Header: "Summary"},
		},
	})
	src := &tester.FakeSource{App: payload}
	opts := appsync.PullOptions{UpstreamAppID: "up-app"}

	// No downstream report copy: the pull must fail.
	err := appsync.UpdateLinkedApp(context.Background(), db, link, src, opts)
	if err == nil {
		t.Fatal("Expected error for unmapped report module")
	}
	var editErr *types.AppEditingError
	if !errors.As(err, &editErr) {
		t.Errorf("Expected AppEditingError, got %T", err)
	}

	opts.ReportMap = map[string]string{"up-report": "down-report"}
	if err := appsync.UpdateLinkedApp(context.Background(), db, link, src, opts); err != nil {
		t.Fatalf("Failed to pull with report map: %v", err)
	}

	modules := loadLinkedApp(t, db).Modules.Data()
	if modules[1].ReportConfigs[0].ReportID != "down-report" {
		t.Errorf("Expected report remapped, got %+v", modules[1].ReportConfigs)
	}
}

// TestResourceOverrideApplied tests that operator-pinned form ids apply
// to the form and to references pointing at it
func TestResourceOverrideApplied(t *testing.T) {
	db, link := newTestLink(t)

	parent := models.Form{
		UniqueID: "up-f1", Name: "Register", XMLNS: "http://forms/register", Version: 1, Source: "<a/>",
	}
	shadow := models.Form{
		UniqueID: "up-f2", Name: "Register Shadow", XMLNS: "http://forms/shadow", Version: 1, Source: "<b/>",
		IsShadow: true, ShadowParentFormID: "up-f1",
	}
	src := &tester.FakeSource{App: appPayload(1, parent, shadow)}
	opts := appsync.PullOptions{UpstreamAppID: "up-app"}

	if err := appsync.UpdateLinkedApp(context.Background(), db, link, src, opts); err != nil {
		t.Fatalf("Failed to pull: %v", err)
	}
	app := loadLinkedApp(t, db)
	pulledParent := app.Modules.Data()[0].Forms[0]

	// Pin the parent form to a hard-coded id and re-pull.
	pinned := uuid.New().String()
	db.Create(&models.ResourceOverride{
		Domain:        "child",
		AppID:         app.AppID,
		PreExistingID: pulledParent.UniqueID,
		OverrideID:    pinned,
	})

	if err := appsync.UpdateLinkedApp(context.Background(), db, link, src, opts); err != nil {
		t.Fatalf("Failed to re-pull: %v", err)
	}

	forms := loadLinkedApp(t, db).Modules.Data()[0].Forms
	if forms[0].UniqueID != pinned {
		t.Errorf("Expected parent form pinned to %s, got %s", pinned, forms[0].UniqueID)
	}
	if forms[1].ShadowParentFormID != pinned {
		t.Errorf("Expected shadow parent rewritten to %s, got %s", pinned, forms[1].ShadowParentFormID)
	}
}

// TestAmbiguousLinkedApp tests that a pull fails when several
// downstream apps descend from the upstream app
func TestAmbiguousLinkedApp(t *testing.T) {
	db, link := newTestLink(t)

	for i := 0; i < 2; i++ {
		db.Create(&models.Application{
			AppID:    uuid.New().String(),
			Domain:   "child",
			Name:     "Copy",
			FamilyID: "up-app",
		})
	}

	src := &tester.FakeSource{App: appPayload(1)}
	err := appsync.UpdateLinkedApp(context.Background(), db, link, src, appsync.PullOptions{
		UpstreamAppID: "up-app",
	})
	if err == nil {
		t.Fatal("Expected error for ambiguous linked app")
	}
	var linkErr *types.DomainLinkError
	if !errors.As(err, &linkErr) {
		t.Errorf("Expected DomainLinkError, got %T", err)
	}
}

// TestOverlaysSurvivePull tests that downstream-owned overlays are
// never erased by a pull
func TestOverlaysSurvivePull(t *testing.T) {
	db, link := newTestLink(t)

	app := models.Application{
		AppID:                 uuid.New().String(),
		Domain:                "child",
		Name:                  "Clinic",
		FamilyID:              "up-app",
		LinkedAppTranslations: models.MustJSON(map[string]string{"en": "Local name"}),
		LinkedAppAttrs:        models.MustJSON(map[string]string{"target": "phone"}),
	}
	db.Create(&app)

	src := &tester.FakeSource{App: appPayload(2)}
	if err := appsync.UpdateLinkedApp(context.Background(), db, link, src, appsync.PullOptions{
		UpstreamAppID: "up-app",
	}); err != nil {
		t.Fatalf("Failed to pull: %v", err)
	}

	after := loadLinkedApp(t, db)
	var overlay map[string]string
	if err := after.LinkedAppTranslations.Decode(&overlay); err != nil {
		t.Fatalf("Failed to decode overlay: %v", err)
	}
	if overlay["en"] != "Local name" {
		t.Error("Expected translation overlay to survive the pull")
	}
}

// TestBuildAndRelease tests that builds snapshot the linked app with
// monotonically increasing build versions
func TestBuildAndRelease(t *testing.T) {
	db, link := newTestLink(t)

	src := &tester.FakeSource{App: appPayload(1)}
	if err := appsync.UpdateLinkedApp(context.Background(), db, link, src, appsync.PullOptions{
		UpstreamAppID: "up-app",
	}); err != nil {
		t.Fatalf("Failed to pull: %v", err)
	}
	app := loadLinkedApp(t, db)

	for i := 0; i < 2; i++ {
		if err := appsync.BuildAndRelease(context.Background(), db, "child", "up-app"); err != nil {
			t.Fatalf("Failed to build: %v", err)
		}
	}

	var builds []models.Application
	db.Where("domain = ? AND copy_of = ?", "child", app.AppID).
		Order("version").Find(&builds)
	if len(builds) != 2 {
		t.Fatalf("Expected 2 builds, got %d", len(builds))
	}
	for i, build := range builds {
		if build.Version != i+1 {
			t.Errorf("Expected build version %d, got %d", i+1, build.Version)
		}
		if !build.IsReleased {
			t.Error("Expected build marked released")
		}
	}
}

// TestMergeMultimedia tests media matching, version pinning, and the
// strict-missing behavior
func TestMergeMultimedia(t *testing.T) {
	db, link := newTestLink(t)

	content := []byte("png-bytes")
	payload := appPayload(1)
	payload.MultimediaMap = map[string]models.MediaRef{
		"jr://file/commcare/logo.png": {MultimediaID: "up-media", Version: 1},
	}
	payload.Multimedia = []source.MultimediaBlobPayload{{
		ID:          "up-media",
		ContentHash: "hash-1",
		MimeType:    "image/png",
		ContentB64:  base64.StdEncoding.EncodeToString(content),
	}}
	src := &tester.FakeSource{App: payload}
	opts := appsync.PullOptions{UpstreamAppID: "up-app"}

	if err := appsync.UpdateLinkedApp(context.Background(), db, link, src, opts); err != nil {
		t.Fatalf("Failed to pull: %v", err)
	}

	var item models.MultimediaItem
	if err := db.Where("upstream_media_id = ?", "up-media").First(&item).Error; err != nil {
		t.Fatalf("Expected media item created from blob: %v", err)
	}
	var domains []string
	item.Domains.Decode(&domains)
	if len(domains) != 1 || domains[0] != "child" {
		t.Errorf("Expected child granted visibility, got %v", domains)
	}

	app := loadLinkedApp(t, db)
	ref := app.MultimediaMap.Data()["jr://file/commcare/logo.png"]
	if ref.MultimediaID != item.MediaID {
		t.Error("Expected map entry to point at the local item")
	}
	pinnedVersion := ref.Version

	// Re-pull at a newer app version with unchanged media: version
	// stays pinned.
	payload.Version = 5
	if err := appsync.UpdateLinkedApp(context.Background(), db, link, src, opts); err != nil {
		t.Fatalf("Failed to re-pull: %v", err)
	}
	ref = loadLinkedApp(t, db).MultimediaMap.Data()["jr://file/commcare/logo.png"]
	if ref.Version != pinnedVersion {
		t.Errorf("Expected media version pinned at %d, got %d", pinnedVersion, ref.Version)
	}

	// Changed content: version moves to the pulled build.
	payload.Multimedia[0].ContentHash = "hash-2"
	payload.Multimedia[0].ContentB64 = base64.StdEncoding.EncodeToString([]byte("new-bytes"))
	if err := appsync.UpdateLinkedApp(context.Background(), db, link, src, opts); err != nil {
		t.Fatalf("Failed to pull changed media: %v", err)
	}
	ref = loadLinkedApp(t, db).MultimediaMap.Data()["jr://file/commcare/logo.png"]
	if ref.Version != 5 {
		t.Errorf("Expected media version moved to 5, got %d", ref.Version)
	}
}

// TestStrictMissingMultimedia tests that a missing item fails the pull
// only under the strict flag
func TestStrictMissingMultimedia(t *testing.T) {
	db, link := newTestLink(t)

	payload := appPayload(1)
	payload.MultimediaMap = map[string]models.MediaRef{
		"jr://file/video.mp4": {MultimediaID: "up-gone", Version: 1},
	}
	src := &tester.FakeSource{App: payload}

	// Tolerant pull succeeds with a gap.
	if err := appsync.UpdateLinkedApp(context.Background(), db, link, src, appsync.PullOptions{
		UpstreamAppID: "up-app",
	}); err != nil {
		t.Fatalf("Expected tolerant pull to succeed, got %v", err)
	}
	if got := loadLinkedApp(t, db).MultimediaMap.Data(); len(got) != 0 {
		t.Errorf("Expected empty media map, got %v", got)
	}

	// Strict pull fails.
	err := appsync.UpdateLinkedApp(context.Background(), db, link, src, appsync.PullOptions{
		UpstreamAppID:    "up-app",
		StrictMultimedia: true,
	})
	var missing *types.MultimediaMissingError
	if !errors.As(err, &missing) {
		t.Fatalf("Expected MultimediaMissingError, got %v", err)
	}
	if missing.MediaID != "up-gone" {
		t.Errorf("Expected missing media id up-gone, got %s", missing.MediaID)
	}
}

// TestPullMissingMultimedia tests the maintenance re-pull that fills
// gaps left by an earlier tolerant pull
func TestPullMissingMultimedia(t *testing.T) {
	db, link := newTestLink(t)

	payload := appPayload(1)
	payload.MultimediaMap = map[string]models.MediaRef{
		"jr://file/logo.png": {MultimediaID: "up-media", Version: 1},
	}
	src := &tester.FakeSource{App: payload}

	// Tolerant pull with no blob leaves a gap.
	if err := appsync.UpdateLinkedApp(context.Background(), db, link, src, appsync.PullOptions{
		UpstreamAppID: "up-app",
	}); err != nil {
		t.Fatalf("Failed initial pull: %v", err)
	}

	// The upstream now serves the blob; the maintenance pull fills it.
	payload.Multimedia = []source.MultimediaBlobPayload{{
		ID:         "up-media",
		MimeType:   "image/png",
		ContentB64: base64.StdEncoding.EncodeToString([]byte("logo")),
	}}
	if err := appsync.PullMissingMultimedia(context.Background(), db, link, src, "up-app"); err != nil {
		t.Fatalf("Failed to pull missing multimedia: %v", err)
	}

	var item models.MultimediaItem
	if err := db.Where("upstream_media_id = ?", "up-media").First(&item).Error; err != nil {
		t.Fatalf("Expected media item created: %v", err)
	}
	if item.ContentHash == "" {
		t.Error("Expected content hash computed for blob without one")
	}
}
