package history_test

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/localnerve/spacelink/internal/history"
	"github.com/localnerve/spacelink/internal/models"
	"github.com/localnerve/spacelink/internal/sync"
	"github.com/localnerve/spacelink/internal/tester"
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

// record inserts a history row at an explicit date
func record(t *testing.T, db *gorm.DB, link *models.DomainLink, spec sync.ModelSpec, at time.Time) models.DomainLinkHistory {
	t.Helper()
	detail, err := spec.DetailJSON()
	if err != nil {
		t.Fatalf("Failed to encode detail: %v", err)
	}
	row := models.DomainLinkHistory{
		LinkID:      link.LinkID,
		Date:        at,
		ModelType:   string(spec.Type),
		ModelDetail: detail,
		UserID:      "tester",
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("Failed to create history row: %v", err)
	}
	return row
}

// TestMostRecentReduces tests that only the newest visible row per
// (model type, detail) survives the reduction
func TestMostRecentReduces(t *testing.T) {
	db, link := newTestLink(t)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	flagsSpec := sync.ModelSpec{Type: sync.ModelFlags}
	appA := sync.ModelSpec{Type: sync.ModelApp, Detail: sync.AppDetail{AppID: "app-a"}}
	appB := sync.ModelSpec{Type: sync.ModelApp, Detail: sync.AppDetail{AppID: "app-b"}}

	record(t, db, link, flagsSpec, base)
	record(t, db, link, flagsSpec, base.Add(time.Hour))
	record(t, db, link, appA, base.Add(2*time.Hour))
	record(t, db, link, appB, base.Add(3*time.Hour))
	record(t, db, link, appA, base.Add(4*time.Hour))

	recent, err := history.MostRecent(context.Background(), db, link.LinkID)
	if err != nil {
		t.Fatalf("Failed to read history: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("Expected 3 reduced rows, got %d", len(recent))
	}

	// Newest first: the app-a row must be the 4-hour one.
	if recent[0].ModelType != string(sync.ModelApp) {
		t.Errorf("Expected newest row first, got %s", recent[0].ModelType)
	}
	if !recent[0].Date.Equal(base.Add(4 * time.Hour)) {
		t.Errorf("Expected newest app-a row, got date %v", recent[0].Date)
	}
}

// TestMostRecentSkipsHidden tests that hidden rows never reach the
// listing
func TestMostRecentSkipsHidden(t *testing.T) {
	db, link := newTestLink(t)

	row := record(t, db, link, sync.ModelSpec{Type: sync.ModelFlags}, time.Now().UTC())
	if err := history.MarkHidden(context.Background(), db, row.HistoryID); err != nil {
		t.Fatalf("Failed to hide row: %v", err)
	}

	recent, err := history.MostRecent(context.Background(), db, link.LinkID)
	if err != nil {
		t.Fatalf("Failed to read history: %v", err)
	}
	if len(recent) != 0 {
		t.Errorf("Expected no visible rows, got %d", len(recent))
	}

	// The row itself survives.
	var count int64
	db.Model(&models.DomainLinkHistory{}).Where("link_id = ?", link.LinkID).Count(&count)
	if count != 1 {
		t.Errorf("Expected hidden row retained, got %d rows", count)
	}
}

// TestRecord tests the append path used after each successful sync
func TestRecord(t *testing.T) {
	db, link := newTestLink(t)

	spec := sync.ModelSpec{Type: sync.ModelReport, Detail: sync.ReportDetail{ReportID: "up-report"}}
	if err := history.Record(context.Background(), db, link, spec, "admin@example.com"); err != nil {
		t.Fatalf("Failed to record history: %v", err)
	}

	var row models.DomainLinkHistory
	if err := db.Where("link_id = ?", link.LinkID).First(&row).Error; err != nil {
		t.Fatalf("Failed to load row: %v", err)
	}
	if row.ModelType != string(sync.ModelReport) {
		t.Errorf("Expected model type report, got %s", row.ModelType)
	}
	if row.UserID != "admin@example.com" {
		t.Errorf("Expected user recorded, got %s", row.UserID)
	}

	detail, err := sync.DecodeDetail(sync.ModelType(row.ModelType), row.ModelDetail)
	if err != nil {
		t.Fatalf("Failed to decode detail: %v", err)
	}
	if d, ok := detail.(sync.ReportDetail); !ok || d.ReportID != "up-report" {
		t.Errorf("Expected report detail round-trip, got %#v", detail)
	}
}
