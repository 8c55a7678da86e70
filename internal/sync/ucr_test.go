package sync_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/localnerve/spacelink/internal/models"
	"github.com/localnerve/spacelink/internal/source"
	"github.com/localnerve/spacelink/internal/sync"
	"github.com/localnerve/spacelink/internal/tester"
)

func ucrPayload(reportID, dataSourceID string, reportDoc, dsDoc string) *source.UCRPayload {
	return &source.UCRPayload{
		Report: source.ReportDocPayload{
			ID:       reportID,
			Title:    "Visit Summary",
			ConfigID: dataSourceID,
			Document: json.RawMessage(reportDoc),
		},
		DataSource: source.DataSourcePayload{
			ID:            dataSourceID,
			TableID:       "visits",
			DisplayName:   "Visits",
			ReferencedDoc: "XFormInstance",
			Document:      json.RawMessage(dsDoc),
		},
	}
}

// TestCreateLinkedUCR tests the full report pull: datasource creation,
// app id rewriting, and the indicator rebuild dispatch
func TestCreateLinkedUCR(t *testing.T) {
	engine, link, db := newTestEngine(t)

	// Downstream linked app descended from the upstream app referenced
	// in the datasource filter.
	downstreamApp := models.Application{
		AppID:    uuid.New().String(),
		Domain:   "child",
		Name:     "Clinic",
		FamilyID: "up-app",
	}
	db.Create(&downstreamApp)

	var rebuilt []string
	engine.RebuildIndicators = func(domain, dataSourceID string) {
		rebuilt = append(rebuilt, domain+"/"+dataSourceID)
	}

	dsDoc := `{"configured_filter":{"property_name":"app_id","property_value":"up-app"}}`
	reportDoc := `{"filters":[{"app_id":"up-app"}]}`
	src := &tester.FakeSource{UCR: ucrPayload("up-report", "up-ds", reportDoc, dsDoc)}

	report, err := engine.CreateLinkedUCR(context.Background(), link, src, "up-report")
	if err != nil {
		t.Fatalf("Failed to create linked report: %v", err)
	}

	var datasource models.DataSourceConfig
	if err := db.Where("domain = ? AND master_id = ?", "child", "up-ds").
		First(&datasource).Error; err != nil {
		t.Fatalf("Failed to load datasource: %v", err)
	}
	if report.ConfigID != datasource.DataSourceID {
		t.Error("Expected report to point at the downstream datasource")
	}

	// Upstream app ids must be rewritten in both documents.
	if !strings.Contains(string(datasource.Document.JSON), downstreamApp.AppID) {
		t.Error("Expected datasource filter rewritten to downstream app id")
	}
	if strings.Contains(string(report.Document.JSON), "up-app") {
		t.Error("Expected upstream app id removed from report document")
	}

	if len(rebuilt) != 1 || rebuilt[0] != "child/"+datasource.DataSourceID {
		t.Errorf("Expected one indicator rebuild for the datasource, got %v", rebuilt)
	}
}

// TestUpdateLinkedUCR tests that an update overwrites documents while
// downstream identity survives and revisions advance
func TestUpdateLinkedUCR(t *testing.T) {
	engine, link, db := newTestEngine(t)

	src := &tester.FakeSource{UCR: ucrPayload("up-report", "up-ds", `{"v":1}`, `{"v":1}`)}
	report, err := engine.CreateLinkedUCR(context.Background(), link, src, "up-report")
	if err != nil {
		t.Fatalf("Failed to create linked report: %v", err)
	}

	src.UCR = ucrPayload("up-report", "up-ds", `{"v":2}`, `{"v":2}`)
	src.UCR.Report.Title = "Visit Summary v2"
	if err := engine.UpdateLinkedUCR(context.Background(), link, src, "up-report"); err != nil {
		t.Fatalf("Failed to update linked report: %v", err)
	}

	var updated models.ReportConfig
	db.Where("report_id = ?", report.ReportID).First(&updated)
	if updated.Title != "Visit Summary v2" {
		t.Errorf("Expected updated title, got %q", updated.Title)
	}
	if updated.Rev != report.Rev+1 {
		t.Errorf("Expected revision %d, got %d", report.Rev+1, updated.Rev)
	}

	var count int64
	db.Model(&models.ReportConfig{}).Where("domain = ?", "child").Count(&count)
	if count != 1 {
		t.Errorf("Expected 1 report after update, got %d", count)
	}
}

// TestUpdateLinkedUCRNotLinked tests the error when the report was
// never pulled into the domain
func TestUpdateLinkedUCRNotLinked(t *testing.T) {
	engine, link, _ := newTestEngine(t)

	src := &tester.FakeSource{UCR: ucrPayload("up-report", "up-ds", `{}`, `{}`)}
	if err := engine.UpdateLinkedUCR(context.Background(), link, src, "up-report"); err == nil {
		t.Fatal("Expected error updating report that was never linked")
	}
}

// TestLinkedDataSourceDeduplication tests that two reports over the
// same upstream datasource share one downstream datasource
func TestLinkedDataSourceDeduplication(t *testing.T) {
	engine, link, db := newTestEngine(t)

	src := &tester.FakeSource{UCR: ucrPayload("up-report-a", "up-ds", `{}`, `{}`)}
	first, err := engine.CreateLinkedUCR(context.Background(), link, src, "up-report-a")
	if err != nil {
		t.Fatalf("Failed to create first report: %v", err)
	}

	src.UCR = ucrPayload("up-report-b", "up-ds", `{}`, `{}`)
	second, err := engine.CreateLinkedUCR(context.Background(), link, src, "up-report-b")
	if err != nil {
		t.Fatalf("Failed to create second report: %v", err)
	}

	if first.ConfigID != second.ConfigID {
		t.Error("Expected both reports to share one downstream datasource")
	}

	var count int64
	db.Model(&models.DataSourceConfig{}).Where("domain = ?", "child").Count(&count)
	if count != 1 {
		t.Errorf("Expected 1 datasource, got %d", count)
	}
}

// TestUnlinkReport tests that an unlinked report stops receiving
// updates
func TestUnlinkReport(t *testing.T) {
	engine, link, db := newTestEngine(t)

	src := &tester.FakeSource{UCR: ucrPayload("up-report", "up-ds", `{}`, `{}`)}
	report, err := engine.CreateLinkedUCR(context.Background(), link, src, "up-report")
	if err != nil {
		t.Fatalf("Failed to create linked report: %v", err)
	}

	if err := engine.UnlinkReport(context.Background(), "child", report.ReportID); err != nil {
		t.Fatalf("Failed to unlink report: %v", err)
	}

	var detached models.ReportConfig
	db.Where("report_id = ?", report.ReportID).First(&detached)
	if detached.MasterID != nil {
		t.Error("Expected master reference cleared")
	}

	if err := engine.UpdateLinkedUCR(context.Background(), link, src, "up-report"); err == nil {
		t.Error("Expected update to fail once the report is unlinked")
	}
}

// TestSyncReportThroughDispatch tests that the dispatch path creates a
// report on the first pull and overwrites it on the second.
func TestSyncReportThroughDispatch(t *testing.T) {
	engine, link, db := newTestEngine(t)
	src := &tester.FakeSource{UCR: ucrPayload("up-report", "up-ds", `{}`, `{}`)}
	spec := sync.ModelSpec{Type: sync.ModelReport, Detail: sync.ReportDetail{ReportID: "up-report"}}

	if err := engine.UpdateModel(context.Background(), link, src, spec); err != nil {
		t.Fatalf("Failed first report sync: %v", err)
	}

	var report models.ReportConfig
	if err := db.Where("domain = ? AND master_id = ?", "child", "up-report").
		First(&report).Error; err != nil {
		t.Fatalf("Expected report created on first sync: %v", err)
	}

	src.UCR.Report.Title = "Visit Summary v2"
	if err := engine.UpdateModel(context.Background(), link, src, spec); err != nil {
		t.Fatalf("Failed second report sync: %v", err)
	}

	var count int64
	db.Model(&models.ReportConfig{}).Where("domain = ?", "child").Count(&count)
	if count != 1 {
		t.Errorf("Expected 1 report after repeat sync, got %d", count)
	}
	var updated models.ReportConfig
	db.Where("report_id = ?", report.ReportID).First(&updated)
	if updated.Title != "Visit Summary v2" {
		t.Errorf("Expected overwritten title, got %q", updated.Title)
	}
	if updated.Rev != report.Rev+1 {
		t.Errorf("Expected revision bump, got %d -> %d", report.Rev, updated.Rev)
	}
}
