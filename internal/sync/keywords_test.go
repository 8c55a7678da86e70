package sync_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/localnerve/spacelink/internal/models"
	"github.com/localnerve/spacelink/internal/source"
	"github.com/localnerve/spacelink/internal/sync"
	"github.com/localnerve/spacelink/internal/tester"
	"github.com/localnerve/spacelink/internal/types"
)

func keywordPayload(word string, actions ...source.KeywordActionPayload) source.KeywordPayload {
	return source.KeywordPayload{
		ID:      "up-" + word,
		Word:    word,
		Actions: actions,
	}
}

// TestIsKeywordLinkable tests the group-recipient exclusion
func TestIsKeywordLinkable(t *testing.T) {
	linkable := keywordPayload("join", source.KeywordActionPayload{
		Action:        "reply",
		RecipientType: models.RecipientSender,
	})
	if !sync.IsKeywordLinkable(&linkable) {
		t.Error("Expected sender-recipient keyword to be linkable")
	}

	grouped := keywordPayload("alert", source.KeywordActionPayload{
		Action:        "reply",
		RecipientType: models.RecipientUserGroup,
	})
	if sync.IsKeywordLinkable(&grouped) {
		t.Error("Expected group-recipient keyword not to be linkable")
	}
}

// TestCreateThenUpdateKeyword tests that a create followed by updates
// keeps one downstream row whose actions mirror upstream
func TestCreateThenUpdateKeyword(t *testing.T) {
	engine, link, db := newTestEngine(t)

	src := &tester.FakeSource{
		KeywordList: []source.KeywordPayload{
			keywordPayload("join",
				source.KeywordActionPayload{Action: "reply", RecipientType: models.RecipientSender, MessageContent: "welcome"},
			),
		},
	}

	keywordID, err := engine.CreateLinkedKeyword(context.Background(), link, src, "up-join")
	if err != nil {
		t.Fatalf("Failed to create keyword: %v", err)
	}

	// Upstream definition changes: different description, two actions.
	src.KeywordList[0].Description = "registration keyword"
	src.KeywordList[0].Actions = append(src.KeywordList[0].Actions,
		source.KeywordActionPayload{Action: "notify", RecipientType: models.RecipientOwner})

	if err := engine.UpdateKeyword(context.Background(), link, src, "up-join"); err != nil {
		t.Fatalf("Failed to update keyword: %v", err)
	}

	var keywords []models.Keyword
	db.Where("domain = ?", "child").Find(&keywords)
	if len(keywords) != 1 {
		t.Fatalf("Expected 1 keyword, got %d", len(keywords))
	}
	if keywords[0].KeywordID != keywordID {
		t.Error("Expected downstream keyword id to stay stable across updates")
	}
	if keywords[0].Description != "registration keyword" {
		t.Errorf("Expected updated description, got %q", keywords[0].Description)
	}

	var actions []models.KeywordAction
	db.Where("keyword_id = ?", keywordID).Find(&actions)
	if len(actions) != 2 {
		t.Errorf("Expected 2 actions after update, got %d", len(actions))
	}
}

// TestUpdateKeywordNotLinked tests the error when updating a keyword
// that was never linked down
func TestUpdateKeywordNotLinked(t *testing.T) {
	engine, link, _ := newTestEngine(t)

	src := &tester.FakeSource{
		KeywordList: []source.KeywordPayload{keywordPayload("join")},
	}

	err := engine.UpdateKeyword(context.Background(), link, src, "up-join")
	if err == nil {
		t.Fatal("Expected error updating unlinked keyword")
	}
	var linkErr *types.DomainLinkError
	if !errors.As(err, &linkErr) {
		t.Errorf("Expected DomainLinkError, got %T", err)
	}
}

// TestKeywordActionAppRemap tests that app references in actions are
// remapped to the downstream linked app, with ambiguity surfaced
func TestKeywordActionAppRemap(t *testing.T) {
	engine, link, db := newTestEngine(t)

	downstream := models.Application{
		AppID:    uuid.New().String(),
		Domain:   "child",
		Name:     "Survey",
		FamilyID: "up-app",
	}
	db.Create(&downstream)

	upstreamApp := "up-app"
	src := &tester.FakeSource{
		KeywordList: []source.KeywordPayload{
			keywordPayload("survey", source.KeywordActionPayload{
				Action:        "start_form",
				RecipientType: models.RecipientSender,
				AppID:         &upstreamApp,
			}),
		},
	}

	keywordID, err := engine.CreateLinkedKeyword(context.Background(), link, src, "up-survey")
	if err != nil {
		t.Fatalf("Failed to create keyword: %v", err)
	}

	var action models.KeywordAction
	if err := db.Where("keyword_id = ?", keywordID).First(&action).Error; err != nil {
		t.Fatalf("Failed to load action: %v", err)
	}
	if action.AppID == nil || *action.AppID != downstream.AppID {
		t.Errorf("Expected app reference remapped to %s, got %v", downstream.AppID, action.AppID)
	}

	// A second downstream descendant of the same upstream app makes the
	// reference ambiguous; the sync must fail rather than tie-break.
	db.Create(&models.Application{
		AppID:    uuid.New().String(),
		Domain:   "child",
		Name:     "Survey Copy",
		FamilyID: "up-app",
	})

	if err := engine.UpdateKeyword(context.Background(), link, src, "up-survey"); err == nil {
		t.Error("Expected error for ambiguous downstream app")
	}
}

// TestUnlinkKeyword tests that unlinking detaches without deleting
func TestUnlinkKeyword(t *testing.T) {
	engine, link, db := newTestEngine(t)

	src := &tester.FakeSource{
		KeywordList: []source.KeywordPayload{keywordPayload("join")},
	}
	keywordID, err := engine.CreateLinkedKeyword(context.Background(), link, src, "up-join")
	if err != nil {
		t.Fatalf("Failed to create keyword: %v", err)
	}

	if err := engine.UnlinkKeyword(context.Background(), "child", keywordID); err != nil {
		t.Fatalf("Failed to unlink keyword: %v", err)
	}

	var keyword models.Keyword
	if err := db.Where("keyword_id = ?", keywordID).First(&keyword).Error; err != nil {
		t.Fatalf("Expected keyword to survive unlinking: %v", err)
	}
	if keyword.UpstreamID != nil {
		t.Error("Expected upstream back-reference cleared")
	}

	// Unlinking an already-detached keyword is a no-op.
	if err := engine.UnlinkKeyword(context.Background(), "child", keywordID); err != nil {
		t.Errorf("Expected idempotent unlink, got %v", err)
	}
}

// TestSyncKeywordThroughDispatch tests that the dispatch path creates a
// keyword on the first pull and overwrites it afterwards.
func TestSyncKeywordThroughDispatch(t *testing.T) {
	engine, link, db := newTestEngine(t)
	src := &tester.FakeSource{
		KeywordList: []source.KeywordPayload{
			keywordPayload("join",
				source.KeywordActionPayload{Action: "reply", RecipientType: models.RecipientSender, MessageContent: "welcome"},
			),
		},
	}
	spec := sync.ModelSpec{Type: sync.ModelKeyword, Detail: sync.KeywordDetail{KeywordID: "up-join"}}

	if err := engine.UpdateModel(context.Background(), link, src, spec); err != nil {
		t.Fatalf("Failed first keyword sync: %v", err)
	}

	var keyword models.Keyword
	if err := db.Where("domain = ? AND upstream_id = ?", "child", "up-join").
		First(&keyword).Error; err != nil {
		t.Fatalf("Expected keyword created on first sync: %v", err)
	}

	src.KeywordList[0].Description = "registration keyword"
	if err := engine.UpdateModel(context.Background(), link, src, spec); err != nil {
		t.Fatalf("Failed second keyword sync: %v", err)
	}

	var keywords []models.Keyword
	db.Where("domain = ?", "child").Find(&keywords)
	if len(keywords) != 1 {
		t.Fatalf("Expected 1 keyword after repeat sync, got %d", len(keywords))
	}
	if keywords[0].KeywordID != keyword.KeywordID {
		t.Error("Expected downstream keyword id to stay stable across syncs")
	}
	if keywords[0].Description != "registration keyword" {
		t.Errorf("Expected overwritten description, got %q", keywords[0].Description)
	}
}

// TestGroupRecipientKeywordSyncsOnce tests that a keyword with a user
// group recipient syncs the first time but is withheld on repeat sync.
func TestGroupRecipientKeywordSyncsOnce(t *testing.T) {
	engine, link, db := newTestEngine(t)
	src := &tester.FakeSource{
		KeywordList: []source.KeywordPayload{
			keywordPayload("alert",
				source.KeywordActionPayload{Action: "notify", RecipientType: models.RecipientUserGroup, RecipientID: "grp-1"},
			),
		},
	}
	spec := sync.ModelSpec{Type: sync.ModelKeyword, Detail: sync.KeywordDetail{KeywordID: "up-alert"}}

	if err := engine.UpdateModel(context.Background(), link, src, spec); err != nil {
		t.Fatalf("Failed one-time sync of group-recipient keyword: %v", err)
	}

	var keyword models.Keyword
	if err := db.Where("domain = ? AND upstream_id = ?", "child", "up-alert").
		First(&keyword).Error; err != nil {
		t.Fatalf("Expected keyword created: %v", err)
	}

	err := engine.UpdateModel(context.Background(), link, src, spec)
	if err == nil {
		t.Fatal("Expected repeat sync of group-recipient keyword to be withheld")
	}
	var linkErr *types.DomainLinkError
	if !errors.As(err, &linkErr) {
		t.Errorf("Expected DomainLinkError, got %T", err)
	}
}
