package registry_test

import (
	"errors"
	"testing"
	"time"

	"github.com/localnerve/spacelink/internal/registry"
	"github.com/localnerve/spacelink/internal/tester"
	"github.com/localnerve/spacelink/internal/types"
)

// TestLinkDomainsIdempotent tests that linking the same pair twice
// returns the same row
func TestLinkDomainsIdempotent(t *testing.T) {
	reg := registry.New(tester.DB(t))

	first, err := reg.LinkDomains("child", "parent", nil)
	if err != nil {
		t.Fatalf("Failed to create link: %v", err)
	}

	second, err := reg.LinkDomains("child", "parent", nil)
	if err != nil {
		t.Fatalf("Failed to re-link: %v", err)
	}

	if first.LinkID != second.LinkID {
		t.Errorf("Expected same link row, got %d and %d", first.LinkID, second.LinkID)
	}
}

// TestLinkDomainsConflict tests that a downstream with an active link
// to a different master cannot be linked again
func TestLinkDomainsConflict(t *testing.T) {
	reg := registry.New(tester.DB(t))

	if _, err := reg.LinkDomains("child", "parent-a", nil); err != nil {
		t.Fatalf("Failed to create link: %v", err)
	}

	_, err := reg.LinkDomains("child", "parent-b", nil)
	if err == nil {
		t.Fatal("Expected error linking to a second master")
	}
	var linkErr *types.DomainLinkError
	if !errors.As(err, &linkErr) {
		t.Errorf("Expected DomainLinkError, got %T", err)
	}
}

// TestUnlinkReactivation tests that relinking a soft-deleted pair
// reuses the old row instead of creating a duplicate
func TestUnlinkReactivation(t *testing.T) {
	reg := registry.New(tester.DB(t))

	link, err := reg.LinkDomains("child", "parent", nil)
	if err != nil {
		t.Fatalf("Failed to create link: %v", err)
	}
	if err := reg.Unlink(link); err != nil {
		t.Fatalf("Failed to unlink: %v", err)
	}

	// Downstream lookup must see the removal immediately.
	active, err := reg.LinkForDownstream("child")
	if err != nil {
		t.Fatalf("Failed to look up downstream: %v", err)
	}
	if active != nil {
		t.Fatal("Expected no active link after unlink")
	}

	relinked, err := reg.LinkDomains("child", "parent", nil)
	if err != nil {
		t.Fatalf("Failed to relink: %v", err)
	}
	if relinked.LinkID != link.LinkID {
		t.Errorf("Expected reactivated row %d, got %d", link.LinkID, relinked.LinkID)
	}
	if relinked.Deleted {
		t.Error("Reactivated link is still marked deleted")
	}
}

// TestCacheInvalidation tests that memoized lookups never serve stale
// results across a mutation
func TestCacheInvalidation(t *testing.T) {
	reg := registry.New(tester.DB(t))

	if _, err := reg.LinkDomains("child", "parent", nil); err != nil {
		t.Fatalf("Failed to create link: %v", err)
	}

	// Prime both caches.
	if _, err := reg.LinkForDownstream("child"); err != nil {
		t.Fatalf("Failed to look up downstream: %v", err)
	}
	if _, err := reg.LinksForUpstream("parent"); err != nil {
		t.Fatalf("Failed to look up upstream: %v", err)
	}

	link, err := reg.LinkForDownstream("child")
	if err != nil {
		t.Fatalf("Failed to look up downstream: %v", err)
	}
	if err := reg.Unlink(link); err != nil {
		t.Fatalf("Failed to unlink: %v", err)
	}

	links, err := reg.LinksForUpstream("parent")
	if err != nil {
		t.Fatalf("Failed to look up upstream: %v", err)
	}
	if len(links) != 0 {
		t.Errorf("Expected no upstream links after unlink, got %d", len(links))
	}
}

// TestIsActiveDownstream tests the partner check used by the linked
// data endpoints
func TestIsActiveDownstream(t *testing.T) {
	reg := registry.New(tester.DB(t))

	if _, err := reg.LinkDomains("child", "parent", nil); err != nil {
		t.Fatalf("Failed to create link: %v", err)
	}

	ok, err := reg.IsActiveDownstream("parent", "child")
	if err != nil {
		t.Fatalf("Failed to check downstream: %v", err)
	}
	if !ok {
		t.Error("Expected child to be an active downstream of parent")
	}

	ok, err = reg.IsActiveDownstream("parent", "stranger")
	if err != nil {
		t.Fatalf("Failed to check downstream: %v", err)
	}
	if ok {
		t.Error("Expected stranger not to be a downstream of parent")
	}
}

// TestTouchLastPull tests that a completed pull is visible to fresh
// lookups
func TestTouchLastPull(t *testing.T) {
	reg := registry.New(tester.DB(t))

	link, err := reg.LinkDomains("child", "parent", nil)
	if err != nil {
		t.Fatalf("Failed to create link: %v", err)
	}

	at := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)
	if err := reg.TouchLastPull(link, at); err != nil {
		t.Fatalf("Failed to touch last pull: %v", err)
	}

	fresh, err := reg.LinkForDownstream("child")
	if err != nil {
		t.Fatalf("Failed to look up downstream: %v", err)
	}
	if fresh.LastPull == nil || !fresh.LastPull.Equal(at) {
		t.Errorf("Expected last pull %v, got %v", at, fresh.LastPull)
	}
}

// TestRemoteLink tests that remote connection details mark a link
// remote
func TestRemoteLink(t *testing.T) {
	reg := registry.New(tester.DB(t))

	link, err := reg.LinkDomains("https://child.example.com", "parent", &registry.RemoteDetails{
		URLBase:  "https://parent.example.com",
		Username: "sync-user",
		APIKey:   "key",
	})
	if err != nil {
		t.Fatalf("Failed to create remote link: %v", err)
	}
	if !link.IsRemote() {
		t.Error("Expected link with remote details to be remote")
	}

	local, err := reg.LinkDomains("local-child", "parent", nil)
	if err != nil {
		t.Fatalf("Failed to create local link: %v", err)
	}
	if local.IsRemote() {
		t.Error("Expected link without remote details to be local")
	}
}
