package remote_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/localnerve/spacelink/internal/models"
	"github.com/localnerve/spacelink/internal/remote"
	"github.com/localnerve/spacelink/internal/types"
)

func newClient(baseURL string, maxRetries int) *remote.Client {
	link := &models.DomainLink{
		LinkedDomain:   "child",
		MasterDomain:   "parent",
		RemoteBaseURL:  baseURL,
		RemoteUsername: "sync@example.com",
		RemoteAPIKey:   "sekrit",
	}
	return remote.NewClient(link, "https://child.example.com", 2*time.Second, maxRetries)
}

// TestGetJSONSuccess tests that a 200 response decodes into out and that
// the request carries the api-key authorization and caller headers.
func TestGetJSONSuccess(t *testing.T) {
	var gotAuth, gotCaller, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotCaller = r.Header.Get(remote.CallerHeader)
		gotAccept = r.Header.Get("Accept")
		if r.URL.Path != "/a/parent/linked/toggles" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("section") != "previews" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"toggles":["widget_dialer"]}`))
	}))
	defer srv.Close()

	client := newClient(srv.URL+"/", 0)
	var out struct {
		Toggles []string `json:"toggles"`
	}
	params := url.Values{"section": {"previews"}}
	if err := client.GetJSON(context.Background(), "/a/parent/linked/toggles", params, &out); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if len(out.Toggles) != 1 || out.Toggles[0] != "widget_dialer" {
		t.Fatalf("unexpected payload %v", out.Toggles)
	}
	if gotAuth != "ApiKey sync@example.com:sekrit" {
		t.Errorf("authorization header = %q", gotAuth)
	}
	if gotCaller != "https://child.example.com" {
		t.Errorf("caller header = %q", gotCaller)
	}
	if gotAccept != "application/json" {
		t.Errorf("accept header = %q", gotAccept)
	}
}

// TestGetJSONStatusMapping tests the error type returned for each
// failure status.
func TestGetJSONStatusMapping(t *testing.T) {
	var status int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(atomic.LoadInt32(&status)))
	}))
	defer srv.Close()
	client := newClient(srv.URL, 0)

	atomic.StoreInt32(&status, http.StatusUnauthorized)
	err := client.GetJSON(context.Background(), "/x", nil, &struct{}{})
	if _, ok := err.(*types.RemoteAuthError); !ok {
		t.Fatalf("401: expected RemoteAuthError, got %T (%v)", err, err)
	}

	atomic.StoreInt32(&status, http.StatusForbidden)
	err = client.GetJSON(context.Background(), "/x", nil, &struct{}{})
	if _, ok := err.(*types.ActionNotPermitted); !ok {
		t.Fatalf("403: expected ActionNotPermitted, got %T (%v)", err, err)
	}

	atomic.StoreInt32(&status, http.StatusBadGateway)
	err = client.GetJSON(context.Background(), "/x", nil, &struct{}{})
	reqErr, ok := err.(*types.RemoteRequestError)
	if !ok {
		t.Fatalf("502: expected RemoteRequestError, got %T (%v)", err, err)
	}
	if reqErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected status 502 in error, got %d", reqErr.StatusCode)
	}
}

// TestGetJSONRetries tests that transient failures are retried up to
// maxRetries and that auth failures are not.
func TestGetJSONRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newClient(srv.URL, 2)
	err := client.GetJSON(context.Background(), "/x", nil, &struct{}{})
	if _, ok := err.(*types.RemoteRequestError); !ok {
		t.Fatalf("expected RemoteRequestError, got %T", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}

	atomic.StoreInt32(&calls, 0)
	authSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer authSrv.Close()

	client = newClient(authSrv.URL, 2)
	if err := client.GetJSON(context.Background(), "/x", nil, &struct{}{}); err == nil {
		t.Fatal("expected auth error")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("auth failure should not retry, got %d attempts", got)
	}
}

// TestGetJSONRecovers tests that a retry after a transient failure can
// succeed.
func TestGetJSONRecovers(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := newClient(srv.URL, 1)
	var out struct {
		OK bool `json:"ok"`
	}
	if err := client.GetJSON(context.Background(), "/x", nil, &out); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if !out.OK {
		t.Fatal("expected decoded payload after retry")
	}
}

// TestGetJSONConnectionFailure tests that a dead endpoint surfaces as a
// RemoteRequestError.
func TestGetJSONConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := newClient(srv.URL, 0)
	err := client.GetJSON(context.Background(), "/x", nil, &struct{}{})
	if _, ok := err.(*types.RemoteRequestError); !ok {
		t.Fatalf("expected RemoteRequestError, got %T (%v)", err, err)
	}
}
