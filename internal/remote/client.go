package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/localnerve/spacelink/internal/models"
	"github.com/localnerve/spacelink/internal/types"
)

// CallerHeader carries the canonical home URL of the requesting
// downstream installation. It is consumed server-side purely by the
// partner access-control middleware.
const CallerHeader = "X-Spacelink-Requester"

// Client performs authenticated GETs against a remote upstream
// installation. Timeout and retry count come from configuration; the
// upstream design specified neither, so no policy is baked in here.
type Client struct {
	http       *http.Client
	baseURL    string
	username   string
	apiKey     string
	callerURL  string
	maxRetries int
}

// NewClient builds a Client for a remote link. callerURL identifies
// this (downstream) installation to the upstream partner check.
func NewClient(link *models.DomainLink, callerURL string, timeout time.Duration, maxRetries int) *Client {
	return &Client{
		http:       &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(link.RemoteBaseURL, "/"),
		username:   link.RemoteUsername,
		apiKey:     link.RemoteAPIKey,
		callerURL:  callerURL,
		maxRetries: maxRetries,
	}
}

// GetJSON issues an authenticated GET for path with params and decodes
// the JSON response body into out. Connection failures surface as
// RemoteRequestError, 401 as RemoteAuthError, 403 as ActionNotPermitted,
// and any other non-200 as RemoteRequestError. Every failure is logged
// with the target URL and parameters; the API key is never logged.
func (c *Client) GetJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		lastErr = c.getJSONOnce(ctx, target, params, out)
		if lastErr == nil {
			return nil
		}
		// Auth and permission failures are not transient.
		if _, ok := lastErr.(*types.RemoteAuthError); ok {
			return lastErr
		}
		if _, ok := lastErr.(*types.ActionNotPermitted); ok {
			return lastErr
		}
	}
	return lastErr
}

func (c *Client) getJSONOnce(ctx context.Context, target string, params url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return &types.RemoteRequestError{URL: target, Err: err}
	}
	req.Header.Set("Authorization", fmt.Sprintf("ApiKey %s:%s", c.username, c.apiKey))
	req.Header.Set(CallerHeader, c.callerURL)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logFailure(target, params, 0, err)
		return &types.RemoteRequestError{URL: target, Err: errors.Wrap(err, "remote get")}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		c.logFailure(target, params, resp.StatusCode, nil)
		return &types.RemoteAuthError{URL: target}
	case resp.StatusCode == http.StatusForbidden:
		c.logFailure(target, params, resp.StatusCode, nil)
		return &types.ActionNotPermitted{URL: target}
	case resp.StatusCode != http.StatusOK:
		c.logFailure(target, params, resp.StatusCode, nil)
		return &types.RemoteRequestError{URL: target, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.logFailure(target, params, resp.StatusCode, err)
		return &types.RemoteRequestError{URL: target, Err: errors.Wrap(err, "decode remote response")}
	}
	return nil
}

func (c *Client) logFailure(target string, params url.Values, status int, err error) {
	fields := logrus.Fields{
		"url":    target,
		"params": params.Encode(),
	}
	if status != 0 {
		fields["status"] = status
	}
	entry := logrus.WithFields(fields)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Warn("remote sync request failed")
}
