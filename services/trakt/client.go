package trakt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	traktAPIBaseURL = "https://api.trakt.tv"
	traktAPIVersion = "2"
)

// WatchedAtReleased is the sentinel watched_at value meaning "at the item's
// original release date".
const WatchedAtReleased = "released"

// Client handles Trakt API interactions for OAuth and library sync.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	clientID     string
	clientSecret string
}

// DeviceCode represents the response from /oauth/device/code
type DeviceCode struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURL string `json:"verification_url"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

// Tokens represents the response from /oauth/device/token
type Tokens struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope,omitempty"`
	CreatedAt    int64  `json:"created_at"`
}

// IDs holds external identifiers for a media item
type IDs struct {
	Trakt int    `json:"trakt,omitempty"`
	Slug  string `json:"slug,omitempty"`
	IMDB  string `json:"imdb,omitempty"`
	TMDB  int    `json:"tmdb,omitempty"`
	TVDB  int    `json:"tvdb,omitempty"`
}

// IsZero reports whether no identifier namespace carries a value.
func (i IDs) IsZero() bool {
	return i == IDs{}
}

// SyncEntry is one show or movie in a sync payload. History entries carry a
// watched_at value; show history entries may carry a season breakdown.
type SyncEntry struct {
	Title     string       `json:"title"`
	IDs       IDs          `json:"ids"`
	WatchedAt string       `json:"watched_at,omitempty"`
	Seasons   []SyncSeason `json:"seasons,omitempty"`
}

// SyncSeason represents a season with optional explicit episodes
type SyncSeason struct {
	Number    int           `json:"number"`
	WatchedAt string        `json:"watched_at,omitempty"`
	Episodes  []SyncEpisode `json:"episodes,omitempty"`
}

// SyncEpisode represents one episode within a season entry
type SyncEpisode struct {
	Number    int    `json:"number"`
	WatchedAt string `json:"watched_at,omitempty"`
}

// SyncPayload is the request body for /sync/history and /sync/watchlist
type SyncPayload struct {
	Shows  []SyncEntry `json:"shows"`
	Movies []SyncEntry `json:"movies"`
}

// IsEmpty reports whether the payload carries no entries at all.
func (p SyncPayload) IsEmpty() bool {
	return len(p.Shows) == 0 && len(p.Movies) == 0
}

// SyncCounts summarizes per-type outcomes in a sync response
type SyncCounts struct {
	Movies   int `json:"movies"`
	Shows    int `json:"shows"`
	Episodes int `json:"episodes"`
}

// SyncNotFound lists payload entries Trakt could not match
type SyncNotFound struct {
	Movies   []json.RawMessage `json:"movies,omitempty"`
	Shows    []json.RawMessage `json:"shows,omitempty"`
	Episodes []json.RawMessage `json:"episodes,omitempty"`
}

// SyncResponse represents the response from the sync endpoints
type SyncResponse struct {
	Added    *SyncCounts   `json:"added,omitempty"`
	Updated  *SyncCounts   `json:"updated,omitempty"`
	Existing *SyncCounts   `json:"existing,omitempty"`
	NotFound *SyncNotFound `json:"not_found,omitempty"`
}

// NewClient creates a new Trakt API client
func NewClient(clientID, clientSecret string) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		baseURL:      traktAPIBaseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// SetBaseURL overrides the upstream API base URL. Used by tests.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = strings.TrimRight(u, "/")
}

// UpdateCredentials updates the client credentials
func (c *Client) UpdateCredentials(clientID, clientSecret string) {
	c.clientID = clientID
	c.clientSecret = clientSecret
}

// HasSecret reports whether a client secret is configured. The device-token
// exchange cannot run without one.
func (c *Client) HasSecret() bool {
	return c.clientSecret != ""
}

// setTraktHeaders adds required Trakt API headers to a request
func (c *Client) setTraktHeaders(req *http.Request, accessToken string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("trakt-api-version", traktAPIVersion)
	req.Header.Set("trakt-api-key", c.clientID)
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, accessToken string) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.setTraktHeaders(req, accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trakt api request: %w", err)
	}
	return resp, nil
}

// RequestDeviceCode initiates the device code OAuth flow
func (c *Client) RequestDeviceCode(ctx context.Context) (*DeviceCode, error) {
	resp, err := c.postJSON(ctx, "/oauth/device/code", map[string]string{
		"client_id": c.clientID,
	}, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("trakt device code failed: %s - %s", resp.Status, string(respBody))
	}

	var code DeviceCode
	if err := json.NewDecoder(resp.Body).Decode(&code); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &code, nil
}

// ExchangeDeviceCode attempts one token exchange for the given device code.
// A 400 response is classified into a *DeviceFlowError so callers can react
// to authorization_pending, slow_down and the other protocol signals.
func (c *Client) ExchangeDeviceCode(ctx context.Context, deviceCode string) (*Tokens, error) {
	resp, err := c.postJSON(ctx, "/oauth/device/token", map[string]string{
		"code":          deviceCode,
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
	}, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var tokens Tokens
		if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return &tokens, nil
	case http.StatusBadRequest:
		return nil, decodeDeviceFlowError(resp)
	default:
		return nil, fmt.Errorf("unable to exchange device code: %d", resp.StatusCode)
	}
}

// decodeDeviceFlowError parses a 400 token-exchange body into a typed error.
// Unparseable bodies fall back to server_error.
func decodeDeviceFlowError(resp *http.Response) *DeviceFlowError {
	flowErr := &DeviceFlowError{
		Code:    CodeServerError,
		Message: resp.Status,
	}

	var payload struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return flowErr
	}
	if payload.Error != "" {
		flowErr.Code = classifyDeviceFlowCode(payload.Error)
	}
	if payload.ErrorDescription != "" {
		flowErr.Message = payload.ErrorDescription
	}
	return flowErr
}

// syncTargets is the closed set of sync sub-paths this client will hit.
var syncTargets = map[string]bool{
	"/sync/history":   true,
	"/sync/watchlist": true,
}

// AllowedSyncTarget reports whether the given path may be forwarded to the
// Trakt sync API.
func AllowedSyncTarget(target string) bool {
	return syncTargets[target]
}

func (c *Client) sync(ctx context.Context, target string, payload SyncPayload, accessToken string) (*SyncResponse, error) {
	if !AllowedSyncTarget(target) {
		return nil, fmt.Errorf("unsupported trakt sync target %q", target)
	}

	resp, err := c.postJSON(ctx, target, payload, accessToken)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return &SyncResponse{}, nil
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("trakt sync %s failed: %s - %s", target, resp.Status, string(respBody))
	}

	var syncResp SyncResponse
	if err := json.NewDecoder(resp.Body).Decode(&syncResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &syncResp, nil
}

// SyncHistory adds the payload to the user's watch history on Trakt
func (c *Client) SyncHistory(ctx context.Context, payload SyncPayload, accessToken string) (*SyncResponse, error) {
	return c.sync(ctx, "/sync/history", payload, accessToken)
}

// SyncWatchlist adds the payload to the user's watchlist on Trakt
func (c *Client) SyncWatchlist(ctx context.Context, payload SyncPayload, accessToken string) (*SyncResponse, error) {
	return c.sync(ctx, "/sync/watchlist", payload, accessToken)
}

// UpstreamResponse is a raw pass-through result used by the relay handlers:
// the upstream status plus the body, flagged as JSON or plain text.
type UpstreamResponse struct {
	Status int
	JSON   bool
	Body   []byte
}

// Forward POSTs the given body to an upstream Trakt path and returns the
// response verbatim; the relay decides how to re-encode it for the browser.
// The OAuth endpoints carry the client id in the body, so clientID may be
// empty; the sync endpoints need it as the trakt-api-key header.
func (c *Client) Forward(ctx context.Context, path, clientID, accessToken string, payload any) (*UpstreamResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if clientID != "" {
		req.Header.Set("trakt-api-version", traktAPIVersion)
		req.Header.Set("trakt-api-key", clientID)
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trakt api request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read upstream body: %w", err)
	}

	return &UpstreamResponse{
		Status: resp.StatusCode,
		JSON:   strings.Contains(resp.Header.Get("Content-Type"), "application/json") && json.Valid(raw),
		Body:   raw,
	}, nil
}
