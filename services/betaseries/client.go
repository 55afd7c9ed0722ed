package betaseries

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const betaSeriesAPIBaseURL = "https://api.betaseries.com"

// ErrAPIKeyRequired is returned when a client is built without an API key.
var ErrAPIKeyRequired = errors.New("betaseries api key is required")

// Credentials authenticate requests against the BetaSeries API. The token is
// optional; member-scoped endpoints need it, the display endpoints do not.
type Credentials struct {
	APIKey string `json:"apiKey"`
	Token  string `json:"token,omitempty"`
}

// RequestError is a non-2xx response from the BetaSeries API. The body is
// kept verbatim so per-row failures can surface whatever the API said.
type RequestError struct {
	Status int
	Body   string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("betaseries request failed: %d - %s", e.Status, e.Body)
}

// ShowIdentifiers is the cross-service identifier set for one show. Any of
// the external ids may be absent; BetaSeries does not guarantee coverage.
type ShowIdentifiers struct {
	ID     int
	Title  string
	TVDBID int
	IMDBID string
	Slug   string
}

// MovieIdentifiers is the cross-service identifier set for one movie.
type MovieIdentifiers struct {
	ID     int
	Title  string
	TMDBID int
	IMDBID string
}

// Client resolves BetaSeries catalog records. One request per lookup, no
// caching, no retries: the orchestrator calls it sequentially per row.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	credentials Credentials
}

// NewClient creates a BetaSeries API client for the given credentials.
func NewClient(credentials Credentials) (*Client, error) {
	if strings.TrimSpace(credentials.APIKey) == "" {
		return nil, ErrAPIKeyRequired
	}
	return &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		baseURL:     betaSeriesAPIBaseURL,
		credentials: credentials,
	}, nil
}

// SetBaseURL overrides the upstream API base URL. Used by tests.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = strings.TrimRight(u, "/")
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-BetaSeries-Key", c.credentials.APIKey)
	if c.credentials.Token != "" {
		req.Header.Set("X-BetaSeries-Token", c.credentials.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("betaseries api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return &RequestError{Status: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ShowIdentifiers fetches a show by its BetaSeries id and extracts the
// external identifiers Trakt can match on.
func (c *Client) ShowIdentifiers(ctx context.Context, showID string) (ShowIdentifiers, error) {
	var data struct {
		Show struct {
			ID       int    `json:"id"`
			Title    string `json:"title"`
			TheTVDB  int    `json:"thetvdb_id"`
			IMDB     string `json:"imdb_id"`
			Slug     string `json:"slug"`
		} `json:"show"`
	}

	endpoint := "/shows/display?id=" + url.QueryEscape(showID)
	if err := c.get(ctx, endpoint, &data); err != nil {
		return ShowIdentifiers{}, err
	}

	return ShowIdentifiers{
		ID:     data.Show.ID,
		Title:  data.Show.Title,
		TVDBID: data.Show.TheTVDB,
		IMDBID: data.Show.IMDB,
		Slug:   data.Show.Slug,
	}, nil
}

// MovieIdentifiers fetches a movie by its BetaSeries id and extracts the
// external identifiers Trakt can match on.
func (c *Client) MovieIdentifiers(ctx context.Context, movieID string) (MovieIdentifiers, error) {
	var data struct {
		Movie struct {
			ID    int    `json:"id"`
			Title string `json:"title"`
			TMDB  int    `json:"tmdb_id"`
			IMDB  string `json:"imdb_id"`
		} `json:"movie"`
	}

	endpoint := "/movies/movie?id=" + url.QueryEscape(movieID)
	if err := c.get(ctx, endpoint, &data); err != nil {
		return MovieIdentifiers{}, err
	}

	return MovieIdentifiers{
		ID:     data.Movie.ID,
		Title:  data.Movie.Title,
		TMDBID: data.Movie.TMDB,
		IMDBID: data.Movie.IMDB,
	}, nil
}
