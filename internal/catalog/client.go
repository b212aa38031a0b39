// Package catalog fetches the remote problem catalog and serves cached,
// normalized lookups over it.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when an ID is absent from a fresh catalog.
	ErrNotFound = errors.New("problem not found in catalog")
	// ErrUnavailable is returned when the remote catalog cannot be fetched
	// and no cached copy exists to fall back on.
	ErrUnavailable = errors.New("catalog unavailable")
	// ErrMalformedEntry is returned when a raw entry cannot be normalized.
	ErrMalformedEntry = errors.New("malformed catalog entry")
)

const catalogPath = "/api/problems/algorithms/"

// rawEntry mirrors one element of stat_status_pairs in the remote response.
type rawEntry struct {
	Stat struct {
		FrontendQuestionID int    `json:"frontend_question_id"`
		Title              string `json:"question__title"`
		TitleSlug          string `json:"question__title_slug"`
		TotalAccepted      int    `json:"total_acs"`
		TotalSubmitted     int    `json:"total_submitted"`
	} `json:"stat"`
	Difficulty struct {
		Level int `json:"level"`
	} `json:"difficulty"`
	PaidOnly bool `json:"paid_only"`
}

type catalogResponse struct {
	StatStatusPairs []rawEntry `json:"stat_status_pairs"`
}

// Client fetches the full problem catalog over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client targeting the given catalog base URL.
// The timeout bounds a single full-catalog fetch.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchAll downloads the complete catalog in one request.
func (c *Client) FetchAll(ctx context.Context) ([]rawEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+catalogPath, nil)
	if err != nil {
		return nil, fmt.Errorf("creating catalog request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}

	var body catalogResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding catalog response: %w", err)
	}
	return body.StatStatusPairs, nil
}
