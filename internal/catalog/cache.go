package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a fetched catalog is served before a refresh.
const DefaultTTL = time.Hour

// Entry is a normalized catalog problem.
type Entry struct {
	ID             int    `json:"id"`
	Title          string `json:"title"`
	TitleSlug      string `json:"title_slug"`
	Difficulty     string `json:"difficulty"`
	URL            string `json:"url"`
	IsPremium      bool   `json:"is_premium"`
	TotalAccepted  int    `json:"total_accepted"`
	TotalSubmitted int    `json:"total_submitted"`
	AcceptanceRate string `json:"acceptance_rate"`
}

// Cache memoizes the full remote catalog and answers O(1) lookups by
// external ID. Entries are kept raw and normalized on every read.
type Cache struct {
	client *Client
	ttl    time.Duration
	now    func() time.Time // swappable in tests

	mu        sync.RWMutex
	raw       []rawEntry
	byID      map[string]rawEntry
	lastFetch time.Time

	refresh singleflight.Group
}

// NewCache creates a Cache over the given client. ttl <= 0 selects DefaultTTL.
func NewCache(client *Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		client: client,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Resolve returns the normalized entry for an external problem ID.
func (c *Cache) Resolve(ctx context.Context, id string) (Entry, error) {
	if err := c.ensureFresh(ctx); err != nil {
		return Entry{}, err
	}

	c.mu.RLock()
	raw, ok := c.byID[id]
	c.mu.RUnlock()
	if !ok {
		return Entry{}, fmt.Errorf("problem #%s: %w", id, ErrNotFound)
	}
	return normalize(raw)
}

// All returns every catalog entry, normalized, from the current snapshot.
func (c *Cache) All(ctx context.Context) ([]Entry, error) {
	if err := c.ensureFresh(ctx); err != nil {
		return nil, err
	}
	return c.normalizeSnapshot(func(rawEntry) bool { return true })
}

// Search returns entries whose title contains query, case-insensitively.
func (c *Cache) Search(ctx context.Context, query string) ([]Entry, error) {
	if err := c.ensureFresh(ctx); err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	return c.normalizeSnapshot(func(e rawEntry) bool {
		return strings.Contains(strings.ToLower(e.Stat.Title), q)
	})
}

func (c *Cache) normalizeSnapshot(keep func(rawEntry) bool) ([]Entry, error) {
	c.mu.RLock()
	snapshot := c.raw // replaced wholesale on refresh, safe to read without the lock
	c.mu.RUnlock()

	entries := make([]Entry, 0, len(snapshot))
	for _, raw := range snapshot {
		if !keep(raw) {
			continue
		}
		e, err := normalize(raw)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ensureFresh refreshes the cache when it has never been populated or the
// last successful fetch is older than the TTL. Concurrent stale callers
// share a single in-flight fetch. A failed refresh degrades to serving the
// previous snapshot when one exists; otherwise it surfaces ErrUnavailable.
func (c *Cache) ensureFresh(ctx context.Context) error {
	if c.fresh() {
		return nil
	}

	_, err, _ := c.refresh.Do("refresh", func() (any, error) {
		// Another caller in the group may have refreshed already.
		if c.fresh() {
			return nil, nil
		}

		entries, err := c.client.FetchAll(ctx)
		if err != nil {
			return nil, err
		}

		byID := make(map[string]rawEntry, len(entries))
		for _, e := range entries {
			byID[strconv.Itoa(e.Stat.FrontendQuestionID)] = e
		}

		c.mu.Lock()
		c.raw = entries
		c.byID = byID
		c.lastFetch = c.now()
		c.mu.Unlock()

		slog.Info("catalog cache refreshed", "problems", len(entries))
		return nil, nil
	})
	if err != nil {
		c.mu.RLock()
		hasCache := c.byID != nil
		c.mu.RUnlock()
		if hasCache {
			slog.Warn("catalog refresh failed, serving stale cache", "error", err)
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (c *Cache) fresh() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byID != nil && !c.lastFetch.IsZero() && c.now().Sub(c.lastFetch) <= c.ttl
}

// difficultyLabels maps remote difficulty levels to display labels.
var difficultyLabels = map[int]string{1: "Easy", 2: "Medium", 3: "Hard"}

func normalize(raw rawEntry) (Entry, error) {
	label, ok := difficultyLabels[raw.Difficulty.Level]
	if !ok {
		return Entry{}, fmt.Errorf("%w: difficulty level %d on problem %d",
			ErrMalformedEntry, raw.Difficulty.Level, raw.Stat.FrontendQuestionID)
	}

	rate := "0%"
	if raw.Stat.TotalSubmitted > 0 {
		rate = fmt.Sprintf("%.1f%%", float64(raw.Stat.TotalAccepted)/float64(raw.Stat.TotalSubmitted)*100)
	}

	return Entry{
		ID:             raw.Stat.FrontendQuestionID,
		Title:          raw.Stat.Title,
		TitleSlug:      raw.Stat.TitleSlug,
		Difficulty:     label,
		URL:            fmt.Sprintf("https://leetcode.com/problems/%s/", raw.Stat.TitleSlug),
		IsPremium:      raw.PaidOnly,
		TotalAccepted:  raw.Stat.TotalAccepted,
		TotalSubmitted: raw.Stat.TotalSubmitted,
		AcceptanceRate: rate,
	}, nil
}
