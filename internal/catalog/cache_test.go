package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const sampleCatalog = `{
	"stat_status_pairs": [
		{
			"stat": {
				"frontend_question_id": 1,
				"question__title": "Two Sum",
				"question__title_slug": "two-sum",
				"total_acs": 100,
				"total_submitted": 200
			},
			"difficulty": {"level": 1},
			"paid_only": false
		},
		{
			"stat": {
				"frontend_question_id": 4,
				"question__title": "Median of Two Sorted Arrays",
				"question__title_slug": "median-of-two-sorted-arrays",
				"total_acs": 0,
				"total_submitted": 0
			},
			"difficulty": {"level": 3},
			"paid_only": true
		}
	]
}`

// catalogServer serves a canned catalog payload and counts fetches.
type catalogServer struct {
	srv     *httptest.Server
	fetches atomic.Int64
	fail    atomic.Bool
	payload string
}

func newCatalogServer(t *testing.T, payload string) *catalogServer {
	t.Helper()
	cs := &catalogServer{payload: payload}
	cs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/problems/algorithms/" {
			http.NotFound(w, r)
			return
		}
		cs.fetches.Add(1)
		if cs.fail.Load() {
			http.Error(w, "upstream down", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, cs.payload)
	}))
	t.Cleanup(cs.srv.Close)
	return cs
}

func newTestCache(t *testing.T, payload string) (*Cache, *catalogServer) {
	t.Helper()
	cs := newCatalogServer(t, payload)
	cache := NewCache(NewClient(cs.srv.URL, 5*time.Second), time.Hour)
	return cache, cs
}

func TestResolve_TransformsEntry(t *testing.T) {
	cache, _ := newTestCache(t, sampleCatalog)

	e, err := cache.Resolve(context.Background(), "1")
	if err != nil {
		t.Fatalf("Resolve(1): %v", err)
	}

	if e.ID != 1 || e.Title != "Two Sum" || e.TitleSlug != "two-sum" {
		t.Errorf("entry identity mismatch: %+v", e)
	}
	if e.Difficulty != "Easy" {
		t.Errorf("Difficulty = %q, want Easy", e.Difficulty)
	}
	if e.AcceptanceRate != "50.0%" {
		t.Errorf("AcceptanceRate = %q, want 50.0%%", e.AcceptanceRate)
	}
	if e.URL != "https://leetcode.com/problems/two-sum/" {
		t.Errorf("URL = %q", e.URL)
	}
	if e.IsPremium {
		t.Error("IsPremium = true, want false")
	}
}

func TestResolve_ZeroSubmissions(t *testing.T) {
	cache, _ := newTestCache(t, sampleCatalog)

	e, err := cache.Resolve(context.Background(), "4")
	if err != nil {
		t.Fatalf("Resolve(4): %v", err)
	}
	if e.AcceptanceRate != "0%" {
		t.Errorf("AcceptanceRate = %q, want 0%%", e.AcceptanceRate)
	}
	if e.Difficulty != "Hard" || !e.IsPremium {
		t.Errorf("entry = %+v", e)
	}
}

// TestResolve_CachesWithinTTL verifies a second lookup inside the freshness
// window does not hit the remote again.
func TestResolve_CachesWithinTTL(t *testing.T) {
	cache, cs := newTestCache(t, sampleCatalog)

	ctx := context.Background()
	if _, err := cache.Resolve(ctx, "1"); err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	if _, err := cache.Resolve(ctx, "4"); err != nil {
		t.Fatalf("second Resolve: %v", err)
	}

	if n := cs.fetches.Load(); n != 1 {
		t.Errorf("remote fetches = %d, want 1", n)
	}
}

// TestResolve_RefreshAfterTTL advances a fake clock past the freshness
// window and verifies exactly one extra fetch happens.
func TestResolve_RefreshAfterTTL(t *testing.T) {
	cache, cs := newTestCache(t, sampleCatalog)

	now := time.Now()
	cache.now = func() time.Time { return now }

	ctx := context.Background()
	if _, err := cache.Resolve(ctx, "1"); err != nil {
		t.Fatalf("first Resolve: %v", err)
	}

	now = now.Add(61 * time.Minute)
	if _, err := cache.Resolve(ctx, "1"); err != nil {
		t.Fatalf("Resolve after TTL: %v", err)
	}

	if n := cs.fetches.Load(); n != 2 {
		t.Errorf("remote fetches = %d, want 2", n)
	}
}

func TestResolve_NotFound(t *testing.T) {
	cache, _ := newTestCache(t, sampleCatalog)

	_, err := cache.Resolve(context.Background(), "9999")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve(9999) error = %v, want ErrNotFound", err)
	}
}

// TestResolve_ServesStaleOnFetchFailure: once a snapshot exists, a failed
// refresh degrades to serving it rather than erroring.
func TestResolve_ServesStaleOnFetchFailure(t *testing.T) {
	cache, cs := newTestCache(t, sampleCatalog)

	now := time.Now()
	cache.now = func() time.Time { return now }

	ctx := context.Background()
	if _, err := cache.Resolve(ctx, "1"); err != nil {
		t.Fatalf("first Resolve: %v", err)
	}

	cs.fail.Store(true)
	now = now.Add(2 * time.Hour)

	e, err := cache.Resolve(ctx, "1")
	if err != nil {
		t.Fatalf("Resolve with failing remote = %v, want stale data", err)
	}
	if e.Title != "Two Sum" {
		t.Errorf("stale entry = %+v", e)
	}
}

// TestResolve_UnavailableWithoutCache: with no snapshot to fall back on,
// a failed fetch surfaces ErrUnavailable.
func TestResolve_UnavailableWithoutCache(t *testing.T) {
	cache, cs := newTestCache(t, sampleCatalog)
	cs.fail.Store(true)

	_, err := cache.Resolve(context.Background(), "1")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Resolve error = %v, want ErrUnavailable", err)
	}
}

// TestResolve_FetchTimeout: a remote slower than the client timeout counts
// as unavailable.
func TestResolve_FetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		fmt.Fprint(w, sampleCatalog)
	}))
	t.Cleanup(srv.Close)

	cache := NewCache(NewClient(srv.URL, 50*time.Millisecond), time.Hour)
	_, err := cache.Resolve(context.Background(), "1")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Resolve with slow remote = %v, want ErrUnavailable", err)
	}
}

func TestResolve_MalformedDifficulty(t *testing.T) {
	payload := `{"stat_status_pairs": [{
		"stat": {"frontend_question_id": 7, "question__title": "Broken", "question__title_slug": "broken", "total_acs": 1, "total_submitted": 2},
		"difficulty": {"level": 4},
		"paid_only": false
	}]}`
	cache, _ := newTestCache(t, payload)

	_, err := cache.Resolve(context.Background(), "7")
	if !errors.Is(err, ErrMalformedEntry) {
		t.Errorf("Resolve error = %v, want ErrMalformedEntry", err)
	}
}

func TestSearch_CaseInsensitive(t *testing.T) {
	cache, _ := newTestCache(t, sampleCatalog)

	results, err := cache.Search(context.Background(), "two sum")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Title != "Two Sum" {
		t.Errorf("Search(two sum) = %+v, want [Two Sum]", results)
	}

	results, err = cache.Search(context.Background(), "TWO")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Search(TWO) returned %d results, want 2", len(results))
	}
}

func TestAll(t *testing.T) {
	cache, _ := newTestCache(t, sampleCatalog)

	all, err := cache.All(context.Background())
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("All returned %d entries, want 2", len(all))
	}
}

// TestConcurrentColdLookupsShareOneFetch: simultaneous lookups against a
// cold cache must collapse into a single remote fetch.
func TestConcurrentColdLookupsShareOneFetch(t *testing.T) {
	var fetches atomic.Int64
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		time.Sleep(50 * time.Millisecond) // widen the race window
		fmt.Fprint(w, sampleCatalog)
	}))
	t.Cleanup(slow.Close)

	cache := NewCache(NewClient(slow.URL, 5*time.Second), time.Hour)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Resolve(context.Background(), "1"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent Resolve: %v", err)
	}

	if n := fetches.Load(); n != 1 {
		t.Errorf("remote fetches = %d, want 1", n)
	}
}
