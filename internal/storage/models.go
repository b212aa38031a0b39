package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Problem is a saved practice problem. Title, difficulty, and URL are
// snapshots taken from the catalog at save time and are not re-synced.
type Problem struct {
	ID          int64      `json:"id"`
	ExternalID  int        `json:"external_id"`
	Title       string     `json:"title"`
	Difficulty  string     `json:"difficulty"`
	URL         string     `json:"url"`
	Notes       string     `json:"notes"`
	DateAdded   time.Time  `json:"date_added"`
	ReviewCount int        `json:"review_count"`
	NextReview  *time.Time `json:"next_review"` // nil means not scheduled
}

// Review is one review session for a problem. Append-only.
type Review struct {
	ID         int64     `json:"id"`
	ProblemID  int64     `json:"problem_id"`
	Confidence int       `json:"confidence"`
	Notes      string    `json:"notes"`
	CreatedAt  time.Time `json:"created_at"`
}
