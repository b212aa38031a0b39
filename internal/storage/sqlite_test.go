package storage

import (
	"errors"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func saveTestProblem(t *testing.T, s *Store, externalID int, title string) Problem {
	t.Helper()
	next := time.Now().UTC().Add(7 * 24 * time.Hour)
	p, err := s.SaveProblem(Problem{
		ExternalID: externalID,
		Title:      title,
		Difficulty: "Easy",
		URL:        "https://leetcode.com/problems/two-sum/",
		Notes:      "hash map",
		DateAdded:  time.Now().UTC(),
		NextReview: &next,
	})
	if err != nil {
		t.Fatalf("SaveProblem failed: %v", err)
	}
	return p
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}

	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

// TestIndexesExist verifies the indexes created by the initial migration.
func TestIndexesExist(t *testing.T) {
	s := openTestStore(t)

	indexes := []string{"idx_problems_external_id", "idx_problems_next_review", "idx_reviews_problem_id"}
	for _, idx := range indexes {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&count)
		if err != nil {
			t.Fatalf("querying sqlite_master for %q: %v", idx, err)
		}
		if count != 1 {
			t.Errorf("index %q not found in sqlite_master", idx)
		}
	}
}

// TestSaveAndGetProblem saves a problem and retrieves it by ID.
func TestSaveAndGetProblem(t *testing.T) {
	s := openTestStore(t)

	saved := saveTestProblem(t, s, 1, "Two Sum")
	if saved.ID == 0 {
		t.Fatal("SaveProblem did not assign an ID")
	}

	got, err := s.GetProblem(saved.ID)
	if err != nil {
		t.Fatalf("GetProblem(%d) failed: %v", saved.ID, err)
	}
	if got.ExternalID != 1 || got.Title != "Two Sum" || got.Difficulty != "Easy" {
		t.Errorf("round-trip mismatch: got %+v", got)
	}
	if got.ReviewCount != 0 {
		t.Errorf("ReviewCount = %d, want 0", got.ReviewCount)
	}
	if got.NextReview == nil {
		t.Error("NextReview = nil, want set")
	}
}

func TestGetProblem_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetProblem(42)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetProblem(42) error = %v, want ErrNotFound", err)
	}
}

// TestProblemWithoutNextReview verifies the unscheduled state round-trips as nil.
func TestProblemWithoutNextReview(t *testing.T) {
	s := openTestStore(t)

	p, err := s.SaveProblem(Problem{
		ExternalID: 2,
		Title:      "Add Two Numbers",
		Difficulty: "Medium",
		URL:        "https://leetcode.com/problems/add-two-numbers/",
		DateAdded:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("SaveProblem failed: %v", err)
	}
	if p.NextReview != nil {
		t.Errorf("NextReview = %v, want nil", p.NextReview)
	}
}

// TestListProblems verifies newest-first ordering.
func TestListProblems(t *testing.T) {
	s := openTestStore(t)

	old := time.Now().UTC().Add(-48 * time.Hour)
	if _, err := s.SaveProblem(Problem{ExternalID: 1, Title: "Two Sum", Difficulty: "Easy", URL: "u", DateAdded: old}); err != nil {
		t.Fatalf("SaveProblem: %v", err)
	}
	if _, err := s.SaveProblem(Problem{ExternalID: 2, Title: "Add Two Numbers", Difficulty: "Medium", URL: "u", DateAdded: time.Now().UTC()}); err != nil {
		t.Fatalf("SaveProblem: %v", err)
	}

	problems, err := s.ListProblems()
	if err != nil {
		t.Fatalf("ListProblems: %v", err)
	}
	if len(problems) != 2 {
		t.Fatalf("len(problems) = %d, want 2", len(problems))
	}
	if problems[0].Title != "Add Two Numbers" {
		t.Errorf("first problem = %q, want newest first", problems[0].Title)
	}
}

// TestListDueProblems returns only problems at or past their next review.
func TestListDueProblems(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()

	overdue := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)
	if _, err := s.SaveProblem(Problem{ExternalID: 1, Title: "Overdue", Difficulty: "Easy", URL: "u", DateAdded: now, NextReview: &overdue}); err != nil {
		t.Fatalf("SaveProblem: %v", err)
	}
	if _, err := s.SaveProblem(Problem{ExternalID: 2, Title: "Future", Difficulty: "Easy", URL: "u", DateAdded: now, NextReview: &future}); err != nil {
		t.Fatalf("SaveProblem: %v", err)
	}
	if _, err := s.SaveProblem(Problem{ExternalID: 3, Title: "Unscheduled", Difficulty: "Easy", URL: "u", DateAdded: now}); err != nil {
		t.Fatalf("SaveProblem: %v", err)
	}

	due, err := s.ListDueProblems(now)
	if err != nil {
		t.Fatalf("ListDueProblems: %v", err)
	}
	if len(due) != 1 || due[0].Title != "Overdue" {
		t.Errorf("due = %+v, want only the overdue problem", due)
	}
}

func TestUpdateNotes(t *testing.T) {
	s := openTestStore(t)
	p := saveTestProblem(t, s, 1, "Two Sum")

	updated, err := s.UpdateNotes(p.ID, "use a map of value -> index")
	if err != nil {
		t.Fatalf("UpdateNotes: %v", err)
	}
	if updated.Notes != "use a map of value -> index" {
		t.Errorf("Notes = %q after update", updated.Notes)
	}

	if _, err := s.UpdateNotes(999, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateNotes(999) error = %v, want ErrNotFound", err)
	}
}

// TestRecordReview verifies the transactional review write: review row
// appended, review_count incremented, next_review replaced.
func TestRecordReview(t *testing.T) {
	s := openTestStore(t)
	p := saveTestProblem(t, s, 1, "Two Sum")

	next := time.Now().UTC().AddDate(0, 0, 1)
	review, updated, err := s.RecordReview(p.ID, 1, "forgot everything", next)
	if err != nil {
		t.Fatalf("RecordReview: %v", err)
	}

	if review.ProblemID != p.ID || review.Confidence != 1 || review.Notes != "forgot everything" {
		t.Errorf("review = %+v", review)
	}
	if updated.ReviewCount != 1 {
		t.Errorf("ReviewCount = %d, want 1", updated.ReviewCount)
	}
	if updated.NextReview == nil || !updated.NextReview.Equal(next.Truncate(time.Second)) {
		t.Errorf("NextReview = %v, want %v", updated.NextReview, next)
	}

	reviews, err := s.ListReviews(p.ID)
	if err != nil {
		t.Fatalf("ListReviews: %v", err)
	}
	if len(reviews) != 1 {
		t.Fatalf("len(reviews) = %d, want 1", len(reviews))
	}
}

// TestRecordReview_CountOnlyIncreases runs several reviews and checks the
// count is monotonic while next_review is simply replaced.
func TestRecordReview_CountOnlyIncreases(t *testing.T) {
	s := openTestStore(t)
	p := saveTestProblem(t, s, 1, "Two Sum")

	far := time.Now().UTC().AddDate(0, 0, 30)
	near := time.Now().UTC().AddDate(0, 0, 1)

	_, updated, err := s.RecordReview(p.ID, 5, "", far)
	if err != nil {
		t.Fatalf("RecordReview: %v", err)
	}
	if updated.ReviewCount != 1 {
		t.Fatalf("ReviewCount = %d, want 1", updated.ReviewCount)
	}

	// A low-confidence review may shorten the interval relative to the prior one.
	_, updated, err = s.RecordReview(p.ID, 1, "", near)
	if err != nil {
		t.Fatalf("RecordReview: %v", err)
	}
	if updated.ReviewCount != 2 {
		t.Errorf("ReviewCount = %d, want 2", updated.ReviewCount)
	}
	if updated.NextReview == nil || !updated.NextReview.Before(far) {
		t.Errorf("NextReview = %v, want earlier than %v", updated.NextReview, far)
	}
}

// TestRecordReview_MissingProblem verifies nothing is written for an unknown ID.
func TestRecordReview_MissingProblem(t *testing.T) {
	s := openTestStore(t)

	_, _, err := s.RecordReview(12345, 3, "", time.Now().UTC())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("RecordReview error = %v, want ErrNotFound", err)
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM reviews").Scan(&count); err != nil {
		t.Fatalf("counting reviews: %v", err)
	}
	if count != 0 {
		t.Errorf("reviews table has %d rows after failed RecordReview, want 0", count)
	}
}

// TestDeleteProblem removes the problem and its reviews.
func TestDeleteProblem(t *testing.T) {
	s := openTestStore(t)
	p := saveTestProblem(t, s, 1, "Two Sum")

	if _, _, err := s.RecordReview(p.ID, 3, "", time.Now().UTC().AddDate(0, 0, 7)); err != nil {
		t.Fatalf("RecordReview: %v", err)
	}

	if err := s.DeleteProblem(p.ID); err != nil {
		t.Fatalf("DeleteProblem: %v", err)
	}
	if _, err := s.GetProblem(p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetProblem after delete = %v, want ErrNotFound", err)
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM reviews WHERE problem_id = ?", p.ID).Scan(&count); err != nil {
		t.Fatalf("counting reviews: %v", err)
	}
	if count != 0 {
		t.Errorf("reviews not cascade-deleted: %d remain", count)
	}

	if err := s.DeleteProblem(p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteProblem = %v, want ErrNotFound", err)
	}
}
