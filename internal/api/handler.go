package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/grindapp/grind/internal/catalog"
	"github.com/grindapp/grind/internal/schedule"
	"github.com/grindapp/grind/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Deps holds the collaborators for the HTTP surface.
type Deps struct {
	Store   *storage.Store
	Catalog *catalog.Cache
	Token   string
	Now     func() time.Time // defaults to time.Now
}

// NewHandler returns the tracker's HTTP API. Everything except /health
// requires the bearer token.
func NewHandler(deps Deps) http.Handler {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	r := chi.NewRouter()
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/catalog/problems", handleSearchCatalog(deps))
		r.Get("/catalog/problems/{id}", handleLookupProblem(deps))

		r.Post("/problems", handleSaveProblem(deps))
		r.Get("/problems", handleListProblems(deps))
		r.Get("/problems/due", handleDueProblems(deps))
		r.Get("/problems/{id}", handleGetProblem(deps))
		r.Patch("/problems/{id}", handleUpdateNotes(deps))
		r.Delete("/problems/{id}", handleDeleteProblem(deps))
		r.Post("/problems/{id}/review", handleRecordReview(deps))
		r.Get("/problems/{id}/reviews", handleListReviews(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// --- catalog ---

func handleLookupProblem(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		entry, err := deps.Catalog.Resolve(r.Context(), id)
		if err != nil {
			catalogError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entry)
	}
}

func handleSearchCatalog(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")
		limit := parseIntParam(r, "limit", 100, 1000)

		var entries []catalog.Entry
		var err error
		if query == "" {
			entries, err = deps.Catalog.All(r.Context())
		} else {
			entries, err = deps.Catalog.Search(r.Context(), query)
		}
		if err != nil {
			catalogError(w, err)
			return
		}

		if len(entries) > limit {
			entries = entries[:limit]
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entries)
	}
}

// catalogError maps catalog sentinel errors onto HTTP responses.
func catalogError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "%v", err)
	case errors.Is(err, catalog.ErrUnavailable):
		httpError(w, http.StatusBadGateway, "catalog_unavailable", "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

// --- problems ---

type saveProblemRequest struct {
	ProblemID int    `json:"problem_id"`
	Notes     string `json:"notes"`
}

func handleSaveProblem(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req saveProblemRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.ProblemID <= 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "problem_id is required")
			return
		}

		entry, err := deps.Catalog.Resolve(r.Context(), strconv.Itoa(req.ProblemID))
		if err != nil {
			catalogError(w, err)
			return
		}

		// Snapshot the catalog fields; first review is seeded a week out.
		now := deps.Now()
		next := now.AddDate(0, 0, schedule.DefaultIntervalDays)
		saved, err := deps.Store.SaveProblem(storage.Problem{
			ExternalID: entry.ID,
			Title:      entry.Title,
			Difficulty: entry.Difficulty,
			URL:        entry.URL,
			Notes:      req.Notes,
			DateAdded:  now,
			NextReview: &next,
		})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save problem: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(saved)
	}
}

func handleListProblems(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		problems, err := deps.Store.ListProblems()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list problems: %v", err)
			return
		}
		if problems == nil {
			problems = []storage.Problem{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(problems)
	}
}

func handleDueProblems(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		problems, err := deps.Store.ListDueProblems(deps.Now())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list due problems: %v", err)
			return
		}
		if problems == nil {
			problems = []storage.Problem{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(problems)
	}
}

func handleGetProblem(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := problemID(w, r)
		if !ok {
			return
		}

		problem, err := deps.Store.GetProblem(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "problem not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get problem: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(problem)
	}
}

type updateNotesRequest struct {
	Notes string `json:"notes"`
}

func handleUpdateNotes(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := problemID(w, r)
		if !ok {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req updateNotesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		problem, err := deps.Store.UpdateNotes(id, req.Notes)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "problem not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to update notes: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(problem)
	}
}

func handleDeleteProblem(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := problemID(w, r)
		if !ok {
			return
		}

		err := deps.Store.DeleteProblem(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "problem not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete problem: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
	}
}

// --- reviews ---

type recordReviewRequest struct {
	Confidence int    `json:"confidence"`
	Notes      string `json:"notes"`
}

type recordReviewResponse struct {
	Review  storage.Review  `json:"review"`
	Problem storage.Problem `json:"problem"`
}

func handleRecordReview(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := problemID(w, r)
		if !ok {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req recordReviewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		// Out-of-range confidence still schedules; the rule falls back to a week.
		next := schedule.NextReview(deps.Now(), req.Confidence)

		review, problem, err := deps.Store.RecordReview(id, req.Confidence, req.Notes, next)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "problem not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to record review: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(recordReviewResponse{Review: review, Problem: problem})
	}
}

func handleListReviews(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := problemID(w, r)
		if !ok {
			return
		}

		if _, err := deps.Store.GetProblem(id); errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "problem not found")
			return
		} else if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get problem: %v", err)
			return
		}

		reviews, err := deps.Store.ListReviews(id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list reviews: %v", err)
			return
		}
		if reviews == nil {
			reviews = []storage.Review{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(reviews)
	}
}

// --- helpers ---

func problemID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid problem id")
		return 0, false
	}
	return id, true
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
