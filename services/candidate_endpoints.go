package services

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/crispai/crisp/backend/models"
	"github.com/crispai/crisp/backend/repository"
)

type CandidateEndpoints struct {
	repo Store
}

func NewCandidateEndpoints(repo Store) *CandidateEndpoints {
	return &CandidateEndpoints{repo: repo}
}

func (e *CandidateEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/candidates", func(r chi.Router) {
		// Candidates can see their own history; everything else is
		// reviewer-only.
		r.Get("/my/interviews", e.MyInterviewsHandler)

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(models.RoleInterviewer))
			r.Get("/", e.ListCandidatesHandler)
			r.Get("/{id}", e.GetCandidateHandler)
			r.Put("/{id}/enable-reattempt", e.EnableReattemptHandler)
			r.Put("/{id}/disable-reattempt", e.DisableReattemptHandler)
		})
	})
}

func (e *CandidateEndpoints) ListCandidatesHandler(w http.ResponseWriter, r *http.Request) {
	query := repository.CandidateQuery{
		Search:    r.URL.Query().Get("search"),
		SortBy:    r.URL.Query().Get("sortBy"),
		SortOrder: r.URL.Query().Get("sortOrder"),
		Page:      queryInt(r, "page", 1),
		Limit:     queryInt(r, "limit", 10),
	}

	interviews, total, err := e.repo.ListCompletedInterviews(r.Context(), query)
	if err != nil {
		http.Error(w, "Failed to list candidates", http.StatusInternalServerError)
		return
	}
	if interviews == nil {
		interviews = []models.Interview{}
	}

	pages := (total + int64(query.Limit) - 1) / int64(query.Limit)
	response := map[string]interface{}{
		"candidates": interviews,
		"pagination": map[string]interface{}{
			"current":  query.Page,
			"pageSize": query.Limit,
			"total":    total,
			"pages":    pages,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (e *CandidateEndpoints) GetCandidateHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseObjectID(w, r)
	if !ok {
		return
	}

	interview, err := e.repo.GetInterview(r.Context(), id)
	if err != nil {
		http.Error(w, "Failed to get interview", http.StatusInternalServerError)
		return
	}
	if interview == nil {
		http.Error(w, "Interview not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"interview": interview})
}

func (e *CandidateEndpoints) EnableReattemptHandler(w http.ResponseWriter, r *http.Request) {
	e.setReattempt(w, r, true)
}

func (e *CandidateEndpoints) DisableReattemptHandler(w http.ResponseWriter, r *http.Request) {
	e.setReattempt(w, r, false)
}

// setReattempt flips the reattempt flag. The path id is tried as an
// interview id first, then as a candidate id resolving to that candidate's
// latest interview.
func (e *CandidateEndpoints) setReattempt(w http.ResponseWriter, r *http.Request, allow bool) {
	id, ok := parseObjectID(w, r)
	if !ok {
		return
	}

	target, err := e.repo.GetInterview(r.Context(), id)
	if err != nil {
		http.Error(w, "Failed to resolve interview", http.StatusInternalServerError)
		return
	}
	if target == nil {
		target, err = e.repo.GetLatestInterviewByCandidate(r.Context(), id)
		if err != nil {
			http.Error(w, "Failed to resolve interview", http.StatusInternalServerError)
			return
		}
	}
	if target == nil {
		http.Error(w, "Interview not found", http.StatusNotFound)
		return
	}

	updated, err := e.repo.SetReattempt(r.Context(), target.ID, allow)
	if err != nil {
		http.Error(w, "Failed to update reattempt flag", http.StatusInternalServerError)
		return
	}
	if updated == nil {
		http.Error(w, "Interview not found", http.StatusNotFound)
		return
	}

	message := "Reattempt disabled"
	if allow {
		message = "Reattempt enabled"
	}
	response := map[string]interface{}{
		"interview": updated,
		"message":   message,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (e *CandidateEndpoints) MyInterviewsHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	interviews, err := e.repo.GetInterviewsByCandidate(r.Context(), user.ID)
	if err != nil {
		http.Error(w, "Failed to get interviews", http.StatusInternalServerError)
		return
	}
	if interviews == nil {
		interviews = []models.Interview{}
	}

	response := map[string]interface{}{
		"interviews": interviews,
		"count":      len(interviews),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
