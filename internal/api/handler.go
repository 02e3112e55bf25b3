// internal/api/handler.go
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"colorscheme-indexer/internal/job"
	"colorscheme-indexer/internal/model"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Store is the read side of the storage the API serves.
type Store interface {
	GetRepository(ctx context.Context, owner, name string) (*model.Repository, error)
	ListRepositories(ctx context.Context, validOnly bool, limit, offset int) ([]*model.Repository, error)
	ListReports(ctx context.Context, jobName string, limit int) ([]model.RunReport, error)
}

// Handler is the container for API dependencies.
type Handler struct {
	db     Store
	logger *slog.Logger
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(db Store, logger *slog.Logger) http.Handler {
	h := &Handler{
		db:     db,
		logger: logger,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", h.healthCheck)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/repositories", h.listRepositories)
		r.Get("/repositories/{owner}/{name}", h.getRepository)
		r.Get("/reports", h.listReports)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// listRepositories pages through stored repositories, most starred first.
// GET /v1/repositories?valid=true&limit=N&offset=M
func (h *Handler) listRepositories(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			respondWithError(w, http.StatusBadRequest, "Invalid 'offset' parameter. Must be a non-negative integer.")
			return
		}
		offset = n
	}
	validOnly := r.URL.Query().Get("valid") != "false"

	repos, err := h.db.ListRepositories(r.Context(), validOnly, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list repositories", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if repos == nil {
		repos = []*model.Repository{}
	}

	respondWithJSON(w, http.StatusOK, repos)
}

// getRepository returns one repository.
// GET /v1/repositories/{owner}/{name}
func (h *Handler) getRepository(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	name := chi.URLParam(r, "name")

	repo, err := h.db.GetRepository(r.Context(), owner, name)
	if err != nil {
		h.logger.Error("Failed to get repository", "owner", owner, "repo", name, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if repo == nil {
		respondWithError(w, http.StatusNotFound, "Repository not found")
		return
	}

	respondWithJSON(w, http.StatusOK, repo)
}

// listReports returns recent job reports.
// GET /v1/reports?job=update&limit=N
func (h *Handler) listReports(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	jobName := r.URL.Query().Get("job")
	if jobName != "" {
		if _, err := job.Parse(jobName); err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	reports, err := h.db.ListReports(r.Context(), jobName, limit)
	if err != nil {
		h.logger.Error("Failed to list reports", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if reports == nil {
		reports = []model.RunReport{}
	}

	respondWithJSON(w, http.StatusOK, reports)
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return defaultLimit, true
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 || limit > maxLimit {
		respondWithError(w, http.StatusBadRequest, "Invalid 'limit' parameter. Must be an integer between 1 and 500.")
		return 0, false
	}
	return limit, true
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
