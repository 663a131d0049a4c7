package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/maltedev/wb-listing-scraper/internal/database"
	"github.com/maltedev/wb-listing-scraper/internal/jobs"
	"github.com/maltedev/wb-listing-scraper/internal/models"
	"github.com/maltedev/wb-listing-scraper/internal/scraper"
	"github.com/maltedev/wb-listing-scraper/internal/storage"
)

type SearchRunner interface {
	Run(ctx context.Context, query string) (*models.Session, error)
}

type JobManager interface {
	CreateJob(query string, priority int) (*jobs.Job, error)
	GetJob(id string) (*jobs.Job, error)
	ListJobs() []*jobs.Job
}

type SessionHistory interface {
	List() []*storage.SessionSummary
	Get(id string) (*storage.SessionSummary, bool)
}

// SessionArchive reads sessions stored in postgres.
type SessionArchive interface {
	GetSession(ctx context.Context, id uuid.UUID) (*database.SessionRow, error)
	GetSessionRecords(ctx context.Context, id uuid.UUID) ([]models.ProductRecord, error)
	RecentSessions(ctx context.Context, limit int) ([]*database.SessionRow, error)
}

type Handlers struct {
	runner       SearchRunner
	jobs         JobManager
	history      SessionHistory
	archive      SessionArchive
	defaultQuery string
	logger       *slog.Logger
}

// NewHandlers builds the API handlers. archive may be nil when the database
// is disabled; the stored-session endpoints then answer 503.
func NewHandlers(runner SearchRunner, jobs JobManager, history SessionHistory, archive SessionArchive, defaultQuery string, logger *slog.Logger) *Handlers {
	return &Handlers{
		runner:       runner,
		jobs:         jobs,
		history:      history,
		archive:      archive,
		defaultQuery: defaultQuery,
		logger:       logger.With("component", "api"),
	}
}

// SearchRequest represents a synchronous search request
type SearchRequest struct {
	Query string `json:"query"`
}

// SearchResponse represents the result of one search session
type SearchResponse struct {
	SessionID   string                 `json:"session_id"`
	Query       string                 `json:"query"`
	URL         string                 `json:"url"`
	Accepted    int                    `json:"accepted"`
	CardsSeen   int                    `json:"cards_seen"`
	CardsFailed int                    `json:"cards_failed"`
	ElapsedMS   int64                  `json:"elapsed_ms"`
	Records     []models.ProductRecord `json:"records"`
	Error       string                 `json:"error,omitempty"`
}

func newSearchResponse(s *models.Session) SearchResponse {
	records := s.Records
	if records == nil {
		records = []models.ProductRecord{}
	}
	return SearchResponse{
		SessionID:   s.ID.String(),
		Query:       s.Query,
		URL:         s.URL,
		Accepted:    len(s.Records),
		CardsSeen:   s.CardsSeen,
		CardsFailed: s.CardsFailed,
		ElapsedMS:   s.Elapsed.Milliseconds(),
		Records:     records,
	}
}

// Search runs a search and waits for its records.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	query := h.query(req.Query)

	session, err := h.runner.Run(r.Context(), query)
	if session == nil {
		h.logger.Error("search not started", "query", query, "error", err)
		h.respondError(w, http.StatusServiceUnavailable, "search not started")
		return
	}

	resp := newSearchResponse(session)
	if err != nil {
		var searchErr *scraper.SearchError
		if !errors.As(err, &searchErr) {
			h.logger.Error("search failed", "query", query, "error", err)
			h.respondError(w, http.StatusInternalServerError, "search failed")
			return
		}
		resp.Error = err.Error()
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// CreateJobRequest represents a queued search request
type CreateJobRequest struct {
	Query    string `json:"query"`
	Priority int    `json:"priority"`
}

// CreateJobResponse represents the job creation response
type CreateJobResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// CreateJob queues a search for background execution
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	job, err := h.jobs.CreateJob(h.query(req.Query), req.Priority)
	if err != nil {
		h.logger.Error("failed to create job", "error", err)
		h.respondError(w, http.StatusServiceUnavailable, "failed to create job")
		return
	}

	h.respondJSON(w, http.StatusAccepted, CreateJobResponse{
		JobID:   job.ID,
		Status:  job.Status,
		Message: "Job queued",
	})
}

// GetJob handles job status retrieval
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.GetJob(chi.URLParam(r, "jobID"))
	if err != nil {
		h.respondError(w, http.StatusNotFound, "job not found")
		return
	}

	h.respondJSON(w, http.StatusOK, job)
}

// ListJobs handles listing all jobs
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.jobs.ListJobs())
}

// ListSessions returns the recorded search history, newest first
func (h *Handlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.history.List())
}

// GetSession returns one recorded session
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	sum, ok := h.history.Get(chi.URLParam(r, "sessionID"))
	if !ok {
		h.respondError(w, http.StatusNotFound, "session not found")
		return
	}

	h.respondJSON(w, http.StatusOK, sum)
}

// StoredSessionResponse is a stored session with its records
type StoredSessionResponse struct {
	Session *database.SessionRow   `json:"session"`
	Records []models.ProductRecord `json:"records"`
}

// ListStoredSessions returns the latest sessions from the database
func (h *Handlers) ListStoredSessions(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		h.respondError(w, http.StatusServiceUnavailable, "database not enabled")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			h.respondError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	sessions, err := h.archive.RecentSessions(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list stored sessions", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []*database.SessionRow{}
	}

	h.respondJSON(w, http.StatusOK, sessions)
}

// GetSessionRecords returns a stored session and its records in extraction order
func (h *Handlers) GetSessionRecords(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		h.respondError(w, http.StatusServiceUnavailable, "database not enabled")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	row, err := h.archive.GetSession(r.Context(), id)
	if errors.Is(err, database.ErrSessionNotFound) {
		h.respondError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get stored session", "session_id", id, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get session")
		return
	}

	records, err := h.archive.GetSessionRecords(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get session records", "session_id", id, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get records")
		return
	}
	if records == nil {
		records = []models.ProductRecord{}
	}

	h.respondJSON(w, http.StatusOK, StoredSessionResponse{Session: row, Records: records})
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) query(q string) string {
	if q = strings.TrimSpace(q); q != "" {
		return q
	}
	return h.defaultQuery
}

// Helper methods
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
