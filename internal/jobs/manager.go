package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/wb-listing-scraper/internal/models"
	"github.com/maltedev/wb-listing-scraper/internal/queue"
)

var ErrJobNotFound = errors.New("job not found")

const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Job represents a queued search
type Job struct {
	ID          string     `json:"id"`
	Query       string     `json:"query"`
	Priority    int        `json:"priority"`
	Status      string     `json:"status"`
	SessionID   string     `json:"session_id,omitempty"`
	Accepted    int        `json:"accepted"`
	CardsSeen   int        `json:"cards_seen"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

type SearchRunner interface {
	Run(ctx context.Context, query string) (*models.Session, error)
}

// Manager accepts searches for background execution.
type Manager struct {
	queue  queue.Queue
	runner SearchRunner
	jobs   map[string]*Job
	mu     sync.RWMutex
	logger *slog.Logger
}

func NewManager(q queue.Queue, runner SearchRunner, logger *slog.Logger) *Manager {
	return &Manager{
		queue:  q,
		runner: runner,
		jobs:   make(map[string]*Job),
		logger: logger.With("component", "job_manager"),
	}
}

// CreateJob queues a search for query.
func (m *Manager) CreateJob(query string, priority int) (*Job, error) {
	job := &Job{
		ID:        uuid.New().String(),
		Query:     query,
		Priority:  priority,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	if err := m.queue.Push(&queue.Task{
		ID:        job.ID,
		Query:     query,
		Priority:  priority,
		CreatedAt: job.CreatedAt,
	}); err != nil {
		m.mu.Lock()
		delete(m.jobs, job.ID)
		m.mu.Unlock()
		return nil, fmt.Errorf("failed to queue job: %w", err)
	}

	m.logger.Info("job created", "id", job.ID, "query", query)
	copied := *job
	return &copied, nil
}

// GetJob retrieves a job by ID
func (m *Manager) GetJob(id string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	copied := *job
	return &copied, nil
}

// ListJobs lists all jobs, newest first
func (m *Manager) ListJobs() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		copied := *job
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// StartWorker processes queued jobs until ctx is done or the queue closes.
func (m *Manager) StartWorker(ctx context.Context) {
	m.logger.Info("job worker started")

	for {
		task, err := m.queue.Pop(ctx)
		if err != nil {
			if !errors.Is(err, queue.ErrQueueClosed) && !errors.Is(err, context.Canceled) {
				m.logger.Error("failed to take job", "error", err)
			}
			m.logger.Info("job worker stopping")
			return
		}

		m.processJob(ctx, task)
	}
}

func (m *Manager) processJob(ctx context.Context, task *queue.Task) {
	m.logger.Info("processing job", "id", task.ID, "query", task.Query)

	started := time.Now()
	m.update(task.ID, func(j *Job) {
		j.Status = StatusRunning
		j.StartedAt = &started
	})

	session, err := m.runner.Run(ctx, task.Query)

	completed := time.Now()
	m.update(task.ID, func(j *Job) {
		j.CompletedAt = &completed
		if session != nil {
			j.SessionID = session.ID.String()
			j.Accepted = len(session.Records)
			j.CardsSeen = session.CardsSeen
		}
		if err != nil {
			j.Status = StatusFailed
			j.Error = err.Error()
			return
		}
		j.Status = StatusCompleted
	})

	if err != nil {
		m.logger.Error("job failed", "id", task.ID, "error", err)
		return
	}
	m.logger.Info("job completed", "id", task.ID)
}

func (m *Manager) update(id string, fn func(j *Job)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job, ok := m.jobs[id]; ok {
		fn(job)
	}
}
