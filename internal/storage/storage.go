package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/maltedev/wb-listing-scraper/internal/models"
)

// SessionSummary is the persisted outline of a finished search.
type SessionSummary struct {
	ID        string        `json:"id"`
	Query     string        `json:"query"`
	Accepted  int           `json:"accepted"`
	Cards     int           `json:"cards"`
	Failed    int           `json:"failed"`
	Elapsed   time.Duration `json:"elapsed"`
	StartedAt time.Time     `json:"started_at"`
	CSVPath   string        `json:"csv_path,omitempty"`
	Error     string        `json:"error,omitempty"`
}

func Summarize(s *models.Session, searchErr error) *SessionSummary {
	sum := &SessionSummary{
		ID:        s.ID.String(),
		Query:     s.Query,
		Accepted:  len(s.Records),
		Cards:     s.CardsSeen,
		Failed:    s.CardsFailed,
		Elapsed:   s.Elapsed,
		StartedAt: s.StartedAt,
	}
	if searchErr != nil {
		sum.Error = searchErr.Error()
	}
	return sum
}

// SessionStore keeps search summaries in a JSON file.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*SessionSummary
	filename string
}

func NewSessionStore(filename string) (*SessionStore, error) {
	ss := &SessionStore{
		sessions: make(map[string]*SessionSummary),
		filename: filename,
	}

	if err := ss.Load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return ss, nil
}

func (ss *SessionStore) Add(sum *SessionSummary) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if sum.ID == "" {
		return fmt.Errorf("session id is required")
	}

	ss.sessions[sum.ID] = sum
	return ss.save()
}

// SetCSVPath records where a session was exported.
func (ss *SessionStore) SetCSVPath(id, path string) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	sum, exists := ss.sessions[id]
	if !exists {
		return fmt.Errorf("session not found: %s", id)
	}

	sum.CSVPath = path
	return ss.save()
}

func (ss *SessionStore) Get(id string) (*SessionSummary, bool) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	sum, exists := ss.sessions[id]
	return sum, exists
}

// List returns summaries newest first.
func (ss *SessionStore) List() []*SessionSummary {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	out := make([]*SessionSummary, 0, len(ss.sessions))
	for _, sum := range ss.sessions {
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

func (ss *SessionStore) save() error {
	data, err := json.MarshalIndent(ss.sessions, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(ss.filename); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	// Write to temp file first for atomicity
	tmpFile := ss.filename + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return err
	}

	return os.Rename(tmpFile, ss.filename)
}

func (ss *SessionStore) Load() error {
	data, err := os.ReadFile(ss.filename)
	if err != nil {
		return err
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()
	return json.Unmarshal(data, &ss.sessions)
}
