package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/maltedev/wb-listing-scraper/internal/dom"
	"github.com/maltedev/wb-listing-scraper/internal/models"
	"github.com/maltedev/wb-listing-scraper/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) SearchProducts(ctx context.Context, b dom.Browser, query string) (*models.Session, error) {
	args := m.Called(ctx, b, query)
	s, _ := args.Get(0).(*models.Session)
	return s, args.Error(1)
}

type MockSink struct {
	mock.Mock
}

func (m *MockSink) SaveSession(ctx context.Context, s *models.Session) error {
	return m.Called(ctx, s).Error(0)
}

func (m *MockSink) PublishSession(ctx context.Context, s *models.Session) error {
	return m.Called(ctx, s).Error(0)
}

func (m *MockSink) Add(sum *storage.SessionSummary) error {
	return m.Called(sum).Error(0)
}

type countingLimiter struct {
	calls int
	err   error
}

func (l *countingLimiter) Wait(ctx context.Context) error {
	l.calls++
	return l.err
}

func sessionWith(query string, n int) *models.Session {
	s := models.NewSession(query)
	for i := 0; i < n; i++ {
		s.Records = append(s.Records, models.ProductRecord{Name: "Чехол", Price: "100"})
	}
	s.CardsSeen = n
	return s
}

func TestRunnerRecordsSuccessfulSearch(t *testing.T) {
	ctx := context.Background()
	session := sessionWith("чехол", 2)

	searcher := new(MockSearcher)
	searcher.On("SearchProducts", ctx, nil, "чехол").Return(session, nil)

	sink := new(MockSink)
	sink.On("Add", mock.MatchedBy(func(sum *storage.SessionSummary) bool {
		return sum.ID == session.ID.String() && sum.Accepted == 2 && sum.Error == ""
	})).Return(nil)
	sink.On("SaveSession", ctx, session).Return(nil)
	sink.On("PublishSession", ctx, session).Return(nil)

	limiter := &countingLimiter{}
	r := NewRunner(searcher, nil, RunnerOptions{
		Limiter:   limiter,
		History:   sink,
		DB:        sink,
		Publisher: sink,
	}, testLogger())

	got, err := r.Run(ctx, "чехол")
	require.NoError(t, err)
	assert.Same(t, session, got)
	assert.Equal(t, 1, limiter.calls)
	sink.AssertExpectations(t)
}

func TestRunnerSearchErrorOnlyRecordsHistory(t *testing.T) {
	ctx := context.Background()
	session := models.NewSession("чехол")
	searchErr := errors.New("navigation timeout")

	searcher := new(MockSearcher)
	searcher.On("SearchProducts", ctx, nil, "чехол").Return(session, searchErr)

	sink := new(MockSink)
	sink.On("Add", mock.MatchedBy(func(sum *storage.SessionSummary) bool {
		return sum.Error == "navigation timeout"
	})).Return(nil)

	r := NewRunner(searcher, nil, RunnerOptions{History: sink, DB: sink, Publisher: sink}, testLogger())

	_, err := r.Run(ctx, "чехол")
	assert.ErrorIs(t, err, searchErr)
	sink.AssertNotCalled(t, "SaveSession", mock.Anything, mock.Anything)
	sink.AssertNotCalled(t, "PublishSession", mock.Anything, mock.Anything)
}

func TestRunnerIgnoresSinkFailures(t *testing.T) {
	ctx := context.Background()
	session := sessionWith("чехол", 1)

	searcher := new(MockSearcher)
	searcher.On("SearchProducts", ctx, nil, "чехол").Return(session, nil)

	sink := new(MockSink)
	sink.On("Add", mock.Anything).Return(errors.New("disk full"))
	sink.On("SaveSession", ctx, session).Return(errors.New("db down"))
	sink.On("PublishSession", ctx, session).Return(errors.New("redis down"))

	r := NewRunner(searcher, nil, RunnerOptions{History: sink, DB: sink, Publisher: sink}, testLogger())

	got, err := r.Run(ctx, "чехол")
	require.NoError(t, err)
	assert.Len(t, got.Records, 1)
	sink.AssertExpectations(t)
}

func TestRunnerLimiterError(t *testing.T) {
	searcher := new(MockSearcher)
	r := NewRunner(searcher, nil, RunnerOptions{Limiter: &countingLimiter{err: context.Canceled}}, testLogger())

	_, err := r.Run(context.Background(), "чехол")
	assert.ErrorIs(t, err, context.Canceled)
	searcher.AssertNotCalled(t, "SearchProducts", mock.Anything, mock.Anything, mock.Anything)
}

type slowSearcher struct {
	mu      sync.Mutex
	active  int
	maxSeen int
}

func (s *slowSearcher) SearchProducts(ctx context.Context, b dom.Browser, query string) (*models.Session, error) {
	s.mu.Lock()
	s.active++
	if s.active > s.maxSeen {
		s.maxSeen = s.active
	}
	s.mu.Unlock()

	time.Sleep(10 * time.Millisecond)

	s.mu.Lock()
	s.active--
	s.mu.Unlock()
	return models.NewSession(query), nil
}

func TestRunnerSerializesSearches(t *testing.T) {
	searcher := &slowSearcher{}
	r := NewRunner(searcher, nil, RunnerOptions{}, testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Run(context.Background(), "q")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, searcher.maxSeen)
}
