package jobs

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/maltedev/wb-listing-scraper/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSinksHistoryOnly(t *testing.T) {
	cfg := &config.Config{}
	cfg.Output.HistoryFile = filepath.Join(t.TempDir(), "sessions.json")

	s := OpenSinks(context.Background(), cfg, testLogger())
	defer s.Close()

	require.NotNil(t, s.History)
	assert.Nil(t, s.DB)
	assert.Nil(t, s.Events)

	opts := s.RunnerOptions(nil)
	assert.NotNil(t, opts.History)
	assert.Nil(t, opts.DB)
	assert.Nil(t, opts.Publisher)
	assert.Nil(t, opts.Limiter)
}

func TestOpenSinksUnreachableRedis(t *testing.T) {
	cfg := &config.Config{}
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = "127.0.0.1:1"

	s := OpenSinks(context.Background(), cfg, testLogger())
	defer s.Close()

	assert.Nil(t, s.Redis)
	assert.Nil(t, s.RunnerOptions(nil).Publisher)
}
