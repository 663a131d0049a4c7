package scraper

import (
	"context"
	"testing"
	"time"

	"github.com/maltedev/wb-listing-scraper/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoader(maxScrolls int) *Loader {
	return NewLoader(LoaderOptions{MaxScrolls: maxScrolls, StablePolls: 2}, DefaultRules().Cards, testLogger())
}

func TestLoaderStopsWhenCountStable(t *testing.T) {
	page := &scriptedPage{counts: []int{10, 20, 20, 30, 40}}

	res, err := newTestLoader(10).Load(context.Background(), page)
	require.NoError(t, err)

	assert.True(t, res.Stable)
	assert.Equal(t, 20, res.Count)
	assert.Equal(t, 3, res.Iterations)
	assert.Equal(t, 3, page.scrolls)
}

func TestLoaderRespectsBudget(t *testing.T) {
	counts := make([]int, 20)
	for i := range counts {
		counts[i] = (i + 1) * 10
	}
	page := &scriptedPage{counts: counts}

	res, err := newTestLoader(10).Load(context.Background(), page)
	require.NoError(t, err)

	assert.False(t, res.Stable)
	assert.Equal(t, 10, res.Iterations)
	assert.Equal(t, 100, res.Count)
}

func TestLoaderHeightStallDoesNotShortenBudget(t *testing.T) {
	counts := make([]int, 10)
	for i := range counts {
		counts[i] = i + 1
	}
	page := &scriptedPage{counts: counts, heights: []int{5000}}

	res, err := newTestLoader(10).Load(context.Background(), page)
	require.NoError(t, err)

	assert.Equal(t, 10, res.Iterations)
	assert.Equal(t, 10, res.Count)
	assert.Equal(t, 10, res.HeightStalls)
}

func TestLoaderNoCards(t *testing.T) {
	page := &scriptedPage{counts: []int{0}}

	res, err := newTestLoader(10).Load(context.Background(), page)
	require.NoError(t, err)

	assert.True(t, res.Stable)
	assert.Equal(t, 0, res.Count)
	assert.Equal(t, 2, res.Iterations)
}

func TestLoaderCountsFirstMatchingSelectorOnly(t *testing.T) {
	doc, err := parser.NewDocument(`<body>
		<div class="product-card">a</div>
		<div class="product-card">b</div>
		<div class="card">1</div><div class="card">2</div><div class="card">3</div>
		<div class="j-card-item">x</div>
	</body>`)
	require.NoError(t, err)

	res, err := newTestLoader(10).Load(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
}

func TestLoaderFallsBackToLaterSelector(t *testing.T) {
	doc, err := parser.NewDocument(`<body>
		<article data-card="1"></article>
		<article data-card="2"></article>
		<article data-card="3"></article>
	</body>`)
	require.NoError(t, err)

	res, err := newTestLoader(10).Load(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Count)
}

func TestLoaderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := NewLoader(LoaderOptions{MaxScrolls: 10, ScrollDelay: time.Second}, DefaultRules().Cards, testLogger())
	_, err := l.Load(ctx, &scriptedPage{counts: []int{1}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewLoaderDefaults(t *testing.T) {
	l := NewLoader(LoaderOptions{}, nil, testLogger())
	assert.Equal(t, 10, l.opts.MaxScrolls)
	assert.Equal(t, 2, l.opts.StablePolls)
}
