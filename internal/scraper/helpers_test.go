package scraper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/maltedev/wb-listing-scraper/internal/dom"
	"github.com/maltedev/wb-listing-scraper/internal/parser"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// cardsOf parses html and returns the elements matching div.product-card.
func cardsOf(t *testing.T, html string) []dom.Element {
	t.Helper()
	doc, err := parser.NewDocument(html)
	require.NoError(t, err)
	cards, err := doc.QueryAll(context.Background(), "div.product-card")
	require.NoError(t, err)
	return cards
}

var errDetached = errors.New("element is not attached to the DOM")

type brokenElement struct{}

func (brokenElement) QueryFirst(ctx context.Context, selector string) (dom.Element, error) {
	return nil, errDetached
}

func (brokenElement) Text(ctx context.Context) (string, error) {
	return "", errDetached
}

func (brokenElement) Attribute(ctx context.Context, name string) (string, error) {
	return "", errDetached
}

// scriptedPage returns a scripted card count on each poll of div.product-card.
type scriptedPage struct {
	counts  []int
	heights []int
	polls   int
	scrolls int
	closed  bool
}

func (p *scriptedPage) ScrollToBottom(ctx context.Context) error {
	p.scrolls++
	return nil
}

func (p *scriptedPage) Height(ctx context.Context) (int, error) {
	if len(p.heights) == 0 {
		return 1000, nil
	}
	i := p.scrolls
	if i >= len(p.heights) {
		i = len(p.heights) - 1
	}
	return p.heights[i], nil
}

func (p *scriptedPage) QueryAll(ctx context.Context, selector string) ([]dom.Element, error) {
	if selector != "div.product-card" {
		return nil, nil
	}
	i := p.polls
	if i >= len(p.counts) {
		i = len(p.counts) - 1
	}
	p.polls++
	return make([]dom.Element, p.counts[i]), nil
}

func (p *scriptedPage) Close() error {
	p.closed = true
	return nil
}

// stubPage serves a fixed list of cards and tracks Close.
type stubPage struct {
	cards  []dom.Element
	closed bool
}

func (p *stubPage) ScrollToBottom(ctx context.Context) error { return nil }

func (p *stubPage) Height(ctx context.Context) (int, error) { return 100, nil }

func (p *stubPage) QueryAll(ctx context.Context, selector string) ([]dom.Element, error) {
	if selector == "div.product-card" {
		return p.cards, nil
	}
	return nil, nil
}

func (p *stubPage) Close() error {
	p.closed = true
	return nil
}

type stubBrowser struct {
	page    dom.Page
	err     error
	visited []string
}

func (b *stubBrowser) Open(ctx context.Context, url string) (dom.Page, error) {
	b.visited = append(b.visited, url)
	if b.err != nil {
		return nil, b.err
	}
	return b.page, nil
}
