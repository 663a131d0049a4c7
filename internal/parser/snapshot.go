// Package parser exposes saved result pages through the dom interfaces so
// the same loader and extractor run offline.
package parser

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/wb-listing-scraper/internal/dom"
)

// Document is a parsed HTML page. Scrolling is a no-op since everything is
// already present.
type Document struct {
	doc *goquery.Document
}

func NewDocument(html string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return &Document{doc: doc}, nil
}

func (d *Document) ScrollToBottom(ctx context.Context) error {
	return ctx.Err()
}

// Height reports the number of nodes under body, which is stable for a
// static document.
func (d *Document) Height(ctx context.Context) (int, error) {
	return d.doc.Find("body *").Length(), ctx.Err()
}

func (d *Document) QueryAll(ctx context.Context, selector string) ([]dom.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return wrapAll(d.doc.Find(selector)), nil
}

func (d *Document) Close() error {
	return nil
}

// Element wraps a single goquery node.
type Element struct {
	sel *goquery.Selection
}

func (e *Element) QueryFirst(ctx context.Context, selector string) (dom.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	found := e.sel.Find(selector).First()
	if found.Length() == 0 {
		return nil, nil
	}
	return &Element{sel: found}, nil
}

func (e *Element) Text(ctx context.Context) (string, error) {
	return dom.NormalizeText(e.sel.Text()), ctx.Err()
}

func (e *Element) Attribute(ctx context.Context, name string) (string, error) {
	return e.sel.AttrOr(name, ""), ctx.Err()
}

func wrapAll(s *goquery.Selection) []dom.Element {
	out := make([]dom.Element, 0, s.Length())
	s.Each(func(i int, node *goquery.Selection) {
		out = append(out, &Element{sel: node})
	})
	return out
}

// SnapshotBrowser serves the same HTML for every URL.
type SnapshotBrowser struct {
	HTML string
}

func LoadSnapshot(path string) (*SnapshotBrowser, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return &SnapshotBrowser{HTML: string(data)}, nil
}

func (b *SnapshotBrowser) Open(ctx context.Context, url string) (dom.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return NewDocument(b.HTML)
}
