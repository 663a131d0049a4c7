// Package dom describes the small slice of a rendered document that the
// scraper consumes. The playwright browser and the goquery snapshot parser
// both implement it.
package dom

import (
	"context"
	"strings"
)

// Element is a node inside a rendered document.
type Element interface {
	// QueryFirst returns the first descendant matching selector, or nil
	// with a nil error when nothing matches.
	QueryFirst(ctx context.Context, selector string) (Element, error)
	// Text returns the rendered text of the element passed through
	// NormalizeText.
	Text(ctx context.Context) (string, error)
	// Attribute returns the attribute value, or "" when it is absent.
	Attribute(ctx context.Context, name string) (string, error)
}

// Page is a loaded document.
type Page interface {
	ScrollToBottom(ctx context.Context) error
	Height(ctx context.Context) (int, error)
	QueryAll(ctx context.Context, selector string) ([]Element, error)
	Close() error
}

// Browser opens pages. Open returns once the document body is present.
type Browser interface {
	Open(ctx context.Context, url string) (Page, error)
}

// NormalizeText collapses every run of whitespace, including line breaks and
// non-breaking spaces, into one space and trims the ends.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
