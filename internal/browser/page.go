package browser

import (
	"context"
	"fmt"

	"github.com/maltedev/wb-listing-scraper/internal/dom"
	"github.com/playwright-community/playwright-go"
)

// Page adapts a playwright page to dom.Page.
type Page struct {
	page playwright.Page
}

func (p *Page) ScrollToBottom(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := p.page.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`); err != nil {
		return fmt.Errorf("failed to scroll: %w", err)
	}
	return nil
}

func (p *Page) Height(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	v, err := p.page.Evaluate(`document.body.scrollHeight`)
	if err != nil {
		return 0, fmt.Errorf("failed to read page height: %w", err)
	}
	return toInt(v)
}

func (p *Page) QueryAll(ctx context.Context, selector string) ([]dom.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	handles, err := p.page.QuerySelectorAll(selector)
	if err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", selector, err)
	}

	out := make([]dom.Element, 0, len(handles))
	for _, h := range handles {
		out = append(out, &Element{handle: h})
	}
	return out, nil
}

func (p *Page) Close() error {
	return p.page.Close()
}

// Element adapts a playwright element handle to dom.Element.
type Element struct {
	handle playwright.ElementHandle
}

func (e *Element) QueryFirst(ctx context.Context, selector string) (dom.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h, err := e.handle.QuerySelector(selector)
	if err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", selector, err)
	}
	if h == nil {
		return nil, nil
	}
	return &Element{handle: h}, nil
}

func (e *Element) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := e.handle.InnerText()
	if err != nil {
		return "", fmt.Errorf("failed to read text: %w", err)
	}
	return dom.NormalizeText(text), nil
}

func (e *Element) Attribute(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, err := e.handle.GetAttribute(name)
	if err != nil {
		return "", fmt.Errorf("failed to read attribute %s: %w", name, err)
	}
	return v, nil
}

func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("unexpected height value %v (%T)", v, v)
	}
}
