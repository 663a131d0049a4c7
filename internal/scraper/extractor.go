package scraper

import (
	"context"
	"time"

	"github.com/maltedev/wb-listing-scraper/internal/dom"
	"github.com/maltedev/wb-listing-scraper/internal/models"
)

// Extractor maps rendered cards to product records.
type Extractor struct {
	rules Rules
	site  Site
	now   func() time.Time
}

func NewExtractor(rules Rules, site Site) *Extractor {
	return &Extractor{
		rules: rules,
		site:  site,
		now:   time.Now,
	}
}

// Extract builds the record for one card. It returns ErrRecordRejected when
// the card has no usable name or price and a *CardError when the browser
// failed mid-extraction.
func (e *Extractor) Extract(ctx context.Context, index int, card dom.Element) (models.ProductRecord, error) {
	var rec models.ProductRecord

	fields := []struct {
		rule FieldRule
		dst  *string
	}{
		{e.rules.Name, &rec.Name},
		{e.rules.Brand, &rec.Brand},
		{e.rules.Price, &rec.Price},
		{e.rules.Rating, &rec.Rating},
		{e.rules.Reviews, &rec.Reviews},
	}

	for _, f := range fields {
		v, err := f.rule.Value(ctx, card)
		if err != nil {
			return models.ProductRecord{}, &CardError{Index: index, Field: f.rule.Field, Err: err}
		}
		*f.dst = v
	}

	link, err := e.link(ctx, card)
	if err != nil {
		return models.ProductRecord{}, &CardError{Index: index, Field: "link", Err: err}
	}
	rec.Link = link
	rec.ParseDate = e.now().Format(models.ParseDateLayout)

	if !rec.Accepted() {
		return models.ProductRecord{}, ErrRecordRejected
	}
	return rec, nil
}

func (e *Extractor) link(ctx context.Context, card dom.Element) (string, error) {
	a, err := card.QueryFirst(ctx, e.rules.LinkSelector)
	if err != nil {
		return "", err
	}
	if a == nil {
		return models.DefaultLink, nil
	}

	href, err := a.Attribute(ctx, "href")
	if err != nil {
		return "", err
	}
	return e.site.NormalizeLink(href), nil
}
