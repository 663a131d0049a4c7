package scraper

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/maltedev/wb-listing-scraper/internal/dom"
	"github.com/maltedev/wb-listing-scraper/internal/models"
)

// FieldRule resolves one record field through an ordered selector chain.
// The first selector whose element yields non-empty text (after Clean and
// Accept) wins.
type FieldRule struct {
	Field     string
	Selectors []string
	Default   string
	Clean     func(string) string
	Accept    func(string) bool
}

// Resolve returns the first value produced by the chain, ErrLookupMiss when
// nothing matched, or the browser error that interrupted the lookup.
func (r FieldRule) Resolve(ctx context.Context, card dom.Element) (string, error) {
	for _, selector := range r.Selectors {
		el, err := card.QueryFirst(ctx, selector)
		if err != nil {
			return "", err
		}
		if el == nil {
			continue
		}

		text, err := el.Text(ctx)
		if err != nil {
			return "", err
		}

		text = strings.TrimSpace(text)
		if r.Clean != nil {
			text = r.Clean(text)
		}
		if text == "" {
			continue
		}
		if r.Accept != nil && !r.Accept(text) {
			continue
		}
		return text, nil
	}

	return "", ErrLookupMiss
}

// Value is Resolve with the sentinel default substituted for a miss.
func (r FieldRule) Value(ctx context.Context, card dom.Element) (string, error) {
	v, err := r.Resolve(ctx, card)
	if errors.Is(err, ErrLookupMiss) {
		return r.Default, nil
	}
	return v, err
}

// Rules is the full selector configuration for a results page.
type Rules struct {
	Cards        []string
	Name         FieldRule
	Brand        FieldRule
	Price        FieldRule
	Rating       FieldRule
	Reviews      FieldRule
	LinkSelector string
}

func DefaultRules() Rules {
	return Rules{
		Cards: []string{
			"div.product-card",
			"[data-card]",
			".card",
			".j-card-item",
		},
		Name: FieldRule{
			Field: "name",
			Selectors: []string{
				".product-card__name",
				".goods-name",
				"[class*='name']",
				".j-card-name",
				"span:first-child",
			},
			Default: models.DefaultName,
			Accept:  longerThan(3),
		},
		Brand: FieldRule{
			Field: "brand",
			Selectors: []string{
				".product-card__brand",
				".brand-name",
				"[class*='brand']",
				".j-card-brand",
			},
			Default: models.DefaultBrand,
		},
		Price: FieldRule{
			Field: "price",
			Selectors: []string{
				".price__lower-price",
				".final-cost",
				"[class*='price']",
				".j-card-price",
				"ins",
			},
			Default: models.DefaultPrice,
			Clean:   DigitsOnly,
		},
		Rating: FieldRule{
			Field: "rating",
			Selectors: []string{
				".product-card__rating",
				".address-rate-mini",
				"[class*='rating']",
				".j-card-rating",
			},
			Default: models.DefaultRating,
		},
		Reviews: FieldRule{
			Field: "reviews",
			Selectors: []string{
				".product-card__count",
				".goods-comments",
				"[class*='review']",
				"[class*='feedback']",
				".j-card-feedback",
			},
			Default: models.DefaultReviews,
		},
		LinkSelector: "a",
	}
}

// DigitsOnly keeps the ASCII digits of s, dropping separators and currency.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func longerThan(n int) func(string) bool {
	return func(s string) bool {
		return utf8.RuneCountInString(s) > n
	}
}

// Site describes the target shop.
type Site struct {
	Host      string
	Origin    string
	SearchURL string
}

func DefaultSite() Site {
	return Site{
		Host:      "wildberries.ru",
		Origin:    "https://www.wildberries.ru",
		SearchURL: "https://www.wildberries.ru/catalog/0/search.aspx?search=",
	}
}

// SearchURLFor appends the query with spaces percent-encoded.
func (s Site) SearchURLFor(query string) string {
	return s.SearchURL + strings.ReplaceAll(query, " ", "%20")
}

// NormalizeLink makes a card href absolute. URLs on the shop host pass
// through, root-relative paths get the origin, anything else is rejected.
func (s Site) NormalizeLink(href string) string {
	switch {
	case href == "":
		return models.DefaultLink
	case strings.Contains(href, s.Host):
		return href
	case strings.HasPrefix(href, "/"):
		return s.Origin + href
	default:
		return models.DefaultLink
	}
}
