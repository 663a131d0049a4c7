package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	DefaultBrand   = "brand not specified"
	DefaultName    = "name not found"
	DefaultPrice   = "0"
	DefaultRating  = "no rating"
	DefaultReviews = "0"
	DefaultLink    = "link not found"

	// ParseDateLayout is the layout of ProductRecord.ParseDate.
	ParseDateLayout = "2006-01-02 15:04:05"
)

// CSVHeader is the fixed column order of exported records.
var CSVHeader = []string{"brand", "name", "price", "rating", "reviews", "link", "parse_date"}

// ProductRecord is one product card as extracted from the search results.
type ProductRecord struct {
	Brand     string `json:"brand"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	Rating    string `json:"rating"`
	Reviews   string `json:"reviews"`
	Link      string `json:"link"`
	ParseDate string `json:"parse_date"`
}

// HasName reports whether a real name was extracted.
func (p ProductRecord) HasName() bool {
	return p.Name != "" && p.Name != DefaultName
}

// HasPrice reports whether a real price was extracted.
func (p ProductRecord) HasPrice() bool {
	return p.Price != "" && p.Price != DefaultPrice
}

// Accepted reports whether the record passes the name/price gate.
func (p ProductRecord) Accepted() bool {
	return p.HasName() && p.HasPrice()
}

// CSVRow returns the record in CSVHeader order.
func (p ProductRecord) CSVRow() []string {
	return []string{p.Brand, p.Name, p.Price, p.Rating, p.Reviews, p.Link, p.ParseDate}
}

// Session is the outcome of one search run.
type Session struct {
	ID          uuid.UUID       `json:"id"`
	Query       string          `json:"query"`
	URL         string          `json:"url"`
	Records     []ProductRecord `json:"records"`
	CardsSeen   int             `json:"cards_seen"`
	CardsFailed int             `json:"cards_failed"`
	StartedAt   time.Time       `json:"started_at"`
	Elapsed     time.Duration   `json:"elapsed"`
}

func NewSession(query string) *Session {
	return &Session{
		ID:        uuid.New(),
		Query:     query,
		Records:   make([]ProductRecord, 0),
		StartedAt: time.Now(),
	}
}

// Skipped is the number of cards that produced no accepted record.
func (s *Session) Skipped() int {
	return s.CardsSeen - len(s.Records)
}
