package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the scraper collectors on a dedicated registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Registry        *prometheus.Registry
	SearchesTotal   *prometheus.CounterVec
	SearchDuration  prometheus.Histogram
	ScrollPasses    prometheus.Histogram
	CardsTotal      prometheus.Counter
	RecordsAccepted prometheus.Counter
	CardsSkipped    *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	searches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wb_searches_total",
			Help: "Search runs by outcome.",
		},
		[]string{"outcome"},
	)
	duration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wb_search_duration_seconds",
			Help:    "Wall-clock time of a search run.",
			Buckets: []float64{5, 10, 20, 30, 45, 60, 90, 120, 180, 300},
		},
	)
	scrolls := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wb_scroll_passes",
			Help:    "Scroll passes used by the loader per search.",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		},
	)
	cards := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wb_cards_total",
			Help: "Rendered product cards seen.",
		},
	)
	accepted := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wb_records_accepted_total",
			Help: "Cards that produced an accepted record.",
		},
	)
	skipped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wb_cards_skipped_total",
			Help: "Cards dropped, by reason.",
		},
		[]string{"reason"},
	)

	registry.MustRegister(searches, duration, scrolls, cards, accepted, skipped)

	return &Metrics{
		Registry:        registry,
		SearchesTotal:   searches,
		SearchDuration:  duration,
		ScrollPasses:    scrolls,
		CardsTotal:      cards,
		RecordsAccepted: accepted,
		CardsSkipped:    skipped,
	}
}

func (m *Metrics) IncSearch(outcome string) {
	if m == nil {
		return
	}
	m.SearchesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveSearch(d time.Duration) {
	if m == nil {
		return
	}
	m.SearchDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveScrolls(n int) {
	if m == nil {
		return
	}
	m.ScrollPasses.Observe(float64(n))
}

func (m *Metrics) AddCards(n int) {
	if m == nil {
		return
	}
	m.CardsTotal.Add(float64(n))
}

func (m *Metrics) IncAccepted() {
	if m == nil {
		return
	}
	m.RecordsAccepted.Inc()
}

func (m *Metrics) IncSkipped(reason string) {
	if m == nil {
		return
	}
	m.CardsSkipped.WithLabelValues(reason).Inc()
}
