package scraper

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"regexp"
	"testing"

	"github.com/maltedev/wb-listing-scraper/internal/console"
	"github.com/maltedev/wb-listing-scraper/internal/dom"
	"github.com/maltedev/wb-listing-scraper/internal/metrics"
	"github.com/maltedev/wb-listing-scraper/internal/models"
	"github.com/maltedev/wb-listing-scraper/internal/parser"
	"github.com/maltedev/wb-listing-scraper/internal/storage"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resultsPage = `<html><body>
<div class="product-card">
	<a href="/catalog/1/detail.aspx"></a>
	<span class="product-card__brand">Apple</span>
	<span class="product-card__name">Чехол MagSafe прозрачный</span>
	<ins class="price__lower-price">2 490 ₽</ins>
</div>
<div class="product-card">
	<a href="/catalog/2/detail.aspx"></a>
	<span class="product-card__name">Без цены</span>
</div>
<div class="product-card">
	<a href="https://www.wildberries.ru/catalog/3/detail.aspx"></a>
	<span class="product-card__brand">Samsung</span>
	<span class="product-card__name">Чехол силиконовый</span>
	<span class="final-cost">399 ₽</span>
	<span class="product-card__rating">4.9</span>
</div>
<div class="product-card">
	<ins class="price__lower-price">100 ₽</ins>
</div>
</body></html>`

type countingPause struct{ calls int }

func (p *countingPause) Wait(ctx context.Context) error {
	p.calls++
	return nil
}

func newTestService(m *metrics.Metrics, pause Pauser) *Service {
	return NewService(Options{
		Loader:  LoaderOptions{MaxScrolls: 10, StablePolls: 2},
		Pause:   pause,
		Metrics: m,
	}, testLogger())
}

func TestSearchProductsEndToEnd(t *testing.T) {
	m := metrics.New()
	pause := &countingPause{}
	svc := newTestService(m, pause)

	session, err := svc.SearchProducts(context.Background(), &parser.SnapshotBrowser{HTML: resultsPage}, "phone case")
	require.NoError(t, err)

	assert.Equal(t, "phone case", session.Query)
	assert.Equal(t, "https://www.wildberries.ru/catalog/0/search.aspx?search=phone%20case", session.URL)
	assert.Equal(t, 4, session.CardsSeen)
	assert.Equal(t, 2, session.Skipped())
	assert.Equal(t, 1, pause.calls)

	require.Len(t, session.Records, 2)
	assert.Equal(t, "Чехол MagSafe прозрачный", session.Records[0].Name)
	assert.Equal(t, "2490", session.Records[0].Price)
	assert.Equal(t, "https://www.wildberries.ru/catalog/1/detail.aspx", session.Records[0].Link)
	assert.Equal(t, "Samsung", session.Records[1].Brand)
	assert.Equal(t, "399", session.Records[1].Price)
	assert.Equal(t, "4.9", session.Records[1].Rating)

	for _, r := range session.Records {
		assert.True(t, r.Accepted())
	}

	assert.Equal(t, 4.0, testutil.ToFloat64(m.CardsTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RecordsAccepted))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CardsSkipped.WithLabelValues("rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchesTotal.WithLabelValues("ok")))
}

func TestSearchProductsNavigationFailure(t *testing.T) {
	m := metrics.New()
	b := &stubBrowser{err: errors.New("net::ERR_NAME_NOT_RESOLVED")}

	session, err := newTestService(m, nil).SearchProducts(context.Background(), b, "phone case")

	var searchErr *SearchError
	require.True(t, errors.As(err, &searchErr))
	assert.Equal(t, "navigate", searchErr.Stage)
	require.NotNil(t, session)
	assert.Empty(t, session.Records)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchesTotal.WithLabelValues("search_navigate")))
}

func TestSearchProductsNoCards(t *testing.T) {
	page := &stubPage{}
	session, err := newTestService(nil, nil).SearchProducts(context.Background(), &stubBrowser{page: page}, "nothing")

	require.NoError(t, err)
	assert.Empty(t, session.Records)
	assert.Equal(t, 0, session.CardsSeen)
	assert.True(t, page.closed)
}

func TestSearchProductsSkipsBrokenCard(t *testing.T) {
	good := cardsOf(t, resultsPage)
	cards := []dom.Element{good[0], brokenElement{}, good[2]}
	page := &stubPage{cards: cards}

	session, err := newTestService(nil, nil).SearchProducts(context.Background(), &stubBrowser{page: page}, "phone case")
	require.NoError(t, err)

	require.Len(t, session.Records, 2)
	assert.Equal(t, 1, session.CardsFailed)
	assert.Equal(t, "Чехол MagSafe прозрачный", session.Records[0].Name)
	assert.Equal(t, "Чехол силиконовый", session.Records[1].Name)
	assert.True(t, page.closed)
}

func TestSearchProductsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	session, err := newTestService(nil, nil).SearchProducts(ctx, &parser.SnapshotBrowser{HTML: resultsPage}, "phone case")

	var searchErr *SearchError
	require.True(t, errors.As(err, &searchErr))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, session.Records)
}

// cancellingElement cancels the run when its link is looked up.
type cancellingElement struct {
	dom.Element
	cancel context.CancelFunc
}

func (e cancellingElement) QueryFirst(ctx context.Context, selector string) (dom.Element, error) {
	if selector == "a" {
		e.cancel()
	}
	return e.Element.QueryFirst(ctx, selector)
}

func TestSearchProductsCancelledMidExtractionReturnsNoRecords(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	good := cardsOf(t, resultsPage)
	cards := []dom.Element{good[0], cancellingElement{Element: good[2], cancel: cancel}, good[2]}
	page := &stubPage{cards: cards}

	session, err := newTestService(nil, nil).SearchProducts(ctx, &stubBrowser{page: page}, "phone case")

	var searchErr *SearchError
	require.True(t, errors.As(err, &searchErr))
	assert.Equal(t, "extract", searchErr.Stage)
	require.NotNil(t, session)
	assert.Empty(t, session.Records)
	assert.Equal(t, 3, session.CardsSeen)
	assert.True(t, page.closed)
}

func TestSearchResultsDisplayedAndWritten(t *testing.T) {
	session, err := newTestService(nil, nil).SearchProducts(context.Background(), &parser.SnapshotBrowser{HTML: resultsPage}, "phone case")
	require.NoError(t, err)
	require.Len(t, session.Records, 2)

	var out bytes.Buffer
	console.DisplayResults(&out, session.Query, session.Records)
	entries := regexp.MustCompile(`(?m)^PRODUCT \d+:$`).FindAllString(out.String(), -1)
	assert.Len(t, entries, 2)

	var buf bytes.Buffer
	require.NoError(t, storage.WriteCSV(&buf, session.Records))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, models.CSVHeader[1:], rows[0][1:])
	assert.Equal(t, session.Records[0].CSVRow(), rows[1])
	assert.Equal(t, session.Records[1].CSVRow(), rows[2])
}

func TestErrorTypeLabel(t *testing.T) {
	assert.Equal(t, "none", errorTypeLabel(nil))
	assert.Equal(t, "rejected", errorTypeLabel(ErrRecordRejected))
	assert.Equal(t, "card", errorTypeLabel(&CardError{Err: errDetached}))
	assert.Equal(t, "search_load", errorTypeLabel(&SearchError{Stage: "load", Err: errDetached}))
	assert.Equal(t, "other", errorTypeLabel(errDetached))
}
