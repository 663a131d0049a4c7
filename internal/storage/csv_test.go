package storage

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/maltedev/wb-listing-scraper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []models.ProductRecord {
	return []models.ProductRecord{
		{Brand: "Apple", Name: "Чехол MagSafe", Price: "2490", Rating: "4.9", Reviews: "120",
			Link: "https://www.wildberries.ru/catalog/1/detail.aspx", ParseDate: "2025-03-14 09:26:53"},
		{Brand: models.DefaultBrand, Name: "Чехол, книжка \"люкс\"", Price: "399", Rating: models.DefaultRating,
			Reviews: models.DefaultReviews, Link: models.DefaultLink, ParseDate: "2025-03-14 09:26:54"},
	}
}

func TestCSVFileName(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	assert.Equal(t, "wildberries_all_products_phone case_20250314_092653.csv", CSVFileName("phone case", ts))
	assert.Equal(t, "wildberries_all_products_a_b_20250314_092653.csv", CSVFileName("a/b", ts))
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleRecords()))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "\ufeff"))

	rows, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(out, "\ufeff"))).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, []string{"brand", "name", "price", "rating", "reviews", "link", "parse_date"}, rows[0])
	assert.Equal(t, "Чехол, книжка \"люкс\"", rows[2][1])
	assert.Equal(t, "399", rows[2][2])
}

func TestSaveCSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	ts := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	path, err := SaveCSV(dir, "phone case", sampleRecords(), ts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "wildberries_all_products_phone case_20250314_092653.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	rows, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(data), "\ufeff"))).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, len(sampleRecords())+1)
}

func TestSaveCSVNoRecords(t *testing.T) {
	_, err := SaveCSV(t.TempDir(), "phone case", nil, time.Now())
	assert.ErrorIs(t, err, ErrNoRecords)
}
