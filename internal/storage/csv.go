package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/maltedev/wb-listing-scraper/internal/models"
)

// ErrNoRecords is returned when there is nothing to export.
var ErrNoRecords = errors.New("no records to save")

const utf8BOM = "\ufeff"

// CSVFileName builds wildberries_all_products_<query>_<YYYYMMDD_HHMMSS>.csv.
func CSVFileName(query string, t time.Time) string {
	safe := strings.NewReplacer("/", "_", `\`, "_", string(os.PathSeparator), "_").Replace(query)
	return fmt.Sprintf("wildberries_all_products_%s_%s.csv", safe, t.Format("20060102_150405"))
}

// WriteCSV writes a BOM, the header row and one row per record.
func WriteCSV(w io.Writer, records []models.ProductRecord) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(models.CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records {
		if err := writer.Write(r.CSVRow()); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// SaveCSV exports records into dir and returns the file path.
func SaveCSV(dir, query string, records []models.ProductRecord, now time.Time) (string, error) {
	if len(records) == 0 {
		return "", ErrNoRecords
	}

	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}

	path := filepath.Join(dir, CSVFileName(query, now))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create csv file: %w", err)
	}

	if err := WriteCSV(f, records); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close csv file: %w", err)
	}

	return path, nil
}
