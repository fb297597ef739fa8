package scenario

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

// CSVPreview is the shell-facing preview of a CSV file: headers, the first
// sample rows and the total row count.
type CSVPreview struct {
	Headers   []string   `json:"headers"`
	Rows      [][]string `json:"rows"`
	TotalRows int        `json:"totalRows"`
}

func newCSVReader(file *os.File, cfg *CSVConfig) *csv.Reader {
	reader := csv.NewReader(file)
	if cfg != nil && cfg.Delimiter != "" {
		reader.Comma = rune(cfg.Delimiter[0])
	}
	// encoding/csv has no configurable quote rune; the default `"` matches
	// the engine's default. A non-default quote char falls back to `"`.
	reader.TrimLeadingSpace = false
	return reader
}

// ReadCSVRecords reads a whole CSV file into header-keyed row maps.
func ReadCSVRecords(filePath string, cfg *CSVConfig) ([]map[string]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("CSV file not found: %s", filePath)
		}
		return nil, fmt.Errorf("opening CSV file: %w", err)
	}
	defer file.Close()

	reader := newCSVReader(file, cfg)

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV headers: %w", err)
	}

	var records []map[string]string
	for {
		row, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("reading CSV row %d: %w", len(records)+1, err)
		}

		record := make(map[string]string, len(headers))
		for i, field := range row {
			if i < len(headers) {
				record[headers[i]] = field
			}
		}
		records = append(records, record)
	}

	return records, nil
}

// PreviewCSV reads headers, the first maxRows rows, and counts all rows.
func PreviewCSV(filePath string, cfg *CSVConfig, maxRows int) (*CSVPreview, error) {
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("CSV file not found: %s", filePath)
		}
		return nil, fmt.Errorf("opening CSV file: %w", err)
	}
	defer file.Close()

	reader := newCSVReader(file, cfg)

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV headers: %w", err)
	}

	preview := &CSVPreview{Headers: headers, Rows: [][]string{}}
	for {
		row, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("reading CSV row %d: %w", preview.TotalRows+1, err)
		}

		preview.TotalRows++
		if len(preview.Rows) < maxRows {
			preview.Rows = append(preview.Rows, row)
		}
	}

	return preview, nil
}
