package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"vehicle-registration-visualizer/pkg/aggregate"
)

// RecordSource loads the full registration record set. A failed fetch is a
// load failure; sources never retry.
type RecordSource interface {
	Fetch(ctx context.Context) ([]aggregate.Record, error)
}

type CsvFileRecordSource struct {
	path string
}

func NewCsvFileRecordSource(path string) *CsvFileRecordSource {
	return &CsvFileRecordSource{path: path}
}

func (s *CsvFileRecordSource) Fetch(ctx context.Context) ([]aggregate.Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	return readCsvRecords(ctx, f)
}

type CsvHttpRecordSource struct {
	url        string
	httpClient *http.Client
}

func NewCsvHttpRecordSource(url string, timeout time.Duration) *CsvHttpRecordSource {
	return &CsvHttpRecordSource{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *CsvHttpRecordSource) Fetch(ctx context.Context) ([]aggregate.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("csv http status: %d", resp.StatusCode)
	}
	return readCsvRecords(ctx, resp.Body)
}

// csvColumns maps header names to record fields. Lookup is case-insensitive.
var csvColumns = map[string]func(*aggregate.Record, string){
	"zip_code":   func(r *aggregate.Record, v string) { r.ZipCode = v },
	"make":       func(r *aggregate.Record, v string) { r.Make = v },
	"model_year": func(r *aggregate.Record, v string) { r.ModelYear = v },
	"fuel":       func(r *aggregate.Record, v string) { r.Fuel = v },
	"duty":       func(r *aggregate.Record, v string) { r.Duty = v },
	"date":       func(r *aggregate.Record, v string) { r.Date = v },
	"lat":        func(r *aggregate.Record, v string) { r.Lat = v },
	"lon":        func(r *aggregate.Record, v string) { r.Lon = v },
	"vehicles":   func(r *aggregate.Record, v string) { r.Vehicles = v },
}

var requiredCsvColumns = []string{"zip_code", "make", "vehicles"}

func readCsvRecords(ctx context.Context, r io.Reader) ([]aggregate.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	setters := make([]func(*aggregate.Record, string), len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		setters[i] = csvColumns[name]
		seen[name] = true
	}
	for _, c := range requiredCsvColumns {
		if !seen[c] {
			return nil, fmt.Errorf("csv missing column %q", c)
		}
	}

	records := make([]aggregate.Record, 0, 1024)
	for line := 2; ; line++ {
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		var rec aggregate.Record
		for i, v := range row {
			if i < len(setters) && setters[i] != nil {
				setters[i](&rec, v)
			}
		}
		records = append(records, rec)
	}
	return records, nil
}
