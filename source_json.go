package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"vehicle-registration-visualizer/pkg/aggregate"
)

// CkanJsonRecordSource reads a CKAN datastore_search response, the JSON
// flavour of the state open data portal.
type CkanJsonRecordSource struct {
	url        string
	httpClient *http.Client
}

func NewCkanJsonRecordSource(url string, timeout time.Duration) *CkanJsonRecordSource {
	return &CkanJsonRecordSource{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *CkanJsonRecordSource) Fetch(ctx context.Context) ([]aggregate.Record, error) {
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
		return nil, fmt.Errorf("ckan json http status: %d", resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	// result.records[] with column names as keys; a bare records array is
	// accepted too.
	var root map[string]any
	if err := json.Unmarshal(b, &root); err != nil {
		return nil, err
	}
	if ok, present := root["success"].(bool); present && !ok {
		return nil, fmt.Errorf("ckan json: request not successful")
	}
	if result, ok := root["result"].(map[string]any); ok && result != nil {
		root = result
	}
	rows, _ := root["records"].([]any)
	records := make([]aggregate.Record, 0, len(rows))
	for _, rowAny := range rows {
		row, _ := rowAny.(map[string]any)
		if row == nil {
			continue
		}
		records = append(records, aggregate.Record{
			ZipCode:   stringFrom(row["zip_code"]),
			Make:      stringFrom(row["make"]),
			ModelYear: stringFrom(row["model_year"]),
			Fuel:      stringFrom(row["fuel"]),
			Duty:      stringFrom(row["duty"]),
			Date:      stringFrom(row["date"]),
			Lat:       stringFrom(row["lat"]),
			Lon:       stringFrom(row["lon"]),
			Vehicles:  stringFrom(row["vehicles"]),
		})
	}
	return records, nil
}

// stringFrom renders JSON scalars the way they would appear in the CSV.
func stringFrom(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}
