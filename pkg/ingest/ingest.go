package ingest

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prism-sec/prism/pkg/models"
	"github.com/sirupsen/logrus"
)

// Source types accepted by Ingest
const (
	TypeAuto = "auto"
	TypeJSON = "json"
	TypeCSV  = "csv"
	TypeAPI  = "api"
)

// dateFormats are tried in order when parsing publication dates
var dateFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Ingester reads vulnerability data from JSON files, CSV files, and
// HTTP APIs, normalizing heterogeneous field names into
// VulnerabilityRecords.
type Ingester struct {
	client *http.Client
	logger *logrus.Logger
}

// NewIngester creates a vulnerability data ingester
func NewIngester(logger *logrus.Logger) *Ingester {
	if logger == nil {
		logger = logrus.New()
	}
	return &Ingester{
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

// Ingest reads vulnerabilities from the given source. With TypeAuto
// the source type is detected from the file extension; sources with
// an http(s) scheme are treated as APIs.
func (i *Ingester) Ingest(ctx context.Context, source, sourceType string) ([]models.VulnerabilityRecord, error) {
	if sourceType == TypeAuto || sourceType == "" {
		sourceType = detectType(source)
	}

	var raw []map[string]any
	var err error

	switch sourceType {
	case TypeJSON:
		raw, err = i.readJSON(source)
	case TypeCSV:
		raw, err = i.readCSV(source)
	case TypeAPI:
		raw, err = i.readAPI(ctx, source)
	default:
		return nil, fmt.Errorf("unsupported source type: %s", sourceType)
	}
	if err != nil {
		return nil, err
	}

	return i.Normalize(raw), nil
}

func detectType(source string) string {
	switch {
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return TypeAPI
	case strings.HasSuffix(source, ".csv"):
		return TypeCSV
	default:
		return TypeJSON
	}
}

// readJSON accepts a bare array, an object with a "vulnerabilities"
// key, or a single vulnerability object.
func (i *Ingester) readJSON(path string) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return decodeJSONPayload(data)
}

func (i *Ingester) readCSV(path string) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header from %s: %w", path, err)
	}

	var rows []map[string]any
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV row from %s: %w", path, err)
		}
		entry := make(map[string]any, len(header))
		for idx, col := range header {
			if idx < len(row) {
				entry[strings.TrimSpace(col)] = row[idx]
			}
		}
		rows = append(rows, entry)
	}
	return rows, nil
}

func (i *Ingester) readAPI(ctx context.Context, url string) ([]map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: unexpected status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return decodeJSONPayload(data)
}

func decodeJSONPayload(data []byte) ([]map[string]any, error) {
	var asList []map[string]any
	if err := json.Unmarshal(data, &asList); err == nil {
		return asList, nil
	}

	var asObject map[string]any
	if err := json.Unmarshal(data, &asObject); err != nil {
		return nil, fmt.Errorf("parsing vulnerability payload: %w", err)
	}

	if nested, ok := asObject["vulnerabilities"].([]any); ok {
		list := make([]map[string]any, 0, len(nested))
		for _, item := range nested {
			if entry, ok := item.(map[string]any); ok {
				list = append(list, entry)
			}
		}
		return list, nil
	}

	return []map[string]any{asObject}, nil
}

// Normalize maps heterogeneous source fields onto VulnerabilityRecords.
// Entries without any recognizable identifier are dropped.
func (i *Ingester) Normalize(raw []map[string]any) []models.VulnerabilityRecord {
	records := make([]models.VulnerabilityRecord, 0, len(raw))
	dropped := 0

	for _, entry := range raw {
		id := stringField(entry, "id", "cve_id", "vulnerability_id")
		if id == "" {
			dropped++
			continue
		}

		title := stringField(entry, "title", "summary")
		if title == "" {
			if desc := stringField(entry, "description"); desc != "" {
				if len(desc) > 100 {
					desc = desc[:100]
				}
				title = desc
			}
		}

		severity := strings.ToLower(stringField(entry, "severity"))
		if severity == "" {
			severity = "medium"
		}

		records = append(records, models.VulnerabilityRecord{
			ID:            id,
			Title:         title,
			Severity:      severity,
			CVSS:          floatField(entry, "cvss_score", "cvss"),
			PublishedDate: dateField(entry, "published_date", "date"),
			HasExploit:    boolField(entry, "has_exploit"),
			InWild:        boolField(entry, "in_wild"),
		})
	}

	if dropped > 0 {
		i.logger.Warnf("Dropped %d entries without a vulnerability identifier", dropped)
	}
	i.logger.Infof("Normalized %d vulnerabilities", len(records))
	return records
}

func stringField(entry map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := entry[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func floatField(entry map[string]any, keys ...string) float64 {
	for _, key := range keys {
		switch v := entry[key].(type) {
		case float64:
			return v
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
		}
	}
	return 0
}

func boolField(entry map[string]any, keys ...string) bool {
	for _, key := range keys {
		switch v := entry[key].(type) {
		case bool:
			return v
		case string:
			if b, err := strconv.ParseBool(v); err == nil {
				return b
			}
		}
	}
	return false
}

func dateField(entry map[string]any, keys ...string) *time.Time {
	raw := stringField(entry, keys...)
	if raw == "" {
		return nil
	}
	for _, format := range dateFormats {
		if t, err := time.Parse(format, raw); err == nil {
			return &t
		}
	}
	return nil
}
