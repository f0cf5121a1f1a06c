package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/prism-sec/prism/pkg/models"
)

// Stats holds per-category vulnerability counts for dashboards and reports
type Stats struct {
	Total    int `json:"total"`
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Unscored int `json:"unscored"`
}

// RankedVulnerability pairs a vulnerability with its score for
// prioritized listings
type RankedVulnerability struct {
	Record models.VulnerabilityRecord `json:"record"`
	Score  models.ScoreResult         `json:"score"`
}

// Store persists vulnerabilities and score results in SQLite
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// initializes the schema
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS vulnerabilities (
		id TEXT PRIMARY KEY,
		title TEXT,
		severity TEXT,
		cvss_score REAL,
		published_date TEXT,
		has_exploit INTEGER DEFAULT 0,
		in_wild INTEGER DEFAULT 0,
		created_at TEXT DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS scores (
		vuln_id TEXT PRIMARY KEY,
		base_score REAL,
		enhanced_score REAL,
		category TEXT,
		factors TEXT,
		scored_at TEXT
	);`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

// StoreVulnerability upserts a vulnerability record
func (s *Store) StoreVulnerability(record models.VulnerabilityRecord) error {
	published := ""
	if record.PublishedDate != nil {
		published = record.PublishedDate.Format(time.RFC3339)
	}

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO vulnerabilities (id, title, severity, cvss_score, published_date, has_exploit, in_wild)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.Title, record.Severity, record.CVSS, published, record.HasExploit, record.InWild)
	if err != nil {
		return fmt.Errorf("storing vulnerability %s: %w", record.ID, err)
	}
	return nil
}

// StoreScore upserts a score result, serializing the factor breakdown as JSON
func (s *Store) StoreScore(result models.ScoreResult) error {
	factors, err := json.Marshal(result.Factors)
	if err != nil {
		return fmt.Errorf("encoding factors for %s: %w", result.VulnerabilityID, err)
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO scores (vuln_id, base_score, enhanced_score, category, factors, scored_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		result.VulnerabilityID, result.BaseScore, result.EnhancedScore,
		string(result.Category), string(factors), result.ScoredAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("storing score for %s: %w", result.VulnerabilityID, err)
	}
	return nil
}

// ListVulnerabilities returns all stored vulnerability records
func (s *Store) ListVulnerabilities() ([]models.VulnerabilityRecord, error) {
	rows, err := s.db.Query(`SELECT id, title, severity, cvss_score, published_date, has_exploit, in_wild FROM vulnerabilities ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing vulnerabilities: %w", err)
	}
	defer rows.Close()

	var records []models.VulnerabilityRecord
	for rows.Next() {
		var record models.VulnerabilityRecord
		var published string
		if err := rows.Scan(&record.ID, &record.Title, &record.Severity, &record.CVSS, &published, &record.HasExploit, &record.InWild); err != nil {
			return nil, err
		}
		if published != "" {
			if t, err := time.Parse(time.RFC3339, published); err == nil {
				record.PublishedDate = &t
			}
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// GetScore returns the stored score result for a vulnerability.
// Returns sql.ErrNoRows if the vulnerability has not been scored.
func (s *Store) GetScore(vulnID string) (models.ScoreResult, error) {
	var result models.ScoreResult
	var category, factors, scoredAt string

	err := s.db.QueryRow(`
		SELECT vuln_id, base_score, enhanced_score, category, factors, scored_at
		FROM scores WHERE vuln_id = ?`, vulnID).
		Scan(&result.VulnerabilityID, &result.BaseScore, &result.EnhancedScore, &category, &factors, &scoredAt)
	if err != nil {
		return models.ScoreResult{}, err
	}

	result.Category = models.RiskCategory(category)
	if err := json.Unmarshal([]byte(factors), &result.Factors); err != nil {
		return models.ScoreResult{}, fmt.Errorf("decoding factors for %s: %w", vulnID, err)
	}
	if t, err := time.Parse(time.RFC3339, scoredAt); err == nil {
		result.ScoredAt = t
	}
	return result, nil
}

// TopRisks returns the n highest-scored vulnerabilities, most risky first
func (s *Store) TopRisks(n int) ([]RankedVulnerability, error) {
	rows, err := s.db.Query(`
		SELECT v.id, v.title, v.severity, v.cvss_score,
		       sc.base_score, sc.enhanced_score, sc.category, sc.factors
		FROM scores sc
		JOIN vulnerabilities v ON v.id = sc.vuln_id
		ORDER BY sc.enhanced_score DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("querying top risks: %w", err)
	}
	defer rows.Close()

	var ranked []RankedVulnerability
	for rows.Next() {
		var rv RankedVulnerability
		var category, factors string
		err := rows.Scan(&rv.Record.ID, &rv.Record.Title, &rv.Record.Severity, &rv.Record.CVSS,
			&rv.Score.BaseScore, &rv.Score.EnhancedScore, &category, &factors)
		if err != nil {
			return nil, err
		}
		rv.Score.VulnerabilityID = rv.Record.ID
		rv.Score.Category = models.RiskCategory(category)
		json.Unmarshal([]byte(factors), &rv.Score.Factors)
		ranked = append(ranked, rv)
	}
	return ranked, rows.Err()
}

// Stats returns vulnerability counts per risk category
func (s *Store) Stats() (Stats, error) {
	var stats Stats

	err := s.db.QueryRow(`SELECT COUNT(*) FROM vulnerabilities`).Scan(&stats.Total)
	if err != nil {
		return stats, fmt.Errorf("counting vulnerabilities: %w", err)
	}

	rows, err := s.db.Query(`SELECT category, COUNT(*) FROM scores GROUP BY category`)
	if err != nil {
		return stats, fmt.Errorf("counting scores: %w", err)
	}
	defer rows.Close()

	scored := 0
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return stats, err
		}
		scored += count
		switch models.RiskCategory(category) {
		case models.RiskCritical:
			stats.Critical = count
		case models.RiskHigh:
			stats.High = count
		case models.RiskMedium:
			stats.Medium = count
		case models.RiskLow:
			stats.Low = count
		}
	}
	stats.Unscored = stats.Total - scored
	if stats.Unscored < 0 {
		stats.Unscored = 0
	}
	return stats, rows.Err()
}
