package models

import (
	"time"
)

// RiskCategory represents the discrete risk bucket assigned to a score
type RiskCategory string

const (
	RiskLow      RiskCategory = "LOW"
	RiskMedium   RiskCategory = "MEDIUM"
	RiskHigh     RiskCategory = "HIGH"
	RiskCritical RiskCategory = "CRITICAL"
)

// riskRanks orders categories from least to most severe
var riskRanks = map[RiskCategory]int{
	RiskLow:      0,
	RiskMedium:   1,
	RiskHigh:     2,
	RiskCritical: 3,
}

// Rank returns the ordering of the category, LOW=0 through CRITICAL=3.
// Unknown categories rank below LOW.
func (r RiskCategory) Rank() int {
	if rank, ok := riskRanks[r]; ok {
		return rank
	}
	return -1
}

// String returns the string representation of the category
func (r RiskCategory) String() string {
	return string(r)
}

// ScoreResult holds the outcome of scoring a single vulnerability.
// Results are created fresh per scoring call and never mutated.
type ScoreResult struct {
	VulnerabilityID string             `json:"vulnerability_id"`
	BaseScore       float64            `json:"base_score"`     // Age-adjusted CVSS, range 0-10
	EnhancedScore   float64            `json:"enhanced_score"` // Context/intel adjusted score, clamped to 0-10
	Category        RiskCategory       `json:"category"`
	Factors         map[string]float64 `json:"factors"` // Multipliers applied, by factor name
	ScoredAt        time.Time          `json:"scored_at"`
}
