package scoring

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/prism-sec/prism/pkg/models"
)

// ErrInvalidInput is returned when a caller supplies a non-finite base score.
// Missing optional context or intelligence is never an error.
var ErrInvalidInput = errors.New("invalid input")

// Factor names recorded in the score breakdown
const (
	FactorAge         = "age"
	FactorCriticality = "criticality"
	FactorExposure    = "exposure"
	FactorHasExploit  = "has_exploit"
	FactorInWild      = "in_wild"
)

const (
	maxScore = 10.0

	// Age factor bounds: fresh vulnerabilities score up to 1.2x,
	// decaying toward 1.0 for old ones
	ageFactorFloor   = 1.0
	ageFactorCeiling = 1.2

	// Decay time constant in days for the age factor
	ageDecayDays = 180.0
)

// Weights holds the multiplier table used by the scoring engine.
// The formula is fixed arithmetic; the table makes the constants
// explicit and testable rather than pluggable behavior.
type Weights struct {
	Criticality map[models.Criticality]float64
	Exposure    map[models.Exposure]float64
	HasExploit  float64
	InWild      float64
}

// DefaultWeights returns the standard multiplier table
func DefaultWeights() Weights {
	return Weights{
		Criticality: map[models.Criticality]float64{
			models.CriticalityLow:      0.8,
			models.CriticalityMedium:   1.0,
			models.CriticalityHigh:     1.3,
			models.CriticalityCritical: 1.5,
		},
		Exposure: map[models.Exposure]float64{
			models.ExposureInternal:           1.0,
			models.ExposureExternal:           1.2,
			models.ExposureInternetFacing:     1.4,
			models.ExposurePubliclyAccessible: 1.5,
		},
		HasExploit: 1.3,
		InWild:     1.5,
	}
}

// Engine computes composite risk scores. It is stateless and safe for
// concurrent use from any number of goroutines.
type Engine struct {
	weights Weights
}

// NewEngine creates a scoring engine with the standard multiplier table
func NewEngine() *Engine {
	return NewEngineWithWeights(DefaultWeights())
}

// NewEngineWithWeights creates a scoring engine with a custom multiplier table
func NewEngineWithWeights(w Weights) *Engine {
	return &Engine{weights: w}
}

// ComputeBaseScore returns the age-adjusted base score for a record.
// The CVSS score is clamped to [0,10] before adjustment, and the
// result is clamped again after. Records without a publication date
// get no age adjustment.
func (e *Engine) ComputeBaseScore(record models.VulnerabilityRecord, now time.Time) float64 {
	base := clamp(record.CVSS)
	return clamp(base * ageFactor(record.PublishedDate, now))
}

// ComputeEnhancedScore applies context and intelligence multipliers to
// a base score. Multipliers apply in fixed order: criticality,
// exposure, exploit availability, in-wild exploitation. A nil context
// or intelligence contributes a neutral 1.0 for its factors. Applied
// multipliers are recorded in the result's factor breakdown.
func (e *Engine) ComputeEnhancedScore(baseScore float64, ctx *models.AssetContext, intel *models.Intelligence) (models.ScoreResult, error) {
	if math.IsNaN(baseScore) || math.IsInf(baseScore, 0) {
		return models.ScoreResult{}, fmt.Errorf("%w: base score must be finite, got %v", ErrInvalidInput, baseScore)
	}

	score := clamp(baseScore)
	factors := make(map[string]float64)

	if ctx != nil {
		if m, ok := e.weights.Criticality[ctx.Criticality]; ok {
			score *= m
			factors[FactorCriticality] = m
		}
		if m, ok := e.weights.Exposure[ctx.Exposure]; ok {
			score *= m
			factors[FactorExposure] = m
		}
	}

	if intel != nil {
		if intel.HasExploit {
			score *= e.weights.HasExploit
			factors[FactorHasExploit] = e.weights.HasExploit
		}
		if intel.InWild {
			score *= e.weights.InWild
			factors[FactorInWild] = e.weights.InWild
		}
	}

	return models.ScoreResult{
		BaseScore:     clamp(baseScore),
		EnhancedScore: clamp(score),
		Category:      Categorize(clamp(score)),
		Factors:       factors,
	}, nil
}

// Score runs the full scoring pipeline for a single record: base score
// with age adjustment, then context and intelligence enhancement.
func (e *Engine) Score(record models.VulnerabilityRecord, ctx *models.AssetContext, intel *models.Intelligence, now time.Time) (models.ScoreResult, error) {
	base := e.ComputeBaseScore(record, now)

	result, err := e.ComputeEnhancedScore(base, ctx, intel)
	if err != nil {
		return models.ScoreResult{}, err
	}

	if f := ageFactor(record.PublishedDate, now); f != ageFactorFloor {
		result.Factors[FactorAge] = f
	}
	result.VulnerabilityID = record.ID
	result.ScoredAt = now

	return result, nil
}

// Categorize maps a score to its risk category. Thresholds are
// evaluated high to low, first match wins.
func Categorize(score float64) models.RiskCategory {
	switch {
	case score >= 9.0:
		return models.RiskCritical
	case score >= 7.0:
		return models.RiskHigh
	case score >= 4.0:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

// ageFactor returns a recency multiplier in [1.0, 1.2]. The factor
// decays exponentially with the age of the vulnerability: published
// today gives the full 1.2, six months old roughly 1.07, and very old
// records approach 1.0. Future dates clamp to the ceiling.
func ageFactor(published *time.Time, now time.Time) float64 {
	if published == nil {
		return ageFactorFloor
	}

	ageDays := now.Sub(*published).Hours() / 24
	if ageDays < 0 {
		return ageFactorCeiling
	}

	return ageFactorFloor + (ageFactorCeiling-ageFactorFloor)*math.Exp(-ageDays/ageDecayDays)
}

// clamp bounds a score to the [0, 10] CVSS range
func clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > maxScore {
		return maxScore
	}
	return score
}
