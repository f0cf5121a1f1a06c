package prioritizer

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prism-sec/prism/pkg/assets"
	"github.com/prism-sec/prism/pkg/ingest"
	"github.com/prism-sec/prism/pkg/intel"
	"github.com/prism-sec/prism/pkg/models"
	"github.com/prism-sec/prism/pkg/scoring"
	"github.com/prism-sec/prism/pkg/store"
)

// fakeIntel serves canned intelligence without any feed dependency
type fakeIntel struct {
	data map[string]models.Intelligence
}

func (f *fakeIntel) GetIntelligence(cveID string) models.Intelligence {
	if sig, ok := f.data[cveID]; ok {
		return sig
	}
	return models.Intelligence{CVEID: cveID, EPSS: intel.DefaultEPSS}
}

const vulnsJSON = `[
	{"id": "CVE-2024-0001", "title": "SQL Injection", "severity": "critical", "cvss_score": 9.8, "published_date": "2024-01-15T10:00:00Z"},
	{"id": "CVE-2024-0002", "title": "Buffer Overflow", "severity": "high", "cvss_score": 7.5},
	{"id": "CVE-2024-0003", "title": "Info Disclosure", "severity": "low", "cvss_score": 2.0}
]`

const assetsYAML = `assets:
  - id: payment-01
    type: payment-gateway
    ip_addresses: ["203.0.113.4"]
    vulnerabilities: ["CVE-2024-0001"]
  - id: intranet-01
    type: wiki
    ip_addresses: ["10.1.1.1"]
    vulnerabilities: ["CVE-2024-0002"]
`

func newTestPrioritizer(t *testing.T) (*Prioritizer, *store.Store, string) {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	dir := t.TempDir()
	vulnsPath := filepath.Join(dir, "vulns.json")
	require.NoError(t, os.WriteFile(vulnsPath, []byte(vulnsJSON), 0644))
	assetsPath := filepath.Join(dir, "assets.yaml")
	require.NoError(t, os.WriteFile(assetsPath, []byte(assetsYAML), 0644))

	s, err := store.Open(filepath.Join(dir, "prism.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	inventory, err := assets.LoadInventory(assetsPath)
	require.NoError(t, err)

	intelProvider := &fakeIntel{data: map[string]models.Intelligence{
		"CVE-2024-0001": {CVEID: "CVE-2024-0001", HasExploit: true, InWild: true, EPSS: 0.97},
	}}

	p := New(
		scoring.NewEngine(),
		assets.NewAnalyzer(logger),
		intelProvider,
		inventory,
		s,
		ingest.NewIngester(logger),
		4,
		logger,
	)
	return p, s, vulnsPath
}

func TestPrioritizer_IngestAndScoreAll(t *testing.T) {
	p, s, vulnsPath := newTestPrioritizer(t)
	ctx := context.Background()

	count, err := p.Ingest(ctx, vulnsPath, ingest.TypeAuto)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	summary, err := p.ScoreAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Scored)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 1, summary.NoAsset)

	// Actively exploited critical vulnerability on an internet-facing
	// payment asset must clamp at the maximum
	result, err := s.GetScore("CVE-2024-0001")
	require.NoError(t, err)
	assert.Equal(t, 10.0, result.EnhancedScore)
	assert.Equal(t, models.RiskCritical, result.Category)
	assert.Contains(t, result.Factors, scoring.FactorCriticality)
	assert.Contains(t, result.Factors, scoring.FactorInWild)

	// Internal low-criticality asset discounts the base score
	result, err = s.GetScore("CVE-2024-0002")
	require.NoError(t, err)
	assert.Contains(t, result.Factors, scoring.FactorCriticality)
	assert.Equal(t, 0.8, result.Factors[scoring.FactorCriticality])

	// No asset, no intel flags: score passes through untouched
	result, err = s.GetScore("CVE-2024-0003")
	require.NoError(t, err)
	assert.Equal(t, 2.0, result.EnhancedScore)
	assert.Equal(t, models.RiskLow, result.Category)
}

func TestPrioritizer_ScoreAllIdempotent(t *testing.T) {
	p, s, vulnsPath := newTestPrioritizer(t)
	ctx := context.Background()

	_, err := p.Ingest(ctx, vulnsPath, ingest.TypeAuto)
	require.NoError(t, err)

	_, err = p.ScoreAll(ctx)
	require.NoError(t, err)
	first, err := s.GetScore("CVE-2024-0002")
	require.NoError(t, err)

	_, err = p.ScoreAll(ctx)
	require.NoError(t, err)
	second, err := s.GetScore("CVE-2024-0002")
	require.NoError(t, err)

	assert.Equal(t, first.EnhancedScore, second.EnhancedScore)
	assert.Equal(t, first.Category, second.Category)
}

func TestPrioritizer_ScoreAllEmptyStore(t *testing.T) {
	p, _, _ := newTestPrioritizer(t)

	summary, err := p.ScoreAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Scored)
}

func TestPrioritizer_CancelledContext(t *testing.T) {
	p, _, vulnsPath := newTestPrioritizer(t)

	_, err := p.Ingest(context.Background(), vulnsPath, ingest.TypeAuto)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.ScoreAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
