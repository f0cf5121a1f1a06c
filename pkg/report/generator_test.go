package report

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prism-sec/prism/pkg/models"
	"github.com/prism-sec/prism/pkg/store"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func seededStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "prism.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.StoreVulnerability(models.VulnerabilityRecord{
		ID: "CVE-2024-0001", Title: "SQL Injection", Severity: "critical", CVSS: 9.8,
	}))
	require.NoError(t, s.StoreScore(models.ScoreResult{
		VulnerabilityID: "CVE-2024-0001",
		BaseScore:       9.8,
		EnhancedScore:   10.0,
		Category:        models.RiskCritical,
		Factors:         map[string]float64{"in_wild": 1.5},
		ScoredAt:        time.Now(),
	}))
	return s
}

func TestGenerate_Executive(t *testing.T) {
	dir := t.TempDir()
	gen := NewGenerator(seededStore(t), dir, 10, quietLogger())

	path, err := gen.Generate(TypeExecutive)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "executive_report_"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	html := string(content)
	assert.Contains(t, html, "Executive Vulnerability Risk Summary")
	assert.Contains(t, html, "Total Vulnerabilities: 1")
	assert.Contains(t, html, "Critical Risk: 1")
}

func TestGenerate_Technical(t *testing.T) {
	dir := t.TempDir()
	gen := NewGenerator(seededStore(t), dir, 10, quietLogger())

	path, err := gen.Generate(TypeTechnical)
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	html := string(content)
	assert.Contains(t, html, "CVE-2024-0001")
	assert.Contains(t, html, "SQL Injection")
	assert.Contains(t, html, "10.0")
	assert.Contains(t, html, "CRITICAL")
}

func TestGenerate_UnknownType(t *testing.T) {
	gen := NewGenerator(seededStore(t), t.TempDir(), 10, quietLogger())

	_, err := gen.Generate("quarterly")
	assert.Error(t, err)
}
