package report

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/prism-sec/prism/pkg/store"
)

// Report types
const (
	TypeExecutive = "executive"
	TypeTechnical = "technical"
)

// Generator renders vulnerability risk reports from stored scores
type Generator struct {
	store     *store.Store
	logger    *logrus.Logger
	outputDir string
	topLimit  int
}

// NewGenerator creates a report generator writing into outputDir
func NewGenerator(s *store.Store, outputDir string, topLimit int, logger *logrus.Logger) *Generator {
	if logger == nil {
		logger = logrus.New()
	}
	if topLimit <= 0 {
		topLimit = 10
	}
	return &Generator{
		store:     s,
		logger:    logger,
		outputDir: outputDir,
		topLimit:  topLimit,
	}
}

// reportData feeds both report templates
type reportData struct {
	ReportID    string
	GeneratedAt string
	Stats       store.Stats
	TopRisks    []store.RankedVulnerability
}

var executiveTemplate = template.Must(template.New("executive").Parse(`<!DOCTYPE html>
<html>
<head><title>PRISM Executive Risk Report</title></head>
<body>
  <h1>Executive Vulnerability Risk Summary</h1>
  <p>Report {{.ReportID}} generated {{.GeneratedAt}}</p>
  <h2>Key Risk Metrics</h2>
  <ul>
    <li>Total Vulnerabilities: {{.Stats.Total}}</li>
    <li>Critical Risk: {{.Stats.Critical}}</li>
    <li>High Risk: {{.Stats.High}}</li>
    <li>Medium Risk: {{.Stats.Medium}}</li>
    <li>Low Risk: {{.Stats.Low}}</li>
    <li>Awaiting Scoring: {{.Stats.Unscored}}</li>
  </ul>
  <h2>Recommendations</h2>
  <p>Immediate action required for {{.Stats.Critical}} critical vulnerabilities. Prioritize internet-facing assets.</p>
</body>
</html>
`))

var technicalTemplate = template.Must(template.New("technical").Parse(`<!DOCTYPE html>
<html>
<head><title>PRISM Technical Risk Report</title></head>
<body>
  <h1>Technical Vulnerability Analysis</h1>
  <p>Report {{.ReportID}} generated {{.GeneratedAt}}</p>
  <h2>Detailed Risk Breakdown</h2>
  <table border="1">
    <tr><th>ID</th><th>Title</th><th>Risk Score</th><th>CVSS</th><th>Category</th></tr>
    {{range .TopRisks}}
    <tr>
      <td>{{.Record.ID}}</td>
      <td>{{.Record.Title}}</td>
      <td>{{printf "%.1f" .Score.EnhancedScore}}</td>
      <td>{{printf "%.1f" .Record.CVSS}}</td>
      <td>{{.Score.Category}}</td>
    </tr>
    {{end}}
  </table>
</body>
</html>
`))

// Generate renders a report of the given type and returns the output path
func (g *Generator) Generate(reportType string) (string, error) {
	var tmpl *template.Template
	switch reportType {
	case TypeExecutive:
		tmpl = executiveTemplate
	case TypeTechnical:
		tmpl = technicalTemplate
	default:
		return "", fmt.Errorf("unknown report type: %s", reportType)
	}

	stats, err := g.store.Stats()
	if err != nil {
		return "", fmt.Errorf("collecting stats: %w", err)
	}
	topRisks, err := g.store.TopRisks(g.topLimit)
	if err != nil {
		return "", fmt.Errorf("collecting top risks: %w", err)
	}

	now := time.Now()
	data := reportData{
		ReportID:    uuid.NewString(),
		GeneratedAt: now.Format(time.RFC3339),
		Stats:       stats,
		TopRisks:    topRisks,
	}

	if err := os.MkdirAll(g.outputDir, 0755); err != nil {
		return "", fmt.Errorf("creating report directory: %w", err)
	}

	filename := fmt.Sprintf("%s_report_%s.html", reportType, now.Format("20060102_150405"))
	outputPath := filepath.Join(g.outputDir, filename)

	f, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("creating report file: %w", err)
	}
	defer f.Close()

	if err := tmpl.Execute(f, data); err != nil {
		return "", fmt.Errorf("rendering %s report: %w", reportType, err)
	}

	g.logger.Infof("Generated %s report: %s", reportType, outputPath)
	return outputPath, nil
}
