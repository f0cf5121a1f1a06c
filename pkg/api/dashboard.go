package api

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/prism-sec/prism/pkg/config"
	"github.com/prism-sec/prism/pkg/store"
)

// DashboardServer serves the web dashboard and its JSON API
type DashboardServer struct {
	config config.DashboardConfig
	router *gin.Engine
	store  *store.Store
	logger *logrus.Logger
	limit  int
}

var dashboardPage = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html>
<head><title>PRISM Dashboard</title></head>
<body>
  <h1>PRISM - Vulnerability Risk Dashboard</h1>
  <div id="stats">
    <h2>Risk Statistics</h2>
    <p>Total Vulnerabilities: <span id="total">Loading...</span></p>
    <p>Critical Risk: <span id="critical">Loading...</span></p>
    <p>High Risk: <span id="high">Loading...</span></p>
  </div>
  <script>
    fetch('/api/stats').then(r => r.json()).then(data => {
      document.getElementById('total').textContent = data.total;
      document.getElementById('critical').textContent = data.critical;
      document.getElementById('high').textContent = data.high;
    });
  </script>
</body>
</html>
`))

// NewDashboardServer creates a dashboard server backed by the given store
func NewDashboardServer(cfg config.DashboardConfig, s *store.Store, topLimit int, logger *logrus.Logger) *DashboardServer {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if topLimit <= 0 {
		topLimit = 10
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.SetHTMLTemplate(dashboardPage)

	server := &DashboardServer{
		config: cfg,
		router: router,
		store:  s,
		logger: logger,
		limit:  topLimit,
	}

	router.GET("/", server.handleDashboard)
	router.GET("/api/stats", server.handleStats)
	router.GET("/api/top-risks", server.handleTopRisks)
	router.GET("/api/vulnerabilities", server.handleVulnerabilities)

	return server
}

// Start runs the dashboard server on the configured host and port
func (s *DashboardServer) Start() error {
	addr := s.config.Host + ":" + s.config.Port
	s.logger.Infof("Starting dashboard server on %s", addr)
	return s.router.Run(addr)
}

// Router exposes the gin engine for testing
func (s *DashboardServer) Router() http.Handler {
	return s.router
}

func (s *DashboardServer) handleDashboard(c *gin.Context) {
	c.HTML(http.StatusOK, "dashboard", nil)
}

func (s *DashboardServer) handleStats(c *gin.Context) {
	stats, err := s.store.Stats()
	if err != nil {
		s.logger.Errorf("Failed to collect stats: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to collect stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *DashboardServer) handleTopRisks(c *gin.Context) {
	ranked, err := s.store.TopRisks(s.limit)
	if err != nil {
		s.logger.Errorf("Failed to collect top risks: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to collect top risks"})
		return
	}

	type entry struct {
		ID       string  `json:"id"`
		Title    string  `json:"title"`
		Score    float64 `json:"score"`
		Category string  `json:"category"`
	}
	out := make([]entry, 0, len(ranked))
	for _, rv := range ranked {
		out = append(out, entry{
			ID:       rv.Record.ID,
			Title:    rv.Record.Title,
			Score:    rv.Score.EnhancedScore,
			Category: string(rv.Score.Category),
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *DashboardServer) handleVulnerabilities(c *gin.Context) {
	records, err := s.store.ListVulnerabilities()
	if err != nil {
		s.logger.Errorf("Failed to list vulnerabilities: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list vulnerabilities"})
		return
	}
	c.JSON(http.StatusOK, records)
}
