package intel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prism-sec/prism/pkg/models"
	"github.com/sirupsen/logrus"
)

// DefaultEPSS is assigned to identifiers with no feed data. Not zero,
// so unscored items never look safely unexploitable.
const DefaultEPSS = 0.1

// FeedConfig holds the threat intelligence feed endpoints
type FeedConfig struct {
	KEVURL  string
	EPSSURL string
	Timeout time.Duration
}

// DefaultFeedConfig returns the standard public feed endpoints
func DefaultFeedConfig() FeedConfig {
	return FeedConfig{
		KEVURL:  "https://www.cisa.gov/sites/default/files/feeds/known_exploited_vulnerabilities.json",
		EPSSURL: "https://api.first.org/data/v1/epss",
		Timeout: 30 * time.Second,
	}
}

// FeedResult summarizes one feed update attempt
type FeedResult struct {
	Feed      string    `json:"feed"`
	Processed int       `json:"processed"`
	UpdatedAt time.Time `json:"updated_at"`
	Err       error     `json:"-"`
}

// Manager integrates threat intelligence feeds and answers per-CVE
// intelligence lookups. Lookups are safe for concurrent use; feed
// updates take the write lock.
type Manager struct {
	config FeedConfig
	client *http.Client
	logger *logrus.Logger

	mu   sync.RWMutex
	kev  map[string]bool
	epss map[string]float64
}

// NewManager creates a threat intelligence manager
func NewManager(cfg FeedConfig, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Manager{
		config: cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
		kev:    make(map[string]bool),
		epss:   make(map[string]float64),
	}
}

// kevCatalog mirrors the CISA KEV JSON feed structure
type kevCatalog struct {
	Vulnerabilities []struct {
		CVEID string `json:"cveID"`
	} `json:"vulnerabilities"`
}

// epssResponse mirrors the FIRST EPSS API response. Scores arrive as
// strings in the upstream payload.
type epssResponse struct {
	Data []struct {
		CVE  string `json:"cve"`
		EPSS string `json:"epss"`
	} `json:"data"`
}

// UpdateFeeds fetches and processes all configured feeds. A failure in
// one feed is reported in its FeedResult and does not block the others.
func (m *Manager) UpdateFeeds(ctx context.Context) []FeedResult {
	results := make([]FeedResult, 0, 2)

	if m.config.KEVURL != "" {
		results = append(results, m.updateKEV(ctx))
	}
	if m.config.EPSSURL != "" {
		results = append(results, m.updateEPSS(ctx))
	}

	for _, r := range results {
		if r.Err != nil {
			m.logger.Errorf("Failed to update %s feed: %v", r.Feed, r.Err)
		} else {
			m.logger.Infof("Updated %s feed: %d entries", r.Feed, r.Processed)
		}
	}
	return results
}

func (m *Manager) updateKEV(ctx context.Context) FeedResult {
	result := FeedResult{Feed: "cisa_kev", UpdatedAt: time.Now()}

	body, err := m.fetch(ctx, m.config.KEVURL)
	if err != nil {
		result.Err = err
		return result
	}

	var catalog kevCatalog
	if err := json.Unmarshal(body, &catalog); err != nil {
		result.Err = fmt.Errorf("parsing KEV catalog: %w", err)
		return result
	}

	entries := make(map[string]bool, len(catalog.Vulnerabilities))
	for _, v := range catalog.Vulnerabilities {
		if v.CVEID != "" {
			entries[v.CVEID] = true
		}
	}

	m.mu.Lock()
	m.kev = entries
	m.mu.Unlock()

	result.Processed = len(entries)
	return result
}

func (m *Manager) updateEPSS(ctx context.Context) FeedResult {
	result := FeedResult{Feed: "epss", UpdatedAt: time.Now()}

	body, err := m.fetch(ctx, m.config.EPSSURL)
	if err != nil {
		result.Err = err
		return result
	}

	var resp epssResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		result.Err = fmt.Errorf("parsing EPSS response: %w", err)
		return result
	}

	scores := make(map[string]float64, len(resp.Data))
	for _, entry := range resp.Data {
		score, err := strconv.ParseFloat(entry.EPSS, 64)
		if err != nil || entry.CVE == "" {
			continue
		}
		scores[entry.CVE] = score
	}

	m.mu.Lock()
	for cve, score := range scores {
		m.epss[cve] = score
	}
	m.mu.Unlock()

	result.Processed = len(scores)
	return result
}

func (m *Manager) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: unexpected status %d", url, resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// GetIntelligence returns the threat intelligence signals for a CVE.
// KEV catalog membership marks a vulnerability as known-exploited and
// observed in the wild. Unknown identifiers get the default EPSS
// score, never zero.
func (m *Manager) GetIntelligence(cveID string) models.Intelligence {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inKEV := m.kev[cveID]
	epss, ok := m.epss[cveID]
	if !ok {
		epss = DefaultEPSS
	}

	return models.Intelligence{
		CVEID:      cveID,
		HasExploit: inKEV,
		InWild:     inKEV,
		EPSS:       epss,
	}
}

// KnownExploitedCount returns the number of entries in the KEV set
func (m *Manager) KnownExploitedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.kev)
}
