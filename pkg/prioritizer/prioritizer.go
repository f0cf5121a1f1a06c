package prioritizer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/prism-sec/prism/pkg/assets"
	"github.com/prism-sec/prism/pkg/ingest"
	"github.com/prism-sec/prism/pkg/models"
	"github.com/prism-sec/prism/pkg/scoring"
	"github.com/prism-sec/prism/pkg/store"
)

// ContextProvider derives business context for an asset
type ContextProvider interface {
	AnalyzeContext(asset models.Asset) models.AssetContext
}

// IntelligenceProvider answers per-vulnerability threat intelligence lookups
type IntelligenceProvider interface {
	GetIntelligence(cveID string) models.Intelligence
}

// Summary reports the outcome of a scoring run
type Summary struct {
	Scored   int           `json:"scored"`
	Failed   int           `json:"failed"`
	NoAsset  int           `json:"no_asset"`
	Duration time.Duration `json:"-"`
}

// Prioritizer wires ingestion, context analysis, intelligence, scoring
// and storage into the vulnerability prioritization pipeline
type Prioritizer struct {
	engine    *scoring.Engine
	contexts  ContextProvider
	intel     IntelligenceProvider
	inventory *assets.Inventory
	store     *store.Store
	ingester  *ingest.Ingester
	logger    *logrus.Logger
	threads   int
}

// New creates a prioritizer. threads bounds the scoring worker pool.
func New(engine *scoring.Engine, contexts ContextProvider, intel IntelligenceProvider,
	inventory *assets.Inventory, s *store.Store, ingester *ingest.Ingester,
	threads int, logger *logrus.Logger) *Prioritizer {

	if logger == nil {
		logger = logrus.New()
	}
	if threads <= 0 {
		threads = 1
	}
	return &Prioritizer{
		engine:    engine,
		contexts:  contexts,
		intel:     intel,
		inventory: inventory,
		store:     s,
		ingester:  ingester,
		logger:    logger,
		threads:   threads,
	}
}

// Ingest reads vulnerabilities from a source and persists them,
// returning the number stored
func (p *Prioritizer) Ingest(ctx context.Context, source, sourceType string) (int, error) {
	records, err := p.ingester.Ingest(ctx, source, sourceType)
	if err != nil {
		return 0, err
	}

	stored := 0
	for _, record := range records {
		if err := p.store.StoreVulnerability(record); err != nil {
			p.logger.Errorf("Failed to store %s: %v", record.ID, err)
			continue
		}
		stored++
	}

	p.logger.Infof("Ingested %d vulnerabilities from %s", stored, source)
	return stored, nil
}

// ScoreAll scores every stored vulnerability against its asset context
// and threat intelligence, persisting the results. Scoring runs on a
// bounded worker pool; per-record failures are logged and counted, not
// fatal. Independent scoring calls carry no ordering guarantee.
func (p *Prioritizer) ScoreAll(ctx context.Context) (Summary, error) {
	start := time.Now()

	records, err := p.store.ListVulnerabilities()
	if err != nil {
		return Summary{}, err
	}

	p.logger.Infof("Scoring %d vulnerabilities with %d workers", len(records), p.threads)

	var (
		mu      sync.Mutex
		summary Summary
		wg      sync.WaitGroup
	)

	work := make(chan models.VulnerabilityRecord)

	for i := 0; i < p.threads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for record := range work {
				hadAsset := p.scoreOne(record)
				mu.Lock()
				if hadAsset == scoreFailed {
					summary.Failed++
				} else {
					summary.Scored++
					if hadAsset == scoredWithoutAsset {
						summary.NoAsset++
					}
				}
				mu.Unlock()
			}
		}()
	}

	for _, record := range records {
		if ctx.Err() != nil {
			close(work)
			wg.Wait()
			return summary, ctx.Err()
		}
		work <- record
	}
	close(work)
	wg.Wait()

	summary.Duration = time.Since(start)
	p.logger.Infof("Scored %d vulnerabilities (%d failed, %d without asset context) in %s",
		summary.Scored, summary.Failed, summary.NoAsset, summary.Duration.Round(time.Millisecond))
	return summary, nil
}

type scoreOutcome int

const (
	scoredWithAsset scoreOutcome = iota
	scoredWithoutAsset
	scoreFailed
)

func (p *Prioritizer) scoreOne(record models.VulnerabilityRecord) scoreOutcome {
	var assetCtx *models.AssetContext
	outcome := scoredWithoutAsset

	if asset, ok := p.inventory.AssetFor(record.ID); ok {
		derived := p.contexts.AnalyzeContext(asset)
		assetCtx = &derived
		outcome = scoredWithAsset
	}

	intel := p.intel.GetIntelligence(record.ID)

	// Flags carried on the ingested record count alongside feed data
	intel.HasExploit = intel.HasExploit || record.HasExploit
	intel.InWild = intel.InWild || record.InWild

	result, err := p.engine.Score(record, assetCtx, &intel, time.Now())
	if err != nil {
		p.logger.Errorf("Failed to score %s: %v", record.ID, err)
		return scoreFailed
	}

	if err := p.store.StoreScore(result); err != nil {
		p.logger.Errorf("Failed to persist score for %s: %v", record.ID, err)
		return scoreFailed
	}
	return outcome
}
