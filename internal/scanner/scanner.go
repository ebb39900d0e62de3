// Package scanner proactively seeds the global insight cache for the top
// markets by volume, independent of any user's browsing.
package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/polypilot/engine/internal/domain"
	"github.com/polypilot/engine/internal/insight"
	"github.com/polypilot/engine/internal/logger"
	"github.com/polypilot/engine/internal/metrics"
)

// Catalog lists markets for scanning.
type Catalog interface {
	ListTop(ctx context.Context, n int, activeOnly bool) ([]domain.MarketSnapshot, error)
}

// Analyzer is the sentiment engine contract.
type Analyzer interface {
	Analyze(ctx context.Context, texts []string, market domain.MarketSnapshot) domain.SentimentAnalysis
}

// Availability gates whole runs: scanning without the inference collaborator
// would just fill the global cache with keyword tallies.
type Availability interface {
	Available() bool
}

// Notifier hears about failed cycles. Satisfied by telegram.Notifier.
type Notifier interface {
	NotifyError(context string, err error)
}

type Scanner struct {
	catalog   Catalog
	analyzer  Analyzer
	inference Availability
	global    *insight.Cache
	notifier  Notifier
	metrics   *metrics.Metrics
	logger    *logger.Logger

	interval time.Duration
	topN     int

	mu      sync.Mutex
	running bool

	now func() time.Time
}

func New(catalog Catalog, analyzer Analyzer, inference Availability, global *insight.Cache, notifier Notifier, m *metrics.Metrics, interval time.Duration, topN int, log *logger.Logger) *Scanner {
	return &Scanner{
		catalog:   catalog,
		analyzer:  analyzer,
		inference: inference,
		global:    global,
		notifier:  notifier,
		metrics:   m,
		logger:    log,
		interval:  interval,
		topN:      topN,
		now:       time.Now,
	}
}

// RunOnce executes one scan cycle. Overlapping calls are dropped, not
// queued; a market already analyzed within the scan interval is skipped; one
// bad market never aborts the batch.
func (s *Scanner) RunOnce(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Debug("scan already running, dropping this cycle")
		s.metrics.ScannerRuns.WithLabelValues("skipped").Inc()
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if s.inference != nil && !s.inference.Available() {
		s.logger.Info("inference collaborator unavailable, skipping scan cycle")
		s.metrics.ScannerRuns.WithLabelValues("skipped").Inc()
		return
	}

	markets, err := s.catalog.ListTop(ctx, s.topN, true)
	if err != nil {
		s.logger.Error("fetch top markets", "error", err)
		if s.notifier != nil {
			s.notifier.NotifyError("market scan", err)
		}
		s.metrics.ScannerRuns.WithLabelValues("error").Inc()
		return
	}

	analyzed := 0
	for _, m := range markets {
		if s.global.FreshWithin(m.ID, s.interval) {
			continue
		}
		if s.scanMarket(ctx, m) {
			analyzed++
		}
	}

	s.logger.Info("scan cycle completed", "markets", len(markets), "analyzed", analyzed)
	s.metrics.ScannerRuns.WithLabelValues("ok").Inc()
}

func (s *Scanner) scanMarket(ctx context.Context, m domain.MarketSnapshot) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic scanning market", "market", m.ID, "panic", fmt.Sprint(r))
			ok = false
		}
	}()

	analysis := s.analyzer.Analyze(ctx, []string{synthesizeTweet(m)}, m)
	s.metrics.Analyses.WithLabelValues(analysis.Source).Inc()

	s.global.Set(m.ID, domain.Insight{
		MarketID:         m.ID,
		Summary:          analysis.Summary,
		Sentiment:        analysis.Sentiment,
		Score:            analysis.Score,
		ConsensusShift:   analysis.ConsensusShift,
		TweetCount:       0, // scanner insights carry no tweet accumulation
		RiskFlags:        analysis.RiskFlags,
		OpportunityScore: analysis.OpportunityScore,
		Timestamp:        s.now(),
	})
	return true
}

// synthesizeTweet turns a market's own statistics into a pseudo-tweet so the
// scan reuses the exact analysis path user views go through.
func synthesizeTweet(m domain.MarketSnapshot) string {
	return fmt.Sprintf("%s Currently at %.0f%% implied probability with %.0f volume.",
		m.Question, m.YesPrice*100, m.Volume)
}
