package insight

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/polypilot/engine/internal/domain"
	"github.com/polypilot/engine/internal/logger"
	"github.com/polypilot/engine/internal/metrics"
	"github.com/polypilot/engine/internal/views"
)

// MarketCatalog is the market lookup collaborator. A nil snapshot with a nil
// error means the market is unknown.
type MarketCatalog interface {
	Get(ctx context.Context, marketID string) (*domain.MarketSnapshot, error)
}

// Analyzer is the sentiment engine contract; it degrades internally and
// never fails.
type Analyzer interface {
	Analyze(ctx context.Context, texts []string, market domain.MarketSnapshot) domain.SentimentAnalysis
}

// Auditor receives completed analyses for the persistent audit trail.
type Auditor interface {
	AnalysisCompleted(installID, marketID string, a domain.SentimentAnalysis, tweetCount int)
}

// Service wires the view store, the market catalog and the sentiment engine
// into the analysis trigger and the two insight caches.
type Service struct {
	views    *views.Store
	catalog  MarketCatalog
	analyzer Analyzer
	user     *Cache
	global   *Cache
	audit    Auditor
	metrics  *metrics.Metrics
	logger   *logger.Logger

	mu       sync.Mutex
	inflight map[string]bool

	// dispatch runs the fire-and-forget analysis kicked off by a view
	// recording; tests replace it with a synchronous call.
	dispatch func(func())
	now      func() time.Time
}

func NewService(vs *views.Store, catalog MarketCatalog, analyzer Analyzer, user, global *Cache, audit Auditor, m *metrics.Metrics, log *logger.Logger) *Service {
	return &Service{
		views:    vs,
		catalog:  catalog,
		analyzer: analyzer,
		user:     user,
		global:   global,
		audit:    audit,
		metrics:  m,
		logger:   log,
		inflight: make(map[string]bool),
		dispatch: func(fn func()) { go fn() },
		now:      time.Now,
	}
}

func key(installID, marketID string) string {
	return installID + ":" + marketID
}

// RecordOutcome is the synchronous answer to a view recording. InsightReady
// is always false here: analysis runs in the background and clients poll
// Insight afterwards.
type RecordOutcome struct {
	Recorded     bool `json:"recorded"`
	InsightReady bool `json:"insightReady"`
}

// RecordTweetView stores the view and, when the threshold is met and no
// analysis is in flight, dispatches one in the background.
func (s *Service) RecordTweetView(installID, tweetID, text, marketID string) RecordOutcome {
	res := s.views.RecordView(installID, tweetID, text, marketID)
	s.metrics.ViewsRecorded.Inc()

	if res.ThresholdMet && s.ShouldTrigger(installID, marketID) {
		s.dispatch(func() {
			s.TriggerAnalysis(context.Background(), installID, marketID)
		})
	}

	return RecordOutcome{Recorded: true, InsightReady: false}
}

// ShouldTrigger reports whether an analysis for (user, market) is currently
// justified: insights enabled, enough accumulated views, nothing in flight.
func (s *Service) ShouldTrigger(installID, marketID string) bool {
	settings := s.views.Settings(installID)
	if !settings.Enabled {
		return false
	}
	if s.views.ViewCount(installID, marketID) < settings.MinTweetCount {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.inflight[key(installID, marketID)]
}

// TriggerAnalysis runs one sentiment analysis for (user, market). The key is
// claimed synchronously before any blocking work and released on every exit
// path, so concurrent triggers for the same pair collapse to one run.
func (s *Service) TriggerAnalysis(ctx context.Context, installID, marketID string) *domain.Insight {
	settings := s.views.Settings(installID)
	if !settings.Enabled || s.views.ViewCount(installID, marketID) < settings.MinTweetCount {
		return nil
	}

	k := key(installID, marketID)
	s.mu.Lock()
	if s.inflight[k] {
		s.mu.Unlock()
		return nil
	}
	s.inflight[k] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.inflight, k)
		s.mu.Unlock()
	}()

	texts := s.views.TweetTexts(installID, marketID)
	if len(texts) == 0 {
		return nil
	}

	market, err := s.catalog.Get(ctx, marketID)
	if err != nil {
		s.logger.Warn("market lookup failed, skipping analysis", "market", marketID, "error", err)
		return nil
	}
	if market == nil {
		s.logger.Debug("unknown market, skipping analysis", "market", marketID)
		return nil
	}

	analysis := s.analyzer.Analyze(ctx, texts, *market)
	s.metrics.Analyses.WithLabelValues(analysis.Source).Inc()

	ins := domain.Insight{
		MarketID:         marketID,
		Summary:          analysis.Summary,
		Sentiment:        analysis.Sentiment,
		Score:            analysis.Score,
		ConsensusShift:   analysis.ConsensusShift,
		TweetCount:       len(texts),
		RiskFlags:        analysis.RiskFlags,
		OpportunityScore: analysis.OpportunityScore,
		Timestamp:        s.now(),
	}
	s.user.Set(k, ins)

	if s.audit != nil {
		s.audit.AnalysisCompleted(installID, marketID, analysis, len(texts))
	}

	s.logger.Info("sentiment analysis completed",
		"install", installID, "market", marketID,
		"sentiment", ins.Sentiment, "score", ins.Score, "source", analysis.Source)

	return &ins
}

// Insight returns the freshest cached insight for the market, preferring the
// user-scoped entry and falling back to the global one.
func (s *Service) Insight(installID, marketID string) *domain.Insight {
	if ins, ok := s.user.Get(key(installID, marketID)); ok {
		s.metrics.CacheHits.WithLabelValues("user").Inc()
		return &ins
	}
	s.metrics.CacheMisses.WithLabelValues("user").Inc()

	if ins, ok := s.global.Get(marketID); ok {
		s.metrics.CacheHits.WithLabelValues("global").Inc()
		return &ins
	}
	s.metrics.CacheMisses.WithLabelValues("global").Inc()
	return nil
}

// ListInsights returns the union of the user's insights and the global ones,
// deduplicated by market with the user-scoped entry winning, newest first.
func (s *Service) ListInsights(installID string) []domain.Insight {
	out := s.user.Prefix(installID + ":")

	seen := make(map[string]bool, len(out))
	for _, ins := range out {
		seen[ins.MarketID] = true
	}
	for _, ins := range s.global.All() {
		if !seen[ins.MarketID] {
			out = append(out, ins)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// SweepCaches runs the periodic eviction over both caches.
func (s *Service) SweepCaches() {
	userRemoved := s.user.Sweep()
	globalRemoved := s.global.Sweep()
	if userRemoved+globalRemoved > 0 {
		s.logger.Info("insight caches swept", "user_removed", userRemoved, "global_removed", globalRemoved)
	}
}
