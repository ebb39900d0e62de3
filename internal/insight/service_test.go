package insight

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polypilot/engine/internal/domain"
	"github.com/polypilot/engine/internal/logger"
	"github.com/polypilot/engine/internal/metrics"
	"github.com/polypilot/engine/internal/views"
)

type fakeCatalog struct {
	markets map[string]domain.MarketSnapshot
	err     error
	calls   int
	mu      sync.Mutex

	// block, when set, holds Get until released; used to exercise the
	// in-flight guard.
	block chan struct{}
}

func (f *fakeCatalog) Get(_ context.Context, marketID string) (*domain.MarketSnapshot, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	m, ok := f.markets[marketID]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

type fakeAnalyzer struct {
	result domain.SentimentAnalysis
	calls  int
	mu     sync.Mutex
}

func (f *fakeAnalyzer) Analyze(context.Context, []string, domain.MarketSnapshot) domain.SentimentAnalysis {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.result
}

func newTestService(t *testing.T, minTweets int) (*Service, *fakeCatalog, *fakeAnalyzer, *views.Store) {
	t.Helper()

	defaults := domain.DefaultInsightsSettings()
	defaults.MinTweetCount = minTweets
	vs := views.NewStore(defaults, 24*time.Hour, logger.Discard())

	catalog := &fakeCatalog{markets: map[string]domain.MarketSnapshot{
		"m1": {ID: "m1", Question: "Will BTC close above 100k?", YesPrice: 0.55},
	}}
	analyzer := &fakeAnalyzer{result: domain.SentimentAnalysis{
		Sentiment: domain.SentimentBullish, Score: 0.8, Summary: "looks strong", Source: "heuristic",
	}}

	s := NewService(vs, catalog, analyzer,
		NewCache(time.Hour), NewCache(time.Hour),
		nil, metrics.New(prometheus.NewRegistry()), logger.Discard())

	// Run dispatched analyses synchronously in tests.
	s.dispatch = func(fn func()) { fn() }

	return s, catalog, analyzer, vs
}

func TestRecordTweetViewNeverReportsReady(t *testing.T) {
	s, _, _, _ := newTestService(t, 1)

	got := s.RecordTweetView("u1", "t1", "BTC bullish breakout", "m1")
	assert.True(t, got.Recorded)
	assert.False(t, got.InsightReady)

	// The dispatched analysis did run; the result is polled separately.
	require.NotNil(t, s.Insight("u1", "m1"))
}

func TestShouldTriggerBelowThreshold(t *testing.T) {
	s, _, _, _ := newTestService(t, 3)

	s.views.RecordView("u1", "t1", "a", "m1")
	assert.False(t, s.ShouldTrigger("u1", "m1"))

	s.views.RecordView("u1", "t2", "b", "m1")
	s.views.RecordView("u1", "t3", "c", "m1")
	assert.True(t, s.ShouldTrigger("u1", "m1"))
}

func TestShouldTriggerDisabledSettings(t *testing.T) {
	s, _, _, vs := newTestService(t, 1)

	vs.UpdateSettings("u1", domain.AIInsightsSettings{Enabled: false, MinTweetCount: 1})
	vs.RecordView("u1", "t1", "a", "m1")
	assert.False(t, s.ShouldTrigger("u1", "m1"))
}

func TestShouldTriggerInFlight(t *testing.T) {
	s, _, _, vs := newTestService(t, 1)
	vs.RecordView("u1", "t1", "a", "m1")

	s.mu.Lock()
	s.inflight["u1:m1"] = true
	s.mu.Unlock()

	assert.False(t, s.ShouldTrigger("u1", "m1"))
}

func TestTriggerAnalysisStoresUserInsight(t *testing.T) {
	s, _, analyzer, vs := newTestService(t, 1)
	s.dispatch = func(func()) {} // record without auto-trigger
	vs.RecordView("u1", "t1", "bullish", "m1")

	ins := s.TriggerAnalysis(context.Background(), "u1", "m1")
	require.NotNil(t, ins)
	assert.Equal(t, "m1", ins.MarketID)
	assert.Equal(t, domain.SentimentBullish, ins.Sentiment)
	assert.Equal(t, 1, ins.TweetCount)
	assert.Equal(t, 1, analyzer.calls)

	// Cached per-user, not globally.
	require.NotNil(t, s.Insight("u1", "m1"))
	assert.Nil(t, s.Insight("u2", "m1"))
}

func TestTriggerAnalysisUnknownMarket(t *testing.T) {
	s, _, analyzer, vs := newTestService(t, 1)
	s.dispatch = func(func()) {}
	vs.RecordView("u1", "t1", "bullish", "mX")

	assert.Nil(t, s.TriggerAnalysis(context.Background(), "u1", "mX"))
	assert.Zero(t, analyzer.calls)

	// In-flight marker was cleared despite the abort.
	assert.True(t, s.ShouldTrigger("u1", "mX"))
}

func TestTriggerAnalysisCatalogError(t *testing.T) {
	s, catalog, analyzer, vs := newTestService(t, 1)
	s.dispatch = func(func()) {}
	catalog.err = fmt.Errorf("gamma unavailable")
	vs.RecordView("u1", "t1", "bullish", "m1")

	assert.Nil(t, s.TriggerAnalysis(context.Background(), "u1", "m1"))
	assert.Zero(t, analyzer.calls)
	assert.True(t, s.ShouldTrigger("u1", "m1"))
}

func TestTriggerAnalysisConcurrentDuplicatesCollapse(t *testing.T) {
	s, catalog, analyzer, vs := newTestService(t, 1)
	s.dispatch = func(func()) {}
	vs.RecordView("u1", "t1", "bullish", "m1")

	catalog.block = make(chan struct{})

	done := make(chan *domain.Insight, 2)
	go func() { done <- s.TriggerAnalysis(context.Background(), "u1", "m1") }()

	// Wait until the first run has claimed the key and is blocked upstream.
	require.Eventually(t, func() bool {
		catalog.mu.Lock()
		defer catalog.mu.Unlock()
		return catalog.calls == 1
	}, time.Second, time.Millisecond)

	// Second trigger sees the in-flight marker and bails immediately.
	assert.Nil(t, s.TriggerAnalysis(context.Background(), "u1", "m1"))

	close(catalog.block)
	require.NotNil(t, <-done)
	assert.Equal(t, 1, analyzer.calls)
}

func TestInsightFallsBackToGlobal(t *testing.T) {
	s, _, _, _ := newTestService(t, 1)

	global := domain.Insight{MarketID: "m9", Sentiment: domain.SentimentBearish, Timestamp: time.Now()}
	s.global.Set("m9", global)

	got := s.Insight("u1", "m9")
	require.NotNil(t, got)
	assert.Equal(t, domain.SentimentBearish, got.Sentiment)

	assert.Nil(t, s.Insight("u1", "unknown"))
}

func TestListInsightsUserWinsOverGlobal(t *testing.T) {
	s, _, _, _ := newTestService(t, 1)
	now := time.Now()

	s.user.Set("u1:m1", domain.Insight{MarketID: "m1", Sentiment: domain.SentimentBullish, Timestamp: now.Add(-2 * time.Minute)})
	s.global.Set("m1", domain.Insight{MarketID: "m1", Sentiment: domain.SentimentBearish, Timestamp: now.Add(-1 * time.Minute)})
	s.global.Set("m2", domain.Insight{MarketID: "m2", Sentiment: domain.SentimentNeutral, Timestamp: now})
	s.user.Set("u2:m3", domain.Insight{MarketID: "m3", Timestamp: now}) // other user, excluded

	got := s.ListInsights("u1")
	require.Len(t, got, 2)
	assert.Equal(t, "m2", got[0].MarketID)
	assert.Equal(t, "m1", got[1].MarketID)
	assert.Equal(t, domain.SentimentBullish, got[1].Sentiment) // user entry won
}
