package scanner

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
	"github.com/polypilot/engine/internal/insight"
	"github.com/polypilot/engine/internal/logger"
	"github.com/polypilot/engine/internal/metrics"
)

type fakeCatalog struct {
	markets []domain.MarketSnapshot
	err     error
	calls   int
}

func (f *fakeCatalog) ListTop(context.Context, int, bool) ([]domain.MarketSnapshot, error) {
	f.calls++
	return f.markets, f.err
}

type fakeAnalyzer struct {
	mu    sync.Mutex
	calls []string
	panic string
}

func (f *fakeAnalyzer) Analyze(_ context.Context, texts []string, m domain.MarketSnapshot) domain.SentimentAnalysis {
	f.mu.Lock()
	f.calls = append(f.calls, m.ID)
	f.mu.Unlock()
	if m.ID == f.panic {
		panic("analyzer exploded")
	}
	return domain.SentimentAnalysis{Sentiment: domain.SentimentNeutral, Score: 0.5, Summary: texts[0], Source: "heuristic"}
}

type availability bool

func (a availability) Available() bool { return bool(a) }

func snapshot(id string, price, volume float64) domain.MarketSnapshot {
	return domain.MarketSnapshot{ID: id, Question: "Q" + id + "?", Active: true, YesPrice: price, Volume: volume}
}

func newTestScanner(catalog *fakeCatalog, analyzer *fakeAnalyzer, avail bool) (*Scanner, *insight.Cache) {
	global := insight.NewCache(time.Hour)
	s := New(catalog, analyzer, availability(avail), global, nil,
		metrics.New(prometheus.NewRegistry()), 15*time.Minute, 10, logger.Discard())
	return s, global
}

func TestRunOnceSeedsGlobalCache(t *testing.T) {
	catalog := &fakeCatalog{markets: []domain.MarketSnapshot{
		snapshot("m1", 0.62, 90000),
		snapshot("m2", 0.31, 50000),
	}}
	analyzer := &fakeAnalyzer{}
	s, global := newTestScanner(catalog, analyzer, true)

	s.RunOnce(context.Background())

	require.Len(t, analyzer.calls, 2)
	got, ok := global.Get("m1")
	require.True(t, ok)
	assert.Equal(t, 0, got.TweetCount)
	assert.Contains(t, got.Summary, "Qm1?")
	assert.Contains(t, got.Summary, "62%")
}

func TestRunOnceSkipsWhenInferenceUnavailable(t *testing.T) {
	catalog := &fakeCatalog{markets: []domain.MarketSnapshot{snapshot("m1", 0.5, 1)}}
	s, _ := newTestScanner(catalog, &fakeAnalyzer{}, false)

	s.RunOnce(context.Background())
	assert.Zero(t, catalog.calls)
}

func TestRunOnceSkipsFreshlyCachedMarkets(t *testing.T) {
	catalog := &fakeCatalog{markets: []domain.MarketSnapshot{
		snapshot("fresh", 0.5, 1),
		snapshot("stale", 0.5, 1),
	}}
	analyzer := &fakeAnalyzer{}
	s, global := newTestScanner(catalog, analyzer, true)

	global.Set("fresh", domain.Insight{MarketID: "fresh", Timestamp: time.Now().Add(-time.Minute)})
	global.Set("stale", domain.Insight{MarketID: "stale", Timestamp: time.Now().Add(-30 * time.Minute)})

	s.RunOnce(context.Background())
	assert.Equal(t, []string{"stale"}, analyzer.calls)
}

func TestRunOncePerMarketPanicDoesNotAbortBatch(t *testing.T) {
	catalog := &fakeCatalog{markets: []domain.MarketSnapshot{
		snapshot("bad", 0.5, 1),
		snapshot("good", 0.5, 1),
	}}
	analyzer := &fakeAnalyzer{panic: "bad"}
	s, global := newTestScanner(catalog, analyzer, true)

	s.RunOnce(context.Background())

	_, ok := global.Get("bad")
	assert.False(t, ok)
	_, ok = global.Get("good")
	assert.True(t, ok)
}

func TestRunOnceCatalogErrorSwallowed(t *testing.T) {
	catalog := &fakeCatalog{err: fmt.Errorf("gamma down")}
	s, global := newTestScanner(catalog, &fakeAnalyzer{}, true)

	s.RunOnce(context.Background()) // must not panic
	assert.Equal(t, 0, global.Len())
}

func TestRunOnceDropsOverlappingRun(t *testing.T) {
	catalog := &fakeCatalog{markets: []domain.MarketSnapshot{snapshot("m1", 0.5, 1)}}
	analyzer := &fakeAnalyzer{}
	s, _ := newTestScanner(catalog, analyzer, true)

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	s.RunOnce(context.Background())
	assert.Zero(t, catalog.calls)

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.RunOnce(context.Background())
	assert.Equal(t, 1, catalog.calls)
}
