package views

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/polypilot/engine/internal/domain"
	"github.com/polypilot/engine/internal/logger"
)

func newTestStore(minTweets int) *Store {
	defaults := domain.DefaultInsightsSettings()
	defaults.MinTweetCount = minTweets
	return NewStore(defaults, 24*time.Hour, logger.Discard())
}

func TestRecordViewThresholdOfOne(t *testing.T) {
	s := newTestStore(1)

	got := s.RecordView("u1", "t1", "BTC bullish breakout", "m1")
	assert.Equal(t, 1, got.ViewCount)
	assert.True(t, got.ThresholdMet)
}

func TestRecordViewDeduplicatesByTweetID(t *testing.T) {
	s := newTestStore(3)

	s.RecordView("u1", "t1", "first", "m1")
	got := s.RecordView("u1", "t1", "first again", "m1")
	assert.Equal(t, 1, got.ViewCount)
	assert.False(t, got.ThresholdMet)

	got = s.RecordView("u1", "t2", "second", "m1")
	assert.Equal(t, 2, got.ViewCount)

	got = s.RecordView("u1", "t3", "third", "m1")
	assert.Equal(t, 3, got.ViewCount)
	assert.True(t, got.ThresholdMet)
}

func TestRecordViewScopedPerMarketAndUser(t *testing.T) {
	s := newTestStore(1)

	s.RecordView("u1", "t1", "a", "m1")
	assert.Equal(t, 0, s.ViewCount("u1", "m2"))
	assert.Equal(t, 0, s.ViewCount("u2", "m1"))
	assert.Equal(t, 1, s.ViewCount("u1", "m1"))
}

func TestTweetTextsMostRecentFirst(t *testing.T) {
	s := newTestStore(1)

	s.RecordView("u1", "t1", "oldest", "m1")
	s.RecordView("u1", "t2", "middle", "m1")
	s.RecordView("u1", "t3", "newest", "m1")

	assert.Equal(t, []string{"newest", "middle", "oldest"}, s.TweetTexts("u1", "m1"))
	assert.Nil(t, s.TweetTexts("u1", "unknown"))
	assert.Nil(t, s.TweetTexts("nobody", "m1"))
}

func TestSettingsDefaultsAndUpdate(t *testing.T) {
	s := newTestStore(1)

	got := s.Settings("u1")
	assert.True(t, got.Enabled)
	assert.Equal(t, 1, got.MinTweetCount)
	assert.Equal(t, 0.4, got.MinSentimentScore)

	s.UpdateSettings("u1", domain.AIInsightsSettings{Enabled: false, MinTweetCount: 5, MinSentimentScore: 0.7})
	got = s.Settings("u1")
	assert.False(t, got.Enabled)
	assert.Equal(t, 5, got.MinTweetCount)
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	s := newTestStore(1)

	current := time.Now()
	s.now = func() time.Time { return current }

	s.RecordView("idle", "t1", "a", "m1")
	current = current.Add(25 * time.Hour)
	s.RecordView("active", "t1", "a", "m1")

	removed := s.Sweep()
	assert.Equal(t, 1, removed)

	// The idle user's whole session is gone: views and settings both.
	assert.Equal(t, 0, s.ViewCount("idle", "m1"))
	assert.Equal(t, 1, s.ViewCount("active", "m1"))

	// A second sweep finds nothing new.
	assert.Equal(t, 0, s.Sweep())
}
