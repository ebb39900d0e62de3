// Package views accumulates per-user, per-market tweet-view signal and the
// per-user insight settings that decide when analysis is worth running.
package views

import (
	"sync"
	"time"

	"github.com/polypilot/engine/internal/domain"
	"github.com/polypilot/engine/internal/logger"
)

type marketSession struct {
	views        []domain.TweetView
	seen         map[string]bool // tweetId dedup
	lastActivity time.Time
}

type userSession struct {
	markets      map[string]*marketSession
	settings     domain.AIInsightsSettings
	lastActivity time.Time
}

// Store holds all view sessions in memory. Whole user sessions, settings
// included, are evicted after the idle window; clients re-establish state by
// simply browsing again.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*userSession
	defaults domain.AIInsightsSettings
	idle     time.Duration
	logger   *logger.Logger
	now      func() time.Time
}

func NewStore(defaults domain.AIInsightsSettings, idle time.Duration, log *logger.Logger) *Store {
	return &Store{
		sessions: make(map[string]*userSession),
		defaults: defaults,
		idle:     idle,
		logger:   log,
		now:      time.Now,
	}
}

// RecordResult is what a single view recording reports back.
type RecordResult struct {
	ViewCount    int
	ThresholdMet bool
}

// RecordView stores one tweet view. Re-recording a tweetId is a storage
// no-op but still reports the current count and threshold state.
func (s *Store) RecordView(installID, tweetID, text, marketID string) RecordResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	us := s.sessions[installID]
	if us == nil {
		us = &userSession{
			markets:  make(map[string]*marketSession),
			settings: s.defaults,
		}
		s.sessions[installID] = us
	}
	us.lastActivity = now

	ms := us.markets[marketID]
	if ms == nil {
		ms = &marketSession{seen: make(map[string]bool)}
		us.markets[marketID] = ms
	}
	ms.lastActivity = now

	if !ms.seen[tweetID] {
		ms.seen[tweetID] = true
		ms.views = append(ms.views, domain.TweetView{TweetID: tweetID, Text: text, Timestamp: now})
	}

	count := len(ms.views)
	return RecordResult{
		ViewCount:    count,
		ThresholdMet: count >= us.settings.MinTweetCount,
	}
}

// TweetTexts returns the accumulated texts for a market, most recent first.
func (s *Store) TweetTexts(installID, marketID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	us := s.sessions[installID]
	if us == nil {
		return nil
	}
	ms := us.markets[marketID]
	if ms == nil {
		return nil
	}

	texts := make([]string, 0, len(ms.views))
	for i := len(ms.views) - 1; i >= 0; i-- {
		texts = append(texts, ms.views[i].Text)
	}
	return texts
}

// ViewCount returns how many distinct tweets have been seen for a market.
func (s *Store) ViewCount(installID, marketID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if us := s.sessions[installID]; us != nil {
		if ms := us.markets[marketID]; ms != nil {
			return len(ms.views)
		}
	}
	return 0
}

// Settings returns the user's insight settings, or the defaults when the
// user has no live session.
func (s *Store) Settings(installID string) domain.AIInsightsSettings {
	s.mu.Lock()
	defer s.mu.Unlock()

	if us := s.sessions[installID]; us != nil {
		return us.settings
	}
	return s.defaults
}

// UpdateSettings replaces the user's insight settings, creating the session
// if needed so the settings survive until the next idle sweep.
func (s *Store) UpdateSettings(installID string, settings domain.AIInsightsSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()

	us := s.sessions[installID]
	if us == nil {
		us = &userSession{markets: make(map[string]*marketSession)}
		s.sessions[installID] = us
	}
	us.settings = settings
	us.lastActivity = s.now()
}

// Sweep drops whole user sessions idle beyond the configured window. This is
// a full eviction: accumulated views and settings go together.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.idle)
	removed := 0
	for id, us := range s.sessions {
		if us.lastActivity.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("view sessions swept", "removed", removed, "remaining", len(s.sessions))
	}
	return removed
}
