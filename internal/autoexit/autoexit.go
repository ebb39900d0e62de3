// Package autoexit keeps per-user automation state and drives the cooldown
// gated evaluation pipeline: threshold rules, AI confirmation, and the
// dismissible queue of pending exits.
package autoexit

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/polypilot/engine/internal/domain"
	"github.com/polypilot/engine/internal/logger"
	"github.com/polypilot/engine/internal/metrics"
	"github.com/polypilot/engine/internal/rules"
)

// Confirmer is the exit confirmation contract; it degrades internally and
// never fails.
type Confirmer interface {
	Confirm(ctx context.Context, p domain.Position, r domain.AutoExitRule) domain.ExitConfirmation
}

// Notifier is pinged when an exit is queued. Satisfied by telegram.Notifier.
type Notifier interface {
	NotifyExit(installID string, pe domain.PendingExit)
}

// Auditor receives every confirmation decision for the persistent audit
// trail.
type Auditor interface {
	ExitDecision(installID string, p domain.Position, r domain.AutoExitRule, c domain.ExitConfirmation)
}

type userState struct {
	positions []domain.Position
	config    domain.AutoExitConfig
	pending   map[string]domain.PendingExit
	order     []string // pending insertion order
	claimed   map[string]bool
	lastEval  time.Time
}

// Service owns all per-user automation state. Positions and config are
// replaced wholesale on each sync; pending exits and the evaluation
// timestamp persist across syncs.
type Service struct {
	mu    sync.Mutex
	users map[string]*userState

	confirmer Confirmer
	notifier  Notifier
	audit     Auditor
	metrics   *metrics.Metrics
	logger    *logger.Logger
	cooldown  time.Duration
	now       func() time.Time
}

func NewService(confirmer Confirmer, notifier Notifier, audit Auditor, m *metrics.Metrics, cooldown time.Duration, log *logger.Logger) *Service {
	return &Service{
		users:     make(map[string]*userState),
		confirmer: confirmer,
		notifier:  notifier,
		audit:     audit,
		metrics:   m,
		logger:    log,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// SyncPositions upserts the user's snapshot and config, then evaluates.
func (s *Service) SyncPositions(ctx context.Context, installID string, positions []domain.Position, cfg domain.AutoExitConfig) []domain.PendingExit {
	s.mu.Lock()
	us := s.ensureUser(installID)
	us.positions = positions
	us.config = cfg
	s.mu.Unlock()

	return s.EvaluateUser(ctx, installID)
}

// UpdateConfig replaces only the automation config.
func (s *Service) UpdateConfig(installID string, cfg domain.AutoExitConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureUser(installID).config = cfg
}

// must be called with s.mu held
func (s *Service) ensureUser(installID string) *userState {
	us := s.users[installID]
	if us == nil {
		us = &userState{
			pending: make(map[string]domain.PendingExit),
			claimed: make(map[string]bool),
		}
		s.users[installID] = us
	}
	return us
}

// EvaluateUser runs one evaluation pass for the user and returns the full
// pending-exit snapshot in insertion order. Within the cooldown window it is
// a cheap idempotent read; outside it, newly triggered positions are claimed
// synchronously before the confirmation call so concurrent passes cannot
// double-confirm the same position.
func (s *Service) EvaluateUser(ctx context.Context, installID string) []domain.PendingExit {
	s.mu.Lock()
	us := s.users[installID]
	if us == nil || !us.config.Enabled {
		s.mu.Unlock()
		return []domain.PendingExit{}
	}

	now := s.now()
	if now.Sub(us.lastEval) < s.cooldown {
		snap := pendingSnapshot(us)
		s.mu.Unlock()
		return snap
	}
	us.lastEval = now

	triggered := rules.Evaluate(us.positions, us.config.Rules)

	var work []rules.Triggered
	for _, tr := range triggered {
		pid := tr.Position.ID
		if _, exists := us.pending[pid]; exists {
			continue
		}
		if us.claimed[pid] {
			continue
		}
		us.claimed[pid] = true
		work = append(work, tr)
	}
	s.mu.Unlock()

	s.metrics.Evaluations.Inc()

	for _, tr := range work {
		s.confirmOne(ctx, installID, tr)
	}

	s.mu.Lock()
	snap := pendingSnapshot(us)
	s.mu.Unlock()
	return snap
}

func (s *Service) confirmOne(ctx context.Context, installID string, tr rules.Triggered) {
	conf := s.confirmer.Confirm(ctx, tr.Position, tr.Rule)

	if s.audit != nil {
		s.audit.ExitDecision(installID, tr.Position, tr.Rule, conf)
	}

	s.mu.Lock()
	us := s.users[installID]
	if us == nil {
		s.mu.Unlock()
		return
	}
	delete(us.claimed, tr.Position.ID)

	if !conf.Confirm {
		s.mu.Unlock()
		// Not marked: the position is re-evaluated on the next
		// non-cooled-down pass.
		s.metrics.Confirmations.WithLabelValues("declined").Inc()
		s.logger.Info("exit declined",
			"install", installID, "position", tr.Position.ID,
			"rule", tr.Rule.Type, "reasoning", conf.Reasoning)
		return
	}

	pe := buildPendingExit(tr, conf, s.now())
	us.pending[pe.PositionID] = pe
	us.order = append(us.order, pe.PositionID)
	s.mu.Unlock()

	s.metrics.Confirmations.WithLabelValues("confirmed").Inc()
	s.metrics.PendingExits.Inc()
	s.logger.Info("exit queued",
		"install", installID, "position", pe.PositionID,
		"rule", tr.Rule.Type, "action", tr.Rule.Action,
		"confidence", conf.Confidence, "source", conf.Source)

	if s.notifier != nil {
		s.notifier.NotifyExit(installID, pe)
	}
}

func buildPendingExit(tr rules.Triggered, conf domain.ExitConfirmation, now time.Time) domain.PendingExit {
	shares := tr.Position.Shares
	if tr.Rule.Action == domain.ActionExitHalf {
		shares = halveShares(shares)
	}

	return domain.PendingExit{
		PositionID:     tr.Position.ID,
		MarketID:       tr.Position.MarketID,
		MarketQuestion: tr.Position.MarketQuestion,
		TokenID:        tr.Position.TokenID,
		Side:           tr.Position.Side,
		Shares:         shares,
		CurrentPrice:   tr.Position.CurrentPrice,
		TriggeredRule:  tr.Rule,
		AIReasoning:    conf.Reasoning,
		AIConfidence:   conf.Confidence,
		Timestamp:      now,
	}
}

// halveShares divides a decimal-string share count by two, keeping the
// string representation. Unparseable input passes through untouched.
func halveShares(shares string) string {
	v, err := strconv.ParseFloat(shares, 64)
	if err != nil {
		return shares
	}
	return strconv.FormatFloat(v/2, 'f', -1, 64)
}

// ListPending returns the user's pending exits in insertion order without
// evaluating anything.
func (s *Service) ListPending(installID string) []domain.PendingExit {
	s.mu.Lock()
	defer s.mu.Unlock()

	us := s.users[installID]
	if us == nil {
		return []domain.PendingExit{}
	}
	return pendingSnapshot(us)
}

// Dismiss removes one pending exit. Dismissing an absent entry is not an
// error; it just reports false.
func (s *Service) Dismiss(installID, positionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	us := s.users[installID]
	if us == nil {
		return false
	}
	if _, exists := us.pending[positionID]; !exists {
		return false
	}

	delete(us.pending, positionID)
	for i, pid := range us.order {
		if pid == positionID {
			us.order = append(us.order[:i], us.order[i+1:]...)
			break
		}
	}
	s.metrics.PendingExits.Dec()
	return true
}

// must be called with s.mu held
func pendingSnapshot(us *userState) []domain.PendingExit {
	out := make([]domain.PendingExit, 0, len(us.pending))
	for _, pid := range us.order {
		if pe, ok := us.pending[pid]; ok {
			out = append(out, pe)
		}
	}
	return out
}
