package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polypilot/engine/internal/domain"
)

func pos(id string, pnl, price float64) domain.Position {
	return domain.Position{
		ID:           id,
		MarketID:     "m-" + id,
		Side:         domain.SideYes,
		Shares:       "100",
		CurrentPrice: price,
		PnLPercent:   pnl,
	}
}

func TestHitPredicates(t *testing.T) {
	tests := []struct {
		name string
		p    domain.Position
		r    domain.AutoExitRule
		want bool
	}{
		{"gain at threshold", pos("a", 20, 0.6), domain.AutoExitRule{Type: domain.RulePnLGain, Threshold: 0.20}, true},
		{"gain above threshold", pos("a", 25, 0.6), domain.AutoExitRule{Type: domain.RulePnLGain, Threshold: 0.20}, true},
		{"gain below threshold", pos("a", 19.9, 0.6), domain.AutoExitRule{Type: domain.RulePnLGain, Threshold: 0.20}, false},
		{"loss at threshold", pos("a", -10, 0.4), domain.AutoExitRule{Type: domain.RulePnLLoss, Threshold: -0.10}, true},
		{"loss deeper than threshold", pos("a", -15, 0.4), domain.AutoExitRule{Type: domain.RulePnLLoss, Threshold: -0.10}, true},
		{"loss shallower than threshold", pos("a", -5, 0.4), domain.AutoExitRule{Type: domain.RulePnLLoss, Threshold: -0.10}, false},
		{"risk at midpoint", pos("a", 0, 0.5), domain.AutoExitRule{Type: domain.RuleRiskScore, Threshold: 0.99}, true},
		{"risk near certainty", pos("a", 0, 0.95), domain.AutoExitRule{Type: domain.RuleRiskScore, Threshold: 0.5}, false},
		{"price target reached", pos("a", 0, 0.91), domain.AutoExitRule{Type: domain.RulePriceTarget, Threshold: 0.90}, true},
		{"price target not reached", pos("a", 0, 0.89), domain.AutoExitRule{Type: domain.RulePriceTarget, Threshold: 0.90}, false},
		{"unknown rule type", pos("a", 50, 0.9), domain.AutoExitRule{Type: "trailing_stop", Threshold: 0.1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Hits(tt.p, tt.r))
		})
	}
}

func TestRiskScore(t *testing.T) {
	assert.InDelta(t, 1.0, RiskScore(0.5), 1e-9)
	assert.InDelta(t, 0.0, RiskScore(1.0), 1e-9)
	assert.InDelta(t, 0.0, RiskScore(0.0), 1e-9)
	assert.InDelta(t, 0.4, RiskScore(0.8), 1e-9)
}

func TestEvaluateFirstMatchWins(t *testing.T) {
	p := pos("a", 30, 0.6)
	rs := []domain.AutoExitRule{
		{ID: "r1", Type: domain.RulePnLGain, Threshold: 0.20, Enabled: true},
		{ID: "r2", Type: domain.RulePnLGain, Threshold: 0.10, Enabled: true},
	}

	got := Evaluate([]domain.Position{p}, rs)
	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0].Rule.ID)

	// Reordering the rules changes which one fires.
	got = Evaluate([]domain.Position{p}, []domain.AutoExitRule{rs[1], rs[0]})
	require.Len(t, got, 1)
	assert.Equal(t, "r2", got[0].Rule.ID)
}

func TestEvaluateSkipsDisabledRules(t *testing.T) {
	p := pos("a", 30, 0.6)
	rs := []domain.AutoExitRule{
		{ID: "r1", Type: domain.RulePnLGain, Threshold: 0.20, Enabled: false},
		{ID: "r2", Type: domain.RulePnLGain, Threshold: 0.25, Enabled: true},
	}

	got := Evaluate([]domain.Position{p}, rs)
	require.Len(t, got, 1)
	assert.Equal(t, "r2", got[0].Rule.ID)
}

func TestEvaluateAtMostOnePerPosition(t *testing.T) {
	positions := []domain.Position{
		pos("a", 30, 0.5),  // hits gain and risk
		pos("b", -20, 0.4), // hits loss
		pos("c", 1, 0.95),  // hits nothing
	}
	rs := []domain.AutoExitRule{
		{ID: "gain", Type: domain.RulePnLGain, Threshold: 0.20, Enabled: true},
		{ID: "loss", Type: domain.RulePnLLoss, Threshold: -0.10, Enabled: true},
		{ID: "risk", Type: domain.RuleRiskScore, Threshold: 0.9, Enabled: true},
	}

	got := Evaluate(positions, rs)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Position.ID)
	assert.Equal(t, "gain", got[0].Rule.ID)
	assert.Equal(t, "b", got[1].Position.ID)
	assert.Equal(t, "loss", got[1].Rule.ID)
}

func TestEvaluateEmptyInputs(t *testing.T) {
	assert.Empty(t, Evaluate(nil, nil))
	assert.Empty(t, Evaluate([]domain.Position{pos("a", 99, 0.5)}, nil))
	assert.Empty(t, Evaluate(nil, []domain.AutoExitRule{{Type: domain.RulePnLGain, Enabled: true}}))
}
