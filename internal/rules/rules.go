// Package rules evaluates positions against auto-exit threshold rules.
package rules

import (
	"math"

	"github.com/polypilot/engine/internal/domain"
)

// Triggered pairs a position with the rule that hit for it.
type Triggered struct {
	Position domain.Position
	Rule     domain.AutoExitRule
}

// Evaluate checks every position against the enabled rules in array order and
// stops at the first rule that hits, so at most one pair is produced per
// position. Rule order is load-bearing: reordering rules changes outcomes.
func Evaluate(positions []domain.Position, ruleSet []domain.AutoExitRule) []Triggered {
	enabled := make([]domain.AutoExitRule, 0, len(ruleSet))
	for _, r := range ruleSet {
		if r.Enabled {
			enabled = append(enabled, r)
		}
	}

	var triggered []Triggered
	for _, p := range positions {
		for _, r := range enabled {
			if Hits(p, r) {
				triggered = append(triggered, Triggered{Position: p, Rule: r})
				break
			}
		}
	}
	return triggered
}

// Hits reports whether a single rule fires for a position.
func Hits(p domain.Position, r domain.AutoExitRule) bool {
	switch r.Type {
	case domain.RulePnLGain:
		return p.PnLPercent/100 >= r.Threshold
	case domain.RulePnLLoss:
		// threshold is negative
		return p.PnLPercent/100 <= r.Threshold
	case domain.RuleRiskScore:
		return RiskScore(p.CurrentPrice) >= r.Threshold
	case domain.RulePriceTarget:
		return p.CurrentPrice >= r.Threshold
	default:
		return false
	}
}

// RiskScore maps a market price to a resolution-uncertainty score: prices
// near 0.5 score close to 1, prices near 0 or 1 score close to 0.
func RiskScore(price float64) float64 {
	return 1 - math.Abs(price-0.5)*2
}
