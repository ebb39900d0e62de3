package confirm

import (
	"fmt"
	"strings"

	"github.com/polypilot/engine/internal/domain"
)

const confirmSystemPrompt = `You are a risk manager for prediction-market positions on Polymarket.
A threshold rule has triggered a proposed exit for an open position. Decide whether the exit should go ahead.

Answer strictly with a single JSON object, nothing else:
{"confirm": true, "reasoning": "one or two sentences", "confidence": 0.8}

confidence is a number between 0 and 1.`

func ruleDescription(r domain.AutoExitRule) string {
	switch r.Type {
	case domain.RulePnLGain:
		return fmt.Sprintf("profit target: position PnL reached +%g%%", r.Threshold*100)
	case domain.RulePnLLoss:
		return fmt.Sprintf("stop loss: position PnL fell to %g%%", r.Threshold*100)
	case domain.RuleRiskScore:
		return fmt.Sprintf("resolution risk: market price close to 50/50 (risk threshold %g)", r.Threshold)
	case domain.RulePriceTarget:
		return fmt.Sprintf("price target: market price reached %g", r.Threshold)
	default:
		return fmt.Sprintf("rule of type %q", r.Type)
	}
}

func actionDescription(action string) string {
	if action == domain.ActionExitHalf {
		return "sell half the position"
	}
	return "sell the full position"
}

func buildPrompt(p domain.Position, r domain.AutoExitRule) string {
	var sb strings.Builder

	sb.WriteString("## Position\n")
	sb.WriteString(fmt.Sprintf("Market: %s\n", p.MarketQuestion))
	sb.WriteString(fmt.Sprintf("Side: %s, shares: %s\n", p.Side, p.Shares))
	sb.WriteString(fmt.Sprintf("Avg entry price: %.3f, current price: %.3f\n", p.AvgPrice, p.CurrentPrice))
	sb.WriteString(fmt.Sprintf("PnL: %+.1f%%\n\n", p.PnLPercent))

	sb.WriteString("## Triggered rule\n")
	sb.WriteString(ruleDescription(r))
	sb.WriteString("\n\n")

	sb.WriteString("## Proposed action\n")
	sb.WriteString(actionDescription(r.Action))
	sb.WriteString("\n\nShould this exit be executed? Answer in JSON.")

	return sb.String()
}
