package confirm

import (
	"fmt"

	"github.com/polypilot/engine/internal/domain"
	"github.com/polypilot/engine/internal/rules"
)

// Heuristic is the deterministic local confirmation used whenever the AI
// collaborator is unavailable or answers outside the expected shape.
func Heuristic(p domain.Position, r domain.AutoExitRule) domain.ExitConfirmation {
	out := domain.ExitConfirmation{Source: "heuristic"}

	switch r.Type {
	case domain.RulePnLGain:
		out.Confirm = true
		out.Confidence = 0.7
		if p.PnLPercent/100 > r.Threshold*1.5 {
			out.Confidence = 0.85
		}
		out.Reasoning = fmt.Sprintf("PnL of %.1f%% has reached the %g%% gain target; locking in profit.",
			p.PnLPercent, r.Threshold*100)

	case domain.RulePnLLoss:
		out.Confirm = true
		out.Confidence = 0.8
		out.Reasoning = fmt.Sprintf("PnL of %.1f%% breached the %g%% stop level; exiting to preserve capital.",
			p.PnLPercent, r.Threshold*100)

	case domain.RuleRiskScore:
		risk := rules.RiskScore(p.CurrentPrice)
		out.Confirm = risk > 0.9
		out.Confidence = 0.65
		out.Reasoning = fmt.Sprintf("Resolution risk score is %.2f at price %.2f.", risk, p.CurrentPrice)

	default:
		out.Confirm = true
		out.Confidence = 0.6
		out.Reasoning = fmt.Sprintf("Rule %q triggered; no specific heuristic, confirming by default.", r.Type)
	}

	return out
}
