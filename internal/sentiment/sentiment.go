// Package sentiment turns accumulated tweet texts into a market sentiment
// read, via the AI collaborator when possible and a keyword tally otherwise.
package sentiment

import (
	"context"
	"fmt"
	"strings"

	"github.com/polypilot/engine/internal/ai"
	"github.com/polypilot/engine/internal/domain"
	"github.com/polypilot/engine/internal/logger"
)

// Completer is the inference collaborator contract, satisfied by ai.Client.
type Completer interface {
	Available() bool
	Complete(ctx context.Context, system, user string) (string, error)
}

type Service struct {
	completer Completer
	logger    *logger.Logger
}

func NewService(completer Completer, log *logger.Logger) *Service {
	return &Service{completer: completer, logger: log}
}

const sentimentSystemPrompt = `You are a sentiment analyst for prediction markets.
Given tweets about a market, summarize the crowd's read on the outcome.

Answer strictly with a single JSON object, nothing else:
{"sentiment": "bullish", "score": 0.7, "consensus_shift": 0.2, "risk_flags": ["low_sample"], "summary": "one or two sentences", "opportunity_score": 0.4}

sentiment is one of bullish, bearish, neutral. score and opportunity_score are 0..1. consensus_shift is -1..1, positive meaning the implied probability should drift up.`

type aiAnswer struct {
	Sentiment        string   `json:"sentiment"`
	Score            *float64 `json:"score"`
	ConsensusShift   *float64 `json:"consensus_shift"`
	RiskFlags        []string `json:"risk_flags"`
	Summary          string   `json:"summary"`
	OpportunityScore *float64 `json:"opportunity_score"`
}

// Analyze never fails: any problem on the AI path degrades to the keyword
// heuristic, which produces the same shape.
func (s *Service) Analyze(ctx context.Context, texts []string, market domain.MarketSnapshot) domain.SentimentAnalysis {
	fallback := KeywordAnalysis(texts)

	if s.completer == nil || !s.completer.Available() {
		return fallback
	}

	raw, err := s.completer.Complete(ctx, sentimentSystemPrompt, buildPrompt(texts, market))
	if err != nil {
		s.logger.Warn("sentiment analysis falling back to keyword heuristic", "market", market.ID, "error", err)
		return fallback
	}

	var answer aiAnswer
	if err := ai.ExtractObject(raw, &answer); err != nil {
		s.logger.Warn("unparseable sentiment response, using keyword heuristic", "market", market.ID, "error", err)
		return fallback
	}

	out := domain.SentimentAnalysis{Source: "ai"}

	switch answer.Sentiment {
	case domain.SentimentBullish, domain.SentimentBearish, domain.SentimentNeutral:
		out.Sentiment = answer.Sentiment
	default:
		out.Sentiment = fallback.Sentiment
	}

	out.Score = pickClamped(answer.Score, fallback.Score, 0, 1)
	out.ConsensusShift = pickClamped(answer.ConsensusShift, fallback.ConsensusShift, -1, 1)
	out.OpportunityScore = pickClamped(answer.OpportunityScore, fallback.OpportunityScore, 0, 1)

	if answer.Summary != "" {
		out.Summary = answer.Summary
	} else {
		out.Summary = fallback.Summary
	}

	out.RiskFlags = answer.RiskFlags
	if out.RiskFlags == nil {
		out.RiskFlags = fallback.RiskFlags
	}

	return out
}

func pickClamped(v *float64, fallback, lo, hi float64) float64 {
	if v == nil {
		return fallback
	}
	if *v < lo {
		return lo
	}
	if *v > hi {
		return hi
	}
	return *v
}

func buildPrompt(texts []string, market domain.MarketSnapshot) string {
	var sb strings.Builder

	sb.WriteString("## Market\n")
	sb.WriteString(fmt.Sprintf("Question: %s\n", market.Question))
	sb.WriteString(fmt.Sprintf("Current YES price: %.3f, 24h volume: %.0f\n\n", market.YesPrice, market.Volume))

	sb.WriteString(fmt.Sprintf("## Tweets (%d, most recent first)\n", len(texts)))
	for _, t := range texts {
		sb.WriteString("- ")
		sb.WriteString(t)
		sb.WriteString("\n")
	}

	sb.WriteString("\nAnalyze the crowd sentiment and answer in JSON.")
	return sb.String()
}
