package sentiment

import (
	"fmt"
	"strings"

	"github.com/polypilot/engine/internal/domain"
)

var bullishWords = []string{
	"bullish", "bull", "moon", "pump", "surge", "rally", "breakout",
	"buy", "long", "up", "win", "winning", "yes", "confirmed", "inevitable",
}

var bearishWords = []string{
	"bearish", "bear", "dump", "crash", "drop", "tank", "fade",
	"sell", "short", "down", "lose", "losing", "no", "dead", "rigged",
}

// KeywordAnalysis is the local word-list fallback. It tallies bullish and
// bearish word hits across the texts; the bull/bear ratio drives sentiment
// and score, and consensus shift and opportunity scale with sample size.
func KeywordAnalysis(texts []string) domain.SentimentAnalysis {
	var bull, bear int
	for _, text := range texts {
		words := strings.Fields(strings.ToLower(text))
		for _, w := range words {
			w = strings.Trim(w, ".,!?#$@:;\"'()")
			for _, b := range bullishWords {
				if w == b {
					bull++
				}
			}
			for _, b := range bearishWords {
				if w == b {
					bear++
				}
			}
		}
	}

	out := domain.SentimentAnalysis{Source: "heuristic"}
	total := bull + bear

	if total == 0 {
		out.Sentiment = domain.SentimentNeutral
		out.Score = 0.5
		out.Summary = fmt.Sprintf("No directional signal across %d tweets.", len(texts))
		out.RiskFlags = []string{"no_signal"}
		return out
	}

	ratio := float64(bull) / float64(total)

	switch {
	case ratio >= 0.6:
		out.Sentiment = domain.SentimentBullish
	case ratio <= 0.4:
		out.Sentiment = domain.SentimentBearish
	default:
		out.Sentiment = domain.SentimentNeutral
	}

	// Score reflects how one-sided the tally is.
	out.Score = 0.5 + abs(ratio-0.5)

	// Shift direction follows the ratio; magnitude is damped for thin samples.
	sample := float64(len(texts)) / 10
	if sample > 1 {
		sample = 1
	}
	out.ConsensusShift = (ratio - 0.5) * 2 * sample
	out.OpportunityScore = abs(out.ConsensusShift) * 0.8

	if len(texts) < 3 {
		out.RiskFlags = append(out.RiskFlags, "low_sample")
	}
	if ratio > 0.9 || ratio < 0.1 {
		out.RiskFlags = append(out.RiskFlags, "one_sided")
	}

	out.Summary = fmt.Sprintf("Keyword tally across %d tweets: %d bullish vs %d bearish mentions.",
		len(texts), bull, bear)

	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
