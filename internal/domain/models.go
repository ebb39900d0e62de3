// Package domain holds the shared data model of the engine: positions,
// auto-exit rules, pending exits, tweet-view sessions and market insights.
package domain

import "time"

// Side of a prediction-market position.
const (
	SideYes = "yes"
	SideNo  = "no"
)

// Auto-exit rule types.
const (
	RulePnLGain     = "pnl_gain"
	RulePnLLoss     = "pnl_loss"
	RuleRiskScore   = "risk_score"
	RulePriceTarget = "price_target"
)

// Auto-exit actions.
const (
	ActionExitFull = "exit_full"
	ActionExitHalf = "exit_half"
)

// Position is a read-only snapshot of one open position, owned by the
// client and replaced wholesale on each sync.
type Position struct {
	ID             string  `json:"id"`
	MarketID       string  `json:"marketId"`
	MarketQuestion string  `json:"marketQuestion"`
	TokenID        string  `json:"tokenId"`
	Side           string  `json:"side"`
	Shares         string  `json:"shares"` // decimal string to preserve precision
	AvgPrice       float64 `json:"avgPrice"`
	CurrentPrice   float64 `json:"currentPrice"`
	PnLPercent     float64 `json:"pnlPercent"` // 25.0 means +25%
}

// AutoExitRule is one threshold condition. Rule order in the config is a
// precedence invariant: evaluation stops at the first rule that hits, so
// reordering rules changes outcomes.
type AutoExitRule struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	Threshold float64 `json:"threshold"` // negative for pnl_loss
	Action    string  `json:"action"`
	Enabled   bool    `json:"enabled"`
}

// AutoExitConfig is the per-user automation configuration.
// RequireConfirmation is informational to the client UI only.
type AutoExitConfig struct {
	Enabled             bool           `json:"enabled"`
	Rules               []AutoExitRule `json:"rules"`
	RequireConfirmation bool           `json:"requireConfirmation"`
}

// PendingExit is a confirmed-but-not-executed exit proposal. At most one
// exists per position per user; it is removed only by explicit dismissal.
type PendingExit struct {
	PositionID     string       `json:"positionId"`
	MarketID       string       `json:"marketId"`
	MarketQuestion string       `json:"marketQuestion"`
	TokenID        string       `json:"tokenId"`
	Side           string       `json:"side"`
	Shares         string       `json:"shares"` // halved for exit_half
	CurrentPrice   float64      `json:"currentPrice"`
	TriggeredRule  AutoExitRule `json:"triggeredRule"`
	AIReasoning    string       `json:"aiReasoning"`
	AIConfidence   float64      `json:"aiConfidence"` // 0..1
	Timestamp      time.Time    `json:"timestamp"`
}

// ExitConfirmation is the answer of the confirmation path, AI or heuristic.
type ExitConfirmation struct {
	Confirm    bool    `json:"confirm"`
	Reasoning  string  `json:"reasoning"`
	Confidence float64 `json:"confidence"` // clamped to 0..1
	Source     string  `json:"source"`     // "ai" or "heuristic"
}

// TweetView is one recorded view of a tweet relevant to a market.
type TweetView struct {
	TweetID   string    `json:"tweetId"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// AIInsightsSettings controls when sentiment analysis triggers for a user.
type AIInsightsSettings struct {
	Enabled           bool    `json:"enabled"`
	MinTweetCount     int     `json:"minTweetCount"`
	MinSentimentScore float64 `json:"minSentimentScore"` // display filter, not enforced here
}

// Sentiment labels.
const (
	SentimentBullish = "bullish"
	SentimentBearish = "bearish"
	SentimentNeutral = "neutral"
)

// SentimentAnalysis is the output shape of the sentiment engine, AI or
// keyword fallback.
type SentimentAnalysis struct {
	Sentiment        string   `json:"sentiment"`
	Score            float64  `json:"score"`          // 0..1
	ConsensusShift   float64  `json:"consensusShift"` // -1..1
	RiskFlags        []string `json:"riskFlags"`
	Summary          string   `json:"summary"`
	OpportunityScore float64  `json:"opportunityScore"` // 0..1
	Source           string   `json:"source"`           // "ai" or "heuristic"
}

// Insight is an immutable cached sentiment result for a market, scoped
// per-user or globally. Scanner-produced global insights carry TweetCount 0.
type Insight struct {
	MarketID         string    `json:"marketId"`
	Summary          string    `json:"summary"`
	Sentiment        string    `json:"sentiment"`
	Score            float64   `json:"score"`
	ConsensusShift   float64   `json:"consensusShift"`
	TweetCount       int       `json:"tweetCount"`
	RiskFlags        []string  `json:"riskFlags"`
	OpportunityScore float64   `json:"opportunityScore"`
	Timestamp        time.Time `json:"timestamp"`
}

// MarketSnapshot is the catalog view of one Polymarket market.
type MarketSnapshot struct {
	ID        string  `json:"id"`
	Question  string  `json:"question"`
	Slug      string  `json:"slug"`
	Active    bool    `json:"active"`
	Closed    bool    `json:"closed"`
	YesPrice  float64 `json:"yesPrice"`
	Volume    float64 `json:"volume"`
	Liquidity float64 `json:"liquidity"`
}

// DefaultInsightsSettings are applied when a user session is first created.
// The default threshold of 1 matches the historical store behaviour.
func DefaultInsightsSettings() AIInsightsSettings {
	return AIInsightsSettings{
		Enabled:           true,
		MinTweetCount:     1,
		MinSentimentScore: 0.4,
	}
}
