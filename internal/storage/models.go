package storage

import "time"

// ExitEvent records one confirmation decision, confirmed or declined.
type ExitEvent struct {
	ID        string    `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	InstallID  string  `gorm:"index;not null" json:"install_id"`
	PositionID string  `gorm:"not null" json:"position_id"`
	MarketID   string  `json:"market_id"`
	RuleType   string  `json:"rule_type"`
	Action     string  `json:"action"`
	Confirmed  bool    `json:"confirmed"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `gorm:"type:text" json:"reasoning"`
	Source     string  `json:"source"` // ai or heuristic
}

// AnalysisRecord records one completed sentiment analysis. InstallID is
// empty for scanner-produced global analyses.
type AnalysisRecord struct {
	ID        string    `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	InstallID  string  `gorm:"index" json:"install_id"`
	MarketID   string  `gorm:"index;not null" json:"market_id"`
	Sentiment  string  `json:"sentiment"`
	Score      float64 `json:"score"`
	TweetCount int     `json:"tweet_count"`
	Source     string  `json:"source"`
}
