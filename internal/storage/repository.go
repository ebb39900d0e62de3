package storage

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/polypilot/engine/internal/domain"
	"github.com/polypilot/engine/internal/logger"
)

// Repository is the append-mostly audit trail. Writes are best-effort: a
// failed insert is logged and never surfaces to the pipeline.
type Repository struct {
	db     *gorm.DB
	logger *logger.Logger
}

func NewRepository(db *gorm.DB, log *logger.Logger) *Repository {
	return &Repository{db: db, logger: log}
}

// ExitDecision implements the autoexit audit hook.
func (r *Repository) ExitDecision(installID string, p domain.Position, rule domain.AutoExitRule, c domain.ExitConfirmation) {
	ev := &ExitEvent{
		ID:         uuid.NewString(),
		InstallID:  installID,
		PositionID: p.ID,
		MarketID:   p.MarketID,
		RuleType:   rule.Type,
		Action:     rule.Action,
		Confirmed:  c.Confirm,
		Confidence: c.Confidence,
		Reasoning:  c.Reasoning,
		Source:     c.Source,
	}
	if err := r.db.Create(ev).Error; err != nil {
		r.logger.Error("save exit event", "error", err)
	}
}

// AnalysisCompleted implements the insight audit hook.
func (r *Repository) AnalysisCompleted(installID, marketID string, a domain.SentimentAnalysis, tweetCount int) {
	rec := &AnalysisRecord{
		ID:         uuid.NewString(),
		InstallID:  installID,
		MarketID:   marketID,
		Sentiment:  a.Sentiment,
		Score:      a.Score,
		TweetCount: tweetCount,
		Source:     a.Source,
	}
	if err := r.db.Create(rec).Error; err != nil {
		r.logger.Error("save analysis record", "error", err)
	}
}

func (r *Repository) RecentExitEvents(limit int) ([]ExitEvent, error) {
	var events []ExitEvent
	err := r.db.Order("created_at DESC").Limit(limit).Find(&events).Error
	return events, err
}

func (r *Repository) RecentAnalyses(limit int) ([]AnalysisRecord, error) {
	var records []AnalysisRecord
	err := r.db.Order("created_at DESC").Limit(limit).Find(&records).Error
	return records, err
}
