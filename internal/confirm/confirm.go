// Package confirm decides whether a triggered auto-exit should actually be
// queued, asking the AI collaborator first and falling back to a local
// deterministic heuristic when it is unavailable or answers garbage.
package confirm

import (
	"context"

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

// aiAnswer uses pointer fields so that missing keys are distinguishable from
// zero values; anything missing is backfilled from the heuristic.
type aiAnswer struct {
	Confirm    *bool    `json:"confirm"`
	Reasoning  string   `json:"reasoning"`
	Confidence *float64 `json:"confidence"`
}

// Confirm never fails: any problem on the AI path degrades silently (log
// only) to the local heuristic.
func (s *Service) Confirm(ctx context.Context, p domain.Position, r domain.AutoExitRule) domain.ExitConfirmation {
	fallback := Heuristic(p, r)

	if s.completer == nil || !s.completer.Available() {
		return fallback
	}

	raw, err := s.completer.Complete(ctx, confirmSystemPrompt, buildPrompt(p, r))
	if err != nil {
		s.logger.Warn("exit confirmation falling back to heuristic", "position", p.ID, "error", err)
		return fallback
	}

	var answer aiAnswer
	if err := ai.ExtractObject(raw, &answer); err != nil {
		s.logger.Warn("unparseable confirmation response, using heuristic", "position", p.ID, "error", err)
		return fallback
	}

	out := domain.ExitConfirmation{Source: "ai"}

	if answer.Confirm != nil {
		out.Confirm = *answer.Confirm
	} else {
		out.Confirm = fallback.Confirm
	}

	if answer.Reasoning != "" {
		out.Reasoning = answer.Reasoning
	} else {
		out.Reasoning = fallback.Reasoning
	}

	if answer.Confidence != nil {
		out.Confidence = clamp01(*answer.Confidence)
	} else {
		out.Confidence = fallback.Confidence
	}

	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
