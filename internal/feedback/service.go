package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rbright/rehearse/internal/interview"
	"github.com/rbright/rehearse/internal/store"
)

// Store is the slice of the session store the service needs.
type Store interface {
	Load(ctx context.Context, id string) (interview.Record, error)
	SaveFeedback(ctx context.Context, id string, report json.RawMessage) error
	LoadFeedback(ctx context.Context, id string) (json.RawMessage, error)
}

// Service generates and caches feedback reports.
type Service struct {
	store  Store
	scorer Scorer
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds a service over st. A nil scorer uses HeuristicScorer.
func NewService(st Store, scorer Scorer, logger *slog.Logger) *Service {
	if scorer == nil {
		scorer = HeuristicScorer{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{store: st, scorer: scorer, logger: logger, now: time.Now}
}

// ForSession generates a fresh report for id and saves it.
func (s *Service) ForSession(ctx context.Context, id string) (Report, error) {
	record, err := s.store.Load(ctx, id)
	if err != nil {
		return Report{}, fmt.Errorf("load session %s: %w", id, err)
	}

	report := Generate(record, s.scorer, s.now())
	body, err := json.Marshal(report)
	if err != nil {
		return Report{}, fmt.Errorf("encode feedback %s: %w", id, err)
	}
	if err := s.store.SaveFeedback(ctx, id, body); err != nil {
		return Report{}, fmt.Errorf("save feedback %s: %w", id, err)
	}

	s.logger.Info("feedback generated",
		"session_id", id,
		"overall_score", report.OverallScore,
		"questions_answered", report.QuestionsAnswered,
	)
	return report, nil
}

// Get returns the saved report for id, generating one when none exists.
func (s *Service) Get(ctx context.Context, id string) (Report, error) {
	body, err := s.store.LoadFeedback(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return s.ForSession(ctx, id)
	}
	if err != nil {
		return Report{}, fmt.Errorf("load feedback %s: %w", id, err)
	}

	var report Report
	if err := json.Unmarshal(body, &report); err != nil {
		return Report{}, fmt.Errorf("decode feedback %s: %w", id, err)
	}
	return report, nil
}
