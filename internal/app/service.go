package app

import (
	"context"

	"go.uber.org/zap"

	"en-words-service/internal/domain"
)

// DemoUserID is the fixed identity all requests run as until users exist.
const DemoUserID int64 = 1

// WordStore is the persistence boundary for the catalog and quiz telemetry.
type WordStore interface {
	ListWords(ctx context.Context, userID int64) ([]domain.Word, error)
	RecordAttempts(ctx context.Context, userID int64, attempts []domain.Attempt) (int, error)
	ReplaceChecks(ctx context.Context, userID int64, wordIDs []string) (domain.CheckSync, error)
	QuizStats(ctx context.Context) ([]domain.WordStat, error)
}

// WordService contains the backend use cases: serving the catalog, recording
// answer batches, replacing the checked set, and aggregating stats.
type WordService struct {
	store WordStore
	log   *zap.Logger
}

func NewWordService(store WordStore, log *zap.Logger) *WordService {
	return &WordService{store: store, log: log}
}

// ListWords returns the catalog with the demo user's checked flags applied.
func (s *WordService) ListWords(ctx context.Context) ([]domain.Word, error) {
	return s.store.ListWords(ctx, DemoUserID)
}

// RecordAttempts stores an answer batch. Entries without a word ID are dropped
// rather than failing the batch; an all-invalid batch is ErrEmptyBatch.
func (s *WordService) RecordAttempts(ctx context.Context, attempts []domain.Attempt) (int, error) {
	valid := make([]domain.Attempt, 0, len(attempts))
	for _, attempt := range attempts {
		if attempt.WordID == "" {
			continue
		}
		valid = append(valid, attempt)
	}
	if len(valid) == 0 {
		return 0, domain.ErrEmptyBatch
	}

	recorded, err := s.store.RecordAttempts(ctx, DemoUserID, valid)
	if err != nil {
		return 0, err
	}
	s.log.Info("quiz results recorded", zap.Int("recorded", recorded))
	return recorded, nil
}

// ReplaceChecks replaces the demo user's checked set with wordIDs; the store
// reports the resulting diff.
func (s *WordService) ReplaceChecks(ctx context.Context, wordIDs []string) (domain.CheckSync, error) {
	return s.store.ReplaceChecks(ctx, DemoUserID, wordIDs)
}

// QuizStats aggregates per-word correct/incorrect counts over the whole log.
func (s *WordService) QuizStats(ctx context.Context) ([]domain.WordStat, error) {
	return s.store.QuizStats(ctx)
}
