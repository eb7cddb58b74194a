package memory

import (
	"context"
	"sync"

	"en-words-service/internal/domain"
)

// WordStore is an in-memory app.WordStore, used when Postgres is not
// configured and as the fixture store in tests.
type WordStore struct {
	mu     sync.RWMutex
	words  []domain.Word
	logs   []logEntry
	checks map[int64]map[string]struct{}
}

type logEntry struct {
	userID  int64
	attempt domain.Attempt
}

func NewWordStore(words []domain.Word) *WordStore {
	return &WordStore{
		words:  append([]domain.Word(nil), words...),
		checks: make(map[int64]map[string]struct{}),
	}
}

func (s *WordStore) ListWords(_ context.Context, userID int64) ([]domain.Word, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	checked := s.checks[userID]
	words := make([]domain.Word, len(s.words))
	for i, word := range s.words {
		_, word.Checked = checked[word.ID]
		words[i] = word
	}
	return words, nil
}

func (s *WordStore) RecordAttempts(_ context.Context, userID int64, attempts []domain.Attempt) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, attempt := range attempts {
		s.logs = append(s.logs, logEntry{userID: userID, attempt: attempt})
	}
	return len(attempts), nil
}

func (s *WordStore) ReplaceChecks(_ context.Context, userID int64, wordIDs []string) (domain.CheckSync, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	known := make(map[string]struct{}, len(s.words))
	for _, word := range s.words {
		known[word.ID] = struct{}{}
	}

	next := make(map[string]struct{}, len(wordIDs))
	for _, id := range wordIDs {
		if _, ok := known[id]; ok {
			next[id] = struct{}{}
		}
	}

	current := s.checks[userID]
	sync := domain.CheckSync{Total: len(next)}
	for id := range next {
		if _, ok := current[id]; !ok {
			sync.Added++
		}
	}
	for id := range current {
		if _, ok := next[id]; !ok {
			sync.Removed++
		}
	}
	s.checks[userID] = next
	return sync, nil
}

func (s *WordStore) QuizStats(_ context.Context) ([]domain.WordStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index := make(map[string]int)
	var stats []domain.WordStat
	for _, entry := range s.logs {
		i, ok := index[entry.attempt.WordID]
		if !ok {
			i = len(stats)
			index[entry.attempt.WordID] = i
			stats = append(stats, domain.WordStat{WordID: entry.attempt.WordID})
		}
		if entry.attempt.IsCorrect {
			stats[i].Correct++
		} else {
			stats[i].Incorrect++
		}
	}
	return stats, nil
}
