package app

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"en-words-service/internal/domain"
)

// WordCatalog fetches the word list from the backend.
type WordCatalog interface {
	FetchWords(ctx context.Context) ([]domain.Word, error)
}

// ResultSink receives a finished run's attempt ledger and checked-word set.
type ResultSink interface {
	SubmitAttempts(ctx context.Context, attempts []domain.Attempt) (int, error)
	SubmitChecks(ctx context.Context, checkedWordIDs []string) (domain.CheckSync, error)
}

// ConfirmFunc asks the user whether to discard results that could not be
// submitted. Returning false keeps the run (and its ledger) alive for a retry.
type ConfirmFunc func(message string) bool

// Status is the session lifecycle state.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusInProgress Status = "in_progress"
	StatusFinalizing Status = "finalizing"
	StatusCompleted  Status = "completed"
)

// AllGroups selects the whole catalog instead of a single group.
const AllGroups = "all"

const confirmDiscardMessage = "Could not record results (offline?). Return to the start screen anyway?"

// Session is the quiz run state machine. A run draws a shuffled deck from the
// selected group, serves one question at a time, accumulates attempts, and on
// exhaustion or stop submits the ledger and checked-word set before resetting.
//
// All mutation goes through the mutex; finalization is guarded structurally by
// StatusFinalizing, so racing triggers (deck exhaustion vs. explicit stop)
// collapse into a single submission.
type Session struct {
	catalog WordCatalog
	sink    ResultSink
	confirm ConfirmFunc
	log     *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand

	words      []domain.Word
	checksInit bool

	selectedGroupID string
	status          Status
	activePool      []domain.Word
	deck            []domain.Word
	question        *domain.Question
	attempts        []domain.Attempt
	progress        domain.Progress
	checked         map[string]struct{}
}

// SessionOption customizes a Session.
type SessionOption func(*Session)

// WithRand injects the randomness source, for deterministic tests.
func WithRand(rng *rand.Rand) SessionOption {
	return func(s *Session) { s.rng = rng }
}

// WithConfirm injects the user confirmation prompt used when attempt
// submission fails. The default accepts, discarding unrecorded results.
func WithConfirm(confirm ConfirmFunc) SessionOption {
	return func(s *Session) { s.confirm = confirm }
}

func NewSession(catalog WordCatalog, sink ResultSink, log *zap.Logger, opts ...SessionOption) *Session {
	s := &Session{
		catalog:         catalog,
		sink:            sink,
		confirm:         func(string) bool { return true },
		log:             log,
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
		selectedGroupID: AllGroups,
		status:          StatusIdle,
		checked:         make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadWords fetches the catalog. The checked set is seeded from the server's
// flags exactly once, on the first successful load; later reloads keep the
// locally mutated set.
func (s *Session) LoadWords(ctx context.Context) error {
	words, err := s.catalog.FetchWords(ctx)
	if err != nil {
		return fmt.Errorf("load words: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.words = words
	if !s.checksInit && len(words) > 0 {
		for _, word := range words {
			if word.Checked {
				s.checked[word.ID] = struct{}{}
			}
		}
		s.checksInit = true
	}
	return nil
}

// Words returns the loaded catalog.
func (s *Session) Words() []domain.Word {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Word(nil), s.words...)
}

// Groups projects the loaded catalog into group options, sorted by name.
// Ungrouped words are skipped; a group with no name falls back to its ID.
func (s *Session) Groups() []domain.Group {
	s.mu.Lock()
	defer s.mu.Unlock()

	index := make(map[string]int)
	var groups []domain.Group
	for _, word := range s.words {
		if word.GroupID == "" {
			continue
		}
		if i, ok := index[word.GroupID]; ok {
			groups[i].Count++
			continue
		}
		name := word.GroupName
		if name == "" {
			name = word.GroupID
		}
		index[word.GroupID] = len(groups)
		groups = append(groups, domain.Group{ID: word.GroupID, Name: name, Count: 1})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups
}

// SelectGroup sets the group filter used by the next Start.
func (s *Session) SelectGroup(groupID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if groupID == "" {
		groupID = AllGroups
	}
	s.selectedGroupID = groupID
}

// SelectedGroup returns the active group filter.
func (s *Session) SelectedGroup() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedGroupID
}

// Status returns the lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Question returns a copy of the current question, or nil outside a run.
func (s *Session) Question() *domain.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.question == nil {
		return nil
	}
	q := *s.question
	q.Options = append([]domain.Option(nil), s.question.Options...)
	return &q
}

// Progress reports position within the active run.
func (s *Session) Progress() (domain.Progress, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress, s.progress.Total > 0
}

// Attempts returns the ledger accumulated so far, in answer order.
func (s *Session) Attempts() []domain.Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Attempt(nil), s.attempts...)
}

// IsChecked reports whether the word is in the local checked set.
func (s *Session) IsChecked(wordID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.checked[wordID]
	return ok
}

// CheckedIDs returns the checked set as a sorted slice.
func (s *Session) CheckedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkedIDsLocked()
}

func (s *Session) checkedIDsLocked() []string {
	ids := make([]string, 0, len(s.checked))
	for id := range s.checked {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ToggleCheck mutates the local checked set. Changes are buffered and only
// flushed to the backend at finalization.
func (s *Session) ToggleCheck(wordID string, checked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if checked {
		s.checked[wordID] = struct{}{}
	} else {
		delete(s.checked, wordID)
	}
}

// Start begins a run over the selected group. An empty filtered pool lands in
// StatusCompleted with no question; otherwise the pool is shuffled, the first
// word becomes the current question, and the rest form the deck.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status {
	case StatusInProgress, StatusFinalizing:
		return domain.ErrRunActive
	}
	if len(s.words) == 0 {
		return domain.ErrCatalogNotLoaded
	}

	filtered := s.filteredWordsLocked()
	if len(filtered) == 0 {
		s.clearRunLocked()
		s.status = StatusCompleted
		return nil
	}

	pool := append([]domain.Word(nil), filtered...)
	s.rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	s.activePool = pool
	s.deck = pool[1:]
	s.question = &domain.Question{
		Word:    pool[0],
		Options: CreateOptions(pool[0], pool, s.rng),
		Status:  domain.QuestionIdle,
	}
	s.attempts = nil
	s.progress = domain.Progress{Current: 1, Total: len(pool)}
	s.status = StatusInProgress
	return nil
}

func (s *Session) filteredWordsLocked() []domain.Word {
	if s.selectedGroupID == AllGroups {
		return s.words
	}
	var filtered []domain.Word
	for _, word := range s.words {
		if word.GroupID == s.selectedGroupID {
			filtered = append(filtered, word)
		}
	}
	return filtered
}

// Choose records the answer for the current question. It is a silent no-op
// unless a run is in progress, the question is unanswered, and the option's ID
// belongs to the currently active option set; the last guard rejects stale
// options held over from a question that has since advanced. The correctness
// recorded is the current question's own, never the caller's.
func (s *Session) Choose(option domain.Option) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusInProgress || s.question == nil || s.question.Status != domain.QuestionIdle {
		return
	}
	var picked *domain.Option
	for i := range s.question.Options {
		if s.question.Options[i].ID == option.ID {
			picked = &s.question.Options[i]
			break
		}
	}
	if picked == nil {
		return
	}

	s.attempts = append(s.attempts, domain.Attempt{WordID: s.question.Word.ID, IsCorrect: picked.IsCorrect})
	if picked.IsCorrect {
		s.question.Status = domain.QuestionCorrect
	} else {
		s.question.Status = domain.QuestionIncorrect
	}
	s.question.SelectedID = picked.ID
}

// Next advances to the following question, or finalizes the run once the deck
// is exhausted.
func (s *Session) Next(ctx context.Context) error {
	s.mu.Lock()
	if s.status != StatusInProgress {
		s.mu.Unlock()
		return domain.ErrNotInProgress
	}
	if len(s.deck) > 0 {
		word := s.deck[0]
		s.deck = s.deck[1:]
		s.question = &domain.Question{
			Word:    word,
			Options: CreateOptions(word, s.activePool, s.rng),
			Status:  domain.QuestionIdle,
		}
		s.progress.Current = s.progress.Total - len(s.deck)
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	return s.finalizeRun(ctx)
}

// Stop ends the run. With record=false the ledger is discarded and no network
// call is made; with record=true the run finalizes normally. Outside a run it
// just resets, except while finalizing, where the in-flight finalization wins.
func (s *Session) Stop(ctx context.Context, record bool) error {
	s.mu.Lock()
	if s.status != StatusInProgress {
		if s.status != StatusFinalizing {
			s.clearRunLocked()
			s.status = StatusIdle
		}
		s.mu.Unlock()
		return nil
	}
	if !record {
		s.clearRunLocked()
		s.status = StatusIdle
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	return s.finalizeRun(ctx)
}

// finalizeRun submits the ledger, then the checked set, then resets to idle.
// The transition to StatusFinalizing is the reentrancy latch: a second caller
// finds the status already moved and returns without submitting anything.
// Submission order is fixed; only the attempts step may abort the reset.
func (s *Session) finalizeRun(ctx context.Context) error {
	s.mu.Lock()
	if s.status != StatusInProgress {
		s.mu.Unlock()
		return nil
	}
	s.status = StatusFinalizing
	attempts := append([]domain.Attempt(nil), s.attempts...)
	checked := s.checkedIDsLocked()
	s.mu.Unlock()

	if len(attempts) > 0 {
		if _, err := s.sink.SubmitAttempts(ctx, attempts); err != nil {
			s.log.Warn("recording quiz results failed", zap.Error(err), zap.Int("attempts", len(attempts)))
			if !s.confirm(confirmDiscardMessage) {
				s.mu.Lock()
				if s.status == StatusFinalizing {
					s.status = StatusInProgress
				}
				s.mu.Unlock()
				return domain.ErrFinalizeDeclined
			}
		}
	}

	// Checked-state loss is lower severity than losing quiz results: log and
	// keep going.
	if _, err := s.sink.SubmitChecks(ctx, checked); err != nil {
		s.log.Warn("saving word checks failed", zap.Error(err), zap.Int("checked", len(checked)))
	}

	s.mu.Lock()
	if s.status == StatusFinalizing {
		s.clearRunLocked()
		s.status = StatusIdle
	}
	s.mu.Unlock()
	return nil
}

func (s *Session) clearRunLocked() {
	s.activePool = nil
	s.deck = nil
	s.question = nil
	s.attempts = nil
	s.progress = domain.Progress{}
}
