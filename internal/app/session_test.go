package app

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"en-words-service/internal/domain"
)

type fakeCatalog struct {
	words []domain.Word
	err   error
}

func (c *fakeCatalog) FetchWords(_ context.Context) ([]domain.Word, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.words, nil
}

type fakeSink struct {
	mu           sync.Mutex
	delay        time.Duration
	attemptErr   error
	checkErr     error
	attemptCalls int
	checkCalls   int
	attempts     [][]domain.Attempt
	checks       [][]string
	order        []string
}

func (s *fakeSink) SubmitAttempts(_ context.Context, attempts []domain.Attempt) (int, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attemptCalls++
	s.attempts = append(s.attempts, append([]domain.Attempt(nil), attempts...))
	s.order = append(s.order, "attempts")
	if s.attemptErr != nil {
		return 0, s.attemptErr
	}
	return len(attempts), nil
}

func (s *fakeSink) SubmitChecks(_ context.Context, ids []string) (domain.CheckSync, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkCalls++
	s.checks = append(s.checks, append([]string(nil), ids...))
	s.order = append(s.order, "checks")
	if s.checkErr != nil {
		return domain.CheckSync{}, s.checkErr
	}
	return domain.CheckSync{Total: len(ids)}, nil
}

func (s *fakeSink) setAttemptErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attemptErr = err
}

func sampleWords() []domain.Word {
	return []domain.Word{
		{ID: "1", Term: "hello", Meaning: "こんにちは", GroupID: "g1", GroupName: "Basics"},
		{ID: "2", Term: "thanks", Meaning: "ありがとう", GroupID: "g1", GroupName: "Basics"},
		{ID: "3", Term: "goodbye", Meaning: "さようなら", GroupID: "g1", GroupName: "Basics"},
		{ID: "4", Term: "friend", Meaning: "友達", GroupID: "g2", GroupName: "Travel"},
		{ID: "5", Term: "study", Meaning: "学ぶ", GroupID: "g2", GroupName: "Travel"},
	}
}

func newTestSession(t *testing.T, words []domain.Word, sink *fakeSink, opts ...SessionOption) *Session {
	t.Helper()
	opts = append([]SessionOption{WithRand(rand.New(rand.NewSource(1)))}, opts...)
	session := NewSession(&fakeCatalog{words: words}, sink, zap.NewNop(), opts...)
	if err := session.LoadWords(context.Background()); err != nil {
		t.Fatalf("load words: %v", err)
	}
	return session
}

func chooseCorrect(t *testing.T, session *Session) {
	t.Helper()
	question := session.Question()
	if question == nil {
		t.Fatalf("expected an active question")
	}
	for _, opt := range question.Options {
		if opt.IsCorrect {
			session.Choose(opt)
			return
		}
	}
	t.Fatalf("no correct option in %+v", question.Options)
}

func TestRunCoversWholePool(t *testing.T) {
	ctx := context.Background()
	sink := &fakeSink{}
	session := newTestSession(t, sampleWords(), sink)

	if err := session.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := session.Status(); got != StatusInProgress {
		t.Fatalf("expected in_progress, got %s", got)
	}
	if progress, ok := session.Progress(); !ok || progress.Current != 1 || progress.Total != 5 {
		t.Fatalf("expected progress 1/5, got %+v", progress)
	}

	seen := map[string]int{}
	for i := 0; i < 5; i++ {
		question := session.Question()
		seen[question.Word.ID]++
		chooseCorrect(t, session)
		if err := session.Next(ctx); err != nil {
			t.Fatalf("next: %v", err)
		}
	}

	if len(seen) != 5 {
		t.Fatalf("expected 5 distinct words, got %d", len(seen))
	}
	for id, count := range seen {
		if count != 1 {
			t.Fatalf("word %s served %d times", id, count)
		}
	}
	if got := session.Status(); got != StatusIdle {
		t.Fatalf("expected idle after finalization, got %s", got)
	}
	if sink.attemptCalls != 1 {
		t.Fatalf("expected one attempts submission, got %d", sink.attemptCalls)
	}
	if len(sink.attempts[0]) != 5 {
		t.Fatalf("expected 5 attempts submitted, got %d", len(sink.attempts[0]))
	}
}

func TestStartWithEmptyFilteredPool(t *testing.T) {
	session := newTestSession(t, sampleWords(), &fakeSink{})
	session.SelectGroup("nope")

	if err := session.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := session.Status(); got != StatusCompleted {
		t.Fatalf("expected completed for empty pool, got %s", got)
	}
	if session.Question() != nil {
		t.Fatalf("expected no question for empty pool")
	}
}

func TestStartGuards(t *testing.T) {
	sink := &fakeSink{}
	empty := NewSession(&fakeCatalog{}, sink, zap.NewNop())
	if err := empty.Start(); !errors.Is(err, domain.ErrCatalogNotLoaded) {
		t.Fatalf("expected ErrCatalogNotLoaded, got %v", err)
	}

	session := newTestSession(t, sampleWords(), sink)
	if err := session.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := session.Start(); !errors.Is(err, domain.ErrRunActive) {
		t.Fatalf("expected ErrRunActive, got %v", err)
	}
}

func TestGroupFilterRestrictsPool(t *testing.T) {
	ctx := context.Background()
	sink := &fakeSink{}
	session := newTestSession(t, sampleWords(), sink)
	session.SelectGroup("g2")

	if err := session.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if progress, _ := session.Progress(); progress.Total != 2 {
		t.Fatalf("expected pool of 2 for group g2, got %d", progress.Total)
	}
	for i := 0; i < 2; i++ {
		if question := session.Question(); question.Word.GroupID != "g2" {
			t.Fatalf("word %s not in group g2", question.Word.ID)
		}
		chooseCorrect(t, session)
		if err := session.Next(ctx); err != nil {
			t.Fatalf("next: %v", err)
		}
	}
}

func TestChooseRecordsSingleAttempt(t *testing.T) {
	session := newTestSession(t, sampleWords(), &fakeSink{})
	if err := session.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	question := session.Question()
	var wrong *domain.Option
	for i := range question.Options {
		if !question.Options[i].IsCorrect {
			wrong = &question.Options[i]
			break
		}
	}
	if wrong == nil {
		t.Fatalf("expected a distractor in %+v", question.Options)
	}

	session.Choose(*wrong)
	answered := session.Question()
	if answered.Status != domain.QuestionIncorrect {
		t.Fatalf("expected incorrect, got %s", answered.Status)
	}
	if answered.SelectedID != wrong.ID {
		t.Fatalf("expected selectedId %s, got %s", wrong.ID, answered.SelectedID)
	}

	attempts := session.Attempts()
	if len(attempts) != 1 {
		t.Fatalf("expected 1 attempt, got %d", len(attempts))
	}
	if attempts[0].WordID != question.Word.ID || attempts[0].IsCorrect {
		t.Fatalf("unexpected attempt %+v", attempts[0])
	}

	// Repeated clicks after the first must be silently ignored.
	for _, opt := range answered.Options {
		session.Choose(opt)
	}
	if got := session.Attempts(); len(got) != 1 {
		t.Fatalf("expected attempts unchanged, got %d", len(got))
	}
	if got := session.Question(); got.Status != domain.QuestionIncorrect || got.SelectedID != wrong.ID {
		t.Fatalf("question mutated by repeated choose: %+v", got)
	}
}

func TestChooseRejectsStaleOption(t *testing.T) {
	ctx := context.Background()
	session := newTestSession(t, sampleWords(), &fakeSink{})
	if err := session.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	previous := session.Question()
	chooseCorrect(t, session)
	if err := session.Next(ctx); err != nil {
		t.Fatalf("next: %v", err)
	}

	current := session.Question()
	currentIDs := map[string]bool{}
	for _, opt := range current.Options {
		currentIDs[opt.ID] = true
	}
	stale := domain.Option{ID: "not-a-real-option", IsCorrect: true}
	for _, opt := range previous.Options {
		if !currentIDs[opt.ID] {
			stale = opt
			break
		}
	}

	session.Choose(stale)
	if got := session.Question(); got.Status != domain.QuestionIdle || got.SelectedID != "" {
		t.Fatalf("stale option mutated question: %+v", got)
	}
	if got := session.Attempts(); len(got) != 1 {
		t.Fatalf("stale option appended an attempt: %d", len(got))
	}
}

func TestStopWithoutRecording(t *testing.T) {
	ctx := context.Background()
	sink := &fakeSink{}
	session := newTestSession(t, sampleWords(), sink)
	if err := session.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	chooseCorrect(t, session)

	if err := session.Stop(ctx, false); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got := session.Status(); got != StatusIdle {
		t.Fatalf("expected idle, got %s", got)
	}
	if len(session.Attempts()) != 0 {
		t.Fatalf("expected attempts discarded")
	}
	if sink.attemptCalls != 0 || sink.checkCalls != 0 {
		t.Fatalf("expected no network calls, got attempts=%d checks=%d", sink.attemptCalls, sink.checkCalls)
	}
}

func TestFinalizeRunsOnce(t *testing.T) {
	ctx := context.Background()
	sink := &fakeSink{delay: 50 * time.Millisecond}
	words := sampleWords()[:1]
	session := newTestSession(t, words, sink)
	if err := session.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	chooseCorrect(t, session)

	// Deck is already empty; race deck-exhaustion Next against explicit Stop.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = session.Next(ctx)
	}()
	go func() {
		defer wg.Done()
		_ = session.Stop(ctx, true)
	}()
	wg.Wait()

	if sink.attemptCalls != 1 {
		t.Fatalf("expected exactly one attempts submission, got %d", sink.attemptCalls)
	}
	if got := session.Status(); got != StatusIdle {
		t.Fatalf("expected idle, got %s", got)
	}
}

func TestFinalizeDeclinedKeepsRun(t *testing.T) {
	ctx := context.Background()
	sink := &fakeSink{attemptErr: errors.New("backend down")}
	declined := 0
	session := newTestSession(t, sampleWords()[:2], sink, WithConfirm(func(string) bool {
		declined++
		return false
	}))
	if err := session.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	chooseCorrect(t, session)
	if err := session.Next(ctx); err != nil {
		t.Fatalf("next: %v", err)
	}
	chooseCorrect(t, session)

	if err := session.Next(ctx); !errors.Is(err, domain.ErrFinalizeDeclined) {
		t.Fatalf("expected ErrFinalizeDeclined, got %v", err)
	}
	if declined != 1 {
		t.Fatalf("expected one confirmation prompt, got %d", declined)
	}
	if got := session.Status(); got != StatusInProgress {
		t.Fatalf("expected run kept in progress, got %s", got)
	}
	if got := session.Attempts(); len(got) != 2 {
		t.Fatalf("expected ledger preserved, got %d attempts", len(got))
	}
	if sink.checkCalls != 0 {
		t.Fatalf("checks must not be submitted before attempts succeed")
	}

	// The same stop path retries and succeeds once the backend is back.
	sink.setAttemptErr(nil)
	if err := session.Stop(ctx, true); err != nil {
		t.Fatalf("stop after retry: %v", err)
	}
	if sink.attemptCalls != 2 {
		t.Fatalf("expected resubmission, got %d calls", sink.attemptCalls)
	}
	if got := session.Status(); got != StatusIdle {
		t.Fatalf("expected idle after retry, got %s", got)
	}
}

func TestFinalizeAcceptedDiscardsAfterFailure(t *testing.T) {
	ctx := context.Background()
	sink := &fakeSink{attemptErr: errors.New("backend down")}
	session := newTestSession(t, sampleWords()[:1], sink, WithConfirm(func(string) bool {
		return true
	}))
	if err := session.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	chooseCorrect(t, session)

	if err := session.Next(ctx); err != nil {
		t.Fatalf("next: %v", err)
	}
	if got := session.Status(); got != StatusIdle {
		t.Fatalf("expected reset after accepted data loss, got %s", got)
	}
	if sink.checkCalls != 1 {
		t.Fatalf("expected checks still submitted, got %d", sink.checkCalls)
	}
}

func TestFinalizeOrderAndCheckFailure(t *testing.T) {
	ctx := context.Background()
	sink := &fakeSink{checkErr: errors.New("redis sneeze")}
	session := newTestSession(t, sampleWords()[:1], sink)
	session.ToggleCheck("1", true)
	if err := session.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	chooseCorrect(t, session)

	if err := session.Next(ctx); err != nil {
		t.Fatalf("check failure must not block finalization: %v", err)
	}
	if len(sink.order) != 2 || sink.order[0] != "attempts" || sink.order[1] != "checks" {
		t.Fatalf("expected attempts before checks, got %v", sink.order)
	}
	if got := session.Status(); got != StatusIdle {
		t.Fatalf("expected idle, got %s", got)
	}
}

func TestFinalizeSkipsEmptyLedger(t *testing.T) {
	ctx := context.Background()
	sink := &fakeSink{}
	session := newTestSession(t, sampleWords(), sink)
	if err := session.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := session.Stop(ctx, true); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if sink.attemptCalls != 0 {
		t.Fatalf("empty ledger must not be submitted")
	}
	if sink.checkCalls != 1 {
		t.Fatalf("expected checked set still flushed, got %d", sink.checkCalls)
	}
}

func TestToggleCheckIsBuffered(t *testing.T) {
	ctx := context.Background()
	sink := &fakeSink{}
	session := newTestSession(t, sampleWords(), sink)

	session.ToggleCheck("1", true)
	session.ToggleCheck("1", false)
	if session.IsChecked("1") {
		t.Fatalf("expected word 1 unchecked")
	}
	session.ToggleCheck("2", true)
	session.ToggleCheck("4", true)
	if sink.checkCalls != 0 {
		t.Fatalf("toggle must not hit the network")
	}

	if err := session.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	chooseCorrect(t, session)
	if err := session.Stop(ctx, true); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if sink.checkCalls != 1 {
		t.Fatalf("expected one checks flush, got %d", sink.checkCalls)
	}
	got := sink.checks[0]
	if len(got) != 2 || got[0] != "2" || got[1] != "4" {
		t.Fatalf("unexpected checked set %v", got)
	}
}

func TestCheckedSetSeededFromCatalogOnce(t *testing.T) {
	words := sampleWords()
	words[2].Checked = true
	catalog := &fakeCatalog{words: words}
	session := NewSession(catalog, &fakeSink{}, zap.NewNop(), WithRand(rand.New(rand.NewSource(1))))

	if err := session.LoadWords(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !session.IsChecked("3") {
		t.Fatalf("expected server flag to seed the checked set")
	}

	session.ToggleCheck("3", false)
	if err := session.LoadWords(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if session.IsChecked("3") {
		t.Fatalf("reload must not re-seed the checked set")
	}
}

func TestGroupsProjection(t *testing.T) {
	words := append(sampleWords(), domain.Word{ID: "6", Term: "stray", Meaning: "はぐれ"})
	session := newTestSession(t, words, &fakeSink{})

	groups := session.Groups()
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].Name != "Basics" || groups[0].Count != 3 {
		t.Fatalf("unexpected first group %+v", groups[0])
	}
	if groups[1].Name != "Travel" || groups[1].Count != 2 {
		t.Fatalf("unexpected second group %+v", groups[1])
	}
}
