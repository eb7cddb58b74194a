package postgres

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"en-words-service/internal/domain"
)

// WordStore is the Postgres-backed app.WordStore.
type WordStore struct {
	pool *pgxpool.Pool
}

func NewWordStore(pool *pgxpool.Pool) *WordStore {
	return &WordStore{pool: pool}
}

// ListWords returns the catalog (newest first, as the admin table expects)
// with the first translation per word and the user's checked flag joined in.
func (s *WordStore) ListWords(ctx context.Context, userID int64) ([]domain.Word, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT w.id, w.word_en, g.id, g.name,
		       (SELECT jp.word_jp FROM word_jp jp WHERE jp.word_id = w.id ORDER BY jp.id LIMIT 1),
		       EXISTS (SELECT 1 FROM user_word_checks c WHERE c.word_id = w.id AND c.user_id = $1)
		FROM words w
		LEFT JOIN word_groups g ON g.id = w.word_group_id
		ORDER BY w.created_at DESC, w.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list words: %w", err)
	}
	defer rows.Close()

	var words []domain.Word
	for rows.Next() {
		var (
			id        int64
			term      string
			groupID   *int64
			groupName *string
			meaning   *string
			checked   bool
		)
		if err := rows.Scan(&id, &term, &groupID, &groupName, &meaning, &checked); err != nil {
			return nil, fmt.Errorf("scan word: %w", err)
		}

		word := domain.Word{
			ID:      strconv.FormatInt(id, 10),
			Term:    term,
			Checked: checked,
		}
		if meaning != nil {
			word.Meaning = *meaning
		}
		if groupID != nil {
			word.GroupID = strconv.FormatInt(*groupID, 10)
		}
		if groupName != nil {
			word.GroupName = *groupName
		}
		words = append(words, word)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list words: %w", err)
	}
	return words, nil
}

// RecordAttempts inserts the batch in order. Entries whose word ID is not a
// valid database ID are skipped rather than failing the batch.
func (s *WordStore) RecordAttempts(ctx context.Context, userID int64, attempts []domain.Attempt) (int, error) {
	batch := &pgx.Batch{}
	queued := 0
	for _, attempt := range attempts {
		wordID, err := strconv.ParseInt(attempt.WordID, 10, 64)
		if err != nil {
			continue
		}
		batch.Queue(
			`INSERT INTO quiz_answer_logs (user_id, word_id, is_correct) VALUES ($1, $2, $3)`,
			userID, wordID, attempt.IsCorrect,
		)
		queued++
	}
	if queued == 0 {
		return 0, domain.ErrEmptyBatch
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for i := 0; i < queued; i++ {
		if _, err := results.Exec(); err != nil {
			return 0, fmt.Errorf("record attempts: %w", err)
		}
	}
	return queued, nil
}

// ReplaceChecks swaps the user's checked set for wordIDs inside a transaction
// and reports the diff the swap produced. IDs that do not match a stored word
// are ignored.
func (s *WordStore) ReplaceChecks(ctx context.Context, userID int64, wordIDs []string) (domain.CheckSync, error) {
	ids := make([]int64, 0, len(wordIDs))
	for _, raw := range wordIDs {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.CheckSync{}, fmt.Errorf("replace checks: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	removed, err := tx.Exec(ctx,
		`DELETE FROM user_word_checks WHERE user_id = $1 AND NOT (word_id = ANY($2))`,
		userID, ids)
	if err != nil {
		return domain.CheckSync{}, fmt.Errorf("remove stale checks: %w", err)
	}

	added, err := tx.Exec(ctx, `
		INSERT INTO user_word_checks (user_id, word_id)
		SELECT $1, w.id FROM words w WHERE w.id = ANY($2)
		ON CONFLICT (user_id, word_id) DO NOTHING`,
		userID, ids)
	if err != nil {
		return domain.CheckSync{}, fmt.Errorf("insert checks: %w", err)
	}

	var total int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM user_word_checks WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return domain.CheckSync{}, fmt.Errorf("count checks: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.CheckSync{}, fmt.Errorf("replace checks: %w", err)
	}
	return domain.CheckSync{
		Added:   int(added.RowsAffected()),
		Removed: int(removed.RowsAffected()),
		Total:   total,
	}, nil
}

// QuizStats aggregates correct/incorrect counts over the whole answer log.
func (s *WordStore) QuizStats(ctx context.Context) ([]domain.WordStat, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT word_id,
		       COUNT(*) FILTER (WHERE is_correct),
		       COUNT(*) FILTER (WHERE NOT is_correct)
		FROM quiz_answer_logs
		GROUP BY word_id
		ORDER BY word_id`)
	if err != nil {
		return nil, fmt.Errorf("quiz stats: %w", err)
	}
	defer rows.Close()

	var stats []domain.WordStat
	for rows.Next() {
		var (
			wordID             int64
			correct, incorrect int
		)
		if err := rows.Scan(&wordID, &correct, &incorrect); err != nil {
			return nil, fmt.Errorf("scan stat: %w", err)
		}
		stats = append(stats, domain.WordStat{
			WordID:    strconv.FormatInt(wordID, 10),
			Correct:   correct,
			Incorrect: incorrect,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("quiz stats: %w", err)
	}
	return stats, nil
}
