package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"en-words-service/internal/config"
)

// NewSeedCmd loads a small demo catalog into Postgres. Re-running it is
// safe, every statement upserts on the natural key.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert demo groups, words and a demo user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Sync()

			db := openBun(cfg.Postgres.URL)
			defer db.Close()
			return seedDatabase(cmd.Context(), db, log)
		},
	}
}

type seedWord struct {
	en    string
	jp    []string
	group string
}

func seedWords() []seedWord {
	return []seedWord{
		{en: "hello", jp: []string{"こんにちは"}, group: "Basics"},
		{en: "thank you", jp: []string{"ありがとう"}, group: "Basics"},
		{en: "goodbye", jp: []string{"さようなら"}, group: "Basics"},
		{en: "airport", jp: []string{"空港"}, group: "Travel"},
		{en: "luggage", jp: []string{"荷物", "手荷物"}, group: "Travel"},
		{en: "reservation", jp: []string{"予約"}, group: "Travel"},
		{en: "study", jp: []string{"勉強する", "学ぶ"}},
	}
}

func seedDatabase(ctx context.Context, db *bun.DB, log *zap.Logger) error {
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, w := range seedWords() {
			var groupID *int64
			if w.group != "" {
				var id int64
				err := tx.QueryRowContext(ctx, `
					INSERT INTO word_groups (name) VALUES ($1)
					ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
					RETURNING id`, w.group).Scan(&id)
				if err != nil {
					return fmt.Errorf("seeding group %q: %w", w.group, err)
				}
				groupID = &id
			}

			var wordID int64
			err := tx.QueryRowContext(ctx, `
				INSERT INTO words (word_en, word_group_id) VALUES ($1, $2)
				ON CONFLICT (word_en) DO UPDATE SET word_group_id = EXCLUDED.word_group_id, updated_at = now()
				RETURNING id`, w.en, groupID).Scan(&wordID)
			if err != nil {
				return fmt.Errorf("seeding word %q: %w", w.en, err)
			}

			for _, jp := range w.jp {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO word_jp (word_id, word_jp) VALUES ($1, $2)
					ON CONFLICT (word_id, word_jp) DO NOTHING`, wordID, jp); err != nil {
					return fmt.Errorf("seeding translation %q: %w", jp, err)
				}
			}
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, email, password_hash, display_name)
			VALUES (1, 'demo@example.com', '', 'Demo')
			ON CONFLICT (id) DO NOTHING`); err != nil {
			return fmt.Errorf("seeding demo user: %w", err)
		}

		log.Info("seed data applied", zap.Int("words", len(seedWords())))
		return nil
	})
}
