package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed 0001_create_words.sql
var createWordsSQL string

var Migrations = migrate.NewMigrations()

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.Exec(createWordsSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.Exec(`
				DROP TABLE IF EXISTS user_word_checks;
				DROP TABLE IF EXISTS quiz_answer_logs;
				DROP TABLE IF EXISTS users;
				DROP TABLE IF EXISTS word_jp;
				DROP TABLE IF EXISTS words;
				DROP TABLE IF EXISTS word_groups`)
			return err
		},
	)
}
