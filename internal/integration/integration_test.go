package integration

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"

	"en-words-service/internal/app"
	"en-words-service/internal/client"
	pgstore "en-words-service/internal/infra/postgres"
	infraredis "en-words-service/internal/infra/redis"
	pgmigrations "en-words-service/internal/infra/postgres/migrations"
	transport "en-words-service/internal/transport/http"
)

func TestQuizRunEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedWords(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	store := infraredis.NewWordCache(redisClient, pgstore.NewWordStore(pool), 5*time.Minute)
	service := app.NewWordService(store, zap.NewNop())
	handler := transport.NewHandler(service, zap.NewNop())

	mux := http.NewServeMux()
	handler.Register(mux)
	server := httptest.NewServer(mux)
	defer server.Close()

	api := client.New(server.URL, zap.NewNop())
	session := app.NewSession(api, api, zap.NewNop())

	if err := session.LoadWords(ctx); err != nil {
		t.Fatalf("load words: %v", err)
	}
	words := session.Words()
	if len(words) != 3 {
		t.Fatalf("expected 3 seeded words, got %d", len(words))
	}

	if err := session.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	answered := 0
	for session.Status() == app.StatusInProgress {
		question := session.Question()
		if question == nil {
			t.Fatalf("in progress without a question")
		}
		for _, opt := range question.Options {
			if opt.IsCorrect {
				session.Choose(opt)
			}
		}
		answered++
		session.ToggleCheck(question.Word.ID, true)
		if err := session.Next(ctx); err != nil {
			t.Fatalf("next: %v", err)
		}
	}
	if answered != 3 {
		t.Fatalf("expected to answer 3 questions, got %d", answered)
	}
	if session.Status() != app.StatusIdle {
		t.Fatalf("expected idle after the run, got %s", session.Status())
	}

	stats, err := api.FetchStats(ctx)
	if err != nil {
		t.Fatalf("fetch stats: %v", err)
	}
	correct := 0
	for _, s := range stats {
		correct += s.Correct
		if s.Incorrect != 0 {
			t.Fatalf("all answers were correct, got %+v", s)
		}
	}
	if correct != 3 {
		t.Fatalf("expected 3 correct answers in stats, got %d", correct)
	}

	// Checks were flushed with the run; the cache must have been dropped so
	// the next catalog read reflects them.
	fresh, err := api.FetchWords(ctx)
	if err != nil {
		t.Fatalf("refetch words: %v", err)
	}
	for _, w := range fresh {
		if !w.Checked {
			t.Fatalf("expected every word checked after the run, got %+v", w)
		}
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "words", "POSTGRES_PASSWORD": "wordspass", "POSTGRES_DB": "wordsdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://words:wordspass@%s:%s/wordsdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedWords(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	statements := []string{
		`INSERT INTO word_groups (name) VALUES ('Basics')`,
		`INSERT INTO words (word_en, word_group_id) VALUES ('hello', 1), ('thank you', 1), ('goodbye', 1)`,
		`INSERT INTO word_jp (word_id, word_jp) VALUES (1, 'こんにちは'), (2, 'ありがとう'), (3, 'さようなら')`,
		`INSERT INTO users (id, email, password_hash) VALUES (1, 'demo@example.com', '')`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("seed %q: %v", stmt, err)
		}
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
