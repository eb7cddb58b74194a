package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"en-words-service/internal/app"
	"en-words-service/internal/config"
	"en-words-service/internal/domain"
	"en-words-service/internal/infra/memory"
	pgstore "en-words-service/internal/infra/postgres"
	rediscache "en-words-service/internal/infra/redis"
	transport "en-words-service/internal/transport/http"
)

// NewServeCmd builds the CLI subcommand to start the server.
func NewServeCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the words API and quiz WebSocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var store app.WordStore = memory.NewWordStore(sampleWords())
	if pool != nil {
		store = pgstore.NewWordStore(pool)
	}

	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)
	if redisClient != nil {
		store = rediscache.NewWordCache(redisClient, store, catalogTTL)
	} else {
		store = memory.NewWordCache(store, catalogTTL)
	}

	service := app.NewWordService(store, log)
	handler := transport.NewHandler(service, log)
	wsHandler := transport.NewWSHandler(service, log)

	mux := http.NewServeMux()
	handler.Register(mux)
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting words service", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped unexpectedly", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleWords seeds the in-memory store when no database is configured, so
// the server is playable out of the box.
func sampleWords() []domain.Word {
	return []domain.Word{
		{ID: "1", Term: "hello", Meaning: "こんにちは", GroupID: "1", GroupName: "Basics"},
		{ID: "2", Term: "thank you", Meaning: "ありがとう", GroupID: "1", GroupName: "Basics"},
		{ID: "3", Term: "goodbye", Meaning: "さようなら", GroupID: "1", GroupName: "Basics"},
		{ID: "4", Term: "airport", Meaning: "空港", GroupID: "2", GroupName: "Travel"},
		{ID: "5", Term: "luggage", Meaning: "荷物", GroupID: "2", GroupName: "Travel"},
		{ID: "6", Term: "study", Meaning: "勉強する"},
	}
}
