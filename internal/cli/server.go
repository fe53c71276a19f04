package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"trivia-session-service/internal/app"
	"trivia-session-service/internal/config"
	"trivia-session-service/internal/game"
	"trivia-session-service/internal/infra/memory"
	"trivia-session-service/internal/infra/postgres"
	redisstore "trivia-session-service/internal/infra/redis"
	transport "trivia-session-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia server",
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

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
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
		defer redisClient.Close()
	}
	redisTTL := config.Duration(cfg.Redis.TTL, 24*time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	service, err := buildService(cfg, pool, redisClient, redisTTL)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	transport.NewRESTHandler(service).Register(mux)
	mux.HandleFunc("GET /sessions/{id}/stream", transport.NewSSEHandler(service).ServeSSE)
	mux.HandleFunc("/ws", transport.NewWSHandler(service).ServeWS)

	// No WriteTimeout: event streams stay open for the whole session.
	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       15 * time.Second,
	}

	go func() {
		log.Printf("starting trivia service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildService picks the session store by what is configured: Postgres, then
// Redis, then memory. Questions come from Postgres when available, else from
// the seed file or built-in bank, cached in Redis or memory.
func buildService(cfg config.Config, pool *pgxpool.Pool, redisClient *redis.Client, redisTTL time.Duration) (*app.SessionService, error) {
	var loader memory.QuestionLoader
	if pool != nil {
		loader = postgres.NewQuestionLoader(pool)
	} else {
		questions, err := loadQuestionFile(cfg.Questions.SeedFile)
		if err != nil {
			return nil, err
		}
		loader = memory.NewStaticQuestionLoader(questions)
	}

	questionTTL := config.Duration(cfg.Questions.TTL, 10*time.Minute)
	var bank app.QuestionBank
	if redisClient != nil {
		bank = redisstore.NewQuestionRepository(redisClient, loader, questionTTL)
	} else {
		bank = memory.NewQuestionRepository(loader, questionTTL)
	}

	var store app.SessionStore
	switch {
	case pool != nil:
		store = postgres.NewSessionStore(pool)
	case redisClient != nil:
		store = redisstore.NewSessionStore(redisClient, redisTTL)
	default:
		store = memory.NewSessionStore()
	}

	return app.NewSessionService(store, bank, gameRules(cfg.Game)), nil
}

func gameRules(g config.Game) app.Rules {
	return app.Rules{
		QuestionsPerSession: g.QuestionsPerSession,
		QuestionTimeLimit:   config.Seconds(g.QuestionTimeLimitSeconds),
		SummaryDisplay:      config.Seconds(g.SummaryDisplaySeconds),
		Countdown:           config.Seconds(g.CountdownSeconds),
		MinParticipants:     g.MinParticipants,
		PollInterval:        config.Duration(g.PollInterval, 2*time.Second),
		Scoring:             game.Scoring{BasePoints: g.BasePoints, SpeedBonusMax: g.SpeedBonusMaxPoints},
	}
}
