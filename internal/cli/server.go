package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/bank"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/infra/memory"
	pgloader "live-quiz-service/internal/infra/postgres"
	redisstore "live-quiz-service/internal/infra/redis"
	"live-quiz-service/internal/logger"
	"live-quiz-service/internal/metrics"
	transport "live-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// backends holds the optional external connections.
type backends struct {
	redis *redis.Client
	pool  *pgxpool.Pool
}

func (b backends) Close() {
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.pool != nil {
		b.pool.Close()
	}
}

func connect(ctx context.Context, cfg config.Config) (backends, error) {
	var b backends
	if cfg.Redis.Addr != "" {
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := b.redis.Ping(ctx).Err(); err != nil {
			b.Close()
			return backends{}, fmt.Errorf("redis ping: %w", err)
		}
	}
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.Close()
			return backends{}, fmt.Errorf("postgres connect: %w", err)
		}
		b.pool = pool
	}
	return b, nil
}

// loadBank resolves the question source (Postgres, a YAML file or the embedded
// set), caches it in Redis when available and in process, then builds the bank.
func loadBank(ctx context.Context, cfg config.Config, b backends, log zerolog.Logger) (*bank.Bank, error) {
	var loader memory.QuestionLoader = memory.NewStaticQuestionLoader(bank.DefaultQuestions())
	source := "embedded"
	switch {
	case b.pool != nil:
		loader = pgloader.NewQuestionLoader(b.pool)
		source = "postgres"
	case cfg.Quiz.QuestionsFile != "":
		loader = memory.NewFileQuestionLoader(cfg.Quiz.QuestionsFile)
		source = cfg.Quiz.QuestionsFile
	}

	ttl := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	if b.redis != nil {
		loader = redisstore.NewQuestionRepository(b.redis, loader, config.TTLDuration(cfg.Redis.TTL, ttl), log)
	}
	repo := memory.NewQuestionRepository(loader, ttl)

	questions, err := repo.LoadQuestions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load questions from %s: %w", source, err)
	}
	qb, err := bank.New(questions)
	if err != nil {
		return nil, err
	}
	log.Info().Str("source", source).Int("questions", qb.Len()).Msg("question bank loaded")
	return qb, nil
}

func newStores(b backends) app.Stores {
	if b.redis != nil {
		return app.Stores{
			State:    redisstore.NewStateStore(b.redis),
			Results:  redisstore.NewResultStore(b.redis),
			Users:    redisstore.NewUserStore(b.redis),
			Visitors: redisstore.NewVisitorStore(b.redis),
		}
	}
	return app.Stores{
		State:    memory.NewStateStore(),
		Results:  memory.NewResultStore(),
		Users:    memory.NewUserStore(),
		Visitors: memory.NewVisitorStore(),
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	b, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	questions, err := loadBank(ctx, cfg, b, log)
	if err != nil {
		return err
	}

	m := metrics.New()
	service := app.NewQuizService(questions, newStores(b), log, app.Options{
		EnforceWindow:     cfg.Quiz.EnforceWindow,
		CountdownTick:     config.TTLDuration(cfg.Quiz.CountdownTick, time.Second),
		BroadcastInterval: config.TTLDuration(cfg.Quiz.BroadcastInterval, 500*time.Millisecond),
		LeaderboardLimit:  cfg.Quiz.LeaderboardLimit,
		Admin:             app.AdminCredentials{Username: cfg.Admin.Username, Password: cfg.Admin.Password},
		Metrics:           m,
	})
	defer service.Close()
	if cfg.Admin.Password == "" {
		log.Warn().Msg("admin password not configured; admin login is disabled")
	}

	router := transport.NewRouter(service, log, transport.Options{
		Metrics:          m,
		AnswersPerSecond: cfg.RateLimit.AnswersPerSecond,
		AnswerBurst:      cfg.RateLimit.Burst,
		AllowedOrigins:   cfg.Server.AllowedOrigins,
	})

	g, gctx := errgroup.WithContext(ctx)
	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		// streams end when the process shuts down
		BaseContext: func(net.Listener) context.Context { return gctx },
	}

	g.Go(func() error {
		service.Run(gctx)
		return nil
	})
	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Bool("redis", b.redis != nil).Bool("postgres", b.pool != nil).Msg("starting quiz service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.TTLDuration(cfg.Server.ShutdownTimeout, 5*time.Second))
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
