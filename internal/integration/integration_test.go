package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"golang.org/x/sync/errgroup"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/bank"
	"live-quiz-service/internal/domain"
	pgloader "live-quiz-service/internal/infra/postgres"
	pgmigrations "live-quiz-service/internal/infra/postgres/migrations"
	infraredis "live-quiz-service/internal/infra/redis"
)

func TestLiveRoundEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateQuestions(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	repo := infraredis.NewQuestionRepository(redisClient, pgloader.NewQuestionLoader(pool), 5*time.Minute, zerolog.Nop())
	questions, err := repo.LoadQuestions(ctx)
	if err != nil {
		t.Fatalf("load questions: %v", err)
	}
	qb, err := bank.New(questions)
	if err != nil {
		t.Fatalf("build bank: %v", err)
	}
	if qb.Len() != len(bank.DefaultQuestions()) {
		t.Fatalf("expected seeded bank of %d, got %d", len(bank.DefaultQuestions()), qb.Len())
	}
	if got := qb.UserQuestions("alice@example.com", 3); got[0] != 26 || got[1] != 29 || got[2] != 23 {
		t.Fatalf("shuffle differs for postgres bank: %v", got)
	}

	service := app.NewQuizService(qb, app.Stores{
		State:    infraredis.NewStateStore(redisClient),
		Results:  infraredis.NewResultStore(redisClient),
		Users:    infraredis.NewUserStore(redisClient),
		Visitors: infraredis.NewVisitorStore(redisClient),
	}, zerolog.Nop(), app.Options{EnforceWindow: true})
	defer service.Close()

	questionID := 4
	if _, err := service.Apply(ctx, app.Command{Action: app.ActionStartQuestion, QuestionID: &questionID}); err != nil {
		t.Fatalf("start question: %v", err)
	}
	q, _ := qb.Lookup(questionID)

	var bonuses atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 8; i++ {
		userID := fmt.Sprintf("u%d", i)
		g.Go(func() error {
			res, err := service.SubmitAnswer(gctx, domain.AnswerSubmission{
				UserID:         userID,
				Name:           userID,
				QuestionID:     questionID,
				SelectedOption: q.CorrectAnswer,
				TimeTaken:      0,
			})
			if err != nil {
				return err
			}
			if res.PointsEarned == 150 {
				bonuses.Add(1)
			} else if res.PointsEarned != 100 {
				return fmt.Errorf("%s: unexpected points %d", userID, res.PointsEarned)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if bonuses.Load() != 1 {
		t.Fatalf("expected exactly one first-correct bonus, got %d", bonuses.Load())
	}

	board, _, err := service.Leaderboard(ctx, "")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(board) != 8 || board[0].TotalPoints != 150 || board[1].TotalPoints != 100 {
		t.Fatalf("unexpected leaderboard %+v", board)
	}
	state, err := service.State(ctx)
	if err != nil || state.Participants != 8 {
		t.Fatalf("expected 8 participants, got %+v %v", state, err)
	}

	if _, err := service.Apply(ctx, app.Command{Action: app.ActionReset}); err != nil {
		t.Fatalf("reset: %v", err)
	}
	board, _, _ = service.Leaderboard(ctx, "")
	if len(board) != 0 {
		t.Fatalf("expected empty leaderboard after reset, got %d entries", len(board))
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
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
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
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

// migrateQuestions creates and seeds the questions table, checks that rollback
// empties it, then migrates again.
func migrateQuestions(t *testing.T, ctx context.Context, dsn string) {
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
	n, err := db.NewSelect().Table("questions").Count(ctx)
	if err != nil || n != len(bank.DefaultQuestions()) {
		t.Fatalf("expected seeded questions, got %d %v", n, err)
	}

	if _, err := migrator.Rollback(ctx); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate again: %v", err)
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
