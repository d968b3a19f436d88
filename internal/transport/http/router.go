// Package http exposes the quiz over REST, server-sent events and WebSocket.
package http

import (
	"net/http"

	"github.com/rs/zerolog"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/metrics"
)

// Options configures the router.
type Options struct {
	Metrics *metrics.Metrics
	// AnswersPerSecond and AnswerBurst bound live answers per user. Zero disables limiting.
	AnswersPerSecond float64
	AnswerBurst      int
	// AllowedOrigins for WebSocket upgrades; empty allows any origin.
	AllowedOrigins []string
}

// Server holds the handlers for every route.
type Server struct {
	service *app.QuizService
	log     zerolog.Logger
	limiter *ClientLimiter
	ws      *WSHandler
}

// NewRouter wires every route onto a ServeMux wrapped in request logging and metrics.
func NewRouter(service *app.QuizService, log zerolog.Logger, opts Options) http.Handler {
	log = log.With().Str("component", "http").Logger()
	limiter := NewClientLimiter(opts.AnswersPerSecond, opts.AnswerBurst)
	s := &Server{
		service: service,
		log:     log,
		limiter: limiter,
		ws:      NewWSHandler(service, limiter, log, opts.AllowedOrigins),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /users", s.registerUser)
	mux.HandleFunc("GET /users", s.lookupUser)

	mux.HandleFunc("GET /quiz/check", s.checkCompleted)
	mux.HandleFunc("POST /quiz/submit", s.submitFinal)
	mux.HandleFunc("POST /quiz/live", s.submitLiveAnswer)
	mux.HandleFunc("GET /quiz/live", s.leaderboard)
	mux.HandleFunc("GET /quiz/state", s.quizState)
	mux.HandleFunc("POST /quiz/state", requireBearer(s.updateQuizState, log))
	mux.HandleFunc("GET /quiz/stream", s.stream)
	mux.HandleFunc("GET /quiz/ws", s.ws.ServeWS)
	mux.HandleFunc("GET /quiz/questions", s.userQuestions)
	mux.HandleFunc("GET /quiz/answers", s.userAnswers)

	mux.HandleFunc("POST /admin/login", s.adminLogin)
	mux.HandleFunc("GET /admin/users", requireBearer(s.adminUsers, log))
	mux.HandleFunc("PATCH /admin/users", requireBearer(s.updateReward, log))
	mux.HandleFunc("PATCH /admin/reward", requireBearer(s.updateReward, log))
	mux.HandleFunc("GET /admin/questions/random", requireBearer(s.randomQuestion, log))

	mux.HandleFunc("POST /visitors", s.trackVisitor)
	mux.HandleFunc("GET /visitors", s.visitorCount)

	mux.HandleFunc("GET /healthz", healthz)
	mux.Handle("GET /metrics", opts.Metrics.Handler())

	return instrument(mux, log, opts.Metrics)
}
