package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/bank"
	"live-quiz-service/internal/infra/memory"
	"live-quiz-service/internal/metrics"
)

type testEnv struct {
	server  *httptest.Server
	service *app.QuizService
	metrics *metrics.Metrics
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	m := metrics.New()
	svc := app.NewQuizService(bank.Default(), app.Stores{
		State:    memory.NewStateStore(),
		Results:  memory.NewResultStore(),
		Users:    memory.NewUserStore(),
		Visitors: memory.NewVisitorStore(),
	}, zerolog.Nop(), app.Options{
		EnforceWindow:     true,
		CountdownTick:     10 * time.Millisecond,
		BroadcastInterval: 50 * time.Millisecond,
		Admin:             app.AdminCredentials{Username: "admin", Password: "secret"},
		Metrics:           m,
	})
	ctx, cancel := context.WithCancel(context.Background())
	go svc.Run(ctx)

	opts.Metrics = m
	server := httptest.NewServer(NewRouter(svc, zerolog.Nop(), opts))
	t.Cleanup(func() {
		server.Close()
		cancel()
		svc.Close()
	})
	return &testEnv{server: server, service: svc, metrics: m}
}

// do sends body as JSON and decodes the JSON response into a generic map.
func (e *testEnv) do(t *testing.T, method, path string, body any, token string) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out := map[string]any{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode %s %s: %v", method, path, err)
	}
	return resp.StatusCode, out
}

func (e *testEnv) login(t *testing.T) string {
	t.Helper()
	status, body := e.do(t, http.MethodPost, "/admin/login", map[string]string{"username": "admin", "password": "secret"}, "")
	if status != http.StatusOK {
		t.Fatalf("login: status %d body %v", status, body)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("login returned no token: %v", body)
	}
	return token
}

func (e *testEnv) startQuestion(t *testing.T, token string, id int) {
	t.Helper()
	status, body := e.do(t, http.MethodPost, "/quiz/state", map[string]any{"action": "start_question", "questionId": id}, token)
	if status != http.StatusOK {
		t.Fatalf("start question: status %d body %v", status, body)
	}
}

func (e *testEnv) correctAnswer(t *testing.T, id int) int {
	t.Helper()
	q, err := e.service.Bank().Get(id)
	if err != nil {
		t.Fatalf("question %d: %v", id, err)
	}
	return q.CorrectAnswer
}
