package http

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

type streamFrame struct {
	Type string          `json:"type"`
	Data domain.Snapshot `json:"data"`
}

func readEvent(t *testing.T, r *bufio.Reader) streamFrame {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read event: %v", err)
		}
		payload, ok := strings.CutPrefix(strings.TrimRight(line, "\n"), "data: ")
		if !ok {
			continue
		}
		var f streamFrame
		if err := json.Unmarshal([]byte(payload), &f); err != nil {
			t.Fatalf("decode event %q: %v", payload, err)
		}
		return f
	}
}

func TestStreamSendsStateThenUpdates(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, env.server.URL+"/quiz/stream", nil)
	resp, err := env.server.Client().Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	reader := bufio.NewReader(resp.Body)

	first := readEvent(t, reader)
	if first.Type != frameState || first.Data.IsActive {
		t.Fatalf("expected inactive state frame, got %+v", first)
	}

	if _, err := env.service.Apply(ctx, app.Command{Action: app.ActionStartQuestion, QuestionID: intPtr(5)}); err != nil {
		t.Fatalf("start question: %v", err)
	}

	var last streamFrame
	for i := 0; i < 50; i++ {
		last = readEvent(t, reader)
		if last.Type != frameUpdate {
			t.Fatalf("expected update frame, got %q", last.Type)
		}
		if last.Data.Seq < first.Data.Seq {
			t.Fatalf("seq went backwards: %d after %d", last.Data.Seq, first.Data.Seq)
		}
		if last.Data.IsActive {
			break
		}
	}
	if !last.Data.IsActive || last.Data.CurrentQuestionID == nil || *last.Data.CurrentQuestionID != 5 || last.Data.QuestionEndsAt == nil {
		t.Fatalf("expected active question 5, got %+v", last.Data)
	}
}

func intPtr(v int) *int { return &v }
