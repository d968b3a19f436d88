package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"live-quiz-service/internal/domain"
)

func runCLI(t *testing.T, args ...string) []byte {
	t.Helper()
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("POSTGRES_URL", "")
	t.Setenv("QUESTIONS_FILE", "")

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--config", filepath.Join(t.TempDir(), "absent.yaml")))
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute %v: %v\n%s", args, err, errOut.String())
	}
	return out.Bytes()
}

func TestQuestionsCommandPrintsBank(t *testing.T) {
	var qs []domain.Question
	if err := json.Unmarshal(runCLI(t, "questions"), &qs); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(qs) != 30 || qs[0].ID != 1 {
		t.Fatalf("expected the embedded bank, got %d questions", len(qs))
	}
}

func TestQuestionsCommandShufflesForUser(t *testing.T) {
	var qs []domain.Question
	if err := json.Unmarshal(runCLI(t, "questions", "--user", "alice@example.com", "--count", "3"), &qs); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(qs) != 3 || qs[0].ID != 26 || qs[1].ID != 29 || qs[2].ID != 23 {
		t.Fatalf("unexpected shuffle %+v", qs)
	}
}

func TestQuestionsCommandRejectsBadCount(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("POSTGRES_URL", "")
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"questions", "--user", "u", "--count", "0", "--config", filepath.Join(t.TempDir(), "absent.yaml")})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected error for --count 0")
	}
}
