package redis

import (
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"live-quiz-service/internal/app"
)

var (
	_ app.StateStore   = (*StateStore)(nil)
	_ app.ResultStore  = (*ResultStore)(nil)
	_ app.UserStore    = (*UserStore)(nil)
	_ app.VisitorStore = (*VisitorStore)(nil)
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}
