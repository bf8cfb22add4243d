package store_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"civicsync-engine/engine"
	"civicsync-engine/store"

	"github.com/redis/go-redis/v9"
)

func TestRedisSessionStore(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("ping: %v", err)
	}

	s := store.NewRedisSessionStore(client, fmt.Sprintf("test-session-%d", time.Now().UnixNano()))
	if err := s.SaveSession(ctx, "cs_1", "issue-1", time.Minute); err != nil {
		t.Fatal(err)
	}
	got, err := s.LookupSession(ctx, "cs_1")
	if err != nil || got != "issue-1" {
		t.Errorf("lookup = %q, %v", got, err)
	}
	if err := s.DeleteSession(ctx, "cs_1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.LookupSession(ctx, "cs_1"); !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("deleted session err = %v, want NotFound", err)
	}
}
