package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Chative-order-agent/server/internal/agent/model"
	errx "github.com/Chative-order-agent/server/internal/core/error"
	"github.com/Chative-order-agent/server/internal/order"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func testSession(id string) *model.Session {
	s := model.NewSession(id, "thread-1", time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))
	s.Location = "Main St"
	s.AddMessage(model.RoleAssistant, "Welcome to Main St, what can I get started for you?")
	s.AddMessage(model.RoleUser, "fries")
	s.Order.Lines = append(s.Order.Lines, &order.Line{
		ID:           "l1",
		ItemName:     "Sweet Potato Fries",
		OptionKeys:   []string{"size"},
		OptionValues: [][]string{{"large"}},
		Price:        4.5,
		Valid:        true,
	})
	return s
}

func TestRedisSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	repo := NewRedisSessionRepository(rdb, 30*time.Minute)

	if err := repo.Save(ctx, testSession("c1")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !mr.Exists("conversation:c1:session") {
		t.Fatalf("expected session key")
	}
	if ttl := mr.TTL("conversation:c1:session"); ttl != 30*time.Minute {
		t.Fatalf("expected 30m ttl, got %v", ttl)
	}

	got, err := repo.Load(ctx, "c1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.ThreadRef != "thread-1" || got.Location != "Main St" || len(got.Messages) != 2 {
		t.Fatalf("unexpected session %+v", got)
	}
	if len(got.Order.Lines) != 1 || got.Order.Lines[0].OptionValues[0][0] != "large" {
		t.Fatalf("order not restored: %+v", got.Order.Lines)
	}

	if err := repo.Delete(ctx, "c1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Load(ctx, "c1"); !errors.Is(err, errx.ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRedisSessionSlidingTTL(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	repo := NewRedisSessionRepository(rdb, time.Minute)

	s := testSession("c2")
	if err := repo.Save(ctx, s); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(40 * time.Second)
	if err := repo.Save(ctx, s); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(40 * time.Second)
	if _, err := repo.Load(ctx, "c2"); err != nil {
		t.Fatalf("write should have refreshed the ttl: %v", err)
	}
	mr.FastForward(time.Minute)
	if _, err := repo.Load(ctx, "c2"); !errors.Is(err, errx.ErrSessionNotFound) {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestRedisSessionUnavailable(t *testing.T) {
	mr, rdb := newTestRedis(t)
	repo := NewRedisSessionRepository(rdb, time.Minute)
	mr.Close()

	_, err := repo.Load(context.Background(), "c3")
	if err == nil || errors.Is(err, errx.ErrSessionNotFound) {
		t.Fatalf("expected a redis failure, got %v", err)
	}
}
