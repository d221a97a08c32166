package repo

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	errx "github.com/Chative-order-agent/server/internal/core/error"
)

func openTestBolt(t *testing.T, ttl time.Duration) *BoltSessionRepository {
	t.Helper()
	repo, err := OpenBoltSessionRepository(filepath.Join(t.TempDir(), "data", "sessions.bolt"), ttl)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestBoltSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := openTestBolt(t, time.Hour)

	if _, err := repo.Load(ctx, "c1"); !errors.Is(err, errx.ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := repo.Save(ctx, testSession("c1")); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := repo.Load(ctx, "c1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.ID != "c1" || len(got.Order.Lines) != 1 || got.Order.Lines[0].Price != 4.5 {
		t.Fatalf("unexpected session %+v", got)
	}
	if err := repo.Delete(ctx, "c1"); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Load(ctx, "c1"); !errors.Is(err, errx.ErrSessionNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestBoltSessionExpiry(t *testing.T) {
	ctx := context.Background()
	repo := openTestBolt(t, time.Minute)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	for _, id := range []string{"a", "b"} {
		if err := repo.Save(ctx, testSession(id)); err != nil {
			t.Fatal(err)
		}
	}
	now = now.Add(30 * time.Second)
	if err := repo.Save(ctx, testSession("c")); err != nil {
		t.Fatal(err)
	}

	now = now.Add(45 * time.Second)
	if _, err := repo.Load(ctx, "a"); !errors.Is(err, errx.ErrSessionNotFound) {
		t.Fatalf("expected a to be expired, got %v", err)
	}
	n, err := repo.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected to sweep b only, swept %d", n)
	}
	if _, err := repo.Load(ctx, "c"); err != nil {
		t.Fatalf("c should still be live: %v", err)
	}
}
