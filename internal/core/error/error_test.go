package errx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/redis/go-redis/v9"
)

func TestWrapPlanner(t *testing.T) {
	base := errors.New("connection refused")
	err := WrapPlanner(fmt.Errorf("invoke graph: %w", base))

	if !errors.Is(err, ErrPlannerUnavailable) {
		t.Fatalf("expected ErrPlannerUnavailable")
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected original cause to be preserved")
	}
	if StatusOf(err) != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", StatusOf(err))
	}
	if again := WrapPlanner(err); again != err {
		t.Fatalf("double wrapping should be a no-op")
	}
}

func TestWrapPlannerTimeout(t *testing.T) {
	err := WrapPlanner(context.DeadlineExceeded)
	if StatusOf(err) != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", StatusOf(err))
	}
	if MessageOf(err) != PlannerTimeoutMessage {
		t.Fatalf("unexpected message %q", MessageOf(err))
	}
}

func TestWrapRedis(t *testing.T) {
	if WrapRedis(nil) != nil {
		t.Fatalf("nil in, nil out")
	}
	if StatusOf(WrapRedis(redis.Nil)) != http.StatusNotFound {
		t.Fatalf("redis.Nil should map to 404")
	}
	if StatusOf(WrapRedis(errors.New("boom"))) != http.StatusBadGateway {
		t.Fatalf("redis failure should map to 502")
	}
}

func TestSentinels(t *testing.T) {
	tests := []struct {
		err    error
		target error
		status int
	}{
		{NotFound("c1"), ErrSessionNotFound, http.StatusNotFound},
		{Busy("c1"), ErrConversationBusy, http.StatusConflict},
		{InvalidInput("message is required"), ErrInvalidInput, http.StatusBadRequest},
	}
	for _, tc := range tests {
		if !errors.Is(tc.err, tc.target) {
			t.Fatalf("%v should match %v", tc.err, tc.target)
		}
		if StatusOf(tc.err) != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, StatusOf(tc.err))
		}
	}
	if StatusOf(errors.New("plain")) != http.StatusInternalServerError {
		t.Fatalf("plain errors map to 500")
	}
}
