package repo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Chative-order-agent/server/internal/agent/model"
	errx "github.com/Chative-order-agent/server/internal/core/error"
	logx "github.com/Chative-order-agent/server/pkg/logger"
)

const (
	defaultLockWait  = 10 * time.Second
	defaultLockTTL   = 2 * time.Minute
	lockRetryBackoff = 50 * time.Millisecond
	releaseTimeout   = 2 * time.Second
	minRenewInterval = 10 * time.Millisecond
)

type lockSlot struct {
	ch   chan struct{}
	refs int
}

// LocalLocker serializes turns of the same conversation inside one process.
// Different conversations never contend.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
	wait  time.Duration
}

func NewLocalLocker(wait time.Duration) *LocalLocker {
	if wait <= 0 {
		wait = defaultLockWait
	}
	return &LocalLocker{slots: map[string]*lockSlot{}, wait: wait}
}

func (l *LocalLocker) acquireSlot(id string) *lockSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[id]
	if !ok {
		s = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[id] = s
	}
	s.refs++
	return s
}

func (l *LocalLocker) releaseSlot(id string, s *lockSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, id)
	}
}

func (l *LocalLocker) Lock(ctx context.Context, conversationID string) (func(), error) {
	s := l.acquireSlot(conversationID)

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case s.ch <- struct{}{}:
	case <-timer.C:
		l.releaseSlot(conversationID, s)
		return nil, errx.Busy(conversationID)
	case <-ctx.Done():
		l.releaseSlot(conversationID, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.releaseSlot(conversationID, s)
		})
	}, nil
}

// releaseScript deletes the lock only when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the lease only while it still holds our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker serializes turns of the same conversation across instances
// with a SET NX PX lease that is renewed every third of its TTL until unlock.
// Same-process callers queue on a LocalLocker first.
type RedisLocker struct {
	rdb   redis.Cmdable
	ttl   time.Duration
	wait  time.Duration
	local *LocalLocker
}

func NewRedisLocker(rdb redis.Cmdable, ttl, wait time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if wait <= 0 {
		wait = defaultLockWait
	}
	return &RedisLocker{rdb: rdb, ttl: ttl, wait: wait, local: NewLocalLocker(wait)}
}

func (r *RedisLocker) lockKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:lock", conversationID)
}

func (r *RedisLocker) Lock(ctx context.Context, conversationID string) (func(), error) {
	deadline := time.Now().Add(r.wait)

	unlockLocal, err := r.local.Lock(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	key := r.lockKey(conversationID)
	token := uuid.NewString()
	for {
		ok, err := r.rdb.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			unlockLocal()
			logx.Error().Err(err).Str("key", key).Msg("failed to acquire conversation lock")
			return nil, errx.WrapRedis(err)
		}
		if ok {
			break
		}
		if !time.Now().Add(lockRetryBackoff).Before(deadline) {
			unlockLocal()
			logx.Warn().Str("conversation_id", conversationID).Dur("wait", r.wait).Msg("conversation lock busy")
			return nil, errx.Busy(conversationID)
		}
		select {
		case <-ctx.Done():
			unlockLocal()
			return nil, ctx.Err()
		case <-time.After(lockRetryBackoff):
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go r.keepAlive(context.WithoutCancel(ctx), key, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			defer unlockLocal()
			close(stop)
			<-done
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
			defer cancel()
			if err := releaseScript.Run(rctx, r.rdb, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
				logx.Warn().Err(err).Str("key", key).Msg("failed to release conversation lock")
			}
		})
	}, nil
}

func (r *RedisLocker) keepAlive(ctx context.Context, key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := r.ttl / 3
	if interval < minRenewInterval {
		interval = minRenewInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			rctx, cancel := context.WithTimeout(ctx, releaseTimeout)
			n, err := renewScript.Run(rctx, r.rdb, []string{key}, token, r.ttl.Milliseconds()).Int64()
			cancel()
			if err != nil {
				logx.Warn().Err(err).Str("key", key).Msg("failed to renew conversation lock")
				continue
			}
			if n == 0 {
				logx.Error().Str("key", key).Msg("conversation lock lost before unlock")
				return
			}
		}
	}
}

var (
	_ model.ConversationLocker = (*LocalLocker)(nil)
	_ model.ConversationLocker = (*RedisLocker)(nil)
)
