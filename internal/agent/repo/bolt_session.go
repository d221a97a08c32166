package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/Chative-order-agent/server/internal/agent/model"
	errx "github.com/Chative-order-agent/server/internal/core/error"
	logx "github.com/Chative-order-agent/server/pkg/logger"
)

var sessionsBucket = []byte("sessions")

type boltRecord struct {
	ExpiresAt time.Time      `json:"expiresAt"`
	Session   *model.Session `json:"session"`
}

// BoltSessionRepository keeps sessions in a local BoltDB file for
// single-instance deployments. Expiry is enforced on read and by Sweep.
type BoltSessionRepository struct {
	db  *bolt.DB
	ttl time.Duration
	now func() time.Time
}

func OpenBoltSessionRepository(path string, ttl time.Duration) (*BoltSessionRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errx.WrapStorage(err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errx.WrapStorage(fmt.Errorf("open %s: %w", path, err))
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists(sessionsBucket)
		return e
	})
	if err != nil {
		_ = db.Close()
		return nil, errx.WrapStorage(err)
	}
	return &BoltSessionRepository{db: db, ttl: ttl, now: time.Now}, nil
}

func (r *BoltSessionRepository) Close() error {
	return r.db.Close()
}

func (r *BoltSessionRepository) expired(rec boltRecord) bool {
	return !rec.ExpiresAt.IsZero() && !r.now().Before(rec.ExpiresAt)
}

func (r *BoltSessionRepository) Load(ctx context.Context, conversationID string) (*model.Session, error) {
	var rec boltRecord
	var found bool
	err := r.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(sessionsBucket).Get([]byte(conversationID))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &rec)
	})
	if err != nil {
		logx.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to load session from bolt")
		return nil, errx.WrapStorage(err)
	}
	if !found || rec.Session == nil {
		return nil, errx.NotFound(conversationID)
	}
	if r.expired(rec) {
		if err := r.Delete(ctx, conversationID); err != nil {
			logx.Warn().Err(err).Str("conversation_id", conversationID).Msg("failed to evict expired session")
		}
		return nil, errx.NotFound(conversationID)
	}
	return rec.Session, nil
}

func (r *BoltSessionRepository) Save(ctx context.Context, session *model.Session) error {
	rec := boltRecord{Session: session}
	if r.ttl > 0 {
		rec.ExpiresAt = r.now().Add(r.ttl)
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	err = r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionsBucket).Put([]byte(session.ID), b)
	})
	if err != nil {
		logx.Error().Err(err).Str("conversation_id", session.ID).Msg("failed to save session to bolt")
		return errx.WrapStorage(err)
	}
	return nil
}

func (r *BoltSessionRepository) Delete(ctx context.Context, conversationID string) error {
	err := r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionsBucket).Delete([]byte(conversationID))
	})
	if err != nil {
		return errx.WrapStorage(err)
	}
	return nil
}

// Sweep evicts every expired session and returns how many were removed.
func (r *BoltSessionRepository) Sweep(ctx context.Context) (int, error) {
	removed := 0
	err := r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(sessionsBucket)
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var rec boltRecord
			if e := json.Unmarshal(v, &rec); e != nil || r.expired(rec) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return removed, errx.WrapStorage(err)
	}
	return removed, nil
}

// RunSweeper sweeps every interval until ctx is done.
func (r *BoltSessionRepository) RunSweeper(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n, err := r.Sweep(ctx); err != nil {
				logx.Warn().Err(err).Msg("session sweep failed")
			} else if n > 0 {
				logx.Debug().Int("removed", n).Msg("expired sessions swept")
			}
		}
	}
}

var _ model.SessionRepository = (*BoltSessionRepository)(nil)
