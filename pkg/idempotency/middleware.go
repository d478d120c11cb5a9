package idempotency

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

const (
	HeaderKey      = "Idempotency-Key"
	HeaderReplayed = "Idempotent-Replayed"

	statePending = "pending"
	stateDone    = "done"
)

var pendingMarker = `{"state":"pending"}`

// Record is what the store keeps per key: an in-flight marker or the
// response of the first completed request.
type Record struct {
	State       string `json:"state"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) Key(scope, key string) string {
	return fmt.Sprintf("idem:%s:%s", scope, key)
}

// Begin claims key. When the key was already claimed it returns the stored
// record and false.
func (s *Store) Begin(ctx context.Context, key string) (Record, bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, pendingMarker, s.ttl).Result()
	if err != nil {
		return Record{}, false, err
	}
	if ok {
		return Record{}, true, nil
	}

	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; treat as in flight
		return Record{State: statePending}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, false, fmt.Errorf("decode idempotency record: %w", err)
	}
	return rec, false, nil
}

func (s *Store) Complete(ctx context.Context, key string, rec Record) error {
	rec.State = stateDone
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, raw, s.ttl).Err()
}

func (s *Store) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

// Middleware replays the first response for a repeated Idempotency-Key within
// scope. Requests without the header pass straight through, and so does
// everything when Redis is unavailable.
func Middleware(store *Store, log *slog.Logger, scope func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(HeaderKey)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(raw) > 255 {
				http.Error(w, `{"error":"invalid_request","message":"idempotency key too long"}`, http.StatusBadRequest)
				return
			}

			ctx := r.Context()
			key := store.Key(scope(r), raw)
			rec, claimed, err := store.Begin(ctx, key)
			if err != nil {
				log.Warn("idempotency store unavailable", "err", err)
				next.ServeHTTP(w, r)
				return
			}
			if !claimed {
				if rec.State != stateDone {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusConflict)
					_, _ = w.Write([]byte(`{"error":"request_in_progress","message":"a request with this idempotency key is still in progress"}`))
					return
				}
				if rec.ContentType != "" {
					w.Header().Set("Content-Type", rec.ContentType)
				}
				w.Header().Set(HeaderReplayed, "true")
				w.WriteHeader(rec.Status)
				_, _ = w.Write(rec.Body)
				return
			}

			var buf bytes.Buffer
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&buf)
			next.ServeHTTP(ww, r)

			// a detached context so a client disconnect does not strand the marker
			storeCtx := context.WithoutCancel(ctx)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if status >= http.StatusInternalServerError {
				if err := store.Release(storeCtx, key); err != nil {
					log.Warn("idempotency release failed", "key", key, "err", err)
				}
				return
			}
			err = store.Complete(storeCtx, key, Record{
				Status:      status,
				ContentType: ww.Header().Get("Content-Type"),
				Body:        buf.Bytes(),
			})
			if err != nil {
				log.Warn("idempotency store failed", "key", key, "err", err)
			}
		})
	}
}
