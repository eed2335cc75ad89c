package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"hrerp/internal/platform/metrics"
	"hrerp/internal/transport/http/api"
)

const (
	IdempotencyHeader = "Idempotency-Key"

	// The in-progress marker expires if the handler never finishes.
	provisionalLockTTL   = 60 * time.Second
	maxIdempotencyKeyLen = 128
)

type idempEntry struct {
	InProgress  bool      `json:"in_progress"`
	Code        int       `json:"code"`
	Body        []byte    `json:"body"`
	ContentType string    `json:"content_type"`
	BodySHA256  string    `json:"body_sha256"`
	CreatedAt   time.Time `json:"created_at"`
}

type captureWriter struct {
	http.ResponseWriter
	buf  bytes.Buffer
	code int
}

func (c *captureWriter) Write(b []byte) (int, error) {
	c.buf.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *captureWriter) WriteHeader(code int) {
	c.code = code
	c.ResponseWriter.WriteHeader(code)
}

// Idempotency replays the stored response of a mutating request retried with
// the same Idempotency-Key. Requests without the header, and all requests when
// rdb is nil, pass straight through.
func Idempotency(rdb *redis.Client, ttl time.Duration, collector *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rdb == nil {
				next.ServeHTTP(w, r)
				return
			}
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}
			idemKey := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if idemKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			reqID := GetRequestID(r.Context())
			if len(idemKey) > maxIdempotencyKeyLen {
				api.Fail(w, http.StatusBadRequest, "validation_error", "Idempotency-Key too long", reqID)
				return
			}

			var body []byte
			if r.Body != nil {
				var err error
				body, err = io.ReadAll(r.Body)
				if err != nil {
					api.Fail(w, http.StatusBadRequest, "invalid_body", "unable to read body", reqID)
					return
				}
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			hash := bodyHash(body)
			key := idempotencyKey(r, idemKey)

			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			ok, err := provisionalSet(ctx, rdb, key, idempEntry{InProgress: true, BodySHA256: hash, CreatedAt: time.Now().UTC()})
			if err != nil {
				slog.Warn("idempotency store unavailable", "err", err, "requestId", reqID)
				api.Fail(w, http.StatusServiceUnavailable, "idempotency_unavailable", "idempotency store unavailable", reqID)
				return
			}
			if !ok {
				cur, err := loadEntry(ctx, rdb, key)
				if err != nil {
					slog.Warn("idempotency entry load failed", "key", key, "err", err)
				}
				if cur.BodySHA256 != "" && cur.BodySHA256 != hash {
					api.Fail(w, http.StatusConflict, "idempotency_conflict", "Idempotency-Key reused with a different body", reqID)
					return
				}
				if !cur.InProgress && cur.Code != 0 {
					if collector != nil {
						collector.RecordReplay()
					}
					if cur.ContentType != "" {
						w.Header().Set("Content-Type", cur.ContentType)
					}
					w.Header().Set("Idempotent-Replay", "true")
					w.WriteHeader(cur.Code)
					_, _ = w.Write(cur.Body)
					return
				}
				api.Fail(w, http.StatusConflict, "request_in_progress", "request is already in progress", reqID)
				return
			}

			rec := &captureWriter{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(rec, r)

			// Server errors are not cached so the client can retry.
			if rec.code >= http.StatusInternalServerError {
				if err := rdb.Del(context.WithoutCancel(ctx), key).Err(); err != nil {
					slog.Warn("idempotency release failed", "key", key, "err", err)
				}
				return
			}
			final := idempEntry{
				Code:        rec.code,
				Body:        rec.buf.Bytes(),
				ContentType: rec.Header().Get("Content-Type"),
				BodySHA256:  hash,
				CreatedAt:   time.Now().UTC(),
			}
			if err := saveFinal(context.WithoutCancel(ctx), rdb, key, final, ttl); err != nil {
				slog.Warn("idempotency save failed", "key", key, "err", err)
			}
		})
	}
}

func idempotencyKey(r *http.Request, idemKey string) string {
	actor := "anon"
	if user, ok := GetUser(r.Context()); ok {
		actor = string(user.UserID)
	}
	return "idem:" + actor + ":" + r.Method + ":" + r.URL.Path + ":" + idemKey
}

func bodyHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func provisionalSet(ctx context.Context, rdb *redis.Client, key string, entry idempEntry) (bool, error) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return false, err
	}
	return rdb.SetNX(ctx, key, raw, provisionalLockTTL).Result()
}

func loadEntry(ctx context.Context, rdb *redis.Client, key string) (idempEntry, error) {
	var entry idempEntry
	raw, err := rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return entry, nil
	}
	if err != nil {
		return entry, err
	}
	err = json.Unmarshal(raw, &entry)
	return entry, err
}

func saveFinal(ctx context.Context, rdb *redis.Client, key string, entry idempEntry, ttl time.Duration) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, key, raw, ttl).Err()
}
