package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/digimart-backend/api/responses"
	pkgerrors "github.com/angelmondragon/digimart-backend/pkg/errors"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/digimart-backend/pkg/redis"
)

const (
	IdempotencyHeader = "Idempotency-Key"

	standardReplayTTL = 24 * time.Hour
	moneyReplayTTL    = 7 * 24 * time.Hour
	inFlightTTL       = 2 * time.Minute
)

// keyedRoute is a POST path template; "{}" matches any single non-empty segment.
type keyedRoute struct {
	template []string
	ttl      time.Duration
}

func route(template string, ttl time.Duration) keyedRoute {
	return keyedRoute{template: strings.Split(strings.Trim(template, "/"), "/"), ttl: ttl}
}

var keyedRoutes = []keyedRoute{
	route("/api/v1/checkout", moneyReplayTTL),
	route("/api/v1/orders/{}/cancel", moneyReplayTTL),
	route("/api/v1/shops/{}/payouts", moneyReplayTTL),
	route("/api/v1/orders/{}/deliver", standardReplayTTL),
	route("/api/v1/orders/{}/confirm", standardReplayTTL),
	route("/api/v1/notifications/{}/read", standardReplayTTL),
	route("/api/v1/notifications/read-all", standardReplayTTL),
}

func (k keyedRoute) matches(segments []string) bool {
	if len(segments) != len(k.template) {
		return false
	}
	for i, want := range k.template {
		if segments[i] == "" || (want != "{}" && want != segments[i]) {
			return false
		}
	}
	return true
}

// replayTTL reports whether a request needs an Idempotency-Key and for how long its
// response is kept.
func replayTTL(method, path string) (time.Duration, bool) {
	if method != http.MethodPost {
		return 0, false
	}
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for _, k := range keyedRoutes {
		if k.matches(segments) {
			return k.ttl, true
		}
	}
	return 0, false
}

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        string `json:"body"`
	RequestHash string `json:"request_hash"`
}

// Idempotency replays the stored response for a repeated Idempotency-Key on the
// money-moving and state-changing POST routes. A second request arriving while the
// first is still running gets 409 instead of running the handler twice. Server
// errors are not stored so the client can retry with the same key.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, keyed := replayTTL(r.Method, r.URL.Path)
			if !keyed || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if clientKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}
			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			digest := sha256.Sum256(body)
			hash := base64.StdEncoding.EncodeToString(digest[:])
			key := store.IdempotencyKey(replayScope(r), clientKey)

			prior, err := lookup(ctx, store, key)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				return
			}
			if prior != nil {
				if prior.RequestHash != hash {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
					return
				}
				prior.writeTo(w)
				return
			}

			lockKey := key + ":inflight"
			acquired, err := store.SetNX(ctx, lockKey, hash, inFlightTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !acquired {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "a request with this idempotency key is still in progress"))
				return
			}
			defer func() {
				if err := store.Del(context.WithoutCancel(ctx), lockKey); err != nil && logg != nil {
					logg.Error(ctx, "release idempotency reservation", err)
				}
			}()

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			status := capture.statusOrOK()
			if status >= http.StatusInternalServerError {
				return
			}
			record, err := json.Marshal(storedResponse{
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        base64.StdEncoding.EncodeToString(capture.body.Bytes()),
				RequestHash: hash,
			})
			if err == nil {
				_, err = store.SetNX(context.WithoutCancel(ctx), key, string(record), ttl)
			}
			if err != nil && logg != nil {
				logg.Error(ctx, "persist idempotency record", err)
			}
		})
	}
}

// replayScope keeps keys from different callers or routes from colliding.
func replayScope(r *http.Request) string {
	ctx := r.Context()
	return strings.Join([]string{UserIDFromContext(ctx), ShopIDFromContext(ctx), r.Method, r.URL.Path}, "|")
}

func lookup(ctx context.Context, store pkgredis.IdempotencyStore, key string) (*storedResponse, error) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) || (err == nil && raw == "") {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec storedResponse
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *storedResponse) writeTo(w http.ResponseWriter) {
	body, _ := base64.StdEncoding.DecodeString(s.Body)
	if s.ContentType != "" {
		w.Header().Set("Content-Type", s.ContentType)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(s.Status)
	_, _ = w.Write(body)
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusOrOK() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
