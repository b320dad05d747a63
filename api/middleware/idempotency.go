package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/iamnithishraja/klinic-sub000/api/responses"
	pkgerrors "github.com/iamnithishraja/klinic-sub000/pkg/errors"
	"github.com/iamnithishraja/klinic-sub000/pkg/logger"
	pkgredis "github.com/iamnithishraja/klinic-sub000/pkg/redis"
)

const (
	idempotencyHeader      = "Idempotency-Key"
	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
	maxIdempotencyKeyLen   = 128
)

// replayable lists the POST routes that honour Idempotency-Key, as path.Match
// globs. A zero ttl means the configured fallback applies.
var replayable = map[string]time.Duration{
	"/api/v1/orders":                   criticalIdempotencyTTL,
	"/api/v1/orders/cod":               criticalIdempotencyTTL,
	"/api/v1/payments/orders":          criticalIdempotencyTTL,
	"/api/v1/payments/verify":          criticalIdempotencyTTL,
	"/api/v1/orders/*/claim":           0,
	"/api/v1/orders/*/assign-delivery": 0,
	"/api/v1/admin/orders/*/*":         0,
	"/api/v1/delivery/orders/*/*":      0,
	"/api/v1/uploads/prescriptions":    0,
}

// storedResponse is what lands in Redis. Body is base64 via encoding/json.
type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	Fingerprint string `json:"fingerprint"`
}

type idempotencyGuard struct {
	store    pkgredis.IdempotencyStore
	fallback time.Duration
	logg     *logger.Logger
}

// Idempotency replays the first non-5xx response of a replayable route when
// the caller retries with the same Idempotency-Key and body. A different body
// under a used key is rejected with 409.
func Idempotency(store pkgredis.IdempotencyStore, fallbackTTL time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	g := &idempotencyGuard{store: store, fallback: fallbackTTL, logg: logg}
	if g.fallback <= 0 {
		g.fallback = defaultIdempotencyTTL
	}
	return g.wrap
}

func (g *idempotencyGuard) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
		ttl, ok := routeTTL(r.Method, routePattern(r))
		if !ok || clientKey == "" || g.store == nil {
			next.ServeHTTP(w, r)
			return
		}
		if len(clientKey) > maxIdempotencyKeyLen {
			responses.WriteError(r.Context(), g.logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header too long"))
			return
		}
		if ttl == 0 {
			ttl = g.fallback
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(r.Context(), g.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		scope := strings.Join([]string{UserIDFromContext(r.Context()), r.Method, r.URL.Path}, "|")
		key := g.store.IdempotencyKey(scope, clientKey)
		fingerprint := fingerprintOf(body)

		if g.replay(w, r, key, fingerprint) {
			return
		}

		capture := &capturingWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(capture, r)
		if capture.status >= http.StatusInternalServerError {
			return
		}
		g.remember(r, key, ttl, storedResponse{
			Status:      capture.status,
			ContentType: capture.Header().Get("Content-Type"),
			Body:        capture.body.Bytes(),
			Fingerprint: fingerprint,
		})
	})
}

// replay answers the request from Redis when a record exists. It reports
// whether a response was written.
func (g *idempotencyGuard) replay(w http.ResponseWriter, r *http.Request, key, fingerprint string) bool {
	raw, err := g.store.Get(r.Context(), key)
	switch {
	case errors.Is(err, redis.Nil):
		return false
	case err != nil:
		responses.WriteError(r.Context(), g.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
		return true
	case raw == "":
		return false
	}

	var prior storedResponse
	if err := json.Unmarshal([]byte(raw), &prior); err != nil {
		responses.WriteError(r.Context(), g.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return true
	}
	if prior.Fingerprint != fingerprint {
		responses.WriteError(r.Context(), g.logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
		return true
	}
	if prior.ContentType != "" {
		w.Header().Set("Content-Type", prior.ContentType)
	}
	w.WriteHeader(prior.Status)
	_, _ = w.Write(prior.Body)
	return true
}

func (g *idempotencyGuard) remember(r *http.Request, key string, ttl time.Duration, resp storedResponse) {
	payload, err := json.Marshal(resp)
	if err == nil {
		_, err = g.store.SetNX(r.Context(), key, string(payload), ttl)
	}
	if err != nil && g.logg != nil {
		g.logg.Error(g.logg.WithField(r.Context(), "idempotency_key", key), "persist idempotency record", err)
	}
}

func fingerprintOf(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// routePattern prefers the chi pattern, falling back to the raw path when the
// middleware runs mid-tree and only sees a partial /* pattern.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" && !strings.Contains(p, "*") {
			return p
		}
	}
	return r.URL.Path
}

func routeTTL(method, pattern string) (time.Duration, bool) {
	if method != http.MethodPost || pattern == "" {
		return 0, false
	}
	if pattern != "/" {
		pattern = strings.TrimSuffix(pattern, "/")
	}
	for glob, ttl := range replayable {
		if ok, _ := path.Match(glob, pattern); ok {
			return ttl, true
		}
	}
	return 0, false
}

type capturingWriter struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *capturingWriter) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *capturingWriter) Write(b []byte) (int, error) {
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}
