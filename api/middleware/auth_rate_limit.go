package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/iamnithishraja/klinic-sub000/api/responses"
	pkgerrors "github.com/iamnithishraja/klinic-sub000/pkg/errors"
	"github.com/iamnithishraja/klinic-sub000/pkg/logger"
)

type rateLimiterStore interface {
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
	RateLimitKey(scope string) string
}

// AuthRateLimitPolicy throttles one auth surface (login, register) by caller
// IP and by the email or phone in the request body. A zero limit disables
// that dimension.
type AuthRateLimitPolicy struct {
	name       string
	window     time.Duration
	ipLimit    int
	emailLimit int
}

func NewAuthRateLimitPolicy(name string, window time.Duration, ipLimit, emailLimit int) AuthRateLimitPolicy {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "auth"
	}
	return AuthRateLimitPolicy{name: name, window: window, ipLimit: ipLimit, emailLimit: emailLimit}
}

func (p AuthRateLimitPolicy) off() bool {
	return p.window <= 0 || (p.ipLimit <= 0 && p.emailLimit <= 0)
}

// bucket is one counter checked for a request.
type bucket struct {
	dimension string
	subject   string
	limit     int
}

func (p AuthRateLimitPolicy) scope(b bucket) string {
	return b.dimension + ":" + p.name + ":" + b.subject
}

// AuthRateLimit answers 429 with Retry-After once either counter for the
// policy passes its limit inside the window.
func AuthRateLimit(policy AuthRateLimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if policy.off() || store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			buckets, err := policy.buckets(r)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
				return
			}
			for _, b := range buckets {
				count, err := store.IncrWithTTL(r.Context(), store.RateLimitKey(policy.scope(b)), policy.window)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if count > int64(b.limit) {
					policy.reject(r.Context(), logg, w, b, count)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// buckets collects the counters that apply to r. Reading the body for the
// identity leaves r.Body rewound for the handler.
func (p AuthRateLimitPolicy) buckets(r *http.Request) ([]bucket, error) {
	var out []bucket
	if p.ipLimit > 0 {
		if ip := remoteIP(r); ip != "" {
			out = append(out, bucket{dimension: "ip", subject: ip, limit: p.ipLimit})
		}
	}
	if p.emailLimit <= 0 {
		return out, nil
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if id := identityOf(raw); id != "" {
		sum := sha256.Sum256([]byte(id))
		out = append(out, bucket{dimension: "identity", subject: hex.EncodeToString(sum[:]), limit: p.emailLimit})
	}
	return out, nil
}

func (p AuthRateLimitPolicy) reject(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, b bucket, count int64) {
	retryAfter := int(p.window.Seconds())
	if logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"policy":    p.name,
			"dimension": b.dimension,
			"subject":   b.subject,
			"attempts":  count,
			"limit":     b.limit,
		}), "auth rate limit exceeded")
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
}

// remoteIP trusts the first X-Forwarded-For hop, then X-Real-IP, then the
// socket address.
func remoteIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

// identityOf returns the lower-cased email, or the phone when no email is
// given. Bodies that are not JSON yield "".
func identityOf(payload []byte) string {
	var creds struct {
		Email string `json:"email"`
		Phone string `json:"phone"`
	}
	if json.Unmarshal(payload, &creds) != nil {
		return ""
	}
	id := strings.TrimSpace(creds.Email)
	if id == "" {
		id = strings.TrimSpace(creds.Phone)
	}
	return strings.ToLower(id)
}
