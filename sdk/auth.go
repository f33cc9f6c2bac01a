package tutor

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSource supplies the bearer credential attached to HTTP requests and
// websocket URLs. An empty token with a nil error means no credential is
// currently available; unauthenticated requests proceed without a bearer
// header, but realtime and voice connections refuse to dial.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function to a TokenSource.
type TokenSourceFunc func(ctx context.Context) (string, error)

func (f TokenSourceFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// StaticTokenSource returns a TokenSource that always yields the same token.
func StaticTokenSource(token string) TokenSource {
	token = strings.TrimSpace(token)
	return TokenSourceFunc(func(context.Context) (string, error) {
		return token, nil
	})
}

// noToken is the default source for clients built without credentials.
type noToken struct{}

func (noToken) Token(context.Context) (string, error) { return "", nil }

// CachedTokenSource wraps a source that mints short-lived JWTs and reuses
// each token until it is within skew of its exp claim. The token signature
// is never verified here; only the expiry is read, and the backend remains
// the authority on validity.
type CachedTokenSource struct {
	base TokenSource
	skew time.Duration
	now  func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewCachedTokenSource wraps base. A non-positive skew defaults to 30s.
func NewCachedTokenSource(base TokenSource, skew time.Duration) *CachedTokenSource {
	if skew <= 0 {
		skew = 30 * time.Second
	}
	return &CachedTokenSource{base: base, skew: skew, now: time.Now}
}

func (s *CachedTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" {
		if s.expires.IsZero() || s.now().Before(s.expires.Add(-s.skew)) {
			return s.token, nil
		}
	}

	token, err := s.base.Token(ctx)
	if err != nil {
		return "", err
	}
	s.token = strings.TrimSpace(token)
	s.expires = tokenExpiry(s.token)
	return s.token, nil
}

// tokenExpiry reads the exp claim without verifying the signature. Tokens
// that are not JWTs or carry no exp are cached until replaced.
func tokenExpiry(token string) time.Time {
	if token == "" {
		return time.Time{}
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
