package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Domenick1991/carbooking/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

// Session is the current actor identity plus the token to authenticate
// backend calls with. The auth layer owns the record; this package only
// reads it, fresh on every call, so token rotation is always honored.
type Session struct {
	Actor string `json:"actor"`
	Token string `json:"token"`
}

type Provider interface {
	// Current returns the signed-in session. domain.ErrNoActor when nobody
	// is signed in or the stored token is already expired.
	Current(ctx context.Context) (*Session, error)
}

const sessionKey = "session:current"

type RedisProvider struct {
	client *redis.Client
}

func NewRedisProvider(client *redis.Client) *RedisProvider {
	return &RedisProvider{client: client}
}

func (p *RedisProvider) Current(ctx context.Context) (*Session, error) {
	data, err := p.client.Get(ctx, sessionKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, domain.ErrNoActor
		}
		return nil, fmt.Errorf("read session: %w", err)
	}
	return parseSession(data, time.Now())
}

func parseSession(data []byte, now time.Time) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if s.Actor == "" {
		return nil, domain.ErrNoActor
	}
	// An expired token is the same as being signed out; sending it upstream
	// would only burn a request on a guaranteed 401.
	if tokenExpired(s.Token, now) {
		return nil, domain.ErrNoActor
	}
	return &s, nil
}

// tokenExpired checks the JWT exp claim without verifying the signature.
// Verification belongs to the backend; this is only a local freshness check.
// Opaque non-JWT tokens pass through untouched.
func tokenExpired(token string, now time.Time) bool {
	if token == "" {
		return false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(now)
}
