package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

// IdentityResolver attaches an opaque player id to an incoming connection.
type IdentityResolver interface {
	Resolve(r *http.Request) (string, error)
}

// QueryIdentity trusts the client: the player id comes from the player_id
// query parameter or the X-Player-ID header. Clients that send neither get a
// fresh guest id, which means they cannot reconnect.
type QueryIdentity struct{}

func (QueryIdentity) Resolve(r *http.Request) (string, error) {
	if id := strings.TrimSpace(r.URL.Query().Get("player_id")); id != "" {
		return id, nil
	}
	if id := strings.TrimSpace(r.Header.Get("X-Player-ID")); id != "" {
		return id, nil
	}
	return "guest-" + uuid.NewString(), nil
}

// JWTIdentity verifies an HS256 token and uses its subject as the player id.
// The token is read from the token query parameter (browsers cannot set
// headers on a WebSocket handshake) or an Authorization bearer header.
type JWTIdentity struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

func NewJWTIdentity(secret string, maxAge time.Duration) *JWTIdentity {
	return &JWTIdentity{secret: []byte(secret), maxAge: maxAge, now: time.Now}
}

// Issue signs a token for playerID.
func (j *JWTIdentity) Issue(playerID string) (string, error) {
	now := j.now()
	claims := jwt.RegisteredClaims{
		Subject:   playerID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(j.maxAge)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify returns the player id carried by token.
func (j *JWTIdentity) Verify(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return j.secret, nil
	}, jwt.WithTimeFunc(j.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	subject, err := parsed.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return subject, nil
}

func (j *JWTIdentity) Resolve(r *http.Request) (string, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimPrefix(h, "Bearer ")
		}
	}
	if token == "" {
		return "", ErrMissingToken
	}
	return j.Verify(token)
}
