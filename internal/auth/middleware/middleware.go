package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mind-engage/mindengage-learn/internal/rbac"
)

// Claims is what the backend puts in its access tokens: the email as
// subject and a single role.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenParser reads backend access tokens. With a secret it verifies the
// HS256 signature. Without one it only decodes, and the backend, which sees
// the same token on every forwarded call, stays the authority.
type TokenParser struct {
	hmac []byte
	now  func() time.Time
}

func NewTokenParser(secret string) *TokenParser {
	return &TokenParser{hmac: []byte(secret), now: time.Now}
}

func (p *TokenParser) Verifying() bool { return len(p.hmac) > 0 }

// Issue signs a token the way the backend does. Only meaningful with a
// secret; used by tests and local tooling.
func (p *TokenParser) Issue(sub, role string, ttl time.Duration) (string, error) {
	if !p.Verifying() {
		return "", errors.New("no signing secret configured")
	}
	now := p.now()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.hmac)
}

func (p *TokenParser) Parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	if p.Verifying() {
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			return p.hmac, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(p.now))
		if err != nil {
			return nil, err
		}
		if !token.Valid {
			return nil, errors.New("invalid token")
		}
	} else {
		if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
			return nil, err
		}
		if claims.ExpiresAt != nil && !p.now().Before(claims.ExpiresAt.Time) {
			return nil, jwt.ErrTokenExpired
		}
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	return claims, nil
}

// JWTMiddleware authenticates the bearer token and puts the subject, role
// and raw token on the request context.
func JWTMiddleware(p *TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				http.Error(w, "missing bearer", http.StatusUnauthorized)
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
			c, err := p.Parse(raw)
			if err != nil {
				http.Error(w, "bad token", http.StatusUnauthorized)
				return
			}
			ctx := rbac.WithSubject(r.Context(), c.Subject)
			ctx = rbac.WithRole(ctx, strings.ToUpper(c.Role))
			ctx = rbac.WithToken(ctx, raw)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
