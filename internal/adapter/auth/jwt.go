package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rl1809/library-lending/internal/core/domain"
	"github.com/rl1809/library-lending/internal/port"
)

// CookieName is the cookie the web client stores its token in.
const CookieName = "auth_token"

var _ port.PrincipalResolver = (*JWTResolver)(nil)

// Claims is the token payload issued by the account service.
type Claims struct {
	UserID   int64  `json:"id"`
	Email    string `json:"email"`
	UserRank int    `json:"userrank"`
	jwt.RegisteredClaims
}

// JWTResolver verifies HS256 tokens and turns their claims into a principal.
type JWTResolver struct {
	secret []byte
	now    func() time.Time
}

func NewJWTResolver(secret string) *JWTResolver {
	return &JWTResolver{secret: []byte(secret), now: time.Now}
}

func (r *JWTResolver) Resolve(ctx context.Context, credential string) (*domain.Principal, error) {
	tokenStr := BearerToken(credential)
	if tokenStr == "" {
		return nil, domain.ErrUnauthenticated
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return r.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(r.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, domain.ErrTokenExpired
	case err != nil:
		return nil, domain.ErrUnauthenticated
	}

	if claims.UserID <= 0 || claims.UserRank < int(domain.LevelReader) {
		return nil, domain.ErrUnauthenticated
	}
	return &domain.Principal{
		ID:    claims.UserID,
		Email: claims.Email,
		Level: domain.PrivilegeLevel(claims.UserRank),
	}, nil
}

// BearerToken strips an optional "Bearer " scheme from an Authorization value.
func BearerToken(value string) string {
	value = strings.TrimSpace(value)
	if len(value) > 7 && strings.EqualFold(value[:7], "bearer ") {
		value = strings.TrimSpace(value[7:])
	}
	return value
}

// Issue signs a token for p valid for ttl.
func Issue(secret string, p domain.Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   p.ID,
		Email:    p.Email,
		UserRank: int(p.Level),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
