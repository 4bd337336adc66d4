package ipc

import (
	"errors"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nstehr/hive/hive-core/model"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrMissingToken = errors.New("missing bridge token")
)

// Claims authorize a simulator to speak for one team.
type Claims struct {
	Team string `json:"team"`
	jwt.RegisteredClaims
}

// Auth issues and checks bridge tokens signed with a shared secret.
type Auth struct {
	secret []byte
	expiry time.Duration
}

func NewAuth(secret string) *Auth {
	return &Auth{secret: []byte(secret), expiry: 12 * time.Hour}
}

// Token signs a token for team.
func (a *Auth) Token(team model.Team) (string, error) {
	now := time.Now()
	claims := &Claims{
		Team: team.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(a.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   team.String(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *Auth) Validate(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrMissingToken
	}
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// WithToken adds the token as a query parameter. Browsers and most websocket
// clients cannot set headers on the upgrade request.
func WithToken(rawURL, token string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
