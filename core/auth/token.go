package auth

import (
	"strings"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
)

const bearerScheme = "Bearer"

var (
	ErrMissingToken = errors.New("missing or malformed jwt")
	ErrInvalidToken = errors.New("invalid or expired jwt")
)

// Claims is the token payload issued by the backend.
type Claims struct {
	jwt.StandardClaims
	UserID   int64    `json:"userId"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

// Identity returns the caller described by the claims.
func (c Claims) Identity() Identity {
	roles := make([]string, 0, len(c.Roles))
	for _, r := range c.Roles {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return Identity{ID: c.UserID, Username: c.Username, Roles: roles}
}

// Verifier checks HS256 tokens against a shared secret.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// ParseAuthorization extracts the token from an "Authorization: Bearer <token>" value.
func ParseAuthorization(header string) (string, error) {
	l := len(bearerScheme)
	if len(header) > l+1 && strings.EqualFold(header[:l], bearerScheme) && header[l] == ' ' {
		if token := strings.TrimSpace(header[l+1:]); token != "" {
			return token, nil
		}
	}
	return "", ErrMissingToken
}

// Verify checks the signature and expiry of token and returns its identity.
func (v *Verifier) Verify(token string) (Identity, error) {
	claims := new(Claims)
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, errors.Wrap(ErrInvalidToken, err.Error())
	}
	if !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}
	return claims.Identity(), nil
}
