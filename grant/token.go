package grant

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jonwraymond/secretops/discovery"
)

// TokenIssuer is the iss claim of signed grant tokens.
const TokenIssuer = "secretops"

// Tokens issues and verifies the grant tokens embedded in rewritten payloads.
//
// Without a signing key the token is the context id itself. With a key it
// is an HS256 JWT whose subject is the context id, so a template cannot
// forge access to a context it was not handed.
type Tokens struct {
	key []byte
	now func() time.Time
}

// NewTokens creates a token codec. An empty key disables signing.
func NewTokens(key []byte) *Tokens {
	return &Tokens{key: key, now: time.Now}
}

// Signed reports whether tokens are signed JWTs.
func (t *Tokens) Signed() bool {
	return t != nil && len(t.key) > 0
}

// Issue returns the token for dc.
func (t *Tokens) Issue(dc *discovery.Context) (string, error) {
	if dc == nil {
		return "", ErrNilContext
	}
	if !t.Signed() {
		return dc.ID, nil
	}

	claims := jwt.RegisteredClaims{
		Issuer:   TokenIssuer,
		Subject:  dc.ID,
		Audience: jwt.ClaimStrings{dc.EnvID},
		IssuedAt: jwt.NewNumericDate(t.now()),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", fmt.Errorf("grant: sign token: %w", err)
	}
	return signed, nil
}

// ContextID returns the context id carried by token.
func (t *Tokens) ContextID(token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	if !t.Signed() {
		return token, nil
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return t.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
