package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gitlab.com/tozd/go/errors"
)

// MinSecretLen is the shortest accepted signing secret
const MinSecretLen = 32

// SignSessionID wraps a session id into an HS256 token valid for ttl
func SignSessionID(secret []byte, sessionID string, now time.Time, ttl time.Duration) (string, error) {
	if len(secret) < MinSecretLen {
		return "", errors.Errorf("session secret must be at least %d bytes", MinSecretLen)
	}

	claims := jwt.RegisteredClaims{
		Subject:   sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", errors.Errorf("signing session token: %w", err)
	}
	return signed, nil
}

// ParseSessionID validates a token and returns the session id it carries.
// Only HS256 is accepted.
func ParseSessionID(secret []byte, tokenStr string) (string, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", errors.Errorf("parsing session token: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", errors.New("invalid session token")
	}
	return claims.Subject, nil
}
