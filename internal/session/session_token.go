package session

import (
	"errors"
	"time"

	sessionerrors "izin-talep/internal/session/errors"

	"github.com/golang-jwt/jwt/v5"
)

// TokenManager signs and verifies HS256 session tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (m *TokenManager) Issue(sessionID string, user User) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(m.ttl)
	claims := jwt.MapClaims{
		"session_id": sessionID,
		"user_id":    user.ID,
		"role":       string(user.Role),
		"iat":        now.Unix(),
		"exp":        expiresAt.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, sessionerrors.ErrTokenGenerationFailed
	}
	return signed, expiresAt, nil
}

// Parse returns the session id carried by a valid token.
func (m *TokenManager) Parse(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, sessionerrors.ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", sessionerrors.ErrTokenExpired
		}
		return "", sessionerrors.ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", sessionerrors.ErrInvalidToken
	}
	sessionID, ok := claims["session_id"].(string)
	if !ok || sessionID == "" {
		return "", sessionerrors.ErrInvalidToken
	}
	return sessionID, nil
}
