package voicechat

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const (
	DefaultBridgeTokenTTL = 12 * time.Hour
	bridgeTokenIssuer     = "voicechat"
	minBridgeSecretLength = 16
)

// IssueBridgeToken signs an HS256 token that lets subject connect to the control bridge.
func IssueBridgeToken(secret, subject string, ttl time.Duration) (string, time.Time, error) {
	if len(secret) < minBridgeSecretLength {
		return "", time.Time{}, NewConfigError(fmt.Sprintf("bridge secret must be at least %d characters", minBridgeSecretLength))
	}
	if ttl <= 0 {
		ttl = DefaultBridgeTokenTTL
	}

	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    bridgeTokenIssuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, WrapError(err, ErrCodeAuthFailed, "failed to sign bridge token")
	}
	return signed, expiresAt, nil
}

// ValidateBridgeToken checks signature, issuer and expiry, and returns the subject.
func ValidateBridgeToken(secret, tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", WrapError(err, ErrCodeAuthFailed, "invalid bridge token")
	}
	if !parsed.Valid {
		return "", NewAuthError("invalid bridge token")
	}
	if !claims.VerifyIssuer(bridgeTokenIssuer, true) {
		return "", NewAuthError("unexpected bridge token issuer")
	}
	return claims.Subject, nil
}
