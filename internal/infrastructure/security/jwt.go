// Package security provides JWT token utilities
package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// ValidateJWT validates a JWT token and returns the claims
func ValidateJWT(tokenString, jwtSecret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// GenerateVisitorToken creates a JWT carrying the resolved visitor and session
// so clients can re-present their identity without a fresh resolution.
func GenerateVisitorToken(visitorID, sessionID, tenantID, jwtSecret string) (string, error) {
	claims := jwt.MapClaims{
		"visitorId": visitorID,
		"sessionId": sessionID,
		"tenantId":  tenantID,
		"iat":       time.Now().UTC().Unix(),
		"exp":       time.Now().UTC().Add(24 * time.Hour).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtSecret))
}

// VisitorFromClaims extracts the visitor and session ids from validated claims.
func VisitorFromClaims(claims jwt.MapClaims) (visitorID, sessionID string, ok bool) {
	visitorID, vok := claims["visitorId"].(string)
	sessionID, sok := claims["sessionId"].(string)
	return visitorID, sessionID, vok && sok
}
