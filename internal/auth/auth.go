// Package auth issues and verifies admission tokens. A token admits one
// named participant to one session; the websocket layer exchanges it for a
// seat at connection time.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AdmissionClaims are the claims carried by an admission token.
type AdmissionClaims struct {
	ParticipantID uuid.UUID `json:"participantId"`
	SessionID     uuid.UUID `json:"sessionId"`
	Name          string    `json:"name"`
	jwt.RegisteredClaims
}

// CreateAdmissionToken signs an HS256 token admitting the participant to
// the session for the given lifetime.
func CreateAdmissionToken(secret []byte, participantID, sessionID uuid.UUID, name string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AdmissionClaims{
		ParticipantID: participantID,
		SessionID:     sessionID,
		Name:          name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   participantID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign admission token: %w", err)
	}
	return signed, nil
}

// ParseAdmissionToken verifies the signature and expiry and returns the
// claims.
func ParseAdmissionToken(secret []byte, tokenString string) (*AdmissionClaims, error) {
	claims := &AdmissionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse admission token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid admission token")
	}
	if claims.ParticipantID == uuid.Nil || claims.SessionID == uuid.Nil {
		return nil, fmt.Errorf("admission token missing identity claims")
	}
	return claims, nil
}
