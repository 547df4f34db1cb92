// Reelhouse - Self-Hosted Media Server with Synchronized Watch Sessions
// Copyright 2026 Reelhouse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aklyne/reelhouse

package playback

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// assetClaims is the signed payload bound to one artifact of one session.
// The path digest is not secrecy-critical; it guards against a tampered
// payload being silently accepted.
type assetClaims struct {
	SessionID string `json:"sid"`
	Path      string `json:"path"`
	Digest    string `json:"digest"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies signed, expiring, path-and-session-bound
// asset tokens. Tokens are stateless: there is no revocation list, so a
// compromised token is only as dangerous as its remaining time to live.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

// NewTokenService creates a TokenService signing with the given secret.
func NewTokenService(secret string) (*TokenService, error) {
	if secret == "" {
		return nil, fmt.Errorf("playback: token secret is required")
	}
	return &TokenService{secret: []byte(secret), now: time.Now}, nil
}

// Sign issues a token for one relative artifact path of one session.
func (t *TokenService) Sign(sessionID, relativePath string) (string, error) {
	claims := &assetClaims{
		SessionID: sessionID,
		Path:      relativePath,
		Digest:    pathDigest(relativePath),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(t.now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign asset token: %w", err)
	}
	return token, nil
}

// Verify checks a token against the expected session and path. It fails
// closed: signature mismatch, age beyond maxAge, session or path mismatch,
// and digest mismatch all return false. Malformed input never panics.
func (t *TokenService) Verify(tokenString string, maxAge time.Duration, expectedSessionID, expectedPath string) bool {
	claims := &assetClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return false
	}

	if claims.IssuedAt == nil {
		return false
	}
	elapsed := t.now().Sub(claims.IssuedAt.Time)
	if elapsed < 0 || elapsed > maxAge {
		return false
	}

	if subtle.ConstantTimeCompare([]byte(claims.SessionID), []byte(expectedSessionID)) != 1 {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(claims.Path), []byte(expectedPath)) != 1 {
		return false
	}
	return claims.Digest == pathDigest(expectedPath)
}

func pathDigest(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:])
}
