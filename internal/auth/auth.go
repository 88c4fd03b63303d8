// file: internal/auth/auth.go
// version: 1.3.0
// guid: 3267ff20-e7bd-46ea-a519-ec74b8563256

// Package auth verifies bearer credentials for mutating operations and
// for unlocking the live update stream. Tokens are self-contained JWTs
// signed with a secret persisted in the settings table; there is no
// server-side session state.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/jdfalk/playlist-archiver/internal/database"
	"github.com/jdfalk/playlist-archiver/internal/models"
)

const secretKey = "auth_server_secret"

// DefaultTokenTTL is how long an issued token stays valid.
const DefaultTokenTTL = 24 * time.Hour

// Gate issues and verifies credentials against the user table.
type Gate struct {
	db  database.Store
	ttl time.Duration

	secretOnce sync.Once
	secret     []byte
	secretErr  error
}

// NewGate creates a gate. A zero ttl falls back to DefaultTokenTTL.
func NewGate(db database.Store, ttl time.Duration) *Gate {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Gate{db: db, ttl: ttl}
}

// signingSecret loads the persisted secret, generating one on first use.
func (g *Gate) signingSecret() ([]byte, error) {
	g.secretOnce.Do(func() {
		value, ok, err := g.db.GetKey(secretKey)
		if err != nil {
			g.secretErr = err
			return
		}
		if !ok {
			raw := make([]byte, 32)
			if _, err := rand.Read(raw); err != nil {
				g.secretErr = err
				return
			}
			value = hex.EncodeToString(raw)
			if err := g.db.SetKey(secretKey, value); err != nil {
				g.secretErr = err
				return
			}
			log.Printf("Generated new token signing secret")
		}
		g.secret = []byte(value)
	})
	return g.secret, g.secretErr
}

// Login checks the password and issues a signed token. The failure is
// deliberately the same for unknown users and wrong passwords.
func (g *Gate) Login(username, password string) (string, error) {
	user, err := g.db.GetUser(username)
	if err != nil {
		return "", fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return "", models.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", models.ErrUnauthorized
	}

	secret, err := g.signingSecret()
	if err != nil {
		return "", fmt.Errorf("failed to load signing secret: %w", err)
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// Verify validates signature and expiry and returns the token subject.
func (g *Gate) Verify(tokenString string) (string, error) {
	if tokenString == "" {
		return "", models.ErrUnauthorized
	}
	secret, err := g.signingSecret()
	if err != nil {
		return "", fmt.Errorf("failed to load signing secret: %w", err)
	}
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", models.ErrUnauthorized
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", models.ErrUnauthorized
	}
	return claims.Subject, nil
}

// HashPassword hashes a password for storage in the user table.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
