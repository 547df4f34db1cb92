// Reelhouse - Self-Hosted Media Server with Synchronized Watch Sessions
// Copyright 2026 Reelhouse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aklyne/reelhouse

package auth

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/aklyne/reelhouse/internal/models"
)

var (
	// ErrInvalidCredentials covers both unknown usernames and wrong
	// passwords so the response does not leak which one failed.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrUsernameTaken is returned when registering a duplicate username.
	ErrUsernameTaken = errors.New("auth: username already taken")
)

// UserStore is the persistence the auth service needs.
type UserStore interface {
	CreateUser(username, passwordHash string, now time.Time) (*models.User, error)
	GetUserByUsername(username string) (*models.User, error)
}

// Service handles registration and login.
type Service struct {
	users      UserStore
	tokens     *JWTManager
	notFound   error
	takenErr   error
	bcryptCost int
	now        func() time.Time
}

// NewService creates the auth service. notFound and taken are the store's
// sentinels for missing users and duplicate usernames.
func NewService(users UserStore, tokens *JWTManager, notFound, taken error) *Service {
	return &Service{
		users:      users,
		tokens:     tokens,
		notFound:   notFound,
		takenErr:   taken,
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
	}
}

// Register creates a user with a bcrypt-hashed password and returns a
// session token for immediate use.
func (s *Service) Register(username, password string) (*models.User, string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, "", fmt.Errorf("auth: hash password: %w", err)
	}

	user, err := s.users.CreateUser(username, string(hash), s.now().UTC())
	if err != nil {
		if errors.Is(err, s.takenErr) {
			return nil, "", ErrUsernameTaken
		}
		return nil, "", err
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Username)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Login verifies the password against the stored bcrypt hash and returns a
// session token.
func (s *Service) Login(username, password string) (*models.User, string, error) {
	user, err := s.users.GetUserByUsername(username)
	if err != nil {
		if errors.Is(err, s.notFound) {
			// Burn comparable time so unknown usernames are not
			// distinguishable by response latency.
			_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5B2mAAoMQ2p5cPuMoXdWmrlSSQS9K"), []byte(password))
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Username)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}
