// Reelhouse - Self-Hosted Media Server with Synchronized Watch Sessions
// Copyright 2026 Reelhouse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aklyne/reelhouse

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aklyne/reelhouse/internal/models"
)

var (
	errNotFound = errors.New("not found")
	errTaken    = errors.New("taken")
)

type fakeUserStore struct {
	nextID int64
	byName map[string]*models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{nextID: 1, byName: make(map[string]*models.User)}
}

func (f *fakeUserStore) CreateUser(username, passwordHash string, now time.Time) (*models.User, error) {
	if _, ok := f.byName[username]; ok {
		return nil, errTaken
	}
	u := &models.User{ID: f.nextID, Username: username, PasswordHash: passwordHash, CreatedAt: now}
	f.nextID++
	f.byName[username] = u
	cp := *u
	return &cp, nil
}

func (f *fakeUserStore) GetUserByUsername(username string) (*models.User, error) {
	u, ok := f.byName[username]
	if !ok {
		return nil, errNotFound
	}
	cp := *u
	return &cp, nil
}

func newTestAuth(t *testing.T) *Service {
	t.Helper()
	jm, err := NewJWTManager("0123456789abcdef0123456789abcdef", time.Hour)
	require.NoError(t, err)
	svc := NewService(newFakeUserStore(), jm, errNotFound, errTaken)
	// MinCost keeps the hashing fast in tests.
	svc.bcryptCost = 4
	return svc
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestAuth(t)

	user, token, err := svc.Register("alice", "correct horse battery")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.NotEmpty(t, token)

	user, token, err = svc.Login("alice", "correct horse battery")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.NotEmpty(t, token)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc := newTestAuth(t)

	_, _, err := svc.Register("alice", "correct horse battery")
	require.NoError(t, err)

	_, _, err = svc.Register("alice", "another password")
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newTestAuth(t)

	_, _, err := svc.Register("alice", "correct horse battery")
	require.NoError(t, err)

	_, _, err = svc.Login("alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUnknownUser(t *testing.T) {
	svc := newTestAuth(t)

	_, _, err := svc.Login("nobody", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestJWTRoundTrip(t *testing.T) {
	jm, err := NewJWTManager("0123456789abcdef0123456789abcdef", time.Hour)
	require.NoError(t, err)

	token, err := jm.GenerateToken(42, "alice")
	require.NoError(t, err)

	claims, err := jm.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
}

func TestJWTExpiry(t *testing.T) {
	jm, err := NewJWTManager("0123456789abcdef0123456789abcdef", time.Hour)
	require.NoError(t, err)

	issued := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	jm.now = func() time.Time { return issued }
	token, err := jm.GenerateToken(42, "alice")
	require.NoError(t, err)

	jm.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = jm.ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTRejectsTamperedToken(t *testing.T) {
	jm, err := NewJWTManager("0123456789abcdef0123456789abcdef", time.Hour)
	require.NoError(t, err)
	other, err := NewJWTManager("ffffffffffffffffffffffffffffffff", time.Hour)
	require.NoError(t, err)

	token, err := other.GenerateToken(42, "alice")
	require.NoError(t, err)

	_, err = jm.ValidateToken(token)
	assert.Error(t, err)
}
