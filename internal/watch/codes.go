// Reelhouse - Self-Hosted Media Server with Synchronized Watch Sessions
// Copyright 2026 Reelhouse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aklyne/reelhouse

package watch

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/aklyne/reelhouse/internal/store"
)

// joinCodeAlphabet omits nothing: codes are short-lived and typed by humans,
// so uppercase letters and digits keep them easy to read aloud.
const joinCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// joinCodeRetries bounds regeneration when a generated code collides with a
// live session.
const joinCodeRetries = 5

// generateJoinCode returns a random code of n characters.
func generateJoinCode(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("watch: generate join code: %w", err)
	}
	for i, b := range buf {
		buf[i] = joinCodeAlphabet[int(b)%len(joinCodeAlphabet)]
	}
	return string(buf), nil
}

func isJoinCodeConflict(err error) bool {
	return errors.Is(err, store.ErrJoinCodeTaken)
}
