// Reelhouse - Self-Hosted Media Server with Synchronized Watch Sessions
// Copyright 2026 Reelhouse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aklyne/reelhouse

package playback

import (
	"bufio"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Rewriter replaces every relative reference inside a playlist with a
// fully-qualified, token-bearing fetch URL. This is the sole place artifact
// paths are exposed to clients, so the token is the only access path to any
// artifact by construction.
type Rewriter struct {
	baseURL string
	tokens  *TokenService
}

// NewRewriter creates a Rewriter producing URLs under baseURL.
func NewRewriter(baseURL string, tokens *TokenService) *Rewriter {
	return &Rewriter{baseURL: strings.TrimRight(baseURL, "/"), tokens: tokens}
}

// Rewrite processes a playlist line by line. Blank lines, comment/tag lines,
// and absolute URLs pass through unchanged; every other line is treated as a
// relative reference to a sibling asset, resolved against the directory of
// the current playlist (so nested per-profile playlists work), signed, and
// replaced.
func (rw *Rewriter) Rewrite(sessionID, playlistText, playlistRelPath string) (string, error) {
	dir := path.Dir(path.Clean(strings.TrimPrefix(playlistRelPath, "/")))
	if dir == "." {
		dir = ""
	}

	var out strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(playlistText))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if trimmed == "" || strings.HasPrefix(trimmed, "#") || isAbsoluteURL(trimmed) {
			out.WriteString(line)
			out.WriteByte('\n')
			continue
		}

		ref := path.Clean(path.Join(dir, trimmed))
		signed, err := rw.AssetURL(sessionID, ref)
		if err != nil {
			return "", err
		}
		out.WriteString(signed)
		out.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan playlist: %w", err)
	}
	return out.String(), nil
}

// AssetURL signs one relative artifact path and returns its fetch URL.
func (rw *Rewriter) AssetURL(sessionID, relativePath string) (string, error) {
	token, err := rw.tokens.Sign(sessionID, relativePath)
	if err != nil {
		return "", err
	}
	escaped := (&url.URL{Path: relativePath}).EscapedPath()
	return fmt.Sprintf("%s/api/v1/playback/%s/asset/%s?token=%s",
		rw.baseURL, sessionID, escaped, url.QueryEscape(token)), nil
}

func isAbsoluteURL(line string) bool {
	return strings.HasPrefix(line, "http://") ||
		strings.HasPrefix(line, "https://") ||
		strings.Contains(line, "://")
}
