// Reelhouse - Self-Hosted Media Server with Synchronized Watch Sessions
// Copyright 2026 Reelhouse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aklyne/reelhouse

package playback

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestRewriter(t *testing.T) (*Rewriter, *TokenService) {
	t.Helper()
	tokens, _ := newTestTokenService(t)
	return NewRewriter("https://reels.example.com/", tokens), tokens
}

func TestRewriteMasterPlaylist(t *testing.T) {
	t.Parallel()

	rw, tokens := newTestRewriter(t)
	playlist := strings.Join([]string{
		"#EXTM3U",
		"#EXT-X-VERSION:3",
		"#EXT-X-STREAM-INF:BANDWIDTH=2928000,RESOLUTION=1280x720",
		"hls-720p/index.m3u8",
		"",
	}, "\n")

	out, err := rw.Rewrite("sess-1", playlist, "master.m3u8")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)
	require.Equal(t, "#EXTM3U", lines[0])
	require.Equal(t, "#EXT-X-STREAM-INF:BANDWIDTH=2928000,RESOLUTION=1280x720", lines[2])

	// The variant reference becomes a fully-qualified signed URL.
	require.True(t, strings.HasPrefix(lines[3], "https://reels.example.com/api/v1/playback/sess-1/asset/hls-720p/index.m3u8?token="), lines[3])

	u, err := url.Parse(lines[3])
	require.NoError(t, err)
	token := u.Query().Get("token")
	require.True(t, tokens.Verify(token, time.Minute, "sess-1", "hls-720p/index.m3u8"))
}

func TestRewriteResolvesAgainstPlaylistDir(t *testing.T) {
	t.Parallel()

	rw, tokens := newTestRewriter(t)
	playlist := strings.Join([]string{
		"#EXTM3U",
		"#EXTINF:4.000,",
		"segment_000.ts",
		"#EXTINF:4.000,",
		"segment_001.ts",
		"#EXT-X-ENDLIST",
	}, "\n")

	out, err := rw.Rewrite("sess-1", playlist, "hls-720p/index.m3u8")
	require.NoError(t, err)

	// Segment references are resolved relative to the variant directory.
	require.Contains(t, out, "/asset/hls-720p/segment_000.ts?token=")
	require.Contains(t, out, "/asset/hls-720p/segment_001.ts?token=")

	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, "segment_000.ts") {
			continue
		}
		u, err := url.Parse(line)
		require.NoError(t, err)
		require.True(t, tokens.Verify(u.Query().Get("token"), time.Minute, "sess-1", "hls-720p/segment_000.ts"))
	}
}

func TestRewritePassesAbsoluteURLsThrough(t *testing.T) {
	t.Parallel()

	rw, _ := newTestRewriter(t)
	out, err := rw.Rewrite("sess-1", "https://cdn.example.com/segment.ts\n", "master.m3u8")
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/segment.ts\n", out)
}

func TestRewritePreservesBlankAndCommentLines(t *testing.T) {
	t.Parallel()

	rw, _ := newTestRewriter(t)
	in := "#EXTM3U\n\n# comment\n"
	out, err := rw.Rewrite("sess-1", in, "master.m3u8")
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestAssetURLEscapesPath(t *testing.T) {
	t.Parallel()

	rw, _ := newTestRewriter(t)
	got, err := rw.AssetURL("sess-1", "hls 720p/index.m3u8")
	require.NoError(t, err)
	require.Contains(t, got, "/asset/hls%20720p/index.m3u8?token=")
}
