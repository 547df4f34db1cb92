// Reelhouse - Self-Hosted Media Server with Synchronized Watch Sessions
// Copyright 2026 Reelhouse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aklyne/reelhouse

package store

// schemaStatements are applied in order on every Open. All statements are
// idempotent. Datetime columns are Unix milliseconds.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);`,

	`CREATE TABLE IF NOT EXISTS media_files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		file_path TEXT NOT NULL UNIQUE,
		file_size INTEGER,
		duration REAL,
		last_modified INTEGER,
		media_type TEXT,
		thumbnail_path TEXT,
		container TEXT,
		bitrate INTEGER,
		width INTEGER,
		height INTEGER,
		fps REAL,
		video_codec TEXT,
		audio_codec TEXT,
		channels INTEGER,
		sample_rate INTEGER,
		subtitle_count INTEGER DEFAULT 0
	);`,
	`CREATE INDEX IF NOT EXISTS idx_media_files_last_modified ON media_files(last_modified DESC);`,

	`CREATE TABLE IF NOT EXISTS media_streams (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		media_file_id INTEGER NOT NULL,
		stream_index INTEGER,
		codec_type TEXT,
		codec_name TEXT,
		width INTEGER,
		height INTEGER,
		channels INTEGER,
		sample_rate INTEGER,
		bitrate INTEGER,
		fps REAL,
		language TEXT,
		title TEXT,
		FOREIGN KEY (media_file_id) REFERENCES media_files(id) ON DELETE CASCADE
	);`,
	`CREATE INDEX IF NOT EXISTS idx_media_streams_file ON media_streams(media_file_id);`,

	`CREATE TABLE IF NOT EXISTS playback_sessions (
		id TEXT PRIMARY KEY,
		media_file_id INTEGER NOT NULL,
		user_session_id TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		playback_mode TEXT NOT NULL,
		chosen_profile TEXT NOT NULL,
		FOREIGN KEY (media_file_id) REFERENCES media_files(id)
	);`,

	`CREATE TABLE IF NOT EXISTS watch_sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		join_code TEXT NOT NULL UNIQUE,
		host_user_id INTEGER NOT NULL,
		media_file_id INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		is_playing INTEGER NOT NULL DEFAULT 0,
		current_position_seconds REAL NOT NULL DEFAULT 0,
		last_state_updated_at INTEGER NOT NULL,
		FOREIGN KEY (host_user_id) REFERENCES users(id),
		FOREIGN KEY (media_file_id) REFERENCES media_files(id)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_watch_sessions_active ON watch_sessions(is_active);`,

	`CREATE TABLE IF NOT EXISTS watch_session_participants (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		watch_session_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		joined_at INTEGER NOT NULL,
		last_seen_at INTEGER NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		UNIQUE (watch_session_id, user_id),
		FOREIGN KEY (watch_session_id) REFERENCES watch_sessions(id),
		FOREIGN KEY (user_id) REFERENCES users(id)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_participants_session ON watch_session_participants(watch_session_id);`,
	`CREATE INDEX IF NOT EXISTS idx_participants_last_seen ON watch_session_participants(last_seen_at DESC);`,
}
