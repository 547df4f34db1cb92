// Reelhouse - Self-Hosted Media Server with Synchronized Watch Sessions
// Copyright 2026 Reelhouse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aklyne/reelhouse

package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/aklyne/reelhouse/internal/models"
)

const mediaFileColumns = `id, title, file_path, file_size, duration, last_modified, media_type,
	thumbnail_path, container, bitrate, width, height, fps, video_codec, audio_codec,
	channels, sample_rate, subtitle_count`

// GetMediaFile returns the media file with the given id, or ErrNotFound.
func (s *Store) GetMediaFile(id int64) (*models.MediaFile, error) {
	defer timed("select", "media_files")()

	row := s.db.QueryRow(`SELECT `+mediaFileColumns+` FROM media_files WHERE id = ?`, id)
	return scanMediaFile(row)
}

// GetMediaFileByPath returns the media file with the given path, or ErrNotFound.
func (s *Store) GetMediaFileByPath(path string) (*models.MediaFile, error) {
	defer timed("select", "media_files")()

	row := s.db.QueryRow(`SELECT `+mediaFileColumns+` FROM media_files WHERE file_path = ?`, path)
	return scanMediaFile(row)
}

// ListMediaFiles returns all media files ordered by last modified, newest first.
func (s *Store) ListMediaFiles() ([]models.MediaFile, error) {
	defer timed("select", "media_files")()

	rows, err := s.db.Query(`SELECT ` + mediaFileColumns + ` FROM media_files ORDER BY last_modified DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list media files: %w", err)
	}
	defer rows.Close()

	var files []models.MediaFile
	for rows.Next() {
		mf, err := scanMediaFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, *mf)
	}
	return files, rows.Err()
}

// UpsertMediaFile inserts or updates a media file keyed by its unique path
// and returns the stored record's id.
func (s *Store) UpsertMediaFile(mf *models.MediaFile) (int64, error) {
	defer timed("upsert", "media_files")()

	var lastModified sql.NullInt64
	if mf.LastModified != nil {
		lastModified = sql.NullInt64{Int64: timeToMillis(*mf.LastModified), Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT INTO media_files (title, file_path, file_size, duration, last_modified, media_type,
			thumbnail_path, container, bitrate, width, height, fps, video_codec, audio_codec,
			channels, sample_rate, subtitle_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET
			title=excluded.title,
			file_size=excluded.file_size,
			duration=excluded.duration,
			last_modified=excluded.last_modified,
			media_type=excluded.media_type,
			container=excluded.container,
			bitrate=excluded.bitrate,
			width=excluded.width,
			height=excluded.height,
			fps=excluded.fps,
			video_codec=excluded.video_codec,
			audio_codec=excluded.audio_codec,
			channels=excluded.channels,
			sample_rate=excluded.sample_rate,
			subtitle_count=excluded.subtitle_count`,
		mf.Title, mf.FilePath, nullInt64(mf.FileSize), nullFloat64(mf.Duration), lastModified,
		nullString(mf.MediaType), nullString(mf.ThumbnailPath), nullString(mf.Container),
		nullInt64(mf.Bitrate), nullInt64(int64(mf.Width)), nullInt64(int64(mf.Height)),
		nullFloat64(mf.FPS), nullString(mf.VideoCodec), nullString(mf.AudioCodec),
		nullInt64(int64(mf.Channels)), nullInt64(int64(mf.SampleRate)), mf.SubtitleCount)
	if err != nil {
		return 0, fmt.Errorf("upsert media file: %w", err)
	}

	// LastInsertId is unreliable on the conflict-update path, so the stored
	// id is always resolved through the unique file path.
	existing, err := s.GetMediaFileByPath(mf.FilePath)
	if err != nil {
		return 0, err
	}
	return existing.ID, nil
}

// ReplaceMediaStreams replaces the stream rows for a media file.
func (s *Store) ReplaceMediaStreams(mediaFileID int64, streams []models.MediaStream) error {
	defer timed("replace", "media_streams")()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM media_streams WHERE media_file_id = ?`, mediaFileID); err != nil {
		return fmt.Errorf("clear media streams: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO media_streams (media_file_id, stream_index, codec_type, codec_name,
			width, height, channels, sample_rate, bitrate, fps, language, title)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, st := range streams {
		if _, err := stmt.Exec(mediaFileID, st.StreamIndex, nullString(st.CodecType),
			nullString(st.CodecName), nullInt64(int64(st.Width)), nullInt64(int64(st.Height)),
			nullInt64(int64(st.Channels)), nullInt64(int64(st.SampleRate)), nullInt64(st.Bitrate),
			nullFloat64(st.FPS), nullString(st.Language), nullString(st.Title)); err != nil {
			return fmt.Errorf("insert media stream: %w", err)
		}
	}

	return tx.Commit()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMediaFile(row rowScanner) (*models.MediaFile, error) {
	var (
		mf            models.MediaFile
		fileSize      sql.NullInt64
		duration      sql.NullFloat64
		lastModified  sql.NullInt64
		mediaType     sql.NullString
		thumbnailPath sql.NullString
		container     sql.NullString
		bitrate       sql.NullInt64
		width         sql.NullInt64
		height        sql.NullInt64
		fps           sql.NullFloat64
		videoCodec    sql.NullString
		audioCodec    sql.NullString
		channels      sql.NullInt64
		sampleRate    sql.NullInt64
		subtitleCount sql.NullInt64
	)

	err := row.Scan(&mf.ID, &mf.Title, &mf.FilePath, &fileSize, &duration, &lastModified,
		&mediaType, &thumbnailPath, &container, &bitrate, &width, &height, &fps,
		&videoCodec, &audioCodec, &channels, &sampleRate, &subtitleCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan media file: %w", err)
	}

	mf.FileSize = fileSize.Int64
	mf.Duration = duration.Float64
	if lastModified.Valid {
		t := millisToTime(lastModified.Int64)
		mf.LastModified = &t
	}
	mf.MediaType = mediaType.String
	mf.ThumbnailPath = thumbnailPath.String
	mf.Container = container.String
	mf.Bitrate = bitrate.Int64
	mf.Width = int(width.Int64)
	mf.Height = int(height.Int64)
	mf.FPS = fps.Float64
	mf.VideoCodec = videoCodec.String
	mf.AudioCodec = audioCodec.String
	mf.Channels = int(channels.Int64)
	mf.SampleRate = int(sampleRate.Int64)
	mf.SubtitleCount = int(subtitleCount.Int64)
	return &mf, nil
}
