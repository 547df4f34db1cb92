// Reelhouse - Self-Hosted Media Server with Synchronized Watch Sessions
// Copyright 2026 Reelhouse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aklyne/reelhouse

// Package scanner walks the media library root, probes each file with
// ffprobe, and upserts library entries so repeat scans are idempotent.
package scanner

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aklyne/reelhouse/internal/metrics"
	"github.com/aklyne/reelhouse/internal/models"
)

// mediaExtensions are the file types picked up by a scan.
var mediaExtensions = map[string]string{
	".mp4": "video",
	".mkv": "video",
	".avi": "video",
	".mov": "video",
	".mp3": "audio",
}

// Store is the persistence slice the scanner writes to.
type Store interface {
	UpsertMediaFile(m *models.MediaFile) (int64, error)
	ReplaceMediaStreams(mediaFileID int64, streams []models.MediaStream) error
}

// Scanner indexes a library directory tree.
type Scanner struct {
	root   string
	store  Store
	prober Prober
	log    zerolog.Logger
}

// New creates a scanner over the given library root.
func New(root string, store Store, prober Prober, log zerolog.Logger) *Scanner {
	return &Scanner{root: root, store: store, prober: prober, log: log}
}

// Result summarizes one scan pass.
type Result struct {
	FilesSeen   int
	FilesAdded  int
	ProbeErrors int
	Duration    time.Duration
}

// Scan walks the library root once. Probe failures are logged and skipped;
// a broken file never aborts a scan. Returns an error only if the walk
// itself fails or the context is canceled.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{}

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}

		mediaType, ok := mediaExtensions[strings.ToLower(filepath.Ext(path))]
		if !ok {
			return nil
		}
		result.FilesSeen++
		metrics.ScannerFilesSeen.Inc()

		if err := s.indexFile(ctx, path, d, mediaType); err != nil {
			result.ProbeErrors++
			metrics.ScannerFilesProbed.WithLabelValues("error").Inc()
			s.log.Warn().Err(err).Str("path", path).Msg("skipping unreadable media file")
			return nil
		}
		result.FilesAdded++
		metrics.ScannerFilesProbed.WithLabelValues("ok").Inc()
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	metrics.ScannerLastRun.Set(float64(time.Now().Unix()))
	s.log.Info().
		Int("files_seen", result.FilesSeen).
		Int("files_indexed", result.FilesAdded).
		Int("probe_errors", result.ProbeErrors).
		Dur("duration", result.Duration).
		Msg("library scan complete")
	return result, nil
}

// indexFile probes one file and persists its entry and streams.
func (s *Scanner) indexFile(ctx context.Context, path string, d fs.DirEntry, mediaType string) error {
	data, err := s.prober.Probe(ctx, path)
	if err != nil {
		return err
	}

	media := &models.MediaFile{
		Title:     titleFromPath(path),
		FilePath:  path,
		MediaType: mediaType,
		Duration:  parseFloat(data.Format.Duration),
		Bitrate:   parseInt64(data.Format.BitRate),
		FileSize:  parseInt64(data.Format.Size),
		Container: strings.TrimPrefix(filepath.Ext(path), "."),
	}
	if info, err := d.Info(); err == nil {
		mod := info.ModTime().UTC()
		media.LastModified = &mod
		if media.FileSize == 0 {
			media.FileSize = info.Size()
		}
	}

	streams := make([]models.MediaStream, 0, len(data.Streams))
	for _, ps := range data.Streams {
		switch ps.CodecType {
		case "video":
			if media.VideoCodec == "" {
				media.VideoCodec = ps.CodecName
				media.Width = ps.Width
				media.Height = ps.Height
				media.FPS = parseFPS(ps.AvgFrameRate)
			}
		case "audio":
			if media.AudioCodec == "" {
				media.AudioCodec = ps.CodecName
				media.Channels = ps.Channels
				media.SampleRate = parseInt(ps.SampleRate)
			}
		case "subtitle":
			media.SubtitleCount++
		}

		streams = append(streams, models.MediaStream{
			StreamIndex: ps.Index,
			CodecType:   ps.CodecType,
			CodecName:   ps.CodecName,
			Width:       ps.Width,
			Height:      ps.Height,
			Channels:    ps.Channels,
			SampleRate:  parseInt(ps.SampleRate),
			Bitrate:     parseInt64(ps.BitRate),
			FPS:         parseFPS(ps.AvgFrameRate),
			Language:    ps.Tags.Language,
			Title:       ps.Tags.Title,
		})
	}

	id, err := s.store.UpsertMediaFile(media)
	if err != nil {
		return err
	}
	return s.store.ReplaceMediaStreams(id, streams)
}

// titleFromPath derives a display title from the file name.
func titleFromPath(path string) string {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	name = strings.NewReplacer(".", " ", "_", " ").Replace(name)
	return strings.TrimSpace(name)
}
