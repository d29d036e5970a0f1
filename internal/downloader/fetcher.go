package downloader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/therealutkarshpriyadarshi/ytfetch/internal/manifest"
	"github.com/therealutkarshpriyadarshi/ytfetch/internal/metrics"
	"github.com/therealutkarshpriyadarshi/ytfetch/internal/tracing"
	"github.com/therealutkarshpriyadarshi/ytfetch/internal/transcoder"
	"github.com/therealutkarshpriyadarshi/ytfetch/internal/workspace"
	"github.com/therealutkarshpriyadarshi/ytfetch/pkg/models"
)

const audioContentType = "audio/mpeg"

// Fetch resolves choice against the video's streams and writes the resulting file into ws.
// The returned artifact lives in ws and disappears when ws is closed.
func (s *Service) Fetch(ctx context.Context, ws *workspace.Workspace, videoID, choice string) (*models.Artifact, error) {
	span, ctx := tracing.StartSpan(ctx, "downloader.fetch")
	defer tracing.FinishSpan(span)
	tracing.SetTag(span, "video_id", videoID)
	tracing.SetTag(span, "choice", choice)

	start := time.Now()
	sel, parseErr := ParseChoice(choice)

	kind := models.ArtifactKindStream
	if parseErr == nil && sel.IsAudioConversion() {
		kind = models.ArtifactKindAudio
	}

	artifact, err := s.fetch(ctx, ws, videoID, sel, parseErr)
	duration := time.Since(start)

	status := models.DownloadStatusCompleted
	if err != nil {
		status = models.DownloadStatusFailed
		tracing.LogError(span, err)
	}
	metrics.RecordFetch(string(kind), status, duration.Seconds())

	details := map[string]interface{}{"duration_ms": duration.Milliseconds()}
	if artifact != nil {
		details["filename"] = artifact.Filename
		details["size"] = artifact.Size
	}
	if err != nil {
		details["error"] = err.Error()
	}
	s.logger.LogFetchEvent(videoID, choice, status, details)

	if s.reporting() {
		// The archive reads the artifact after the response has been sent
		release := ws.Retain()
		s.reports.Add(1)
		go func() {
			defer s.reports.Done()
			defer func() {
				if err := release(); err != nil {
					s.logger.WithError(err).Warnf("Failed to remove workspace %s", ws.Dir())
				}
			}()
			s.report(ctx, videoID, choice, kind, artifact, err, duration)
		}()
	}

	return artifact, err
}

func (s *Service) fetch(ctx context.Context, ws *workspace.Workspace, videoID string, sel models.Selection, parseErr error) (*models.Artifact, error) {
	video, err := s.source.Resolve(ctx, videoID)
	if err != nil {
		var upstreamErr *models.UpstreamResolutionError
		if !errors.As(err, &upstreamErr) {
			err = &models.UpstreamResolutionError{VideoID: videoID, Err: err}
		}
		s.forgetListing(ctx, videoID)
		return nil, err
	}
	if parseErr != nil {
		return nil, parseErr
	}

	if sel.IsAudioConversion() {
		return s.fetchAudio(ctx, ws, video, sel.Audio)
	}
	return s.fetchStream(ctx, ws, video, sel)
}

func (s *Service) fetchStream(ctx context.Context, ws *workspace.Workspace, video *manifest.Video, sel models.Selection) (*models.Artifact, error) {
	stream, err := SelectStream(video.Streams, sel)
	if err != nil {
		return nil, err
	}

	filename := fmt.Sprintf("%s.%s", filenameBase(video), stream.Extension())
	size, err := s.download(ctx, ws, video, stream, filename)
	if err != nil {
		ws.Remove(filename)
		return nil, err
	}

	return &models.Artifact{
		VideoID:     video.ID,
		Title:       video.Title,
		Kind:        models.ArtifactKindStream,
		Path:        ws.Path(filename),
		Filename:    filename,
		ContentType: stream.BaseMimeType(),
		Size:        size,
	}, nil
}

func (s *Service) fetchAudio(ctx context.Context, ws *workspace.Workspace, video *manifest.Video, quality models.AudioQuality) (*models.Artifact, error) {
	stream, ok := FirstAudioStream(video.Streams)
	if !ok {
		return nil, &models.SelectionError{Reason: models.ReasonNoAudioStream}
	}

	tempName := "temp." + stream.Extension()
	defer func() {
		if err := ws.Remove(tempName); err != nil {
			s.logger.WithError(err).Warn("Failed to remove temporary download")
		}
	}()

	if _, err := s.download(ctx, ws, video, stream, tempName); err != nil {
		return nil, err
	}

	filename := fmt.Sprintf("%s (%s).mp3", filenameBase(video), quality.Name())

	start := time.Now()
	err := s.transcoder.ConvertAudio(ctx, transcoder.AudioConvertOptions{
		InputPath:  ws.Path(tempName),
		OutputPath: ws.Path(filename),
		Bitrate:    quality.Bitrate(),
	}, func(progress float64) {
		s.logger.LogTranscodingProgress(video.ID, quality.Name(), progress)
	})
	if err != nil {
		ws.Remove(filename)
		return nil, &models.TranscodeError{Err: err}
	}
	metrics.RecordTranscode(quality.Name(), time.Since(start).Seconds())

	size, err := ws.Size(filename)
	if err != nil {
		return nil, &models.TranscodeError{Err: fmt.Errorf("output file missing: %w", err)}
	}

	return &models.Artifact{
		VideoID:     video.ID,
		Title:       video.Title,
		Kind:        models.ArtifactKindAudio,
		Path:        ws.Path(filename),
		Filename:    filename,
		ContentType: audioContentType,
		Size:        size,
	}, nil
}

// download writes one stream into the workspace file name
func (s *Service) download(ctx context.Context, ws *workspace.Workspace, video *manifest.Video, stream models.Stream, name string) (int64, error) {
	f, err := ws.Create(name)
	if err != nil {
		return 0, err
	}

	written, err := s.source.Download(ctx, video, stream, f, s.progressLogger(video.ID, stream.Itag))
	metrics.RecordDownloadedBytes(written)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to write %s: %w", name, closeErr)
	}

	return written, err
}

// progressLogger logs download progress at most once per 10% step
func (s *Service) progressLogger(videoID string, itag int) manifest.ProgressFunc {
	lastStep := int64(-1)
	return func(written, total int64) {
		if total <= 0 {
			return
		}
		step := written * 10 / total
		if step <= lastStep {
			return
		}
		lastStep = step
		s.logger.LogDownloadProgress(videoID, itag, written, total)
	}
}

// forgetListing drops the cached listing of a video that no longer resolves
func (s *Service) forgetListing(ctx context.Context, videoID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteListing(ctx, videoID); err != nil {
		s.logger.WithVideoID(videoID).WithError(err).Warn("Failed to drop cached listing")
	}
}

func (s *Service) reporting() bool {
	return s.history != nil || len(s.events) > 0 || s.archive != nil
}

// report feeds the optional history, event and archive side channels. Their failures are
// logged and never surface to the caller.
func (s *Service) report(ctx context.Context, videoID, choice string, kind models.ArtifactKind, artifact *models.Artifact, fetchErr error, duration time.Duration) {
	// The request context is cancelled once the response is written
	ctx = context.WithoutCancel(ctx)
	logger := s.logger.WithVideoID(videoID)

	record := &models.DownloadRecord{
		ID:         uuid.New().String(),
		VideoID:    videoID,
		Choice:     choice,
		Kind:       kind,
		Status:     models.DownloadStatusCompleted,
		DurationMs: duration.Milliseconds(),
		CreatedAt:  time.Now(),
	}
	event := &models.DownloadEvent{
		Event:     models.EventDownloadCompleted,
		VideoID:   videoID,
		Choice:    choice,
		Kind:      kind,
		Status:    models.DownloadStatusCompleted,
		Timestamp: record.CreatedAt,
	}

	if artifact != nil {
		record.Title = artifact.Title
		record.Filename = artifact.Filename
		record.Size = artifact.Size
		event.Filename = artifact.Filename
		event.Size = artifact.Size
	}
	if fetchErr != nil {
		record.Status = models.DownloadStatusFailed
		record.ErrorMsg = fetchErr.Error()
		event.Event = models.EventDownloadFailed
		event.Status = models.DownloadStatusFailed
		event.Error = fetchErr.Error()
	}

	if s.archive != nil && artifact != nil {
		if _, err := s.archive.Archive(ctx, artifact); err != nil {
			logger.WithError(err).Warn("Failed to archive artifact")
		}
	}
	if s.history != nil {
		if err := s.history.RecordDownload(ctx, record); err != nil {
			logger.WithError(err).Warn("Failed to record download history")
		}
	}
	for _, events := range s.events {
		if err := events.PublishDownloadEvent(ctx, event); err != nil {
			logger.WithError(err).Warn("Failed to publish download event")
		}
	}
}

// filenameBase is the sanitized title, or the video ID when nothing survives sanitization
func filenameBase(video *manifest.Video) string {
	if base := SanitizeFilename(video.Title); base != "" {
		return base
	}
	return video.ID
}
