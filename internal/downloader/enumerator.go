package downloader

import (
	"context"
	"errors"

	"github.com/samber/lo"

	"github.com/therealutkarshpriyadarshi/ytfetch/internal/metrics"
	"github.com/therealutkarshpriyadarshi/ytfetch/internal/tracing"
	"github.com/therealutkarshpriyadarshi/ytfetch/pkg/models"
)

// Enumerate lists every download option for a video: one per upstream stream, best
// resolution first, followed by the three MP3 conversions.
func (s *Service) Enumerate(ctx context.Context, videoID string) (*models.Listing, error) {
	span, ctx := tracing.StartSpan(ctx, "downloader.enumerate")
	defer tracing.FinishSpan(span)
	tracing.SetTag(span, "video_id", videoID)

	logger := s.logger.WithVideoID(videoID)

	if s.cache != nil {
		listing, err := s.cache.GetListing(ctx, videoID)
		switch {
		case err != nil:
			logger.WithError(err).Warn("Listing cache lookup failed")
		case listing != nil:
			logger.WithField("choices", len(listing.Choices)).Debug("Serving cached listing")
			metrics.RecordCacheAccess("listing", true)
			metrics.RecordEnumeration("cached")
			return listing, nil
		default:
			metrics.RecordCacheAccess("listing", false)
		}
	}

	video, err := s.source.Resolve(ctx, videoID)
	if err != nil {
		var upstreamErr *models.UpstreamResolutionError
		if !errors.As(err, &upstreamErr) {
			err = &models.UpstreamResolutionError{VideoID: videoID, Err: err}
		}
		tracing.LogError(span, err)
		metrics.RecordEnumeration("failed")
		return nil, err
	}

	listing := &models.Listing{
		VideoID: videoID,
		Title:   video.Title,
		Choices: BuildOptions(video.Streams),
	}

	if s.cache != nil {
		if err := s.cache.SetListing(ctx, listing, s.cacheTTL); err != nil {
			logger.WithError(err).Warn("Failed to cache listing")
		}
	}

	metrics.RecordEnumeration("success")
	streams := lo.CountBy(listing.Choices, func(o models.Option) bool { return !o.Synthetic() })
	logger.WithFields(map[string]interface{}{
		"streams":     streams,
		"conversions": len(listing.Choices) - streams,
	}).Info("Enumerated download options")

	return listing, nil
}
