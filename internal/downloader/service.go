// Package downloader enumerates the download options of a video and turns a chosen option
// into a file inside a request workspace.
package downloader

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/therealutkarshpriyadarshi/ytfetch/internal/logging"
	"github.com/therealutkarshpriyadarshi/ytfetch/internal/manifest"
	"github.com/therealutkarshpriyadarshi/ytfetch/internal/transcoder"
	"github.com/therealutkarshpriyadarshi/ytfetch/pkg/models"
)

// ManifestSource resolves video manifests and streams their bytes
type ManifestSource interface {
	Resolve(ctx context.Context, videoID string) (*manifest.Video, error)
	Download(ctx context.Context, video *manifest.Video, stream models.Stream, w io.Writer, progress manifest.ProgressFunc) (int64, error)
}

// AudioTranscoder converts a downloaded stream to MP3
type AudioTranscoder interface {
	ConvertAudio(ctx context.Context, opts transcoder.AudioConvertOptions, progressCB transcoder.ProgressCallback) error
}

// ListingCache stores enumeration results
type ListingCache interface {
	GetListing(ctx context.Context, videoID string) (*models.Listing, error)
	SetListing(ctx context.Context, listing *models.Listing, ttl time.Duration) error
	DeleteListing(ctx context.Context, videoID string) error
}

// HistoryRecorder persists one record per fetch attempt
type HistoryRecorder interface {
	RecordDownload(ctx context.Context, record *models.DownloadRecord) error
}

// EventPublisher announces fetch outcomes
type EventPublisher interface {
	PublishDownloadEvent(ctx context.Context, event *models.DownloadEvent) error
}

// ArtifactArchive keeps a copy of produced artifacts
type ArtifactArchive interface {
	Archive(ctx context.Context, artifact *models.Artifact) (string, error)
}

// Service orchestrates enumeration and fetching
type Service struct {
	source     ManifestSource
	transcoder AudioTranscoder
	logger     *logging.Logger

	cache    ListingCache
	cacheTTL time.Duration
	history  HistoryRecorder
	events   []EventPublisher
	archive  ArtifactArchive

	// reports tracks side channel work still running after Fetch returned
	reports sync.WaitGroup
}

// ServiceOption configures optional collaborators
type ServiceOption func(*Service)

// WithListingCache enables caching of enumeration results for ttl
func WithListingCache(cache ListingCache, ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.cache = cache
		s.cacheTTL = ttl
	}
}

// WithHistory records every fetch attempt
func WithHistory(history HistoryRecorder) ServiceOption {
	return func(s *Service) {
		s.history = history
	}
}

// WithEvents publishes an event after every fetch attempt. It may be given more than once.
func WithEvents(events EventPublisher) ServiceOption {
	return func(s *Service) {
		s.events = append(s.events, events)
	}
}

// WithArchive uploads every produced artifact
func WithArchive(archive ArtifactArchive) ServiceOption {
	return func(s *Service) {
		s.archive = archive
	}
}

// NewService creates a new downloader service
func NewService(source ManifestSource, transcoder AudioTranscoder, logger *logging.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	s := &Service{
		source:     source,
		transcoder: transcoder,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Wait blocks until every side channel report started by Fetch has finished
func (s *Service) Wait() {
	s.reports.Wait()
}
