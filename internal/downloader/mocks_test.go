package downloader

import (
	"context"
	"io"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/therealutkarshpriyadarshi/ytfetch/internal/manifest"
	"github.com/therealutkarshpriyadarshi/ytfetch/internal/transcoder"
	"github.com/therealutkarshpriyadarshi/ytfetch/pkg/models"
)

// MockSource is a mock implementation of ManifestSource
type MockSource struct {
	mock.Mock
}

func (m *MockSource) Resolve(ctx context.Context, videoID string) (*manifest.Video, error) {
	args := m.Called(ctx, videoID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*manifest.Video), args.Error(1)
}

func (m *MockSource) Download(ctx context.Context, video *manifest.Video, stream models.Stream, w io.Writer, progress manifest.ProgressFunc) (int64, error) {
	args := m.Called(ctx, video, stream, w, progress)
	return args.Get(0).(int64), args.Error(1)
}

// MockTranscoder is a mock implementation of AudioTranscoder
type MockTranscoder struct {
	mock.Mock
}

func (m *MockTranscoder) ConvertAudio(ctx context.Context, opts transcoder.AudioConvertOptions, progressCB transcoder.ProgressCallback) error {
	args := m.Called(ctx, opts, progressCB)
	return args.Error(0)
}

// MockCache is a mock implementation of ListingCache
type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetListing(ctx context.Context, videoID string) (*models.Listing, error) {
	args := m.Called(ctx, videoID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockCache) SetListing(ctx context.Context, listing *models.Listing, ttl time.Duration) error {
	args := m.Called(ctx, listing, ttl)
	return args.Error(0)
}

func (m *MockCache) DeleteListing(ctx context.Context, videoID string) error {
	args := m.Called(ctx, videoID)
	return args.Error(0)
}

// MockHistory is a mock implementation of HistoryRecorder
type MockHistory struct {
	mock.Mock
}

func (m *MockHistory) RecordDownload(ctx context.Context, record *models.DownloadRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// MockEvents is a mock implementation of EventPublisher
type MockEvents struct {
	mock.Mock
}

func (m *MockEvents) PublishDownloadEvent(ctx context.Context, event *models.DownloadEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockArchive is a mock implementation of ArtifactArchive
type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) Archive(ctx context.Context, artifact *models.Artifact) (string, error) {
	args := m.Called(ctx, artifact)
	return args.String(0), args.Error(1)
}

// Fixture streams in upstream order
var (
	stream360       = models.Stream{Itag: 18, MimeType: `video/mp4; codecs="avc1.42001E, mp4a.40.2"`, Resolution: "360p", Progressive: true, HasVideo: true, HasAudio: true, ContentLength: 10485760, AudioChannels: 2}
	stream720       = models.Stream{Itag: 22, MimeType: `video/mp4; codecs="avc1.64001F, mp4a.40.2"`, Resolution: "720p", Progressive: true, HasVideo: true, HasAudio: true, ContentLength: 52428800, AudioChannels: 2}
	stream1080MP4   = models.Stream{Itag: 137, MimeType: `video/mp4; codecs="avc1.640028"`, Resolution: "1080p", HasVideo: true}
	stream1080WebM  = models.Stream{Itag: 248, MimeType: `video/webm; codecs="vp9"`, Resolution: "1080p", HasVideo: true}
	streamAudioMP4  = models.Stream{Itag: 140, MimeType: `audio/mp4; codecs="mp4a.40.2"`, HasAudio: true, ContentLength: 3145728, AudioChannels: 2}
	streamAudioWebM = models.Stream{Itag: 251, MimeType: `audio/webm; codecs="opus"`, HasAudio: true, AudioChannels: 2}
)

func fixtureStreams() []models.Stream {
	return []models.Stream{stream360, stream720, stream1080MP4, stream1080WebM, streamAudioMP4, streamAudioWebM}
}

func fixtureVideo() *manifest.Video {
	return &manifest.Video{
		ID:      "dQw4w9WgXcQ",
		Title:   "My Video: Live!",
		Streams: fixtureStreams(),
	}
}
