// Package manifest adapts the YouTube client library to the stream descriptors used by
// the downloader.
package manifest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"
	"github.com/therealutkarshpriyadarshi/ytfetch/internal/config"
	"github.com/therealutkarshpriyadarshi/ytfetch/pkg/models"
)

// Video is a resolved manifest: metadata plus every available stream in upstream order
type Video struct {
	ID       string
	Title    string
	Author   string
	Duration time.Duration
	Streams  []models.Stream

	raw *youtube.Video
}

// ProgressFunc receives the number of bytes written so far and the expected total (0 if unknown)
type ProgressFunc func(written, total int64)

// Client resolves manifests and streams bytes from YouTube
type Client struct {
	client *youtube.Client
}

// NewClient creates a new manifest client
func NewClient(cfg config.YouTubeConfig) *Client {
	return &Client{
		client: &youtube.Client{
			HTTPClient: &http.Client{Timeout: cfg.HTTPTimeout},
			ChunkSize:  cfg.ChunkSize,
		},
	}
}

// Resolve fetches the manifest for a video ID
func (c *Client) Resolve(ctx context.Context, videoID string) (*Video, error) {
	raw, err := c.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, &models.UpstreamResolutionError{VideoID: videoID, Err: describe(err)}
	}

	video := &Video{
		ID:       raw.ID,
		Title:    raw.Title,
		Author:   raw.Author,
		Duration: raw.Duration,
		Streams:  make([]models.Stream, 0, len(raw.Formats)),
		raw:      raw,
	}
	if video.ID == "" {
		video.ID = videoID
	}
	for _, f := range raw.Formats {
		video.Streams = append(video.Streams, streamFromFormat(f))
	}

	return video, nil
}

// Download copies the bytes of one stream into w
func (c *Client) Download(ctx context.Context, video *Video, stream models.Stream, w io.Writer, progress ProgressFunc) (int64, error) {
	if video == nil || video.raw == nil {
		return 0, fmt.Errorf("video manifest not resolved")
	}

	formats := video.raw.Formats.Itag(stream.Itag)
	if len(formats) == 0 {
		return 0, fmt.Errorf("stream %d not found in manifest", stream.Itag)
	}
	format := &formats[0]

	body, size, err := c.client.GetStreamContext(ctx, video.raw, format)
	if err != nil {
		return 0, fmt.Errorf("failed to open stream %d: %w", stream.Itag, describe(err))
	}
	defer body.Close()

	written, err := io.Copy(w, &progressReader{r: body, total: size, fn: progress})
	if err != nil {
		return written, fmt.Errorf("failed to download stream %d: %w", stream.Itag, err)
	}

	return written, nil
}

// describe annotates well-known upstream failures with a short explanation
func describe(err error) error {
	switch {
	case errors.Is(err, youtube.ErrVideoPrivate):
		return fmt.Errorf("video is private: %w", err)
	case errors.Is(err, youtube.ErrLoginRequired):
		return fmt.Errorf("video requires login: %w", err)
	case errors.Is(err, youtube.ErrNotPlayableInEmbed):
		return fmt.Errorf("video is not playable: %w", err)
	case errors.Is(err, youtube.ErrInvalidCharactersInVideoID),
		errors.Is(err, youtube.ErrVideoIDMinLength):
		return fmt.Errorf("invalid video id: %w", err)
	}

	var statusErr *youtube.ErrPlayabiltyStatus
	if errors.As(err, &statusErr) {
		return fmt.Errorf("video unavailable: %w", err)
	}

	return err
}

func streamFromFormat(f youtube.Format) models.Stream {
	mime := strings.ToLower(f.MimeType)
	hasVideo := strings.HasPrefix(mime, "video/")
	hasAudio := f.AudioChannels > 0 || strings.HasPrefix(mime, "audio/")

	s := models.Stream{
		Itag:          f.ItagNo,
		MimeType:      f.MimeType,
		Progressive:   hasVideo && f.AudioChannels > 0,
		HasVideo:      hasVideo,
		HasAudio:      hasAudio,
		ContentLength: f.ContentLength,
		Bitrate:       f.Bitrate,
		AudioChannels: f.AudioChannels,
	}

	if hasVideo {
		s.Resolution = normalizeResolution(f.QualityLabel)
		if s.Resolution == "" && f.Height > 0 {
			s.Resolution = fmt.Sprintf("%dp", f.Height)
		}
	}

	return s
}

// normalizeResolution drops frame rate and HDR suffixes: "1080p60 HDR" -> "1080p"
func normalizeResolution(label string) string {
	label = strings.TrimSpace(label)
	i := 0
	for i < len(label) && label[i] >= '0' && label[i] <= '9' {
		i++
	}
	if i == 0 || i >= len(label) || label[i] != 'p' {
		return ""
	}
	return label[:i+1]
}

type progressReader struct {
	r       io.Reader
	total   int64
	written int64
	fn      ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.written += int64(n)
		if p.fn != nil {
			p.fn(p.written, p.total)
		}
	}
	return n, err
}
