package storage

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/therealutkarshpriyadarshi/ytfetch/internal/config"
	"github.com/therealutkarshpriyadarshi/ytfetch/internal/logging"
	"github.com/therealutkarshpriyadarshi/ytfetch/internal/metrics"
	"github.com/therealutkarshpriyadarshi/ytfetch/pkg/models"
)

const (
	// archivePrefix is the top-level prefix of every archived artifact
	archivePrefix = "downloads"

	// Part size for multipart uploads (10MB)
	partSize = 10 * 1024 * 1024
)

// Storage archives produced artifacts to S3-compatible object storage
type Storage struct {
	client     *minio.Client
	bucketName string
	logger     *logging.Logger
}

// New creates a new storage client and makes sure the bucket exists
func New(ctx context.Context, cfg config.StorageConfig, logger *logging.Logger) (*Storage, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	// Ensure bucket exists
	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{
			Region: cfg.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &Storage{
		client:     client,
		bucketName: cfg.BucketName,
		logger:     logger,
	}, nil
}

// Archive uploads the artifact file and returns its object key. An object of the same
// size already stored under that key is not uploaded again.
func (s *Storage) Archive(ctx context.Context, artifact *models.Artifact) (string, error) {
	key := ObjectKey(artifact.VideoID, artifact.Filename)

	if info, err := s.client.StatObject(ctx, s.bucketName, key, minio.StatObjectOptions{}); err == nil && info.Size == artifact.Size {
		metrics.RecordStorageOperation("archive", "skipped")
		return key, nil
	}

	contentType := artifact.ContentType
	if contentType == "" {
		contentType = getContentType(artifact.Filename)
	}

	start := time.Now()
	_, err := s.client.FPutObject(ctx, s.bucketName, key, artifact.Path, minio.PutObjectOptions{
		ContentType: contentType,
		PartSize:    partSize,
		UserMetadata: map[string]string{
			"video-id": artifact.VideoID,
			"kind":     string(artifact.Kind),
		},
	})
	s.logger.LogStorageOperation("archive", s.bucketName, key, artifact.Size, time.Since(start), err)
	if err != nil {
		metrics.RecordStorageOperation("archive", "failed")
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	metrics.RecordStorageOperation("archive", "success")
	return key, nil
}

// ObjectKey returns downloads/<video_id>/<filename>
func ObjectKey(videoID, filename string) string {
	return path.Join(archivePrefix, videoID, filepath.Base(filename))
}

// getContentType returns the content type based on file extension
func getContentType(filePath string) string {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".3gp", ".3gpp":
		return "video/3gpp"
	case ".mkv":
		return "video/x-matroska"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	case ".opus":
		return "audio/opus"
	default:
		return "application/octet-stream"
	}
}
