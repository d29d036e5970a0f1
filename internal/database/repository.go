package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/therealutkarshpriyadarshi/ytfetch/internal/logging"
	"github.com/therealutkarshpriyadarshi/ytfetch/pkg/models"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// Repository provides download history operations
type Repository struct {
	db     *DB
	logger *logging.Logger
}

// NewRepository creates a new repository
func NewRepository(db *DB, logger *logging.Logger) *Repository {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Repository{db: db, logger: logger}
}

// RecordDownload inserts a history record
func (r *Repository) RecordDownload(ctx context.Context, record *models.DownloadRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO downloads (id, video_id, title, choice, kind, filename, size, status, error_msg, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	start := time.Now()
	_, err := r.db.Pool.Exec(ctx, query,
		record.ID, record.VideoID, record.Title, record.Choice, string(record.Kind),
		record.Filename, record.Size, record.Status, record.ErrorMsg, record.DurationMs,
		record.CreatedAt,
	)
	r.logger.LogDatabaseOperation("INSERT downloads", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to record download: %w", err)
	}

	return nil
}

// ListDownloads returns the most recent history records, newest first.
// An empty videoID lists every video.
func (r *Repository) ListDownloads(ctx context.Context, videoID string, limit int) ([]*models.DownloadRecord, error) {
	query := `
		SELECT id, video_id, title, choice, kind, filename, size, status, error_msg, duration_ms, created_at
		FROM downloads
		WHERE ($1 = '' OR video_id = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`

	start := time.Now()
	rows, err := r.db.Pool.Query(ctx, query, videoID, clampLimit(limit))
	r.logger.LogDatabaseOperation("SELECT downloads", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query downloads: %w", err)
	}
	defer rows.Close()

	records := []*models.DownloadRecord{}
	for rows.Next() {
		var record models.DownloadRecord
		var kind string
		err := rows.Scan(
			&record.ID, &record.VideoID, &record.Title, &record.Choice, &kind,
			&record.Filename, &record.Size, &record.Status, &record.ErrorMsg,
			&record.DurationMs, &record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan download: %w", err)
		}
		record.Kind = models.ArtifactKind(kind)
		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate downloads: %w", err)
	}

	return records, nil
}

// clampLimit keeps limit in [1, maxHistoryLimit], defaulting non-positive values
func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultHistoryLimit
	case limit > maxHistoryLimit:
		return maxHistoryLimit
	default:
		return limit
	}
}
