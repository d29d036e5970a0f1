package models

import (
	"time"
)

// ArtifactKind tells whether an artifact is an original stream or a transcoded file
type ArtifactKind string

// ArtifactKind constants
const (
	ArtifactKindStream ArtifactKind = "stream"
	ArtifactKindAudio  ArtifactKind = "audio"
)

// Artifact is a file produced by a fetch, living inside the request workspace
type Artifact struct {
	VideoID     string       `json:"video_id"`
	Title       string       `json:"title"`
	Kind        ArtifactKind `json:"kind"`
	Path        string       `json:"-"`
	Filename    string       `json:"filename"`
	ContentType string       `json:"content_type"`
	Size        int64        `json:"size"`
}

// DownloadStatus constants
const (
	DownloadStatusCompleted = "completed"
	DownloadStatusFailed    = "failed"
)

// DownloadRecord is one entry of the download history
type DownloadRecord struct {
	ID         string       `json:"id" db:"id"`
	VideoID    string       `json:"video_id" db:"video_id"`
	Title      string       `json:"title,omitempty" db:"title"`
	Choice     string       `json:"choice" db:"choice"`
	Kind       ArtifactKind `json:"kind,omitempty" db:"kind"`
	Filename   string       `json:"filename,omitempty" db:"filename"`
	Size       int64        `json:"size" db:"size"`
	Status     string       `json:"status" db:"status"`
	ErrorMsg   string       `json:"error_msg,omitempty" db:"error_msg"`
	DurationMs int64        `json:"duration_ms" db:"duration_ms"`
	CreatedAt  time.Time    `json:"created_at" db:"created_at"`
}

// DownloadEvent is published after every fetch attempt
type DownloadEvent struct {
	Event     string       `json:"event"`
	VideoID   string       `json:"video_id"`
	Choice    string       `json:"choice"`
	Kind      ArtifactKind `json:"kind,omitempty"`
	Filename  string       `json:"filename,omitempty"`
	Size      int64        `json:"size"`
	Status    string       `json:"status"`
	Error     string       `json:"error,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// Event names
const (
	EventDownloadCompleted = "download.completed"
	EventDownloadFailed    = "download.failed"
)
