package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/therealutkarshpriyadarshi/ytfetch/internal/logging"
	"github.com/therealutkarshpriyadarshi/ytfetch/internal/workspace"
	"github.com/therealutkarshpriyadarshi/ytfetch/pkg/models"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck reports whether an optional dependency is reachable
type HealthCheck func(ctx context.Context) error

// Downloader enumerates and fetches download options
type Downloader interface {
	Enumerate(ctx context.Context, videoID string) (*models.Listing, error)
	Fetch(ctx context.Context, ws *workspace.Workspace, videoID, choice string) (*models.Artifact, error)
}

// HistoryLister reads the download history
type HistoryLister interface {
	ListDownloads(ctx context.Context, videoID string, limit int) ([]*models.DownloadRecord, error)
}

// API holds the HTTP handlers
type API struct {
	downloader Downloader
	workspaces *workspace.Manager
	history    HistoryLister
	checks     map[string]HealthCheck
	logger     *logging.Logger
}

// VideoRequest is the body of POST /get_choices
type VideoRequest struct {
	VideoID string `json:"video_id"`
}

// DownloadRequest is the body of POST /download
type DownloadRequest struct {
	VideoID string `json:"video_id"`
	Choice  string `json:"choice"`
}

// postRoot returns the usage message
// POST /
func (api *API) postRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "YouTube Downloader API running! Use /get_choices and /download with POST JSON body.",
	})
}

// getRoot returns a capability summary
// GET /
func (api *API) getRoot(c *gin.Context) {
	qualities := make([]string, 0, len(models.AudioQualities))
	for _, q := range models.AudioQualities {
		qualities = append(qualities, q.Label())
	}

	endpoints := []string{
		"GET /get_choices?video_id=<id>",
		"GET /download?video_id=<id>&choice=<label or id>",
		"POST /get_choices {video_id}",
		"POST /download {video_id, choice}",
		"GET /health",
	}
	if api.history != nil {
		endpoints = append(endpoints, "GET /history?video_id=<id>&limit=<n>")
	}

	c.JSON(http.StatusOK, gin.H{
		"name":            "ytfetch",
		"description":     "Enumerate YouTube download formats and fetch a stream or an MP3 conversion",
		"endpoints":       endpoints,
		"audio_qualities": qualities,
	})
}

// GET /health
// An unreachable side channel reports "degraded". Downloads keep working without it.
func (api *API) healthCheck(c *gin.Context) {
	if len(api.checks) == 0 {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status := "ok"
	checks := make(map[string]string, len(api.checks))
	for name, check := range api.checks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = "degraded"
			continue
		}
		checks[name] = "ok"
	}

	c.JSON(http.StatusOK, gin.H{"status": status, "checks": checks})
}

// POST /get_choices
func (api *API) postChoices(c *gin.Context) {
	var req VideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	api.choices(c, req.VideoID)
}

// GET /get_choices
func (api *API) getChoices(c *gin.Context) {
	api.choices(c, c.Query("video_id"))
}

func (api *API) choices(c *gin.Context, videoID string) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		api.respondError(c, &models.ValidationError{Field: "video_id"})
		return
	}

	listing, err := api.downloader.Enumerate(c.Request.Context(), videoID)
	if err != nil {
		api.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"title":   listing.Title,
		"choices": listing.Choices,
	})
}

// POST /download
func (api *API) postDownload(c *gin.Context) {
	var req DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	api.download(c, req.VideoID, req.Choice)
}

// GET /download
func (api *API) getDownload(c *gin.Context) {
	api.download(c, c.Query("video_id"), c.Query("choice"))
}

// download fetches into a fresh workspace and streams the artifact back. The workspace is
// removed once the response has been written.
func (api *API) download(c *gin.Context, videoID, choice string) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		api.respondError(c, &models.ValidationError{Field: "video_id"})
		return
	}
	if strings.TrimSpace(choice) == "" {
		api.respondError(c, &models.ValidationError{Field: "choice"})
		return
	}

	ws, err := api.workspaces.Acquire()
	if err != nil {
		api.respondError(c, err)
		return
	}
	defer func() {
		if err := ws.Close(); err != nil {
			api.logger.WithError(err).Warnf("Failed to remove workspace %s", ws.Dir())
		}
	}()

	artifact, err := api.downloader.Fetch(c.Request.Context(), ws, videoID, choice)
	if err != nil {
		api.respondError(c, err)
		return
	}

	if artifact.ContentType != "" {
		c.Header("Content-Type", artifact.ContentType)
	}
	c.FileAttachment(artifact.Path, artifact.Filename)
}

// GET /history
func (api *API) listHistory(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
		return
	}

	records, err := api.history.ListDownloads(c.Request.Context(), c.Query("video_id"), limit)
	if err != nil {
		api.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"downloads": records,
		"count":     len(records),
	})
}

// respondError maps validation failures to 400 and everything else to 500 with the raw message
func (api *API) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var validationErr *models.ValidationError
	if errors.As(err, &validationErr) {
		status = http.StatusBadRequest
	}

	if status >= http.StatusInternalServerError {
		api.logger.ErrorWithErr(fmt.Sprintf("Request %s %s failed", c.Request.Method, c.Request.URL.Path), err)
	}

	c.JSON(status, gin.H{"error": err.Error()})
}
