package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/ytfetch/internal/logging"
	"github.com/therealutkarshpriyadarshi/ytfetch/internal/middleware"
	"github.com/therealutkarshpriyadarshi/ytfetch/internal/workspace"
	"github.com/therealutkarshpriyadarshi/ytfetch/pkg/models"
)

// MockDownloader is a mock implementation of Downloader
type MockDownloader struct {
	mock.Mock
}

func (m *MockDownloader) Enumerate(ctx context.Context, videoID string) (*models.Listing, error) {
	args := m.Called(ctx, videoID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockDownloader) Fetch(ctx context.Context, ws *workspace.Workspace, videoID, choice string) (*models.Artifact, error) {
	args := m.Called(ctx, ws, videoID, choice)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Artifact), args.Error(1)
}

// MockHistory is a mock implementation of HistoryLister
type MockHistory struct {
	mock.Mock
}

func (m *MockHistory) ListDownloads(ctx context.Context, videoID string, limit int) ([]*models.DownloadRecord, error) {
	args := m.Called(ctx, videoID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.DownloadRecord), args.Error(1)
}

type testEnv struct {
	api        *API
	downloader *MockDownloader
	root       string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	root := t.TempDir()
	workspaces, err := workspace.NewManager(afero.NewOsFs(), root)
	require.NoError(t, err)

	d := new(MockDownloader)
	return &testEnv{
		api: &API{
			downloader: d,
			workspaces: workspaces,
			logger:     logging.NewNopLogger(),
		},
		downloader: d,
		root:       root,
	}
}

func (e *testEnv) serve(req *http.Request, opts routerOptions) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	setupRouter(e.api, opts).ServeHTTP(w, req)
	return w
}

func jsonRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

// fetchWrites makes the mocked Fetch write content into the request workspace
func fetchWrites(artifact *models.Artifact, content string) func(args mock.Arguments) {
	return func(args mock.Arguments) {
		ws := args.Get(1).(*workspace.Workspace)
		f, err := ws.Create(artifact.Filename)
		if err != nil {
			panic(err)
		}
		f.Write([]byte(content))
		f.Close()
		artifact.Path = ws.Path(artifact.Filename)
		artifact.Size = int64(len(content))
	}
}

func assertNoWorkspacesLeft(t *testing.T, root string) {
	t.Helper()

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

var testListing = &models.Listing{
	VideoID: "dQw4w9WgXcQ",
	Title:   "Never Gonna Give You Up",
	Choices: []models.Option{
		{ID: "itag:22", Label: "720p | video+audio | mp4 | 30.0 MB (est.)", Type: "video_and_audio", Resolution: "720p", Extension: "mp4", EstimatedSize: "30.0 MB (est.)", Itag: 22},
		{ID: "mp3:high", Label: "Convert to MP3 – High Quality (320kbps)", Type: "mp3_high"},
	},
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)

	w := env.serve(httptest.NewRequest("GET", "/health", nil), routerOptions{})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestHealthCheckSideChannels(t *testing.T) {
	env := newTestEnv(t)
	env.api.checks = map[string]HealthCheck{
		"cache":    func(ctx context.Context) error { return nil },
		"database": func(ctx context.Context) error { return errors.New("connection refused") },
	}

	w := env.serve(httptest.NewRequest("GET", "/health", nil), routerOptions{})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"degraded","checks":{"cache":"ok","database":"connection refused"}}`, w.Body.String())

	env.api.checks["database"] = func(ctx context.Context) error {
		_, hasDeadline := ctx.Deadline()
		if !hasDeadline {
			return errors.New("check without deadline")
		}
		return nil
	}
	w = env.serve(httptest.NewRequest("GET", "/health", nil), routerOptions{})
	assert.JSONEq(t, `{"status":"ok","checks":{"cache":"ok","database":"ok"}}`, w.Body.String())
}

func TestRoot(t *testing.T) {
	env := newTestEnv(t)

	w := env.serve(httptest.NewRequest("POST", "/", nil), routerOptions{})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decodeBody(t, w)["message"], "/get_choices")

	w = env.serve(httptest.NewRequest("GET", "/", nil), routerOptions{})
	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Len(t, body["audio_qualities"], 3)
	assert.NotContains(t, w.Body.String(), "/history")
}

func TestGetChoicesPost(t *testing.T) {
	env := newTestEnv(t)
	env.downloader.On("Enumerate", mock.Anything, "dQw4w9WgXcQ").Return(testListing, nil)

	w := env.serve(jsonRequest(t, "POST", "/get_choices", VideoRequest{VideoID: "dQw4w9WgXcQ"}), routerOptions{})

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "Never Gonna Give You Up", body["title"])
	choices := body["choices"].([]interface{})
	require.Len(t, choices, 2)
	first := choices[0].(map[string]interface{})
	assert.Equal(t, "720p | video+audio | mp4 | 30.0 MB (est.)", first["label"])
	assert.Equal(t, "itag:22", first["id"])
}

func TestGetChoicesQuery(t *testing.T) {
	env := newTestEnv(t)
	env.downloader.On("Enumerate", mock.Anything, "dQw4w9WgXcQ").Return(testListing, nil)

	w := env.serve(httptest.NewRequest("GET", "/get_choices?video_id=dQw4w9WgXcQ", nil), routerOptions{})

	assert.Equal(t, http.StatusOK, w.Code)
	env.downloader.AssertExpectations(t)
}

func TestGetChoicesValidation(t *testing.T) {
	env := newTestEnv(t)

	w := env.serve(httptest.NewRequest("GET", "/get_choices", nil), routerOptions{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"video_id is required"}`, w.Body.String())

	w = env.serve(jsonRequest(t, "POST", "/get_choices", map[string]string{}), routerOptions{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.serve(httptest.NewRequest("POST", "/get_choices", bytes.NewBufferString("{")), routerOptions{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.downloader.AssertNotCalled(t, "Enumerate", mock.Anything, mock.Anything)
}

func TestGetChoicesUpstreamError(t *testing.T) {
	env := newTestEnv(t)
	upstreamErr := &models.UpstreamResolutionError{VideoID: "private1", Err: errors.New("video is private")}
	env.downloader.On("Enumerate", mock.Anything, "private1").Return(nil, upstreamErr)

	w := env.serve(httptest.NewRequest("GET", "/get_choices?video_id=private1", nil), routerOptions{})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, upstreamErr.Error(), decodeBody(t, w)["error"])
}

func TestDownloadPost(t *testing.T) {
	env := newTestEnv(t)
	artifact := &models.Artifact{VideoID: "dQw4w9WgXcQ", Filename: "Never Gonna Give You Up (High).mp3", ContentType: "audio/mpeg", Kind: models.ArtifactKindAudio}
	choice := "Convert to MP3 – High Quality (320kbps)"
	env.downloader.On("Fetch", mock.Anything, mock.AnythingOfType("*workspace.Workspace"), "dQw4w9WgXcQ", choice).
		Run(fetchWrites(artifact, "mp3-bytes")).
		Return(artifact, nil)

	w := env.serve(jsonRequest(t, "POST", "/download", DownloadRequest{VideoID: "dQw4w9WgXcQ", Choice: choice}), routerOptions{})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "mp3-bytes", w.Body.String())
	assert.Equal(t, "audio/mpeg", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="Never Gonna Give You Up (High).mp3"`)
	assertNoWorkspacesLeft(t, env.root)
}

func TestDownloadQuery(t *testing.T) {
	env := newTestEnv(t)
	artifact := &models.Artifact{VideoID: "dQw4w9WgXcQ", Filename: "clip.mp4", ContentType: "video/mp4"}
	env.downloader.On("Fetch", mock.Anything, mock.Anything, "dQw4w9WgXcQ", "itag:22").
		Run(fetchWrites(artifact, "video")).
		Return(artifact, nil)

	w := env.serve(httptest.NewRequest("GET", "/download?video_id=dQw4w9WgXcQ&choice=itag:22", nil), routerOptions{})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "video", w.Body.String())
	assert.Equal(t, "video/mp4", w.Header().Get("Content-Type"))
	assertNoWorkspacesLeft(t, env.root)
}

func TestDownloadValidation(t *testing.T) {
	env := newTestEnv(t)

	w := env.serve(httptest.NewRequest("GET", "/download?video_id=abc", nil), routerOptions{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"choice is required"}`, w.Body.String())

	w = env.serve(jsonRequest(t, "POST", "/download", DownloadRequest{Choice: "mp3"}), routerOptions{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"video_id is required"}`, w.Body.String())

	env.downloader.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDownloadErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"selection", &models.SelectionError{Reason: models.ReasonNoAudioStream}, "No audio stream available"},
		{"quality", &models.SelectionError{Reason: models.ReasonQualityNotFound}, "Selected quality not available"},
		{"transcode", &models.TranscodeError{Err: errors.New("exit status 1")}, "transcoding failed: exit status 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.downloader.On("Fetch", mock.Anything, mock.Anything, "abc", "mp3 low").Return(nil, tt.err)

			w := env.serve(jsonRequest(t, "POST", "/download", DownloadRequest{VideoID: "abc", Choice: "mp3 low"}), routerOptions{})

			assert.Equal(t, http.StatusInternalServerError, w.Code)
			assert.Equal(t, tt.want, decodeBody(t, w)["error"])
			assertNoWorkspacesLeft(t, env.root)
		})
	}
}

func TestHistory(t *testing.T) {
	env := newTestEnv(t)
	history := new(MockHistory)
	env.api.history = history

	records := []*models.DownloadRecord{{ID: "1", VideoID: "abc", Choice: "itag:22", Status: models.DownloadStatusCompleted}}
	history.On("ListDownloads", mock.Anything, "abc", 5).Return(records, nil)

	w := env.serve(httptest.NewRequest("GET", "/history?video_id=abc&limit=5", nil), routerOptions{})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decodeBody(t, w)["count"])

	w = env.serve(httptest.NewRequest("GET", "/history?limit=many", nil), routerOptions{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHistoryDisabled(t *testing.T) {
	env := newTestEnv(t)

	w := env.serve(httptest.NewRequest("GET", "/history", nil), routerOptions{})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)
	env.downloader.On("Enumerate", mock.Anything, "abc").Return(testListing, nil)
	opts := routerOptions{JWTSecret: "s3cret"}

	w := env.serve(httptest.NewRequest("GET", "/get_choices?video_id=abc", nil), opts)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.serve(httptest.NewRequest("GET", "/health", nil), opts)
	assert.Equal(t, http.StatusOK, w.Code)

	token, err := middleware.GenerateToken("s3cret", "ops", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest("GET", "/get_choices?video_id=abc", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = env.serve(req, opts)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimited(t *testing.T) {
	env := newTestEnv(t)
	env.downloader.On("Enumerate", mock.Anything, "abc").Return(testListing, nil)
	router := setupRouter(env.api, routerOptions{RateLimiter: middleware.NewRateLimiter(1, 1)})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/get_choices?video_id=abc", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/get_choices?video_id=abc", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestSweepWorkspaces(t *testing.T) {
	fs := afero.NewMemMapFs()
	manager, err := workspace.NewManager(fs, "/work")
	require.NoError(t, err)

	// left behind by a crashed process
	stale := "/work/req-crashed"
	require.NoError(t, fs.MkdirAll(stale, 0o755))
	fresh, err := manager.Acquire()
	require.NoError(t, err)

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, fs.Chtimes(stale, old, old))
	require.NoError(t, fs.Chtimes(fresh.Dir(), old, old))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sweepWorkspaces(ctx, manager, time.Hour, 0, logging.NewNopLogger())

	exists, err := afero.DirExists(fs, stale)
	require.NoError(t, err)
	assert.False(t, exists)

	// old but still held by a request
	exists, err = afero.DirExists(fs, fresh.Dir())
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, "/work", filepath.Dir(fresh.Dir()))
}
