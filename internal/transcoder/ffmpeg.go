package transcoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"sync"
)

// FFmpeg wraps FFmpeg operations
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	audioCodec  string
}

// NewFFmpeg creates a new FFmpeg instance
func NewFFmpeg(ffmpegPath, ffprobePath, audioCodec string) *FFmpeg {
	if audioCodec == "" {
		audioCodec = "libmp3lame"
	}
	return &FFmpeg{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		audioCodec:  audioCodec,
	}
}

// ProbeResult holds the subset of ffprobe output we use
type ProbeResult struct {
	Format FormatInfo `json:"format"`
}

// FormatInfo holds format information
type FormatInfo struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

// Probe extracts container metadata from a media file
func (f *FFmpeg) Probe(ctx context.Context, inputPath string) (*ProbeResult, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		inputPath,
	}

	cmd := exec.CommandContext(ctx, f.ffprobePath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w, stderr: %s", err, stderr.String())
	}

	var result ProbeResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	return &result, nil
}

// ProbeDuration returns the media duration in seconds
func (f *FFmpeg) ProbeDuration(ctx context.Context, inputPath string) (float64, error) {
	result, err := f.Probe(ctx, inputPath)
	if err != nil {
		return 0, err
	}

	duration, err := strconv.ParseFloat(result.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", result.Format.Duration, err)
	}

	return duration, nil
}

// ProgressCallback is called with progress updates in percent
type ProgressCallback func(progress float64)

var progressRegex = regexp.MustCompile(`out_time_ms=(\d+)`)

// progressWriter parses `-progress pipe:1` output line by line
type progressWriter struct {
	mu            sync.Mutex
	pending       []byte
	totalDuration float64
	cb            ProgressCallback
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending = append(w.pending, p...)
	for {
		idx := bytes.IndexByte(w.pending, '\n')
		if idx < 0 {
			break
		}
		w.parseLine(string(w.pending[:idx]))
		w.pending = w.pending[idx+1:]
	}

	return len(p), nil
}

func (w *progressWriter) parseLine(line string) {
	if w.cb == nil || w.totalDuration <= 0 {
		return
	}

	matches := progressRegex.FindStringSubmatch(line)
	if len(matches) < 2 {
		return
	}

	timeMs, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return
	}

	// ffmpeg reports out_time_ms in microseconds
	currentTime := timeMs / 1000000.0
	progress := (currentTime / w.totalDuration) * 100
	if progress > 100 {
		progress = 100
	}
	w.cb(progress)
}
