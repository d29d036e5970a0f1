package transcoder

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/therealutkarshpriyadarshi/ytfetch/internal/tracing"
)

// AudioConvertOptions holds options for audio extraction and compression
type AudioConvertOptions struct {
	InputPath  string
	OutputPath string
	Bitrate    string // e.g. 320k
}

// ConvertAudio drops any video track and encodes the audio at the requested bitrate
func (f *FFmpeg) ConvertAudio(ctx context.Context, opts AudioConvertOptions, progressCB ProgressCallback) error {
	span, ctx := tracing.StartSpan(ctx, "transcoder.convert_audio")
	defer tracing.FinishSpan(span)
	tracing.SetTag(span, "bitrate", opts.Bitrate)

	if opts.InputPath == "" || opts.OutputPath == "" {
		return fmt.Errorf("input and output paths are required")
	}
	if opts.Bitrate == "" {
		opts.Bitrate = "128k"
	}

	// Duration is only needed for progress reporting
	var totalDuration float64
	if progressCB != nil {
		if d, err := f.ProbeDuration(ctx, opts.InputPath); err == nil {
			totalDuration = d
		}
	}

	cmd := exec.CommandContext(ctx, f.ffmpegPath, f.audioArgs(opts)...)

	var stderr bytes.Buffer
	cmd.Stdout = &progressWriter{totalDuration: totalDuration, cb: progressCB}
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		err = fmt.Errorf("audio conversion failed: %w, stderr: %s", err, stderr.String())
		tracing.LogError(span, err)
		return err
	}

	if progressCB != nil {
		progressCB(100)
	}

	return nil
}

func (f *FFmpeg) audioArgs(opts AudioConvertOptions) []string {
	return []string{
		"-y", // overwrite output
		"-i", opts.InputPath,
		"-vn", // No video
		"-c:a", f.audioCodec,
		"-b:a", opts.Bitrate,
		"-progress", "pipe:1",
		"-nostats",
		opts.OutputPath,
	}
}
