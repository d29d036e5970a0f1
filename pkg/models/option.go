package models

import (
	"fmt"
	"strings"
)

// AudioOnlyResolution is the resolution reported for streams without a video track
const AudioOnlyResolution = "Audio only"

// AudioQuality is one of the synthetic "convert to MP3" choices
type AudioQuality string

// AudioQuality constants
const (
	AudioQualityHigh   AudioQuality = "mp3_high"
	AudioQualityMedium AudioQuality = "mp3_medium"
	AudioQualityLow    AudioQuality = "mp3_low"
)

// AudioQualities lists the synthetic options in presentation order
var AudioQualities = []AudioQuality{AudioQualityHigh, AudioQualityMedium, AudioQualityLow}

// Bitrate returns the ffmpeg bitrate argument for the quality
func (q AudioQuality) Bitrate() string {
	switch q {
	case AudioQualityHigh:
		return "320k"
	case AudioQualityMedium:
		return "192k"
	default:
		return "128k"
	}
}

// Name returns the human-readable quality name used in labels and filenames
func (q AudioQuality) Name() string {
	switch q {
	case AudioQualityHigh:
		return "High"
	case AudioQualityMedium:
		return "Medium"
	default:
		return "Low"
	}
}

// Label returns the fixed synthetic option label
func (q AudioQuality) Label() string {
	return fmt.Sprintf("Convert to MP3 – %s Quality (%sbps)", q.Name(), q.Bitrate())
}

// Token returns the structured selection token for the quality
func (q AudioQuality) Token() string {
	return "mp3:" + strings.ToLower(q.Name())
}

// Option is one selectable download choice
type Option struct {
	ID            string `json:"id"`
	Label         string `json:"label"`
	Type          string `json:"type"`
	Resolution    string `json:"resolution,omitempty"`
	Extension     string `json:"extension,omitempty"`
	EstimatedSize string `json:"estimated_size,omitempty"`
	Itag          int    `json:"itag,omitempty"`
}

// Synthetic reports whether the option is an audio conversion rather than a real stream
func (o Option) Synthetic() bool {
	return strings.HasPrefix(o.Type, "mp3_")
}

// Listing is the enumeration result for one video
type Listing struct {
	VideoID string   `json:"video_id"`
	Title   string   `json:"title"`
	Choices []Option `json:"choices"`
}

// Selection is a parsed choice
type Selection struct {
	// Audio is set for synthetic audio conversions
	Audio AudioQuality

	Itag       int
	Resolution string
	Extension  string
}

// IsAudioConversion reports whether the selection is a synthetic MP3 conversion
func (s Selection) IsAudioConversion() bool {
	return s.Audio != ""
}

// IsAudioOnlyStream reports whether the selection targets an audio-only upstream stream
func (s Selection) IsAudioOnlyStream() bool {
	return s.Itag == 0 && strings.EqualFold(s.Resolution, AudioOnlyResolution)
}
