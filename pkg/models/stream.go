package models

import (
	"strconv"
	"strings"
)

// Stream is a read-only view of one upstream rendition of a video
type Stream struct {
	Itag          int    `json:"itag"`
	MimeType      string `json:"mime_type"`
	Resolution    string `json:"resolution,omitempty"`
	Progressive   bool   `json:"progressive"`
	HasVideo      bool   `json:"has_video"`
	HasAudio      bool   `json:"has_audio"`
	ContentLength int64  `json:"content_length,omitempty"`
	Bitrate       int    `json:"bitrate,omitempty"`
	AudioChannels int    `json:"audio_channels,omitempty"`
}

// StreamKind classifies a stream by the tracks it carries
type StreamKind string

// StreamKind constants
const (
	StreamKindVideoAndAudio StreamKind = "video_and_audio"
	StreamKindVideoOnly     StreamKind = "video_only"
	StreamKindAudioOnly     StreamKind = "audio_only"
)

// Label returns the spelling used inside option labels
func (k StreamKind) Label() string {
	switch k {
	case StreamKindVideoAndAudio:
		return "video+audio"
	case StreamKindVideoOnly:
		return "video only"
	default:
		return "audio only"
	}
}

// Kind derives the stream kind: progressive first, then video, then audio
func (s Stream) Kind() StreamKind {
	switch {
	case s.Progressive:
		return StreamKindVideoAndAudio
	case s.HasVideo:
		return StreamKindVideoOnly
	default:
		return StreamKindAudioOnly
	}
}

// BaseMimeType strips codec parameters, e.g. `video/mp4; codecs="avc1"` -> video/mp4
func (s Stream) BaseMimeType() string {
	mime, _, _ := strings.Cut(s.MimeType, ";")
	return strings.ToLower(strings.TrimSpace(mime))
}

// Extension returns the MIME subtype, e.g. video/webm -> webm
func (s Stream) Extension() string {
	mime := s.BaseMimeType()
	if idx := strings.LastIndex(mime, "/"); idx >= 0 {
		return mime[idx+1:]
	}
	return mime
}

// Height parses the numeric part of the resolution, 0 for audio-only streams
func (s Stream) Height() int {
	res := strings.TrimSuffix(s.Resolution, "p")
	h, err := strconv.Atoi(res)
	if err != nil {
		return 0
	}
	return h
}
