package downloader

import (
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/therealutkarshpriyadarshi/ytfetch/pkg/models"
)

// ParseChoice turns a choice string into a Selection.
//
// Accepted forms, in order:
//   - option tokens: "itag:<n>" or "mp3:<high|medium|low>"
//   - any text containing "mp3" (case-insensitive): audio conversion, quality by
//     "high"/"medium" substring, Low otherwise
//   - a stream label "<resolution> | <kind> | <extension> | <size>"
func ParseChoice(choice string) (models.Selection, error) {
	trimmed := strings.TrimSpace(choice)
	if trimmed == "" {
		return models.Selection{}, &models.ValidationError{Field: "choice"}
	}
	lower := strings.ToLower(trimmed)

	if rest, ok := strings.CutPrefix(lower, itagTokenPrefix); ok {
		itag, err := strconv.Atoi(rest)
		if err != nil || itag <= 0 {
			return models.Selection{}, &models.SelectionError{Reason: models.ReasonQualityNotFound}
		}
		return models.Selection{Itag: itag}, nil
	}

	if strings.Contains(lower, "mp3") {
		return models.Selection{Audio: audioQualityFrom(lower)}, nil
	}

	parts := strings.Split(choice, labelDelimiter)
	if len(parts) < 3 {
		return models.Selection{}, &models.SelectionError{Reason: models.ReasonQualityNotFound}
	}

	return models.Selection{
		Resolution: parts[0],
		Extension:  parts[2],
	}, nil
}

func audioQualityFrom(lower string) models.AudioQuality {
	switch {
	case strings.Contains(lower, "high"):
		return models.AudioQualityHigh
	case strings.Contains(lower, "medium"):
		return models.AudioQualityMedium
	default:
		return models.AudioQualityLow
	}
}

// SelectStream resolves a non-audio-conversion selection against the upstream streams.
// Streams are searched in upstream order and the first match wins.
func SelectStream(streams []models.Stream, sel models.Selection) (models.Stream, error) {
	notFound := &models.SelectionError{Reason: models.ReasonQualityNotFound}

	if sel.Itag > 0 {
		s, ok := lo.Find(streams, func(s models.Stream) bool { return s.Itag == sel.Itag })
		if !ok {
			return models.Stream{}, notFound
		}
		return s, nil
	}

	if sel.IsAudioOnlyStream() {
		audio := lo.Filter(streams, func(s models.Stream, _ int) bool { return s.Kind() == models.StreamKindAudioOnly })
		if s, ok := lo.Find(audio, func(s models.Stream) bool { return s.BaseMimeType() == "audio/"+sel.Extension }); ok {
			return s, nil
		}
		if len(audio) > 0 {
			return audio[0], nil
		}
		return models.Stream{}, notFound
	}

	byResolution := lo.Filter(streams, func(s models.Stream, _ int) bool {
		return s.HasVideo && s.Resolution == sel.Resolution
	})
	if s, ok := lo.Find(byResolution, func(s models.Stream) bool { return s.BaseMimeType() == "video/"+sel.Extension }); ok {
		return s, nil
	}
	if len(byResolution) > 0 {
		return byResolution[0], nil
	}

	return models.Stream{}, notFound
}

// FirstAudioStream returns the first audio-only stream in upstream order
func FirstAudioStream(streams []models.Stream) (models.Stream, bool) {
	return lo.Find(streams, func(s models.Stream) bool { return s.Kind() == models.StreamKindAudioOnly })
}
