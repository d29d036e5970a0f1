package downloader

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/therealutkarshpriyadarshi/ytfetch/pkg/models"
)

const (
	// compressionFactor scales the original size into a rough MP3/re-encode estimate
	compressionFactor = 0.6
	bytesPerMB        = 1048576
	unknownSize       = "?"
	labelDelimiter    = " | "
	itagTokenPrefix   = "itag:"
)

// BuildOptions formats every stream into an option, ordered by descending resolution, and
// appends the three synthetic audio conversions.
func BuildOptions(streams []models.Stream) []models.Option {
	ordered := make([]models.Stream, len(streams))
	copy(ordered, streams)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Height() > ordered[j].Height()
	})

	options := make([]models.Option, 0, len(ordered)+len(models.AudioQualities))
	for _, s := range ordered {
		options = append(options, StreamOption(s))
	}
	return append(options, SyntheticOptions()...)
}

// StreamOption formats a single upstream stream
func StreamOption(s models.Stream) models.Option {
	resolution := s.Resolution
	if !s.HasVideo || resolution == "" {
		resolution = models.AudioOnlyResolution
	}
	kind := s.Kind()
	ext := s.Extension()
	size := EstimateSize(s.ContentLength)

	return models.Option{
		ID:            itagTokenPrefix + strconv.Itoa(s.Itag),
		Label:         FormatLabel(resolution, kind, ext, size),
		Type:          string(kind),
		Resolution:    resolution,
		Extension:     ext,
		EstimatedSize: size,
		Itag:          s.Itag,
	}
}

// SyntheticOptions returns the fixed audio conversion options in High, Medium, Low order
func SyntheticOptions() []models.Option {
	options := make([]models.Option, 0, len(models.AudioQualities))
	for _, q := range models.AudioQualities {
		options = append(options, models.Option{
			ID:    q.Token(),
			Label: q.Label(),
			Type:  string(q),
		})
	}
	return options
}

// FormatLabel renders "<resolution> | <kind> | <extension> | <estimated size>"
func FormatLabel(resolution string, kind models.StreamKind, ext, size string) string {
	return strings.Join([]string{resolution, kind.Label(), ext, size}, labelDelimiter)
}

// EstimateSize reports 60% of the stream size as "<x> MB (est.)", or "?" when unknown.
// The figure is a heuristic, never a measurement.
func EstimateSize(contentLength int64) string {
	if contentLength <= 0 {
		return unknownSize
	}

	sizeMB := round2(float64(contentLength) / bytesPerMB)
	if sizeMB == 0 {
		return unknownSize
	}

	return fmt.Sprintf("%s MB (est.)", formatMB(round2(sizeMB*compressionFactor)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// formatMB prints the shortest decimal form with at least one fractional digit: 30 -> "30.0"
func formatMB(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
