package models

import (
	"fmt"
)

// UpstreamResolutionError is returned when the manifest for a video cannot be resolved
type UpstreamResolutionError struct {
	VideoID string
	Err     error
}

func (e *UpstreamResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve video %s: %v", e.VideoID, e.Err)
}

func (e *UpstreamResolutionError) Unwrap() error {
	return e.Err
}

// SelectionError is returned when a choice does not match any available stream
type SelectionError struct {
	Reason string
}

func (e *SelectionError) Error() string {
	return e.Reason
}

// Selection failure reasons
const (
	ReasonNoAudioStream   = "No audio stream available"
	ReasonQualityNotFound = "Selected quality not available"
)

// TranscodeError is returned when the audio conversion step fails
type TranscodeError struct {
	Err error
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("transcoding failed: %v", e.Err)
}

func (e *TranscodeError) Unwrap() error {
	return e.Err
}

// ValidationError is returned when a required request field is missing
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}
