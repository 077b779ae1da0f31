package main

import (
	"fmt"
	"time"

	"github.com/wavescore/wavescore/pkg/utils"
	"github.com/wavescore/wavescore/pkg/wavescore/rhythm"
	"github.com/wavescore/wavescore/pkg/wavescore/score"
)

// MaxUploadBytes caps multipart audio uploads. Long recordings should be
// downsampled or trimmed client-side before upload.
const MaxUploadBytes = 100 << 20

// TranscribeOptions are the per-request overrides accepted as form fields
// or JSON, all optional.
type TranscribeOptions struct {
	Title    string  `json:"title,omitempty"`
	TempoBPM float64 `json:"tempo_bpm,omitempty"`
	TimeSig  string  `json:"time_signature,omitempty"`
	Grid     int     `json:"grid,omitempty"`
	Flats    bool    `json:"flats,omitempty"`
	Save     bool    `json:"save,omitempty"`
}

// Validate rejects option values the pipeline cannot act on.
func (o *TranscribeOptions) Validate() error {
	if o.TempoBPM < 0 || o.TempoBPM > 400 {
		return fmt.Errorf("tempo_bpm out of range: %g", o.TempoBPM)
	}
	if o.Grid != 0 && !rhythm.ValidSubdivision(o.Grid) {
		return fmt.Errorf("unsupported grid %d: want a power of two between 4 and 64", o.Grid)
	}
	if o.TimeSig != "" {
		var beats, unit int
		if _, err := fmt.Sscanf(o.TimeSig, "%d/%d", &beats, &unit); err != nil {
			return fmt.Errorf("invalid time_signature %q (expected N/M)", o.TimeSig)
		}
		if sig := (score.TimeSignature{BeatsPerMeasure: beats, BeatUnit: unit}); !sig.Valid() {
			return fmt.Errorf("unsupported time_signature %q: beat unit must be a power of two between 1 and 16", o.TimeSig)
		}
	}
	return nil
}

// TranscribeYouTubeRequest is the request body for POST /api/scores/youtube
type TranscribeYouTubeRequest struct {
	URL     string            `json:"url"`
	Options TranscribeOptions `json:"options"`
}

// Validate checks if the request is valid
func (r *TranscribeYouTubeRequest) Validate() error {
	if r.URL == "" {
		return fmt.Errorf("url is required")
	}
	if !utils.IsRemoteURL(r.URL) {
		return fmt.Errorf("url must be an http(s) URL")
	}
	if utils.IsYouTubeURL(r.URL) {
		if _, err := utils.ExtractYouTubeID(r.URL); err != nil {
			return fmt.Errorf("unrecognized YouTube URL format: %v", err)
		}
	}
	return r.Options.Validate()
}

// TranscribeResponse is the response for a successful transcription
type TranscribeResponse struct {
	Title         string  `json:"title"`
	Measures      int     `json:"measures"`
	NoteCount     int     `json:"note_count"`
	AudioDuration float64 `json:"audio_duration_seconds"`
	MusicXML      string  `json:"musicxml"`
	SavedID       string  `json:"saved_id,omitempty"`
}

// ScoreDTO represents a stored score in API responses
type ScoreDTO struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Source     string    `json:"source"`
	TempoBPM   float64   `json:"tempo_bpm"`
	TimeSig    string    `json:"time_signature"`
	Measures   int       `json:"measures"`
	NoteCount  int       `json:"note_count"`
	DurationMs int       `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// ListScoresResponse is the response for GET /api/scores
type ListScoresResponse struct {
	Scores []ScoreDTO `json:"scores"`
	Count  int        `json:"count"`
}

// DeleteScoreResponse is the response for DELETE /api/scores/{id}
type DeleteScoreResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// MetricsResponse provides server health and library metrics
type MetricsResponse struct {
	Status       string `json:"status"`
	DatabasePath string `json:"database_path"`
	ScoreCount   int    `json:"score_count"`
	SampleRate   int    `json:"sample_rate"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
