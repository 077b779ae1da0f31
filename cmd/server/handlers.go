package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wavescore/wavescore/pkg/logger"
	"github.com/wavescore/wavescore/pkg/utils"
	"github.com/wavescore/wavescore/pkg/wavescore"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service wavescore.Service
	config  *ServerConfig
	log     wavescore.Logger
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	DBPath         string
	TempDir        string
	SampleRate     int
	AllowedOrigins []string
}

// NewServer creates a new server instance
func NewServer(service wavescore.Service, config *ServerConfig) *Server {
	return &Server{
		service: service,
		config:  config,
		log:     logger.GetLogger(),
	}
}

// serviceFor returns the service to run a transcription with. Requests that
// override pipeline settings get a transient service with its own DB handle;
// the returned cleanup closes it.
func (s *Server) serviceFor(opts TranscribeOptions) (wavescore.Service, func(), error) {
	if opts.TempoBPM == 0 && opts.TimeSig == "" && opts.Grid == 0 && !opts.Flats && opts.Title == "" {
		return s.service, func() {}, nil
	}

	svcOpts := []wavescore.Option{
		wavescore.WithDBPath(s.config.DBPath),
		wavescore.WithTempDir(s.config.TempDir),
		wavescore.WithSampleRate(s.config.SampleRate),
	}
	if opts.Title != "" {
		svcOpts = append(svcOpts, wavescore.WithTitle(opts.Title))
	}
	if opts.TempoBPM > 0 {
		svcOpts = append(svcOpts, wavescore.WithTempoBPM(opts.TempoBPM))
	}
	if opts.TimeSig != "" {
		var beats, unit int
		fmt.Sscanf(opts.TimeSig, "%d/%d", &beats, &unit)
		svcOpts = append(svcOpts, wavescore.WithTimeSignature(beats, unit))
	}
	if opts.Grid > 0 {
		svcOpts = append(svcOpts, wavescore.WithGridSubdivision(opts.Grid))
	}
	if opts.Flats {
		svcOpts = append(svcOpts, wavescore.WithSpelling(wavescore.SpellFlats))
	}

	svc, err := wavescore.NewService(svcOpts...)
	if err != nil {
		return nil, nil, err
	}
	return svc, func() { svc.Close() }, nil
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service": "WaveScore API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":            "GET /health",
			"metrics":           "GET /api/health/metrics",
			"scores":            "GET /api/scores",
			"transcribeFile":    "POST /api/scores",
			"transcribeYouTube": "POST /api/scores/youtube",
			"getScore":          "GET /api/scores/{id}",
			"getScoreMusicXML":  "GET /api/scores/{id}/musicxml",
			"deleteScore":       "DELETE /api/scores/{id}",
			"synthesize":        "POST /api/synthesize",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleMetrics handles GET /api/health/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	scores, err := s.service.ListScores()
	if err != nil {
		s.log.Errorf("Failed to get score count: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics")
		return
	}

	s.respondJSON(w, http.StatusOK, MetricsResponse{
		Status:       "healthy",
		DatabasePath: s.config.DBPath,
		ScoreCount:   len(scores),
		SampleRate:   s.config.SampleRate,
	})
}

// handleScores handles GET and POST /api/scores
func (s *Server) handleScores(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListScores(w, r)
	case http.MethodPost:
		s.handleTranscribeUpload(w, r)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleListScores handles GET /api/scores
func (s *Server) handleListScores(w http.ResponseWriter, r *http.Request) {
	scores, err := s.service.ListScores()
	if err != nil {
		s.log.Errorf("Failed to list scores: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve scores")
		return
	}

	dtos := make([]ScoreDTO, len(scores))
	for i, sc := range scores {
		dtos[i] = scoreDTO(&sc)
	}

	s.respondJSON(w, http.StatusOK, ListScoresResponse{
		Scores: dtos,
		Count:  len(dtos),
	})
}

func scoreDTO(sc *wavescore.StoredScore) ScoreDTO {
	return ScoreDTO{
		ID:         sc.ID,
		Title:      sc.Title,
		Source:     sc.Source,
		TempoBPM:   sc.TempoBPM,
		TimeSig:    sc.TimeSig,
		Measures:   sc.Measures,
		NoteCount:  sc.NoteCount,
		DurationMs: sc.DurationMs,
		CreatedAt:  sc.CreatedAt,
	}
}

// optionsFromForm reads TranscribeOptions out of multipart form fields.
func optionsFromForm(r *http.Request) TranscribeOptions {
	var opts TranscribeOptions
	opts.Title = r.FormValue("title")
	opts.TimeSig = r.FormValue("time_signature")
	fmt.Sscanf(r.FormValue("tempo_bpm"), "%g", &opts.TempoBPM)
	fmt.Sscanf(r.FormValue("grid"), "%d", &opts.Grid)
	opts.Flats = r.FormValue("flats") == "true"
	opts.Save = r.FormValue("save") == "true"
	return opts
}

// saveUploadedAudio writes the "audio" form file to a temp file and returns
// its path plus the original filename.
func (s *Server) saveUploadedAudio(r *http.Request) (string, string, error) {
	file, header, err := r.FormFile("audio")
	if err != nil {
		return "", "", fmt.Errorf("audio file is required: %w", err)
	}
	defer file.Close()

	tempFile := filepath.Join(s.config.TempDir, fmt.Sprintf("upload_%d_%s", time.Now().UnixNano(), filepath.Base(header.Filename)))
	out, err := os.Create(tempFile)
	if err != nil {
		return "", "", fmt.Errorf("creating temp file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		utils.DeleteFile(tempFile)
		return "", "", fmt.Errorf("saving upload: %w", err)
	}
	return tempFile, header.Filename, nil
}

// handleTranscribeUpload handles POST /api/scores (multipart file upload)
func (s *Server) handleTranscribeUpload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		s.log.Errorf("Failed to parse form: %v", err)
		s.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	opts := optionsFromForm(r)
	if err := opts.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	tempFile, filename, err := s.saveUploadedAudio(r)
	if err != nil {
		s.log.Errorf("Upload failed: %v", err)
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer utils.DeleteFile(tempFile)

	svc, cleanup, err := s.serviceFor(opts)
	if err != nil {
		s.log.Errorf("Failed to create service: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to configure transcription")
		return
	}
	defer cleanup()

	res, err := svc.TranscribeFile(ctx, tempFile)
	if err != nil {
		s.log.Errorf("Transcription failed: %v", err)
		s.respondTranscribeError(w, err)
		return
	}

	title := opts.Title
	if title == "" {
		title = strings.TrimSuffix(filename, filepath.Ext(filename))
	}
	res.Document.Title = title

	resp := TranscribeResponse{
		Title:         title,
		Measures:      res.Document.MeasureCount(),
		NoteCount:     res.Document.NoteCount(),
		AudioDuration: res.AudioDuration,
		MusicXML:      string(res.MusicXML),
	}
	if opts.Save {
		id, err := svc.SaveResult(res, title, "upload")
		if err != nil {
			s.log.Errorf("Failed to save score: %v", err)
			s.respondError(w, http.StatusInternalServerError, "Transcribed but failed to save score")
			return
		}
		resp.SavedID = id
	}

	s.log.Infof("Transcribed upload %s: %d measures, %d notes", filename, resp.Measures, resp.NoteCount)
	s.respondJSON(w, http.StatusOK, resp)
}

// handleTranscribeYouTube handles POST /api/scores/youtube
func (s *Server) handleTranscribeYouTube(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	var req TranscribeYouTubeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	svc, cleanup, err := s.serviceFor(req.Options)
	if err != nil {
		s.log.Errorf("Failed to create service: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to configure transcription")
		return
	}
	defer cleanup()

	res, title, err := svc.TranscribeRemote(ctx, req.URL)
	if err != nil {
		s.log.Errorf("YouTube transcription failed: %v", err)
		s.respondTranscribeError(w, err)
		return
	}
	if req.Options.Title != "" {
		title = req.Options.Title
		res.Document.Title = title
	}

	resp := TranscribeResponse{
		Title:         title,
		Measures:      res.Document.MeasureCount(),
		NoteCount:     res.Document.NoteCount(),
		AudioDuration: res.AudioDuration,
		MusicXML:      string(res.MusicXML),
	}
	if req.Options.Save {
		id, err := svc.SaveResult(res, title, "youtube")
		if err != nil {
			s.log.Errorf("Failed to save score: %v", err)
			s.respondError(w, http.StatusInternalServerError, "Transcribed but failed to save score")
			return
		}
		resp.SavedID = id
	}

	s.log.Infof("Transcribed YouTube %s: %d measures, %d notes", req.URL, resp.Measures, resp.NoteCount)
	s.respondJSON(w, http.StatusOK, resp)
}

// handleScore handles GET and DELETE /api/scores/{id} and
// GET /api/scores/{id}/musicxml
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/scores/")
	if rest == "youtube" {
		s.handleTranscribeYouTube(w, r)
		return
	}

	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		s.respondError(w, http.StatusBadRequest, "Score ID required")
		return
	}

	switch {
	case sub == "musicxml" && r.Method == http.MethodGet:
		s.handleScoreMusicXML(w, r, id)
	case sub == "" && r.Method == http.MethodGet:
		s.handleGetScore(w, r, id)
	case sub == "" && r.Method == http.MethodDelete:
		s.handleDeleteScore(w, r, id)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleGetScore handles GET /api/scores/{id}
func (s *Server) handleGetScore(w http.ResponseWriter, r *http.Request, id string) {
	sc, err := s.service.GetScoreByID(id)
	if err != nil {
		s.log.Warnf("Score not found: %s", id)
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("Score with ID %s not found", id))
		return
	}
	s.respondJSON(w, http.StatusOK, scoreDTO(sc))
}

// handleScoreMusicXML handles GET /api/scores/{id}/musicxml
func (s *Server) handleScoreMusicXML(w http.ResponseWriter, r *http.Request, id string) {
	sc, err := s.service.GetScoreByID(id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("Score with ID %s not found", id))
		return
	}

	w.Header().Set("Content-Type", "application/vnd.recordare.musicxml+xml")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sc.Title+".musicxml"))
	w.WriteHeader(http.StatusOK)
	w.Write(sc.MusicXML)
}

// handleDeleteScore handles DELETE /api/scores/{id}
func (s *Server) handleDeleteScore(w http.ResponseWriter, r *http.Request, id string) {
	sc, err := s.service.GetScoreByID(id)
	if err != nil {
		s.log.Warnf("Score not found for deletion: %s", id)
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("Score with ID %s not found", id))
		return
	}

	if err := s.service.DeleteScore(id); err != nil {
		s.log.Errorf("Failed to delete score %s: %v", id, err)
		s.respondError(w, http.StatusInternalServerError, "Failed to delete score")
		return
	}

	s.log.Infof("Deleted score: %s (ID: %s)", sc.Title, id)
	s.respondJSON(w, http.StatusOK, DeleteScoreResponse{
		Message: "Score deleted successfully",
		ID:      id,
	})
}

// handleSynthesize handles POST /api/synthesize: transcribes the uploaded
// audio and streams back a synthesized WAV preview of the score.
func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	opts := optionsFromForm(r)
	if err := opts.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	tempFile, filename, err := s.saveUploadedAudio(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer utils.DeleteFile(tempFile)

	svc, cleanup, err := s.serviceFor(opts)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "Failed to configure transcription")
		return
	}
	defer cleanup()

	res, err := svc.TranscribeFile(ctx, tempFile)
	if err != nil {
		s.log.Errorf("Transcription failed: %v", err)
		s.respondTranscribeError(w, err)
		return
	}

	wav, err := svc.Synthesize(res.Document)
	if err != nil {
		s.log.Errorf("Synthesis failed: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Synthesis failed")
		return
	}

	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", base+".synth.wav"))
	w.WriteHeader(http.StatusOK)
	w.Write(wav)
}

// respondTranscribeError maps pipeline failures to HTTP status codes.
// Malformed or unsupported audio is the client's fault; everything else
// is ours.
func (s *Server) respondTranscribeError(w http.ResponseWriter, err error) {
	var stage *wavescore.StageError
	if errors.As(err, &stage) {
		switch stage.Stage {
		case wavescore.StageIngest, wavescore.StageDecode:
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	s.respondError(w, http.StatusInternalServerError, "Transcription failed")
}
