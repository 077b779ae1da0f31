package wavescore

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/wavescore/wavescore/pkg/logger"
	"github.com/wavescore/wavescore/pkg/utils"
	"github.com/wavescore/wavescore/pkg/wavescore/audio"
	"github.com/wavescore/wavescore/pkg/wavescore/pitch"
	"github.com/wavescore/wavescore/pkg/wavescore/rhythm"
	"github.com/wavescore/wavescore/pkg/wavescore/score"
	"github.com/wavescore/wavescore/pkg/wavescore/segment"
	"github.com/wavescore/wavescore/pkg/wavescore/storage"
	"github.com/wavescore/wavescore/pkg/wavescore/synth"
)

// ErrScoreNotFound is returned when a library lookup misses.
var ErrScoreNotFound = storage.ErrScoreNotFound

// transcriptionService is the default implementation of the Service interface.
type transcriptionService struct {
	storage Storage
	log     Logger
	config  *Config
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if !rhythm.ValidSubdivision(cfg.GridSubdivision) {
		return nil, fmt.Errorf("unsupported grid subdivision %d: want a power of two between 4 and 64", cfg.GridSubdivision)
	}
	if !cfg.TimeSig.Valid() {
		return nil, fmt.Errorf("unsupported time signature %d/%d: beat unit must be a power of two between 1 and 16",
			cfg.TimeSig.BeatsPerMeasure, cfg.TimeSig.BeatUnit)
	}

	// Set default logger if none provided
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}

	// Create or use provided storage
	var stor Storage
	var err error
	if cfg.Storage != nil {
		stor = cfg.Storage
	} else {
		stor, err = NewSQLiteStorage(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}

	return &transcriptionService{
		storage: stor,
		log:     cfg.Logger,
		config:  cfg,
	}, nil
}

// Transcribe runs the full pipeline on an audio source and returns the
// structured score plus its MusicXML and MIDI serializations. The run is
// deterministic: identical source bytes and configuration always produce
// identical output bytes.
func (s *transcriptionService) Transcribe(ctx context.Context, src audio.Source) (*Result, error) {
	data, err := audio.Resolve(ctx, src, s.config.TempDir, s.config.SampleRate)
	if err != nil {
		return nil, stageErr(StageIngest, err)
	}

	wave, err := audio.DecodeAtRate(data, s.config.SampleRate)
	if err != nil {
		return nil, stageErr(StageDecode, err)
	}
	s.log.Infof("Decoded %.2fs of audio at %d Hz", wave.Duration(), wave.SampleRate)

	frames := pitch.Estimate(wave, s.config.FrameSize, s.config.HopSize)
	s.log.Debugf("Analyzed %d frames", len(frames))

	events := segment.Notes(frames, s.config.Segment)
	s.log.Infof("Segmented %d note events", len(events))

	quantized := rhythm.Quantize(events, s.config.TempoBPM, s.config.TimeSig.BeatsPerMeasure, s.config.GridSubdivision)

	buildCfg := score.BuildConfig{
		Title:           s.config.Title,
		TempoBPM:        s.config.TempoBPM,
		TimeSig:         s.config.TimeSig,
		GridSubdivision: s.config.GridSubdivision,
		Spelling:        s.config.Spelling,
		SplitPitch:      score.MiddleC,
		MinBeats:        beatsCovering(wave.Duration(), s.config.TempoBPM),
	}
	doc, err := score.Build(quantized, buildCfg)
	if err != nil {
		return nil, stageErr(StageBuild, err)
	}

	xmlBytes, err := doc.MusicXML()
	if err != nil {
		return nil, stageErr(StageSerialize, err)
	}
	midiBytes, err := doc.SMF()
	if err != nil {
		return nil, stageErr(StageSerialize, err)
	}

	s.log.Infof("Built score: %d measures, %d notes", doc.MeasureCount(), doc.NoteCount())
	return &Result{
		Document:      doc,
		MusicXML:      xmlBytes,
		MIDI:          midiBytes,
		Events:        events,
		Quantized:     quantized,
		AudioDuration: wave.Duration(),
	}, nil
}

// TranscribeFile transcribes a local audio file. Non-WAV formats are accepted
// when ffmpeg is installed; WAV files go straight to the decoder.
func (s *transcriptionService) TranscribeFile(ctx context.Context, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, stageErr(StageIngest, fmt.Errorf("reading %s: %w", path, err))
	}
	if _, err := audio.Decode(data); err == nil {
		return s.Transcribe(ctx, audio.Upload{Data: data})
	}

	// Not directly decodable, run it through ffmpeg first.
	wavPath, err := audio.ConvertToMonoWAV(ctx, path, s.config.TempDir, audio.ConvertConfig{
		SampleRate: s.config.SampleRate,
	})
	if err != nil {
		return nil, stageErr(StageIngest, err)
	}
	defer os.Remove(wavPath)

	wavData, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, stageErr(StageIngest, err)
	}
	return s.Transcribe(ctx, audio.Upload{Data: wavData})
}

// TranscribeRemote downloads audio from a streaming URL, transcribes it, and
// returns the result together with the remote title.
func (s *transcriptionService) TranscribeRemote(ctx context.Context, url string) (*Result, string, error) {
	title := s.config.Title
	if info, err := audio.FetchRemoteInfo(ctx, url); err != nil {
		s.log.Warnf("Could not fetch remote metadata: %v", err)
	} else if info.Title != "" {
		title = info.Title
		if artist := info.BestArtist(); artist != "" {
			title = fmt.Sprintf("%s - %s", artist, info.Title)
		}
	}

	provider := "generic"
	if utils.IsYouTubeURL(url) {
		provider = "youtube"
	}
	res, err := s.Transcribe(ctx, audio.RemoteFetch{URL: url, Provider: provider})
	if err != nil {
		return nil, "", err
	}
	res.Document.Title = title
	return res, title, nil
}

// Synthesize renders a score document back to mono PCM WAV bytes.
func (s *transcriptionService) Synthesize(doc *score.Document) ([]byte, error) {
	wave, err := synth.Render(doc, s.config.SampleRate)
	if err != nil {
		return nil, stageErr(StageSynthesize, err)
	}
	return audio.Encode(wave), nil
}

// SaveResult stores a transcription in the score library and returns its ID.
func (s *transcriptionService) SaveResult(res *Result, title, source string) (string, error) {
	if title == "" {
		title = res.Document.Title
	}
	return s.storage.SaveScore(&StoredScore{
		Title:      title,
		Source:     source,
		TempoBPM:   res.Document.TempoBPM,
		TimeSig:    fmt.Sprintf("%d/%d", res.Document.TimeSig.BeatsPerMeasure, res.Document.TimeSig.BeatUnit),
		Measures:   res.Document.MeasureCount(),
		NoteCount:  res.Document.NoteCount(),
		DurationMs: int(res.AudioDuration * 1000),
		MusicXML:   res.MusicXML,
		CreatedAt:  time.Now().UTC(),
	})
}

func (s *transcriptionService) GetScoreByID(id string) (*StoredScore, error) {
	return s.storage.GetScoreByID(id)
}

func (s *transcriptionService) ListScores() ([]StoredScore, error) {
	return s.storage.ListScores()
}

func (s *transcriptionService) DeleteScore(id string) error {
	return s.storage.DeleteScoreByID(id)
}

// Close releases all resources held by the service.
func (s *transcriptionService) Close() error {
	return s.storage.Close()
}

// beatsCovering converts an audio duration to the beat count it spans, so
// silent input still yields enough rest measures to cover the recording.
func beatsCovering(seconds, tempoBPM float64) *big.Rat {
	if seconds <= 0 || tempoBPM <= 0 {
		return nil
	}
	r := new(big.Rat).SetFloat64(seconds * tempoBPM / 60.0)
	if r == nil || r.Sign() <= 0 {
		return nil
	}
	return r
}
