package wavescore

import (
	"github.com/wavescore/wavescore/pkg/wavescore/audio"
	"github.com/wavescore/wavescore/pkg/wavescore/pitch"
	"github.com/wavescore/wavescore/pkg/wavescore/score"
	"github.com/wavescore/wavescore/pkg/wavescore/segment"
)

// Re-exported so callers configuring the service don't need the score package.
const (
	SpellSharps = score.SpellSharps
	SpellFlats  = score.SpellFlats
)

type Config struct {
	DBPath     string
	TempDir    string
	SampleRate int

	FrameSize int
	HopSize   int
	Segment   segment.Config

	Title           string
	TempoBPM        float64
	TimeSig         score.TimeSignature
	GridSubdivision int
	Spelling        score.Spelling

	Logger  Logger
	Storage Storage
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

func WithTempDir(dir string) Option {
	return func(c *Config) {
		c.TempDir = dir
	}
}

func WithSampleRate(rate int) Option {
	return func(c *Config) {
		c.SampleRate = rate
	}
}

func WithFrameSize(frameSize, hopSize int) Option {
	return func(c *Config) {
		c.FrameSize = frameSize
		c.HopSize = hopSize
	}
}

func WithTitle(title string) Option {
	return func(c *Config) {
		c.Title = title
	}
}

func WithTempoBPM(bpm float64) Option {
	return func(c *Config) {
		c.TempoBPM = bpm
	}
}

func WithTimeSignature(beats, unit int) Option {
	return func(c *Config) {
		c.TimeSig = score.TimeSignature{BeatsPerMeasure: beats, BeatUnit: unit}
	}
}

func WithGridSubdivision(grid int) Option {
	return func(c *Config) {
		c.GridSubdivision = grid
	}
}

func WithSpelling(sp score.Spelling) Option {
	return func(c *Config) {
		c.Spelling = sp
	}
}

func WithSegmentConfig(sc segment.Config) Option {
	return func(c *Config) {
		c.Segment = sc
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithStorage(storage Storage) Option {
	return func(c *Config) {
		c.Storage = storage
	}
}

func defaultConfig() *Config {
	return &Config{
		DBPath:          "wavescore.sqlite3",
		TempDir:         "/tmp",
		SampleRate:      audio.DefaultSampleRate,
		FrameSize:       pitch.DefaultFrameSize,
		HopSize:         pitch.DefaultHopSize,
		Segment:         segment.DefaultConfig(),
		Title:           "Transcribed Music",
		TempoBPM:        120,
		TimeSig:         score.TimeSignature{BeatsPerMeasure: 4, BeatUnit: 4},
		GridSubdivision: 16,
		Spelling:        score.SpellSharps,
		Logger:          nil,
	}
}
