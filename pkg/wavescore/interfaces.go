package wavescore

import (
	"context"

	"github.com/wavescore/wavescore/pkg/wavescore/audio"
	"github.com/wavescore/wavescore/pkg/wavescore/score"
)

type Service interface {
	Transcribe(ctx context.Context, src audio.Source) (*Result, error)
	TranscribeFile(ctx context.Context, path string) (*Result, error)
	TranscribeRemote(ctx context.Context, url string) (*Result, string, error)
	Synthesize(doc *score.Document) ([]byte, error)
	SaveResult(res *Result, title, source string) (string, error)
	GetScoreByID(id string) (*StoredScore, error)
	ListScores() ([]StoredScore, error)
	DeleteScore(id string) error
	Close() error
}

type Storage interface {
	SaveScore(s *StoredScore) (string, error)
	GetScoreByID(id string) (*StoredScore, error)
	ListScores() ([]StoredScore, error)
	DeleteScoreByID(id string) error
	Close() error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
