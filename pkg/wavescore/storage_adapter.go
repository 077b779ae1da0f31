package wavescore

import (
	"github.com/wavescore/wavescore/pkg/wavescore/storage"
)

// storageAdapter adapts the storage.DBClient to implement the Storage interface.
type storageAdapter struct {
	db *storage.DBClient
}

// NewSQLiteStorage creates a new SQLite storage backend.
func NewSQLiteStorage(dbPath string) (Storage, error) {
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return &storageAdapter{db: db}, nil
}

func (s *storageAdapter) SaveScore(sc *StoredScore) (string, error) {
	rec := recordFromStored(sc)
	id, err := s.db.SaveScore(rec)
	if err != nil {
		return "", err
	}
	sc.ID = id
	sc.CreatedAt = rec.CreatedAt
	return id, nil
}

func (s *storageAdapter) GetScoreByID(id string) (*StoredScore, error) {
	rec, err := s.db.GetScoreByID(id)
	if err != nil {
		return nil, err
	}
	return storedFromRecord(rec), nil
}

func (s *storageAdapter) ListScores() ([]StoredScore, error) {
	recs, err := s.db.ListScores()
	if err != nil {
		return nil, err
	}
	scores := make([]StoredScore, len(recs))
	for i := range recs {
		scores[i] = *storedFromRecord(&recs[i])
	}
	return scores, nil
}

func (s *storageAdapter) DeleteScoreByID(id string) error {
	return s.db.DeleteScoreByID(id)
}

func (s *storageAdapter) Close() error {
	return s.db.Close()
}

func recordFromStored(sc *StoredScore) *storage.ScoreRecord {
	return &storage.ScoreRecord{
		ID:         sc.ID,
		Title:      sc.Title,
		Source:     sc.Source,
		TempoBPM:   sc.TempoBPM,
		TimeSig:    sc.TimeSig,
		Measures:   sc.Measures,
		NoteCount:  sc.NoteCount,
		DurationMs: sc.DurationMs,
		MusicXML:   sc.MusicXML,
		CreatedAt:  sc.CreatedAt,
	}
}

func storedFromRecord(rec *storage.ScoreRecord) *StoredScore {
	return &StoredScore{
		ID:         rec.ID,
		Title:      rec.Title,
		Source:     rec.Source,
		TempoBPM:   rec.TempoBPM,
		TimeSig:    rec.TimeSig,
		Measures:   rec.Measures,
		NoteCount:  rec.NoteCount,
		DurationMs: rec.DurationMs,
		MusicXML:   rec.MusicXML,
		CreatedAt:  rec.CreatedAt,
	}
}
