package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const DefaultDBFile = "wavescore.sqlite3"

var ErrScoreNotFound = errors.New("score not found")

// ScoreRecord is a transcribed score persisted for later retrieval. The
// MusicXML blob is the complete serialized document; everything else is
// display metadata.
type ScoreRecord struct {
	ID         string `gorm:"primaryKey;type:varchar(36)"`
	Title      string `gorm:"index:idx_score_title"`
	Source     string `gorm:"index:idx_score_source"` // "upload", "youtube", ...
	TempoBPM   float64
	TimeSig    string // e.g. "4/4"
	Measures   int
	NoteCount  int
	DurationMs int
	MusicXML   []byte `gorm:"type:blob"`
	CreatedAt  time.Time
}

// DBClient wraps the sqlite-backed score library.
type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("WAVESCORE_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_foreign_keys=on"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&ScoreRecord{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// SaveScore persists a record and returns its generated ID.
func (c *DBClient) SaveScore(rec *ScoreRecord) (string, error) {
	if c == nil || c.DB == nil {
		return "", errors.New("db client is nil")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if err := c.DB.Create(rec).Error; err != nil {
		return "", fmt.Errorf("saving score: %w", err)
	}
	return rec.ID, nil
}

func (c *DBClient) GetScoreByID(id string) (*ScoreRecord, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New("db client is nil")
	}
	var rec ScoreRecord
	err := c.DB.First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrScoreNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching score %s: %w", id, err)
	}
	return &rec, nil
}

// ListScores returns all stored scores, newest first, without the MusicXML
// payload.
func (c *DBClient) ListScores() ([]ScoreRecord, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New("db client is nil")
	}
	var recs []ScoreRecord
	err := c.DB.
		Select("id", "title", "source", "tempo_bpm", "time_sig", "measures", "note_count", "duration_ms", "created_at").
		Order("created_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("listing scores: %w", err)
	}
	return recs, nil
}

func (c *DBClient) DeleteScoreByID(id string) error {
	if c == nil || c.DB == nil {
		return errors.New("db client is nil")
	}
	res := c.DB.Delete(&ScoreRecord{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("deleting score %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrScoreNotFound
	}
	return nil
}
