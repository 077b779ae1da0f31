package storage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

// setupTestDB creates a client backed by a temporary database file.
func setupTestDB(t *testing.T) *DBClient {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test_wavescore.sqlite3")
	client, err := NewDBClientWithPath(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test DB client: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})
	return client
}

func testRecord(title string) *ScoreRecord {
	return &ScoreRecord{
		Title:      title,
		Source:     "upload",
		TempoBPM:   120,
		TimeSig:    "4/4",
		Measures:   8,
		NoteCount:  21,
		DurationMs: 16000,
		MusicXML:   []byte("<score-partwise/>"),
		CreatedAt:  time.Now().UTC(),
	}
}

func TestSaveAndGetScore(t *testing.T) {
	client := setupTestDB(t)

	id, err := client.SaveScore(testRecord("Twinkle"))
	if err != nil {
		t.Fatalf("SaveScore failed: %v", err)
	}
	if id == "" {
		t.Fatal("Expected a generated ID")
	}

	got, err := client.GetScoreByID(id)
	if err != nil {
		t.Fatalf("GetScoreByID failed: %v", err)
	}
	if got.Title != "Twinkle" {
		t.Errorf("Expected title Twinkle, got %s", got.Title)
	}
	if got.Measures != 8 || got.NoteCount != 21 {
		t.Errorf("Metadata mismatch: %+v", got)
	}
	if string(got.MusicXML) != "<score-partwise/>" {
		t.Errorf("MusicXML payload mismatch: %s", got.MusicXML)
	}
}

func TestGetScoreNotFound(t *testing.T) {
	client := setupTestDB(t)

	if _, err := client.GetScoreByID("nonexistent-id"); !errors.Is(err, ErrScoreNotFound) {
		t.Errorf("Expected ErrScoreNotFound, got %v", err)
	}
}

func TestListScores(t *testing.T) {
	client := setupTestDB(t)

	for _, title := range []string{"First", "Second", "Third"} {
		rec := testRecord(title)
		if _, err := client.SaveScore(rec); err != nil {
			t.Fatalf("SaveScore(%s) failed: %v", title, err)
		}
	}

	scores, err := client.ListScores()
	if err != nil {
		t.Fatalf("ListScores failed: %v", err)
	}
	if len(scores) != 3 {
		t.Fatalf("Expected 3 scores, got %d", len(scores))
	}

	// Listings must omit the payload
	for _, sc := range scores {
		if len(sc.MusicXML) != 0 {
			t.Errorf("Listing for %s should not carry the MusicXML blob", sc.Title)
		}
		if sc.Title == "" || sc.ID == "" {
			t.Errorf("Listing missing metadata: %+v", sc)
		}
	}
}

func TestDeleteScore(t *testing.T) {
	client := setupTestDB(t)

	id, err := client.SaveScore(testRecord("Doomed"))
	if err != nil {
		t.Fatalf("SaveScore failed: %v", err)
	}

	if err := client.DeleteScoreByID(id); err != nil {
		t.Fatalf("DeleteScoreByID failed: %v", err)
	}
	if _, err := client.GetScoreByID(id); !errors.Is(err, ErrScoreNotFound) {
		t.Errorf("Expected deleted score to be gone, got %v", err)
	}

	if err := client.DeleteScoreByID(id); !errors.Is(err, ErrScoreNotFound) {
		t.Errorf("Deleting twice should report ErrScoreNotFound, got %v", err)
	}
}

func TestSaveScoreKeepsProvidedID(t *testing.T) {
	client := setupTestDB(t)

	rec := testRecord("Pinned")
	rec.ID = "11111111-2222-3333-4444-555555555555"

	id, err := client.SaveScore(rec)
	if err != nil {
		t.Fatalf("SaveScore failed: %v", err)
	}
	if id != rec.ID {
		t.Errorf("Expected provided ID to be kept, got %s", id)
	}
}
