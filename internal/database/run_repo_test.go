package database

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kelvinpraises/vidrune/internal/models"
)

func newTestRun(videoID, status string, startedAt time.Time) *models.IndexRun {
	return &models.IndexRun{
		ID:         uuid.New().String(),
		VideoID:    videoID,
		Status:     status,
		SceneCount: 4,
		Manifest:   `{"id":"test"}`,
		SRT:        "1\n00:00:00,000 --> 00:00:03,000\nA scene\n\n",
		StartedAt:  startedAt,
		FinishedAt: startedAt.Add(time.Minute),
	}
}

func TestRunRepository_InsertAndGet(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	videoRepo := NewVideoRepository(db)
	runRepo := NewRunRepository(db)

	video := models.NewVideo("Test", "", "0xabc", "v.mp4", "video/mp4", 1)
	if err := videoRepo.InsertVideo(video); err != nil {
		t.Fatalf("Failed to insert video: %v", err)
	}

	run := newTestRun(video.ID, models.IndexStatusIndexed, time.Now().UTC())
	if err := runRepo.InsertRun(run); err != nil {
		t.Fatalf("Failed to insert run: %v", err)
	}

	retrieved, err := runRepo.GetRunByID(run.ID)
	if err != nil {
		t.Fatalf("Failed to get run: %v", err)
	}
	if retrieved.SceneCount != run.SceneCount {
		t.Errorf("Expected %d scenes, got %d", run.SceneCount, retrieved.SceneCount)
	}
	if retrieved.Manifest != run.Manifest {
		t.Errorf("Expected manifest %q, got %q", run.Manifest, retrieved.Manifest)
	}
}

func TestRunRepository_LatestRunForVideo(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	videoRepo := NewVideoRepository(db)
	runRepo := NewRunRepository(db)

	video := models.NewVideo("Test", "", "0xabc", "v.mp4", "video/mp4", 1)
	if err := videoRepo.InsertVideo(video); err != nil {
		t.Fatalf("Failed to insert video: %v", err)
	}

	latest, err := runRepo.LatestRunForVideo(video.ID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if latest != nil {
		t.Fatalf("Expected nil for unindexed video, got %+v", latest)
	}

	base := time.Now().UTC()
	older := newTestRun(video.ID, models.IndexStatusError, base.Add(-time.Hour))
	newer := newTestRun(video.ID, models.IndexStatusIndexed, base)
	for _, run := range []*models.IndexRun{older, newer} {
		if err := runRepo.InsertRun(run); err != nil {
			t.Fatalf("Failed to insert run: %v", err)
		}
	}

	latest, err = runRepo.LatestRunForVideo(video.ID)
	if err != nil {
		t.Fatalf("Failed to get latest run: %v", err)
	}
	if latest == nil || latest.ID != newer.ID {
		t.Fatalf("Expected latest run %s, got %+v", newer.ID, latest)
	}

	runs, err := runRepo.ListRunsForVideo(video.ID)
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("Expected 2 runs, got %d", len(runs))
	}
}
