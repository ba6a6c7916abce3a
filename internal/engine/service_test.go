package engine

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kelvinpraises/vidrune/internal/config"
	"github.com/kelvinpraises/vidrune/internal/database"
	"github.com/kelvinpraises/vidrune/internal/events"
	"github.com/kelvinpraises/vidrune/internal/logger"
	"github.com/kelvinpraises/vidrune/internal/models"
	"github.com/kelvinpraises/vidrune/internal/search"
	"github.com/kelvinpraises/vidrune/internal/speech"
	"github.com/kelvinpraises/vidrune/internal/storage"
	"github.com/kelvinpraises/vidrune/internal/vision"
	"github.com/kelvinpraises/vidrune/internal/worker"
)

// gatedCaptioner blocks model loading until released, keeping a run alive
// for as long as a test needs it. The release settles the load with an
// error so the run finalizes without touching the media tools.
type gatedCaptioner struct {
	release chan struct{}
}

func (c *gatedCaptioner) Load(ctx context.Context, progress func(worker.ProgressEvent)) error {
	select {
	case <-c.release:
		return errors.New("load aborted")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *gatedCaptioner) Caption(ctx context.Context, image []byte, task string) (map[string]string, error) {
	return map[string]string{task: "a test frame"}, nil
}

type stubSynthesizer struct{}

func (stubSynthesizer) Load(ctx context.Context, progress func(worker.ProgressEvent)) error {
	return nil
}

func (stubSynthesizer) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	return []byte("RIFF" + text), nil
}

func writeFakeTool(t *testing.T, dir, name, script string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("Failed to write fake %s: %v", name, err)
	}
	return path
}

func setupServiceTest(t *testing.T) (*Service, string, func()) {
	t.Helper()

	tools := t.TempDir()
	ffmpeg := writeFakeTool(t, tools, "ffmpeg", "#!/bin/sh\nexit 1\n")
	ffprobe := writeFakeTool(t, tools, "ffprobe", "#!/bin/sh\necho 2.0\n")

	db, err := database.NewDB(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	videoRepo := database.NewVideoRepository(db)
	runRepo := database.NewRunRepository(db)

	filename, err := store.SaveFile(bytes.NewReader(bytes.Repeat([]byte("v"), 256)), storage.FileInfo{
		Filename:    "clip.mp4",
		ContentType: "video/mp4",
		Size:        256,
	})
	if err != nil {
		t.Fatalf("Failed to save test video: %v", err)
	}

	video := models.NewVideo("Clip", "", "", filename, "video/mp4", 256)
	if err := videoRepo.InsertVideo(video); err != nil {
		t.Fatalf("Failed to insert test video: %v", err)
	}

	captioner := &gatedCaptioner{release: make(chan struct{})}
	svc := NewService(Options{
		Config: config.Config{
			PollInterval:        time.Millisecond,
			GridCols:            8,
			GridRows:            4,
			SimilarityThreshold: 25,
			DarknessThreshold:   30,
			BlackCellRatio:      0.9,
			DefaultVoice:        "af_nicole",
			FFmpegPath:          ffmpeg,
			FFprobePath:         ffprobe,
			FrameSize:           64,
			IndexRate:           1.0,
		},
		Logger:        logger.NewNop(),
		Storage:       store,
		VideoRepo:     videoRepo,
		RunRepo:       runRepo,
		CaptionWorker: vision.NewWorker(captioner, 0, logger.NewNop()),
		SpeechWorker:  speech.NewWorker(stubSynthesizer{}, "af_nicole", 0, logger.NewNop()),
		Uploader:      storage.NoopUploader{},
		Indexer:       search.NoopIndexer{},
		Publisher:     events.NoopPublisher{},
	})
	t.Cleanup(svc.Close)

	var once sync.Once
	release := func() { once.Do(func() { close(captioner.release) }) }
	t.Cleanup(release)

	return svc, video.ID, release
}

func TestStartIndex_SerializesConcurrentStarts(t *testing.T) {
	svc, videoID, release := setupServiceTest(t)

	const attempts = 8
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.StartIndex(context.Background(), videoID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	started, rejected := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			started++
		case errors.Is(err, ErrRunInProgress):
			rejected++
		default:
			t.Fatalf("StartIndex returned unexpected error: %v", err)
		}
	}
	if started != 1 {
		t.Errorf("Started runs = %d, want exactly 1", started)
	}
	if rejected != attempts-1 {
		t.Errorf("Rejected starts = %d, want %d", rejected, attempts-1)
	}

	// Once the live run finalizes, the slot frees up again.
	release()
	deadline := time.Now().Add(5 * time.Second)
	for {
		_, err := svc.StartIndex(context.Background(), videoID)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrRunInProgress) {
			t.Fatalf("StartIndex after finalize: %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatal("Slot never released after the run finalized")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStartIndex_ReleasesSlotOnEarlyError(t *testing.T) {
	svc, videoID, _ := setupServiceTest(t)

	_, err := svc.StartIndex(context.Background(), "missing")
	if err == nil {
		t.Fatal("StartIndex for an unknown video succeeded")
	}
	if errors.Is(err, ErrRunInProgress) {
		t.Fatalf("Unknown video reported as run in progress: %v", err)
	}

	// The failed attempt must not leave the slot claimed.
	if _, err := svc.StartIndex(context.Background(), videoID); err != nil {
		t.Fatalf("StartIndex after failed attempt: %v", err)
	}
}
