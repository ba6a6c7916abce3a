// Package engine runs index pipelines over cataloged videos and persists
// their artifacts.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kelvinpraises/vidrune/internal/capture"
	"github.com/kelvinpraises/vidrune/internal/config"
	"github.com/kelvinpraises/vidrune/internal/database"
	"github.com/kelvinpraises/vidrune/internal/events"
	"github.com/kelvinpraises/vidrune/internal/logger"
	"github.com/kelvinpraises/vidrune/internal/manifest"
	"github.com/kelvinpraises/vidrune/internal/media"
	"github.com/kelvinpraises/vidrune/internal/models"
	"github.com/kelvinpraises/vidrune/internal/pipeline"
	"github.com/kelvinpraises/vidrune/internal/search"
	"github.com/kelvinpraises/vidrune/internal/speech"
	"github.com/kelvinpraises/vidrune/internal/storage"
	"github.com/kelvinpraises/vidrune/internal/vision"
)

// ErrRunInProgress is returned when a second run is started while one is
// active. The worker models hold a single inference context each, so runs
// are serialized.
var ErrRunInProgress = errors.New("engine: an index run is already in progress")

// Options bundles the service collaborators.
type Options struct {
	Config        config.Config
	Logger        logger.Logger
	Storage       *storage.LocalStorage
	VideoRepo     *database.VideoRepository
	RunRepo       *database.RunRepository
	CaptionWorker *vision.Worker
	SpeechWorker  *speech.Worker
	Uploader      storage.ArchiveUploader
	Indexer       search.Indexer
	Publisher     events.Publisher
}

// Run is one live pipeline execution.
type Run struct {
	ID        string
	VideoID   string
	StartedAt time.Time

	orch      *pipeline.Orchestrator
	source    *media.FileSource
	finalized bool
}

// Service owns the worker singletons and at most one live run at a time.
// Workers (and their loaded models) survive across runs.
type Service struct {
	cfg       config.Config
	log       logger.Logger
	storage   *storage.LocalStorage
	videoRepo *database.VideoRepository
	runRepo   *database.RunRepository
	captionW  *vision.Worker
	speechW   *speech.Worker
	uploader  storage.ArchiveUploader
	indexer   search.Indexer
	publisher events.Publisher

	mu       sync.Mutex
	active   *Run
	starting bool // slot claimed while StartIndex is still preparing a run
}

func NewService(opts Options) *Service {
	return &Service{
		cfg:       opts.Config,
		log:       opts.Logger.Named("engine"),
		storage:   opts.Storage,
		videoRepo: opts.VideoRepo,
		runRepo:   opts.RunRepo,
		captionW:  opts.CaptionWorker,
		speechW:   opts.SpeechWorker,
		uploader:  opts.Uploader,
		indexer:   opts.Indexer,
		publisher: opts.Publisher,
	}
}

// StartIndex launches a pipeline run over a cataloged video and returns the
// run ID. The run proceeds in the background; poll RunStatus or subscribe
// to the event queue for progress.
func (s *Service) StartIndex(ctx context.Context, videoID string) (string, error) {
	// Claim the slot before the slow catalog lookup and source probing so a
	// concurrent caller cannot slip past the guard.
	s.mu.Lock()
	if s.starting || (s.active != nil && !s.active.finalized) {
		s.mu.Unlock()
		return "", ErrRunInProgress
	}
	s.starting = true
	s.mu.Unlock()

	// The claim is released on every exit; the successful path has assigned
	// s.active by then, which keeps the slot held.
	defer func() {
		s.mu.Lock()
		s.starting = false
		s.mu.Unlock()
	}()

	video, err := s.videoRepo.GetVideoByID(videoID)
	if err != nil {
		return "", err
	}

	path, err := s.storage.Path(video.Filename)
	if err != nil {
		return "", err
	}

	source, err := media.NewFileSource(path, s.cfg.FFmpegPath, s.cfg.FFprobePath, s.cfg.FrameSize)
	if err != nil {
		return "", fmt.Errorf("failed to open video source: %w", err)
	}
	source.SetRate(s.cfg.IndexRate)

	run := &Run{
		ID:        uuid.New().String(),
		VideoID:   video.ID,
		StartedAt: time.Now().UTC(),
		source:    source,
	}

	captureCfg := capture.Config{
		Interval:            s.cfg.PollInterval,
		GridCols:            s.cfg.GridCols,
		GridRows:            s.cfg.GridRows,
		SimilarityThreshold: s.cfg.SimilarityThreshold,
		DarknessThreshold:   s.cfg.DarknessThreshold,
		BlackCellRatio:      s.cfg.BlackCellRatio,
	}

	run.orch = pipeline.New(pipeline.Options{
		Source:        source,
		CaptureConfig: captureCfg,
		CaptionWorker: s.captionW,
		SpeechWorker:  s.speechW,
		Voice:         s.cfg.DefaultVoice,
		Logger:        s.log,
		OnUpdate: func(snap pipeline.Snapshot) {
			s.onUpdate(run, video, snap)
		},
	})

	s.mu.Lock()
	s.active = run
	s.mu.Unlock()

	if err := s.videoRepo.UpdateIndexStatus(video.ID, models.IndexStatusQueued); err != nil {
		s.log.Warn("failed to mark video queued", logger.Error(err))
	}

	go s.execute(run, video)

	s.log.Info("index run started",
		logger.String("run_id", run.ID), logger.String("video_id", video.ID))
	return run.ID, nil
}

func (s *Service) execute(run *Run, video *models.Video) {
	ctx := context.Background()

	if err := run.orch.LoadModels(ctx); err != nil {
		s.finalize(run, video)
		return
	}

	if err := s.videoRepo.UpdateIndexStatus(video.ID, models.IndexStatusIndexing); err != nil {
		s.log.Warn("failed to mark video indexing", logger.Error(err))
	}

	if err := run.orch.Start(ctx); err != nil {
		s.finalize(run, video)
		return
	}
}

// onUpdate forwards snapshots to the event publisher and finalizes the run
// on terminal states.
func (s *Service) onUpdate(run *Run, video *models.Video, snap pipeline.Snapshot) {
	if err := s.publisher.PublishStatus(events.FromSnapshot(run.ID, run.VideoID, snap)); err != nil {
		s.log.Debug("status publish failed", logger.Error(err))
	}

	if snap.Stage == pipeline.StageComplete || snap.Error != "" {
		s.finalize(run, video)
	}
}

// finalize persists the run outcome exactly once and hands artifacts off.
func (s *Service) finalize(run *Run, video *models.Video) {
	s.mu.Lock()
	if run.finalized {
		s.mu.Unlock()
		return
	}
	run.finalized = true
	s.mu.Unlock()

	defer run.source.Cleanup()

	snap := run.orch.Snapshot()
	record := &models.IndexRun{
		ID:         run.ID,
		VideoID:    run.VideoID,
		SceneCount: snap.SceneCount,
		Error:      snap.Error,
		StartedAt:  run.StartedAt,
		FinishedAt: time.Now().UTC(),
	}

	if snap.Error != "" || snap.Stage != pipeline.StageComplete {
		record.Status = models.IndexStatusError
		if record.Error == "" {
			record.Error = "run did not complete"
		}
	} else {
		record.Status = models.IndexStatusIndexed

		meta := manifest.Meta{
			ID:          video.ID,
			Title:       video.Title,
			UploadedBy:  video.UploadedBy,
			Description: video.Description,
			UploadTime:  video.UploadTime,
		}

		m := run.orch.GenerateManifest(meta)
		manifestJSON, err := json.Marshal(m)
		if err != nil {
			s.log.Error("failed to marshal manifest", logger.Error(err))
		} else {
			record.Manifest = string(manifestJSON)
		}
		record.SRT = run.orch.GenerateSRT()

		s.handoff(run, video, meta)
	}

	if err := s.runRepo.InsertRun(record); err != nil {
		s.log.Error("failed to persist index run", logger.Error(err))
	}
	if err := s.videoRepo.UpdateIndexStatus(run.VideoID, record.Status); err != nil {
		s.log.Warn("failed to update video index status", logger.Error(err))
	}

	run.orch.Stop()

	s.log.Info("index run finalized",
		logger.String("run_id", run.ID), logger.String("status", record.Status),
		logger.Int("scenes", record.SceneCount))
}

// handoff packs the archive, stores it locally, pushes it to object
// storage and submits the manifest for search indexing. Handoff failures
// are logged, not fatal: the catalog record is the source of truth.
func (s *Service) handoff(run *Run, video *models.Video, meta manifest.Meta) {
	ctx := context.Background()

	videoFile, err := s.storage.OpenFile(video.Filename)
	if err != nil {
		s.log.Error("failed to open source video for archive", logger.Error(err))
		return
	}
	defer videoFile.Close()

	var buf bytes.Buffer
	if err := run.orch.WriteArchive(&buf, videoFile, meta); err != nil {
		s.log.Error("failed to pack artifact archive", logger.Error(err))
		return
	}

	archiveName := run.ID + ".zip"
	if _, err := s.storage.SaveArchive(archiveName, buf.Bytes()); err != nil {
		s.log.Error("failed to store artifact archive", logger.Error(err))
	}

	key := fmt.Sprintf("%s/%s", video.ID, archiveName)
	if err := s.uploader.UploadArchive(ctx, key, bytes.NewReader(buf.Bytes()), int64(buf.Len())); err != nil {
		s.log.Error("failed to upload artifact archive", logger.Error(err))
	}

	if err := s.indexer.IndexManifest(ctx, run.orch.GenerateManifest(meta)); err != nil {
		s.log.Error("failed to submit manifest for indexing", logger.Error(err))
	}
}

// RunStatus returns the live snapshot for the active run, or the persisted
// outcome for a finished one.
func (s *Service) RunStatus(runID string) (pipeline.Snapshot, bool) {
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()

	if active != nil && active.ID == runID {
		return active.orch.Snapshot(), true
	}
	return pipeline.Snapshot{}, false
}

// StopActiveRun halts the live run, keeping captured data.
func (s *Service) StopActiveRun() bool {
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()

	if active == nil || active.finalized {
		return false
	}
	active.orch.Stop()
	return true
}

// Close stops any live run and disposes the workers.
func (s *Service) Close() {
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()

	if active != nil {
		active.orch.Stop()
	}
	s.captionW.Close()
	s.speechW.Close()
}
