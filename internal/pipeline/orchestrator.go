// Package pipeline coordinates the scene-capture → caption → text-to-speech
// run and produces the terminal artifacts.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/kelvinpraises/vidrune/internal/archive"
	"github.com/kelvinpraises/vidrune/internal/capture"
	"github.com/kelvinpraises/vidrune/internal/logger"
	"github.com/kelvinpraises/vidrune/internal/manifest"
	"github.com/kelvinpraises/vidrune/internal/media"
	"github.com/kelvinpraises/vidrune/internal/models"
	"github.com/kelvinpraises/vidrune/internal/speech"
	"github.com/kelvinpraises/vidrune/internal/subtitle"
	"github.com/kelvinpraises/vidrune/internal/vision"
	"github.com/kelvinpraises/vidrune/internal/worker"
)

// ErrModelsNotLoaded is returned by Start before LoadModels has succeeded.
var ErrModelsNotLoaded = errors.New("pipeline: models not loaded")

// ErrNotIdle is returned by Start while a run is already underway.
var ErrNotIdle = errors.New("pipeline: run already in progress")

// StatusListener observes run state changes (stage transitions, progress).
type StatusListener func(Snapshot)

// Options bundles the orchestrator's collaborators. The orchestrator owns
// the workers' dispose lifecycle; callers own the source.
type Options struct {
	Source        media.Source
	CaptureConfig capture.Config
	CaptionWorker *vision.Worker
	SpeechWorker  *speech.Worker
	Voice         string
	Logger        logger.Logger
	OnUpdate      StatusListener
}

// Orchestrator sequences sampler → caption worker → TTS worker and tracks
// run state. One logical coordination thread: all state mutation happens
// under one mutex, all worker calls are awaited sequentially.
type Orchestrator struct {
	source   media.Source
	buffer   *capture.Buffer
	sampler  *capture.Sampler
	captionW *vision.Worker
	speechW  *speech.Worker
	voice    string
	log      logger.Logger
	onUpdate StatusListener

	mu            sync.Mutex
	stage         Stage
	progress      Progress
	errMsg        string
	modelsLoaded  ModelsLoaded
	generation    uint64
	samplerCancel context.CancelFunc
	workList      []*models.Scene
}

func New(opts Options) *Orchestrator {
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	buffer := capture.NewBuffer()
	return &Orchestrator{
		source:   opts.Source,
		buffer:   buffer,
		sampler:  capture.NewSampler(opts.CaptureConfig, opts.Source, buffer, log),
		captionW: opts.CaptionWorker,
		speechW:  opts.SpeechWorker,
		voice:    opts.Voice,
		log:      log.Named("pipeline"),
		onUpdate: opts.OnUpdate,
		stage:    StageIdle,
		progress: Progress{Label: "Idle"},
	}
}

// LoadModels loads both workers sequentially, folding their per-file
// download progress into the run progress. A load failure is fatal to the
// run: the sticky error is set and only Reset clears it.
func (o *Orchestrator) LoadModels(ctx context.Context) error {
	if err := o.loadOne(ctx, "caption model", func(fn func(worker.ProgressEvent)) error {
		return o.captionW.Load(ctx, fn)
	}); err != nil {
		return err
	}
	o.mu.Lock()
	o.modelsLoaded.CaptionModel = true
	o.mu.Unlock()
	o.notify()

	if err := o.loadOne(ctx, "speech model", func(fn func(worker.ProgressEvent)) error {
		return o.speechW.Load(ctx, fn)
	}); err != nil {
		return err
	}
	o.mu.Lock()
	o.modelsLoaded.TTSModel = true
	o.progress = Progress{Label: "Models ready"}
	o.mu.Unlock()
	o.notify()

	return nil
}

func (o *Orchestrator) loadOne(ctx context.Context, label string, load func(func(worker.ProgressEvent)) error) error {
	agg := worker.NewProgressAggregator()
	err := load(func(ev worker.ProgressEvent) {
		pct := agg.Observe(ev)
		o.mu.Lock()
		o.progress = Progress{Label: "Loading " + label, Current: pct, Total: 100}
		o.mu.Unlock()
		o.notify()
	})
	if err != nil {
		o.setError(fmt.Sprintf("failed to load %s: %v", label, err))
		return err
	}
	return nil
}

// Start begins a new run: idle → capturing. The capture flags reset, the
// source starts playing and the sampler polls until end of media.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.stage != StageIdle {
		o.mu.Unlock()
		return ErrNotIdle
	}
	if !o.modelsLoaded.CaptionModel || !o.modelsLoaded.TTSModel {
		o.mu.Unlock()
		return ErrModelsNotLoaded
	}

	o.generation++
	gen := o.generation
	o.stage = StageCapturing
	o.progress = Progress{Label: "Capturing scenes"}
	o.workList = nil
	o.sampler.Reset()

	samplerCtx, cancel := context.WithCancel(ctx)
	o.samplerCancel = cancel
	o.mu.Unlock()

	if err := o.source.Play(); err != nil {
		o.setError(fmt.Sprintf("failed to start playback: %v", err))
		o.Stop()
		return err
	}

	go o.sampler.Run(samplerCtx, func() { o.onSourceEnded(gen) })

	o.log.Info("run started", logger.Int64("generation", int64(gen)))
	o.notify()
	return nil
}

// onSourceEnded fires the capturing → captioning transition. The work list
// is snapshotted atomically here; scenes discovered after this instant are
// dropped from the run.
func (o *Orchestrator) onSourceEnded(gen uint64) {
	o.mu.Lock()
	if o.generation != gen || o.stage != StageCapturing {
		o.mu.Unlock()
		return
	}

	workList := o.buffer.Scenes()
	if len(workList) == 0 {
		o.mu.Unlock()
		o.setError("no scenes captured before source ended")
		o.Stop()
		return
	}

	if err := o.advanceLocked(StageCaptioning); err != nil {
		o.mu.Unlock()
		return
	}
	o.workList = workList
	o.progress = Progress{Label: "Generating captions", Current: 0, Total: len(workList)}
	o.mu.Unlock()

	o.notify()
	go o.process(gen, workList)
}

// process drains the work list through the caption worker, then through the
// TTS worker, strictly sequentially. Batch-sequential across stages: all
// captioning completes before any synthesis begins.
func (o *Orchestrator) process(gen uint64, workList []*models.Scene) {
	ctx := context.Background()

	for i, scene := range workList {
		caption, err := o.captionW.Caption(ctx, scene.Image, "")
		if err != nil {
			if errors.Is(err, worker.ErrStale) || errors.Is(err, worker.ErrClosed) {
				return
			}
			// Recoverable per scene: substitute the fallback caption.
			o.log.Warn("caption failed, using fallback",
				logger.Float64("timestamp", scene.Timestamp), logger.Error(err))
			caption = models.FallbackCaption(scene.Timestamp)
		}

		// Staleness is decided under the same lock as the write, so a reset
		// cannot interleave between the check and the scene mutation.
		o.mu.Lock()
		if o.generation != gen {
			o.mu.Unlock()
			return
		}
		scene.Caption = caption
		o.progress.Current = i + 1
		o.mu.Unlock()
		o.notify()
	}

	o.mu.Lock()
	if o.generation != gen {
		o.mu.Unlock()
		return
	}
	if err := o.advanceLocked(StageGeneratingAudio); err != nil {
		o.mu.Unlock()
		return
	}
	o.progress = Progress{Label: "Generating audio", Current: 0, Total: len(workList)}
	o.mu.Unlock()
	o.notify()

	for i, scene := range workList {
		audio, err := o.speechW.Synthesize(ctx, scene.Caption, o.voice)
		if err != nil {
			if errors.Is(err, worker.ErrStale) || errors.Is(err, worker.ErrClosed) {
				return
			}
			// Tolerated: the scene completes without audio.
			o.log.Warn("synthesis failed, scene keeps no audio",
				logger.Float64("timestamp", scene.Timestamp), logger.Error(err))
		}

		o.mu.Lock()
		if o.generation != gen {
			o.mu.Unlock()
			return
		}
		if err == nil {
			scene.Audio = audio
		}
		scene.Processed = true
		o.progress.Current = i + 1
		o.mu.Unlock()
		o.notify()
	}

	o.mu.Lock()
	if o.generation != gen {
		o.mu.Unlock()
		return
	}
	if err := o.advanceLocked(StageComplete); err != nil {
		o.mu.Unlock()
		return
	}
	o.progress = Progress{Label: "Complete", Current: len(workList), Total: len(workList)}
	o.mu.Unlock()

	o.log.Info("run complete", logger.Int("scenes", len(workList)))
	o.notify()
}

// Stop halts polling and pauses the source without clearing captured data.
// In-flight worker calls settle naturally and are then discarded.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stage == StageIdle {
		o.mu.Unlock()
		return
	}
	if o.samplerCancel != nil {
		o.samplerCancel()
		o.samplerCancel = nil
	}
	o.generation++ // orphan any in-flight processing goroutine
	o.stage = StageIdle
	o.mu.Unlock()

	_ = o.source.Pause()
	o.captionW.AdvanceGeneration()
	o.speechW.AdvanceGeneration()

	o.log.Info("run stopped")
	o.notify()
}

// Reset additionally releases every scene blob, restores initial progress
// and clears the sticky error. Loaded models are retained.
func (o *Orchestrator) Reset() {
	o.Stop()

	o.mu.Lock()
	o.buffer.Clear()
	o.sampler.Reset()
	o.workList = nil
	o.errMsg = ""
	o.progress = Progress{Label: "Idle"}
	o.mu.Unlock()

	o.log.Info("run reset")
	o.notify()
}

// Close disposes the workers. The orchestrator is unusable afterwards.
func (o *Orchestrator) Close() {
	o.Stop()
	o.captionW.Close()
	o.speechW.Close()
}

// Snapshot returns a copy of the current run state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Snapshot{
		Stage:        o.stage,
		Progress:     o.progress,
		Percentage:   o.progress.Percentage(),
		ModelsLoaded: o.modelsLoaded,
		SceneCount:   o.buffer.Len(),
		Error:        o.errMsg,
	}
}

// Scenes returns the captured scenes in discovery order.
func (o *Orchestrator) Scenes() []*models.Scene {
	return o.buffer.Scenes()
}

// GenerateSRT is a pure projection over the current scene list. Callable at
// any stage; only meaningful once complete.
func (o *Orchestrator) GenerateSRT() string {
	return subtitle.Generate(o.buffer.Scenes())
}

// GenerateManifest is a pure projection over the current scene list.
func (o *Orchestrator) GenerateManifest(meta manifest.Meta) manifest.Manifest {
	return manifest.Build(meta, o.buffer.Scenes())
}

// WriteArchive packs the run artifacts into the handoff zip.
func (o *Orchestrator) WriteArchive(w io.Writer, video io.Reader, meta manifest.Meta) error {
	scenes := o.buffer.Scenes()
	return archive.Pack(w, video, manifest.Build(meta, scenes), subtitle.Generate(scenes), scenes)
}

// advanceLocked performs a forward transition or reports it illegal.
// Callers hold o.mu.
func (o *Orchestrator) advanceLocked(to Stage) error {
	if !canAdvance(o.stage, to) {
		err := &ErrIllegalTransition{From: o.stage, To: to}
		o.log.Error("refused stage transition", logger.Error(err))
		return err
	}
	from := o.stage
	o.stage = to
	o.log.Info("stage advanced",
		logger.String("from", string(from)), logger.String("to", string(to)))
	return nil
}

// setError records the sticky advisory error. The first error wins; only
// Reset clears it.
func (o *Orchestrator) setError(msg string) {
	o.mu.Lock()
	if o.errMsg == "" {
		o.errMsg = msg
	}
	o.mu.Unlock()
	o.log.Error("pipeline error", logger.String("error", msg))
	o.notify()
}

func (o *Orchestrator) notify() {
	if o.onUpdate == nil {
		return
	}
	o.onUpdate(o.Snapshot())
}
