package vision

import (
	"context"
	"fmt"
	"time"

	"github.com/kelvinpraises/vidrune/internal/hub"
	"github.com/kelvinpraises/vidrune/internal/logger"
	"github.com/kelvinpraises/vidrune/internal/worker"
)

// Captioner is the inference contract the worker hosts. Implementations
// must tolerate sequential calls only; the worker runtime serializes.
type Captioner interface {
	// Load prepares the model, reporting per-file download progress.
	Load(ctx context.Context, progress func(worker.ProgressEvent)) error
	// Caption describes one image; results are keyed by task type.
	Caption(ctx context.Context, image []byte, task string) (map[string]string, error)
}

// RuntimeCaptioner loads model assets from the hub and serves captions
// through the inference runtime. Device selection happens once, at load.
type RuntimeCaptioner struct {
	modelID string
	fetcher *hub.Fetcher
	client  *RuntimeClient
	log     logger.Logger

	device string
}

func NewRuntimeCaptioner(modelID string, fetcher *hub.Fetcher, client *RuntimeClient, log logger.Logger) *RuntimeCaptioner {
	if modelID == "" {
		modelID = DefaultModelID
	}
	return &RuntimeCaptioner{modelID: modelID, fetcher: fetcher, client: client, log: log}
}

func (r *RuntimeCaptioner) Load(ctx context.Context, progress func(worker.ProgressEvent)) error {
	caps, err := r.client.Probe(ctx)
	if err != nil {
		return err
	}

	r.device = DeviceCPU
	dtype := "fp32"
	if caps.Accelerated() {
		r.device = DeviceAccelerated
		dtype = "fp16"
	}
	r.log.Info("caption device selected",
		logger.String("device", r.device), logger.String("dtype", dtype))

	if err := r.fetcher.Fetch(ctx, r.modelID, ModelFiles, progress); err != nil {
		return err
	}

	return r.client.InitSession(ctx, loadRequest{
		ModelID:   r.modelID,
		Device:    r.device,
		DType:     dtype,
		AssetsDir: r.fetcher.CachePath(r.modelID, ""),
	})
}

func (r *RuntimeCaptioner) Caption(ctx context.Context, image []byte, task string) (map[string]string, error) {
	return r.client.Caption(ctx, image, task)
}

// Device returns the compute path chosen at load time.
func (r *RuntimeCaptioner) Device() string { return r.device }

type inferPayload struct {
	image []byte
	task  string
}

type captionerModel struct {
	captioner Captioner
}

func (m *captionerModel) Load(ctx context.Context, progress func(worker.ProgressEvent)) error {
	return m.captioner.Load(ctx, progress)
}

func (m *captionerModel) Infer(ctx context.Context, payload any) (any, error) {
	req, ok := payload.(inferPayload)
	if !ok {
		return nil, fmt.Errorf("vision: unexpected payload %T", payload)
	}
	return m.captioner.Caption(ctx, req.image, req.task)
}

// Worker is the caption worker: an isolated runtime goroutine owning one
// captioning model.
type Worker struct {
	inner       *worker.Worker
	callTimeout time.Duration
}

// NewWorker wraps a captioner in a worker runtime. callTimeout bounds each
// caption call; zero means no bound.
func NewWorker(captioner Captioner, callTimeout time.Duration, log logger.Logger) *Worker {
	return &Worker{
		inner:       worker.New("caption", &captionerModel{captioner: captioner}, log),
		callTimeout: callTimeout,
	}
}

// Load is idempotent; see worker.Worker.Load.
func (w *Worker) Load(ctx context.Context, onProgress func(worker.ProgressEvent)) error {
	return w.inner.Load(ctx, onProgress)
}

func (w *Worker) Ready() bool { return w.inner.Ready() }

// AdvanceGeneration discards any in-flight result on settle.
func (w *Worker) AdvanceGeneration() { w.inner.AdvanceGeneration() }

// Caption describes one image. Valid only after Load; one call in flight
// at a time.
func (w *Worker) Caption(ctx context.Context, image []byte, task string) (string, error) {
	if task == "" {
		task = DefaultTask
	}

	if w.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.callTimeout)
		defer cancel()
	}

	result, err := w.inner.Do(ctx, inferPayload{image: image, task: task})
	if err != nil {
		return "", err
	}

	results, ok := result.(map[string]string)
	if !ok {
		return "", fmt.Errorf("vision: unexpected result %T", result)
	}
	caption, ok := results[task]
	if !ok || caption == "" {
		return "", fmt.Errorf("vision: no result for task %s", task)
	}
	return caption, nil
}

// Close disposes the worker runtime.
func (w *Worker) Close() { w.inner.Close() }
