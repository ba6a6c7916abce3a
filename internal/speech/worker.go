package speech

import (
	"context"
	"fmt"
	"time"

	"github.com/kelvinpraises/vidrune/internal/hub"
	"github.com/kelvinpraises/vidrune/internal/logger"
	"github.com/kelvinpraises/vidrune/internal/worker"
)

// Synthesizer is the inference contract the worker hosts.
type Synthesizer interface {
	Load(ctx context.Context, progress func(worker.ProgressEvent)) error
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// RuntimeSynthesizer loads model assets from the hub and synthesizes through
// the inference runtime.
type RuntimeSynthesizer struct {
	modelID string
	fetcher *hub.Fetcher
	client  *RuntimeClient
	log     logger.Logger
}

func NewRuntimeSynthesizer(modelID string, fetcher *hub.Fetcher, client *RuntimeClient, log logger.Logger) *RuntimeSynthesizer {
	if modelID == "" {
		modelID = DefaultModelID
	}
	return &RuntimeSynthesizer{modelID: modelID, fetcher: fetcher, client: client, log: log}
}

func (r *RuntimeSynthesizer) Load(ctx context.Context, progress func(worker.ProgressEvent)) error {
	if err := r.fetcher.Fetch(ctx, r.modelID, ModelFiles, progress); err != nil {
		return err
	}
	return r.client.InitSession(ctx, loadRequest{
		ModelID:   r.modelID,
		AssetsDir: r.fetcher.CachePath(r.modelID, ""),
	})
}

func (r *RuntimeSynthesizer) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	return r.client.Synthesize(ctx, text, voice)
}

type inferPayload struct {
	text  string
	voice string
}

type synthesizerModel struct {
	synth Synthesizer
}

func (m *synthesizerModel) Load(ctx context.Context, progress func(worker.ProgressEvent)) error {
	return m.synth.Load(ctx, progress)
}

func (m *synthesizerModel) Infer(ctx context.Context, payload any) (any, error) {
	req, ok := payload.(inferPayload)
	if !ok {
		return nil, fmt.Errorf("speech: unexpected payload %T", payload)
	}
	return m.synth.Synthesize(ctx, req.text, req.voice)
}

// Worker is the TTS worker: an isolated runtime goroutine owning one
// synthesis model.
type Worker struct {
	inner        *worker.Worker
	callTimeout  time.Duration
	defaultVoice string
}

func NewWorker(synth Synthesizer, defaultVoice string, callTimeout time.Duration, log logger.Logger) *Worker {
	if defaultVoice == "" {
		defaultVoice = DefaultVoice
	}
	return &Worker{
		inner:        worker.New("speech", &synthesizerModel{synth: synth}, log),
		callTimeout:  callTimeout,
		defaultVoice: defaultVoice,
	}
}

// Load is idempotent; see worker.Worker.Load.
func (w *Worker) Load(ctx context.Context, onProgress func(worker.ProgressEvent)) error {
	return w.inner.Load(ctx, onProgress)
}

func (w *Worker) Ready() bool { return w.inner.Ready() }

// AdvanceGeneration discards any in-flight result on settle.
func (w *Worker) AdvanceGeneration() { w.inner.AdvanceGeneration() }

// Synthesize converts text to WAV bytes. Valid only after Load; one call in
// flight at a time. An empty voice falls back to the worker default.
func (w *Worker) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if voice == "" {
		voice = w.defaultVoice
	}

	if w.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.callTimeout)
		defer cancel()
	}

	result, err := w.inner.Do(ctx, inferPayload{text: text, voice: voice})
	if err != nil {
		return nil, err
	}

	audio, ok := result.([]byte)
	if !ok {
		return nil, fmt.Errorf("speech: unexpected result %T", result)
	}
	return audio, nil
}

// Close disposes the worker runtime.
func (w *Worker) Close() { w.inner.Close() }
