// Package worker runs an inference model on its own goroutine and exposes a
// request/response API over channels. Model loading and inference never run
// on the caller's goroutine.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/kelvinpraises/vidrune/internal/logger"
)

var (
	// ErrBusy is returned when a request is issued while another is in flight.
	ErrBusy = errors.New("worker: request already in flight")
	// ErrNotReady is returned when a request is issued before Load completed.
	ErrNotReady = errors.New("worker: model not loaded")
	// ErrStale is returned when a response belongs to a superseded generation.
	ErrStale = errors.New("worker: stale generation")
	// ErrClosed is returned after the worker has been disposed.
	ErrClosed = errors.New("worker: closed")
)

// Model is the inference backend a worker hosts. Load runs once; Infer is
// never called concurrently by the runtime.
type Model interface {
	Load(ctx context.Context, progress func(ProgressEvent)) error
	Infer(ctx context.Context, payload any) (any, error)
}

type loadState int

const (
	stateUnloaded loadState = iota
	stateLoading
	stateReady
	stateFailed
)

type request struct {
	id      string
	gen     uint64
	payload any
	ctx     context.Context
	respCh  chan response
}

type response struct {
	id     string
	result any
	err    error
}

// Worker owns one model instance. All communication with the model happens
// through the runtime goroutine; callers only see Load and Do.
type Worker struct {
	name  string
	model Model
	log   logger.Logger

	reqCh  chan request
	doneCh chan struct{}

	busy atomic.Bool
	gen  atomic.Uint64

	mu       sync.Mutex
	state    loadState
	loadErr  error
	loadDone chan struct{}
	closed   bool
}

// New constructs a worker and starts its runtime goroutine.
func New(name string, model Model, log logger.Logger) *Worker {
	w := &Worker{
		name:   name,
		model:  model,
		log:    log.Named(name),
		reqCh:  make(chan request),
		doneCh: make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *Worker) run() {
	for {
		select {
		case <-w.doneCh:
			return
		case req := <-w.reqCh:
			result, err := w.model.Infer(req.ctx, req.payload)
			// Buffered channel: delivery never blocks even if the caller
			// already gave up on a timed-out call.
			req.respCh <- response{id: req.id, result: result, err: err}
		}
	}
}

// Load fetches and initializes the model. Idempotent: concurrent and repeat
// calls share one load; once ready, further calls return immediately. A
// failed load may be retried by calling Load again. Progress events stream
// to onProgress from the loading goroutine.
func (w *Worker) Load(ctx context.Context, onProgress func(ProgressEvent)) error {
	w.mu.Lock()
	switch w.state {
	case stateReady:
		w.mu.Unlock()
		return nil
	case stateLoading:
		done := w.loadDone
		w.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		w.mu.Lock()
		defer w.mu.Unlock()
		return w.loadErr
	}

	w.state = stateLoading
	w.loadErr = nil
	w.loadDone = make(chan struct{})
	done := w.loadDone
	w.mu.Unlock()

	emit := func(ev ProgressEvent) {
		if onProgress != nil {
			onProgress(ev)
		}
	}

	emit(ProgressEvent{Status: StatusLoading})

	err := w.model.Load(ctx, emit)

	w.mu.Lock()
	if err != nil {
		w.state = stateFailed
		w.loadErr = fmt.Errorf("%s model load failed: %w", w.name, err)
	} else {
		w.state = stateReady
	}
	loadErr := w.loadErr
	w.mu.Unlock()
	close(done)

	if err == nil {
		emit(ProgressEvent{Status: StatusReady})
		w.log.Info("model loaded")
		return nil
	}
	return loadErr
}

// Ready reports whether the model finished loading successfully.
func (w *Worker) Ready() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state == stateReady
}

// Generation returns the current run generation.
func (w *Worker) Generation() uint64 {
	return w.gen.Load()
}

// AdvanceGeneration invalidates every in-flight request: their responses
// will be discarded as stale when they settle.
func (w *Worker) AdvanceGeneration() uint64 {
	return w.gen.Add(1)
}

// Do submits one request and waits for its correlated response. Only a
// single request may be in flight; concurrent calls get ErrBusy. Responses
// from a superseded generation are discarded and reported as ErrStale.
func (w *Worker) Do(ctx context.Context, payload any) (any, error) {
	if !w.Ready() {
		return nil, ErrNotReady
	}

	if !w.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer w.busy.Store(false)

	req := request{
		id:      uuid.New().String(),
		gen:     w.gen.Load(),
		payload: payload,
		ctx:     ctx,
		respCh:  make(chan response, 1),
	}

	select {
	case w.reqCh <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-w.doneCh:
		return nil, ErrClosed
	}

	select {
	case resp := <-req.respCh:
		if resp.id != req.id {
			// Correlation IDs make a mismatched response a hard error
			// instead of a silent mix-up.
			return nil, fmt.Errorf("%s worker: response correlation mismatch", w.name)
		}
		if w.gen.Load() != req.gen {
			return nil, ErrStale
		}
		return resp.result, resp.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-w.doneCh:
		return nil, ErrClosed
	}
}

// Close stops the runtime goroutine. In-flight calls settle with ErrClosed.
func (w *Worker) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	close(w.doneCh)
}
