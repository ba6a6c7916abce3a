package vision

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kelvinpraises/vidrune/internal/logger"
	"github.com/kelvinpraises/vidrune/internal/worker"
)

// fakeCaptioner scripts load and caption outcomes.
type fakeCaptioner struct {
	loadErr    error
	captionFn  func(ctx context.Context, image []byte, task string) (map[string]string, error)
	loadEvents []worker.ProgressEvent
}

func (f *fakeCaptioner) Load(ctx context.Context, progress func(worker.ProgressEvent)) error {
	for _, ev := range f.loadEvents {
		progress(ev)
	}
	return f.loadErr
}

func (f *fakeCaptioner) Caption(ctx context.Context, image []byte, task string) (map[string]string, error) {
	if f.captionFn != nil {
		return f.captionFn(ctx, image, task)
	}
	return map[string]string{task: "a test caption"}, nil
}

func TestWorkerCaption(t *testing.T) {
	w := NewWorker(&fakeCaptioner{}, 0, logger.NewNop())
	defer w.Close()

	if err := w.Load(context.Background(), nil); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	caption, err := w.Caption(context.Background(), []byte("png"), "")
	if err != nil {
		t.Fatalf("Caption failed: %v", err)
	}
	if caption != "a test caption" {
		t.Errorf("Caption = %q, want %q", caption, "a test caption")
	}
}

func TestWorkerCaption_DefaultsTask(t *testing.T) {
	var gotTask string
	f := &fakeCaptioner{
		captionFn: func(ctx context.Context, image []byte, task string) (map[string]string, error) {
			gotTask = task
			return map[string]string{task: "x"}, nil
		},
	}
	w := NewWorker(f, 0, logger.NewNop())
	defer w.Close()

	if err := w.Load(context.Background(), nil); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := w.Caption(context.Background(), nil, ""); err != nil {
		t.Fatalf("Caption failed: %v", err)
	}
	if gotTask != DefaultTask {
		t.Errorf("task = %q, want %q", gotTask, DefaultTask)
	}
}

func TestWorkerCaption_MissingTaskResult(t *testing.T) {
	f := &fakeCaptioner{
		captionFn: func(ctx context.Context, image []byte, task string) (map[string]string, error) {
			return map[string]string{"<OTHER_TASK>": "x"}, nil
		},
	}
	w := NewWorker(f, 0, logger.NewNop())
	defer w.Close()

	if err := w.Load(context.Background(), nil); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := w.Caption(context.Background(), nil, ""); err == nil {
		t.Error("Caption succeeded despite missing task result")
	}
}

func TestWorkerCaption_CallTimeout(t *testing.T) {
	f := &fakeCaptioner{
		captionFn: func(ctx context.Context, image []byte, task string) (map[string]string, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	w := NewWorker(f, 50*time.Millisecond, logger.NewNop())
	defer w.Close()

	if err := w.Load(context.Background(), nil); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if _, err := w.Caption(context.Background(), nil, ""); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Caption = %v, want DeadlineExceeded", err)
	}
}

func TestWorkerLoad_FailurePropagates(t *testing.T) {
	w := NewWorker(&fakeCaptioner{loadErr: errors.New("no runtime")}, 0, logger.NewNop())
	defer w.Close()

	if err := w.Load(context.Background(), nil); err == nil {
		t.Error("Load succeeded, want failure")
	}
	if w.Ready() {
		t.Error("Ready = true after failed load")
	}
}

func TestCapabilitiesAccelerated(t *testing.T) {
	tests := []struct {
		name string
		caps Capabilities
		want bool
	}{
		{name: "gpu with fp16", caps: Capabilities{Devices: []string{"gpu"}, FP16: true}, want: true},
		{name: "cuda alias", caps: Capabilities{Devices: []string{"cuda"}, FP16: true}, want: true},
		{name: "gpu without fp16", caps: Capabilities{Devices: []string{"gpu"}}, want: false},
		{name: "cpu only", caps: Capabilities{Devices: []string{"cpu"}, FP16: true}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.caps.Accelerated(); got != tt.want {
				t.Errorf("Accelerated = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRuntimeClient_ProbeAndCaption(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/capabilities":
			json.NewEncoder(w).Encode(Capabilities{Devices: []string{"cpu"}, FP16: false})
		case "/caption":
			var req captionRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			json.NewEncoder(w).Encode(captionResponse{
				Results: map[string]string{req.Task: "a boat on a lake"},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := NewRuntimeClient(srv.URL)

	caps, err := client.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if caps.Accelerated() {
		t.Error("CPU-only runtime reported as accelerated")
	}

	results, err := client.Caption(context.Background(), []byte("png"), DefaultTask)
	if err != nil {
		t.Fatalf("Caption failed: %v", err)
	}
	if results[DefaultTask] != "a boat on a lake" {
		t.Errorf("Caption result = %v", results)
	}
}

func TestRuntimeClient_CaptionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(captionResponse{Error: "model crashed"})
	}))
	defer srv.Close()

	if _, err := NewRuntimeClient(srv.URL).Caption(context.Background(), nil, DefaultTask); err == nil {
		t.Error("Caption succeeded despite runtime error")
	}
}
