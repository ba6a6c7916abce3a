package hub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/kelvinpraises/vidrune/internal/worker"
)

func TestFetcher_DownloadsAndCaches(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if !strings.HasSuffix(r.URL.Path, "/resolve/main/config.json") {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"model_type":"florence2"}`))
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL, t.TempDir())

	var events []worker.ProgressEvent
	err := f.Fetch(context.Background(), "org/model", []string{"config.json"}, func(ev worker.ProgressEvent) {
		events = append(events, ev)
	})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	data, err := os.ReadFile(f.CachePath("org/model", "config.json"))
	if err != nil {
		t.Fatalf("Cached file missing: %v", err)
	}
	if !strings.Contains(string(data), "florence2") {
		t.Errorf("Cached content = %q", data)
	}

	if len(events) < 3 {
		t.Fatalf("Got %d progress events, want at least initiate/progress/done", len(events))
	}
	if events[0].Status != worker.StatusInitiate {
		t.Errorf("First event = %s, want initiate", events[0].Status)
	}
	if events[len(events)-1].Status != worker.StatusDone {
		t.Errorf("Last event = %s, want done", events[len(events)-1].Status)
	}

	// A second fetch serves from cache without touching the hub.
	events = nil
	if err := f.Fetch(context.Background(), "org/model", []string{"config.json"}, func(ev worker.ProgressEvent) {
		events = append(events, ev)
	}); err != nil {
		t.Fatalf("Cached fetch failed: %v", err)
	}
	if hits != 1 {
		t.Errorf("Hub hit %d times, want 1", hits)
	}
	if len(events) != 2 || events[0].Status != worker.StatusInitiate || events[1].Status != worker.StatusDone {
		t.Errorf("Cached fetch events = %v, want initiate then done", events)
	}
}

func TestFetcher_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not here", http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL, t.TempDir())
	err := f.Fetch(context.Background(), "org/model", []string{"missing.onnx"}, nil)
	if err == nil {
		t.Fatal("Fetch succeeded against a 404 hub")
	}

	if _, statErr := os.Stat(f.CachePath("org/model", "missing.onnx")); !os.IsNotExist(statErr) {
		t.Error("Failed fetch left a file in the cache")
	}
}

func TestFetcher_NoPartialLeftovers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("bytes"))
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL, t.TempDir())
	if err := f.Fetch(context.Background(), "org/model", []string{"weights.onnx"}, nil); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if _, err := os.Stat(f.CachePath("org/model", "weights.onnx") + ".partial"); !os.IsNotExist(err) {
		t.Error("Partial download file left behind after success")
	}
}
