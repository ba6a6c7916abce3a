package capture

import (
	"testing"

	"github.com/kelvinpraises/vidrune/internal/models"
)

func TestBufferAdd_RejectsDuplicateTimestamp(t *testing.T) {
	b := NewBuffer()

	if !b.Add(&models.Scene{Timestamp: 1.5, Image: []byte("a")}) {
		t.Fatal("First add returned false")
	}
	if b.Add(&models.Scene{Timestamp: 1.5, Image: []byte("b")}) {
		t.Fatal("Duplicate timestamp was accepted")
	}
	if b.Len() != 1 {
		t.Errorf("Len = %d, want 1", b.Len())
	}
	if got := b.Scenes()[0].Image; string(got) != "a" {
		t.Errorf("Duplicate overwrote the original scene: %q", got)
	}
}

func TestBufferScenes_DiscoveryOrder(t *testing.T) {
	b := NewBuffer()
	for _, ts := range []float64{5.0, 0.5, 2.5} {
		b.Add(&models.Scene{Timestamp: ts})
	}

	scenes := b.Scenes()
	want := []float64{5.0, 0.5, 2.5}
	for i, scene := range scenes {
		if scene.Timestamp != want[i] {
			t.Errorf("scenes[%d].Timestamp = %v, want %v", i, scene.Timestamp, want[i])
		}
	}
}

func TestBufferClear_ReleasesBlobs(t *testing.T) {
	b := NewBuffer()
	scene := &models.Scene{Timestamp: 0, Image: []byte("png"), Audio: []byte("wav")}
	b.Add(scene)

	b.Clear()

	if b.Len() != 0 {
		t.Errorf("Len after Clear = %d, want 0", b.Len())
	}
	if scene.Image != nil || scene.Audio != nil {
		t.Error("Clear did not release scene blobs")
	}

	// The buffer stays usable after Clear.
	if !b.Add(&models.Scene{Timestamp: 0}) {
		t.Error("Add after Clear rejected a fresh timestamp")
	}
}
