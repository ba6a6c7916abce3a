package capture

import (
	"sync"

	"github.com/kelvinpraises/vidrune/internal/models"
)

// Buffer is the append-only, timestamp-keyed collection of captured scenes.
// A scene is never dropped silently; removal only happens via Clear.
type Buffer struct {
	mu     sync.Mutex
	order  []float64
	scenes map[float64]*models.Scene
}

func NewBuffer() *Buffer {
	return &Buffer{scenes: make(map[float64]*models.Scene)}
}

// Add inserts a scene keyed by its timestamp. Returns false without
// modifying the buffer if the timestamp is already present.
func (b *Buffer) Add(scene *models.Scene) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.scenes[scene.Timestamp]; exists {
		return false
	}
	b.scenes[scene.Timestamp] = scene
	b.order = append(b.order, scene.Timestamp)
	return true
}

// Scenes returns every captured scene in discovery order.
func (b *Buffer) Scenes() []*models.Scene {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]*models.Scene, 0, len(b.order))
	for _, ts := range b.order {
		out = append(out, b.scenes[ts])
	}
	return out
}

// Len returns the number of captured scenes.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.order)
}

// Clear releases every scene blob and empties the buffer.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, scene := range b.scenes {
		scene.Release()
	}
	b.order = nil
	b.scenes = make(map[float64]*models.Scene)
}
