package models

import "fmt"

// Scene is one sampled video frame kept as a candidate index unit.
// The image blob is owned by the scene buffer until released; the caption
// and audio fields are each set once by their respective workers.
type Scene struct {
	Timestamp float64 `json:"timestamp"`
	Image     []byte  `json:"-"` // PNG bytes
	Caption   string  `json:"caption,omitempty"`
	Audio     []byte  `json:"-"` // WAV bytes
	Processed bool    `json:"processed"`
}

// Release frees the binary blobs. The scene struct stays valid but empty.
func (s *Scene) Release() {
	s.Image = nil
	s.Audio = nil
}

// FallbackCaption is substituted when captioning a scene fails.
func FallbackCaption(timestamp float64) string {
	return fmt.Sprintf("Scene at %gs: Video frame", timestamp)
}
