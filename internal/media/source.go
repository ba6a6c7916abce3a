// Package media provides the playable video source contract the capture
// layer polls, plus an ffmpeg-backed implementation for local files.
package media

import "image"

// Source is a seekable, playable media handle. The engine never decodes
// container formats itself; it only drives playback and rasterizes the
// current frame.
type Source interface {
	// Play starts or resumes playback.
	Play() error
	// Pause halts playback, keeping the current position.
	Pause() error
	// CurrentTime returns the playback position in seconds.
	CurrentTime() float64
	// Duration returns the total length in seconds.
	Duration() float64
	// Ended reports whether playback reached end of media.
	Ended() bool
	// Paused reports whether the source is currently paused.
	Paused() bool
	// Frame rasterizes the frame at the current playback position.
	Frame() (image.Image, error)
}
