package media

import (
	"fmt"
	"image"
	"image/color"
	"sync"
)

// Segment maps a start time to the frame shown from that point on.
type Segment struct {
	Start float64
	Image image.Image
}

// SyntheticSource is a scripted source with a manually advanced clock.
// It backs deterministic tests and offline pipeline exercises where no real
// video file or ffmpeg binary is available.
type SyntheticSource struct {
	mu       sync.Mutex
	segments []Segment
	duration float64
	now      float64
	playing  bool
	frameErr error
	autoStep float64
}

// NewSyntheticSource builds a source of the given duration. Segments must be
// sorted by start time; the first segment should start at 0.
func NewSyntheticSource(duration float64, segments []Segment) *SyntheticSource {
	return &SyntheticSource{segments: segments, duration: duration}
}

func (s *SyntheticSource) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = true
	return nil
}

func (s *SyntheticSource) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
	return nil
}

// Advance moves the clock forward by dt seconds, clamped to the duration.
func (s *SyntheticSource) Advance(dt float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now += dt
	if s.now > s.duration {
		s.now = s.duration
	}
}

// Seek jumps the clock to t seconds.
func (s *SyntheticSource) Seek(t float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = t
	if s.now > s.duration {
		s.now = s.duration
	}
}

// SetAutoAdvance makes the clock step forward by dt seconds after every
// Frame call while playing, decoupling simulated playback from wall time.
func (s *SyntheticSource) SetAutoAdvance(dt float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoStep = dt
}

// FailNextFrame makes the next Frame call return err once.
func (s *SyntheticSource) FailNextFrame(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frameErr = err
}

func (s *SyntheticSource) CurrentTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *SyntheticSource) Duration() float64 { return s.duration }

func (s *SyntheticSource) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now >= s.duration
}

func (s *SyntheticSource) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.playing
}

func (s *SyntheticSource) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frameErr != nil {
		err := s.frameErr
		s.frameErr = nil
		return nil, err
	}

	var current image.Image
	for _, seg := range s.segments {
		if seg.Start <= s.now {
			current = seg.Image
		}
	}
	if current == nil {
		return nil, fmt.Errorf("no segment covers t=%f", s.now)
	}

	if s.playing && s.autoStep > 0 {
		s.now += s.autoStep
		if s.now > s.duration {
			s.now = s.duration
		}
	}
	return current, nil
}

// SolidImage returns a w×h frame filled with a single color.
func SolidImage(w, h int, c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}
