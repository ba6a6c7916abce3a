package capture

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"sync"
	"time"

	"github.com/kelvinpraises/vidrune/internal/logger"
	"github.com/kelvinpraises/vidrune/internal/media"
	"github.com/kelvinpraises/vidrune/internal/models"
)

// Config tunes the sampling loop.
type Config struct {
	Interval            time.Duration
	GridCols            int
	GridRows            int
	SimilarityThreshold float64
	DarknessThreshold   float64
	BlackCellRatio      float64
}

// DefaultConfig matches the reference pipeline: 500ms polling over an
// 8×4 grid.
func DefaultConfig() Config {
	return Config{
		Interval:            500 * time.Millisecond,
		GridCols:            8,
		GridRows:            4,
		SimilarityThreshold: 25.0,
		DarknessThreshold:   30.0,
		BlackCellRatio:      0.9,
	}
}

// Sampler polls a playing source on a fixed interval and appends novel
// frames to the scene buffer. It signals end-of-media exactly once per run.
type Sampler struct {
	cfg    Config
	source media.Source
	buffer *Buffer
	log    logger.Logger

	mu       sync.Mutex
	ref      Fingerprint
	hasValid bool
	ended    bool
}

func NewSampler(cfg Config, source media.Source, buffer *Buffer, log logger.Logger) *Sampler {
	return &Sampler{cfg: cfg, source: source, buffer: buffer, log: log}
}

// Run polls until end-of-media is observed or ctx is canceled. onEnd fires
// exactly once per run, from the polling goroutine.
func (s *Sampler) Run(ctx context.Context, onEnd func()) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if done := s.tick(); done {
				s.signalEnd(onEnd)
				return
			}
		}
	}
}

// Reset clears the transient run flags (reference vector, black-frame gate,
// end latch) without touching the buffer.
func (s *Sampler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ref = nil
	s.hasValid = false
	s.ended = false
}

// tick samples one frame. Returns true once the source has ended or was
// paused out from under the poll loop.
func (s *Sampler) tick() bool {
	if s.source.Ended() || s.source.Paused() {
		return true
	}

	timestamp := s.source.CurrentTime()

	img, err := s.source.Frame()
	if err != nil {
		// Rasterization failures skip the tick; sampling continues.
		s.log.Warn("frame rasterization failed, skipping tick",
			logger.Float64("timestamp", timestamp), logger.Error(err))
		return false
	}

	fp := ComputeFingerprint(img, s.cfg.GridCols, s.cfg.GridRows)

	s.mu.Lock()
	defer s.mu.Unlock()

	// Black frames are dropped until the first valid frame of the run;
	// after that a black frame is an ordinary novelty candidate.
	if !s.hasValid && fp.DarkCellRatio(s.cfg.DarknessThreshold) >= s.cfg.BlackCellRatio {
		s.log.Debug("black frame dropped before first valid frame",
			logger.Float64("timestamp", timestamp))
		return false
	}

	if s.ref != nil && s.ref.Distance(fp) <= s.cfg.SimilarityThreshold {
		// Similar frame: discard, but advance the reference vector.
		s.ref = fp
		return false
	}

	encoded, err := encodePNG(img)
	if err != nil {
		s.log.Warn("scene encode failed, skipping tick",
			logger.Float64("timestamp", timestamp), logger.Error(err))
		return false
	}

	scene := &models.Scene{Timestamp: timestamp, Image: encoded}
	if s.buffer.Add(scene) {
		s.log.Debug("scene captured",
			logger.Float64("timestamp", timestamp),
			logger.Int("scenes", s.buffer.Len()))
	}

	s.ref = fp
	s.hasValid = true
	return false
}

func (s *Sampler) signalEnd(onEnd func()) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.mu.Unlock()

	s.log.Info("source playback ended", logger.Int("scenes", s.buffer.Len()))
	if onEnd != nil {
		onEnd()
	}
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
