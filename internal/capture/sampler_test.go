package capture

import (
	"context"
	"errors"
	"image/color"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kelvinpraises/vidrune/internal/logger"
	"github.com/kelvinpraises/vidrune/internal/media"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Interval = time.Millisecond
	return cfg
}

func runSampler(t *testing.T, s *Sampler, timeout time.Duration) int32 {
	t.Helper()

	var endCount atomic.Int32
	done := make(chan struct{})
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	go func() {
		s.Run(ctx, func() { endCount.Add(1) })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout + time.Second):
		t.Fatal("Sampler did not stop in time")
	}
	return endCount.Load()
}

func TestSampler_CapturesNovelFramesOnly(t *testing.T) {
	red := media.SolidImage(32, 16, color.RGBA{255, 0, 0, 255})
	blue := media.SolidImage(32, 16, color.RGBA{0, 0, 255, 255})

	source := media.NewSyntheticSource(4.0, []media.Segment{
		{Start: 0, Image: red},
		{Start: 2, Image: blue},
	})
	source.SetAutoAdvance(0.5)
	source.Play()

	buffer := NewBuffer()
	s := NewSampler(testConfig(), source, buffer, logger.NewNop())

	ends := runSampler(t, s, 2*time.Second)

	if ends != 1 {
		t.Errorf("onEnd fired %d times, want 1", ends)
	}

	scenes := buffer.Scenes()
	if len(scenes) != 2 {
		t.Fatalf("Captured %d scenes, want 2 (red and blue)", len(scenes))
	}
	if scenes[0].Timestamp != 0 {
		t.Errorf("First scene at t=%v, want 0", scenes[0].Timestamp)
	}
	if scenes[1].Timestamp < 2 {
		t.Errorf("Second scene at t=%v, want >= 2", scenes[1].Timestamp)
	}
	for i, scene := range scenes {
		if len(scene.Image) == 0 {
			t.Errorf("scenes[%d] has no encoded image", i)
		}
	}
}

func TestSampler_BlackFrameGate(t *testing.T) {
	black := media.SolidImage(32, 16, color.RGBA{0, 0, 0, 255})
	red := media.SolidImage(32, 16, color.RGBA{255, 0, 0, 255})

	// Black lead-in, content, then black again. The trailing black frame is
	// a legitimate novelty once a valid frame has been seen.
	source := media.NewSyntheticSource(3.0, []media.Segment{
		{Start: 0, Image: black},
		{Start: 1, Image: red},
		{Start: 2, Image: black},
	})
	source.SetAutoAdvance(0.5)
	source.Play()

	buffer := NewBuffer()
	s := NewSampler(testConfig(), source, buffer, logger.NewNop())
	runSampler(t, s, 2*time.Second)

	scenes := buffer.Scenes()
	if len(scenes) != 2 {
		t.Fatalf("Captured %d scenes, want 2 (red, then trailing black)", len(scenes))
	}
	if scenes[0].Timestamp < 1 {
		t.Errorf("First scene at t=%v; leading black frames should have been dropped", scenes[0].Timestamp)
	}
	if scenes[1].Timestamp < 2 {
		t.Errorf("Second scene at t=%v, want the trailing black frame at >= 2", scenes[1].Timestamp)
	}
}

func TestSampler_FrameErrorSkipsTick(t *testing.T) {
	red := media.SolidImage(32, 16, color.RGBA{255, 0, 0, 255})

	source := media.NewSyntheticSource(2.0, []media.Segment{{Start: 0, Image: red}})
	source.SetAutoAdvance(0.5)
	source.FailNextFrame(errors.New("decode failed"))
	source.Play()

	buffer := NewBuffer()
	s := NewSampler(testConfig(), source, buffer, logger.NewNop())
	ends := runSampler(t, s, 2*time.Second)

	if ends != 1 {
		t.Errorf("onEnd fired %d times, want 1", ends)
	}
	if buffer.Len() != 1 {
		t.Errorf("Captured %d scenes, want 1 despite the failed tick", buffer.Len())
	}
}

func TestSampler_PausedSourceEndsRun(t *testing.T) {
	red := media.SolidImage(32, 16, color.RGBA{255, 0, 0, 255})
	source := media.NewSyntheticSource(10.0, []media.Segment{{Start: 0, Image: red}})
	// Never played: the first tick observes Paused and signals end.

	buffer := NewBuffer()
	s := NewSampler(testConfig(), source, buffer, logger.NewNop())
	ends := runSampler(t, s, time.Second)

	if ends != 1 {
		t.Errorf("onEnd fired %d times, want 1", ends)
	}
	if buffer.Len() != 0 {
		t.Errorf("Captured %d scenes from a paused source, want 0", buffer.Len())
	}
}

func TestSampler_ResetClearsEndLatch(t *testing.T) {
	red := media.SolidImage(32, 16, color.RGBA{255, 0, 0, 255})
	source := media.NewSyntheticSource(1.0, []media.Segment{{Start: 0, Image: red}})
	source.SetAutoAdvance(0.5)
	source.Play()

	buffer := NewBuffer()
	s := NewSampler(testConfig(), source, buffer, logger.NewNop())
	runSampler(t, s, time.Second)

	s.Reset()
	source.Seek(0)
	source.Play()

	ends := runSampler(t, s, time.Second)
	if ends != 1 {
		t.Errorf("onEnd after Reset fired %d times, want 1", ends)
	}
}
