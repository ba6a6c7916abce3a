package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileSource plays a local video file on a wall-clock. Frames are
// rasterized on demand with ffmpeg at the clock's current position.
type FileSource struct {
	path        string
	ffmpegPath  string
	ffprobePath string
	frameSize   int
	tempDir     string
	duration    float64

	mu       sync.Mutex
	playing  bool
	startAt  time.Time // wall clock instant Play was called
	position float64   // accumulated position while paused
	rate     float64   // playback speed multiplier
}

// NewFileSource probes the file's duration and prepares a frame scratch dir.
func NewFileSource(path, ffmpegPath, ffprobePath string, frameSize int) (*FileSource, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("video file not accessible: %w", err)
	}

	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}

	resolved, err := exec.LookPath(ffmpegPath)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	tempDir := filepath.Join(os.TempDir(), "vidrune-frames", uuid.New().String())
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	fs := &FileSource{
		path:        path,
		ffmpegPath:  resolved,
		ffprobePath: ffprobePath,
		frameSize:   frameSize,
		tempDir:     tempDir,
		rate:        1.0,
	}

	duration, err := fs.probeDuration()
	if err != nil {
		return nil, err
	}
	if duration <= 0 {
		return nil, fmt.Errorf("invalid video duration: %f", duration)
	}
	fs.duration = duration

	return fs, nil
}

// SetRate changes the playback speed multiplier. Useful for indexing faster
// than realtime. Must be called before Play.
func (fs *FileSource) SetRate(rate float64) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if rate > 0 {
		fs.rate = rate
	}
}

func (fs *FileSource) Play() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.playing {
		return nil
	}
	fs.playing = true
	fs.startAt = time.Now()
	return nil
}

func (fs *FileSource) Pause() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if !fs.playing {
		return nil
	}
	fs.position = fs.currentLocked()
	fs.playing = false
	return nil
}

func (fs *FileSource) CurrentTime() float64 {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.currentLocked()
}

func (fs *FileSource) currentLocked() float64 {
	pos := fs.position
	if fs.playing {
		pos += time.Since(fs.startAt).Seconds() * fs.rate
	}
	if pos > fs.duration {
		pos = fs.duration
	}
	return pos
}

func (fs *FileSource) Duration() float64 { return fs.duration }

func (fs *FileSource) Ended() bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.currentLocked() >= fs.duration
}

func (fs *FileSource) Paused() bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return !fs.playing
}

// Frame extracts and decodes the frame at the current playback position.
func (fs *FileSource) Frame() (image.Image, error) {
	timestamp := fs.CurrentTime()

	tempFile := filepath.Join(fs.tempDir, fmt.Sprintf("frame_%f.jpg", timestamp))
	defer os.Remove(tempFile)

	args := []string{
		"-ss", fmt.Sprintf("%.3f", timestamp),
		"-i", fs.path,
		"-vframes", "1",
		"-vf", fmt.Sprintf("scale='min(%d,iw)':-2", fs.frameSize),
		"-q:v", "2",
		"-f", "mjpeg",
		tempFile,
	}

	cmd := exec.Command(fs.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("failed to extract frame at %f: %w (%s)", timestamp, err, strings.TrimSpace(stderr.String()))
	}

	f, err := os.Open(tempFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open extracted frame: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}

	return img, nil
}

// Cleanup removes the frame scratch directory.
func (fs *FileSource) Cleanup() error {
	return os.RemoveAll(fs.tempDir)
}

func (fs *FileSource) probeDuration() (float64, error) {
	// ffprobe is the reliable path; fall back to parsing ffmpeg output.
	if probePath, err := exec.LookPath(fs.ffprobePath); err == nil {
		cmd := exec.Command(probePath,
			"-v", "error",
			"-show_entries", "format=duration",
			"-of", "default=noprint_wrappers=1:nokey=1",
			fs.path)

		var stdout bytes.Buffer
		cmd.Stdout = &stdout

		if err := cmd.Run(); err == nil {
			durationStr := strings.TrimSpace(stdout.String())
			if duration, err := strconv.ParseFloat(durationStr, 64); err == nil && duration > 0 {
				return duration, nil
			}
		}
	}

	cmd := exec.Command(fs.ffmpegPath, "-i", fs.path, "-f", "null", "-")

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	_ = cmd.Run()

	output := stderr.String()
	durationPrefix := "Duration: "
	startIndex := strings.Index(output, durationPrefix)
	if startIndex == -1 {
		return 0, fmt.Errorf("duration not found in ffmpeg output")
	}

	startIndex += len(durationPrefix)
	endIndex := strings.Index(output[startIndex:], ",")
	if endIndex == -1 {
		return 0, fmt.Errorf("invalid duration format")
	}

	return parseClockDuration(output[startIndex : startIndex+endIndex])
}

func parseClockDuration(s string) (float64, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid duration format: %s", s)
	}

	hours, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, err
	}
	minutes, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, err
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, err
	}

	return hours*3600 + minutes*60 + seconds, nil
}
