// Command index-video runs the full indexing pipeline over one local video
// file and writes the artifact archive, without going through the server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelvinpraises/vidrune/internal/capture"
	"github.com/kelvinpraises/vidrune/internal/config"
	"github.com/kelvinpraises/vidrune/internal/hub"
	"github.com/kelvinpraises/vidrune/internal/logger"
	"github.com/kelvinpraises/vidrune/internal/manifest"
	"github.com/kelvinpraises/vidrune/internal/media"
	"github.com/kelvinpraises/vidrune/internal/pipeline"
	"github.com/kelvinpraises/vidrune/internal/speech"
	"github.com/kelvinpraises/vidrune/internal/vision"
)

func main() {
	var (
		videoPath = flag.String("file", "", "Path to the video file to index")
		outPath   = flag.String("out", "", "Output archive path (defaults to <file>.zip)")
		title     = flag.String("title", "", "Video title for the manifest")
		timeout   = flag.Duration("timeout", 30*time.Minute, "Overall run timeout")
	)
	flag.Parse()

	if *videoPath == "" {
		log.Fatal("Please provide a video file with -file")
	}
	if *outPath == "" {
		*outPath = strings.TrimSuffix(*videoPath, filepath.Ext(*videoPath)) + ".zip"
	}
	if *title == "" {
		*title = filepath.Base(*videoPath)
	}

	cfg := config.Load()
	l := logger.New(cfg.LogLevel, "index-video")

	source, err := media.NewFileSource(*videoPath, cfg.FFmpegPath, cfg.FFprobePath, cfg.FrameSize)
	if err != nil {
		log.Fatal("Failed to open video:", err)
	}
	defer source.Cleanup()
	source.SetRate(cfg.IndexRate)

	fetcher := hub.NewFetcher(cfg.ModelHubURL, cfg.ModelCache)
	captionWorker := vision.NewWorker(
		vision.NewRuntimeCaptioner(vision.DefaultModelID, fetcher, vision.NewRuntimeClient(cfg.CaptionEndpoint), l),
		cfg.WorkerCallTimeout, l)
	speechWorker := speech.NewWorker(
		speech.NewRuntimeSynthesizer(speech.DefaultModelID, fetcher, speech.NewRuntimeClient(cfg.SpeechEndpoint), l),
		cfg.DefaultVoice, cfg.WorkerCallTimeout, l)

	done := make(chan pipeline.Snapshot, 1)
	orch := pipeline.New(pipeline.Options{
		Source: source,
		CaptureConfig: capture.Config{
			Interval:            cfg.PollInterval,
			GridCols:            cfg.GridCols,
			GridRows:            cfg.GridRows,
			SimilarityThreshold: cfg.SimilarityThreshold,
			DarknessThreshold:   cfg.DarknessThreshold,
			BlackCellRatio:      cfg.BlackCellRatio,
		},
		CaptionWorker: captionWorker,
		SpeechWorker:  speechWorker,
		Voice:         cfg.DefaultVoice,
		Logger:        l,
		OnUpdate: func(snap pipeline.Snapshot) {
			fmt.Printf("\r%-24s %3d%%", snap.Progress.Label, snap.Percentage)
			if snap.Stage == pipeline.StageComplete || snap.Error != "" {
				select {
				case done <- snap:
				default:
				}
			}
		},
	})
	defer orch.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := orch.LoadModels(ctx); err != nil {
		fmt.Println()
		log.Fatal("Failed to load models:", err)
	}
	if err := orch.Start(ctx); err != nil {
		fmt.Println()
		log.Fatal("Failed to start run:", err)
	}

	var snap pipeline.Snapshot
	select {
	case snap = <-done:
	case <-ctx.Done():
		fmt.Println()
		log.Fatal("Run timed out")
	}
	fmt.Println()

	if snap.Error != "" {
		log.Fatal("Run failed: ", snap.Error)
	}

	videoFile, err := os.Open(*videoPath)
	if err != nil {
		log.Fatal("Failed to reopen video:", err)
	}
	defer videoFile.Close()

	out, err := os.Create(*outPath)
	if err != nil {
		log.Fatal("Failed to create archive:", err)
	}
	defer out.Close()

	meta := manifest.Meta{Title: *title, UploadTime: time.Now().UTC()}
	if err := orch.WriteArchive(out, videoFile, meta); err != nil {
		log.Fatal("Failed to write archive:", err)
	}

	fmt.Printf("Indexed %d scenes -> %s\n", snap.SceneCount, *outPath)
}
