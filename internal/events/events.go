// Package events publishes index-run status updates for external observers.
package events

import (
	"github.com/kelvinpraises/vidrune/internal/pipeline"
)

// StatusUpdate is the wire shape of one run status event.
type StatusUpdate struct {
	RunID      string `json:"run_id"`
	VideoID    string `json:"video_id"`
	Stage      string `json:"stage"`
	Label      string `json:"label"`
	Current    int    `json:"current"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
	SceneCount int    `json:"scene_count"`
	Error      string `json:"error,omitempty"`
}

// FromSnapshot projects a pipeline snapshot into a status update.
func FromSnapshot(runID, videoID string, snap pipeline.Snapshot) StatusUpdate {
	return StatusUpdate{
		RunID:      runID,
		VideoID:    videoID,
		Stage:      string(snap.Stage),
		Label:      snap.Progress.Label,
		Current:    snap.Progress.Current,
		Total:      snap.Progress.Total,
		Percentage: snap.Percentage,
		SceneCount: snap.SceneCount,
		Error:      snap.Error,
	}
}

// Publisher delivers status updates. Delivery is best effort; the pipeline
// never blocks on a slow consumer.
type Publisher interface {
	PublishStatus(update StatusUpdate) error
	Close() error
}

// NoopPublisher drops every update. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishStatus(StatusUpdate) error { return nil }
func (NoopPublisher) Close() error                     { return nil }
