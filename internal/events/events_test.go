package events

import (
	"testing"

	"github.com/kelvinpraises/vidrune/internal/pipeline"
)

func TestFromSnapshot(t *testing.T) {
	snap := pipeline.Snapshot{
		Stage:      pipeline.StageCaptioning,
		Progress:   pipeline.Progress{Label: "Generating captions", Current: 2, Total: 4},
		Percentage: 50,
		SceneCount: 4,
	}

	update := FromSnapshot("run-1", "vid-1", snap)

	if update.RunID != "run-1" || update.VideoID != "vid-1" {
		t.Errorf("IDs not carried: %+v", update)
	}
	if update.Stage != "captioning" {
		t.Errorf("Stage = %q, want captioning", update.Stage)
	}
	if update.Current != 2 || update.Total != 4 || update.Percentage != 50 {
		t.Errorf("Progress fields wrong: %+v", update)
	}
	if update.Error != "" {
		t.Errorf("Error = %q, want empty", update.Error)
	}
}
