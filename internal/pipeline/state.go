package pipeline

import (
	"fmt"
	"math"
)

// Stage is the pipeline's current phase. Stages move strictly forward;
// only explicit stop/reset returns to idle.
type Stage string

const (
	StageIdle            Stage = "idle"
	StageCapturing       Stage = "capturing"
	StageCaptioning      Stage = "captioning"
	StageGeneratingAudio Stage = "generating-audio"
	StageComplete        Stage = "complete"
)

// forward holds the legal forward transitions. Returning to idle is always
// legal via stop/reset and is not part of this table.
var forward = map[Stage]Stage{
	StageIdle:            StageCapturing,
	StageCapturing:       StageCaptioning,
	StageCaptioning:      StageGeneratingAudio,
	StageGeneratingAudio: StageComplete,
}

// canAdvance reports whether from → to is a legal forward step.
func canAdvance(from, to Stage) bool {
	return forward[from] == to
}

// ErrIllegalTransition marks an attempted stage jump the state machine
// forbids.
type ErrIllegalTransition struct {
	From, To Stage
}

func (e *ErrIllegalTransition) Error() string {
	return fmt.Sprintf("pipeline: illegal transition %s -> %s", e.From, e.To)
}

// Progress is the user-facing figure for the active stage. Total is fixed
// at stage entry.
type Progress struct {
	Label   string `json:"label"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
}

// Percentage returns round(current/total*100), or 0 with no total.
func (p Progress) Percentage() int {
	if p.Total == 0 {
		return 0
	}
	return int(math.Round(float64(p.Current) / float64(p.Total) * 100))
}

// ModelsLoaded tracks which worker models finished loading. Retained across
// reset: models are expensive and deliberately kept alive between runs.
type ModelsLoaded struct {
	CaptionModel bool `json:"captionModel"`
	TTSModel     bool `json:"ttsModel"`
}

// Snapshot is a point-in-time copy of the run state, safe to hand to
// callers and event publishers.
type Snapshot struct {
	Stage        Stage        `json:"stage"`
	Progress     Progress     `json:"progress"`
	Percentage   int          `json:"percentage"`
	ModelsLoaded ModelsLoaded `json:"modelsLoaded"`
	SceneCount   int          `json:"sceneCount"`
	Error        string       `json:"error,omitempty"`
}
