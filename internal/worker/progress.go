package worker

import "math"

// Response status values for the load lifecycle.
const (
	StatusLoading  = "loading"
	StatusInitiate = "initiate"
	StatusProgress = "progress"
	StatusDone     = "done"
	StatusReady    = "ready"
)

// ProgressEvent describes one step of the model load lifecycle. File-level
// events (initiate/progress/done) carry byte counts for that file.
type ProgressEvent struct {
	Status string `json:"status"`
	File   string `json:"file,omitempty"`
	Loaded int64  `json:"loaded,omitempty"`
	Total  int64  `json:"total,omitempty"`
}

// ProgressAggregator folds per-file byte progress into one overall figure:
// sum of loaded over sum of total across every file seen so far, recomputed
// on each event.
type ProgressAggregator struct {
	loaded map[string]int64
	total  map[string]int64
}

func NewProgressAggregator() *ProgressAggregator {
	return &ProgressAggregator{
		loaded: make(map[string]int64),
		total:  make(map[string]int64),
	}
}

// Observe folds in one event and returns the overall percentage (0-100).
func (a *ProgressAggregator) Observe(ev ProgressEvent) int {
	switch ev.Status {
	case StatusInitiate:
		a.loaded[ev.File] = 0
		if ev.Total > 0 {
			a.total[ev.File] = ev.Total
		}
	case StatusProgress:
		a.loaded[ev.File] = ev.Loaded
		if ev.Total > 0 {
			a.total[ev.File] = ev.Total
		}
	case StatusDone:
		if t, ok := a.total[ev.File]; ok {
			a.loaded[ev.File] = t
		} else if ev.Total > 0 {
			a.total[ev.File] = ev.Total
			a.loaded[ev.File] = ev.Total
		}
	case StatusReady:
		for file, t := range a.total {
			a.loaded[file] = t
		}
	}
	return a.Percentage()
}

// Percentage returns rounded overall progress across all observed files.
func (a *ProgressAggregator) Percentage() int {
	var loaded, total int64
	for file, t := range a.total {
		total += t
		loaded += a.loaded[file]
	}
	if total == 0 {
		return 0
	}
	pct := int(math.Round(float64(loaded) / float64(total) * 100))
	if pct > 100 {
		pct = 100
	}
	return pct
}
