// Package subtitle renders scene captions as SubRip (SRT) text.
package subtitle

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kelvinpraises/vidrune/internal/models"
)

// DefaultDisplaySeconds is how long a caption stays on screen, clipped so
// it never overlaps the next caption.
const DefaultDisplaySeconds = 3.0

// Entry is one numbered SRT block.
type Entry struct {
	Index int
	Start float64
	End   float64
	Text  string
}

// FromScenes builds entries in timestamp order. Entry i ends at
// min(start+3, start of entry i+1); the final entry always gets the full
// display window.
func FromScenes(scenes []*models.Scene) []Entry {
	sorted := make([]*models.Scene, len(scenes))
	copy(sorted, scenes)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	entries := make([]Entry, 0, len(sorted))
	for i, scene := range sorted {
		end := scene.Timestamp + DefaultDisplaySeconds
		if i < len(sorted)-1 && sorted[i+1].Timestamp < end {
			end = sorted[i+1].Timestamp
		}
		entries = append(entries, Entry{
			Index: i + 1,
			Start: scene.Timestamp,
			End:   end,
			Text:  scene.Caption,
		})
	}
	return entries
}

// Render serializes entries as SRT text.
func Render(entries []Entry) string {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			e.Index, FormatTimestamp(e.Start), FormatTimestamp(e.End), e.Text)
	}
	return b.String()
}

// Generate is the one-shot scenes → SRT projection.
func Generate(scenes []*models.Scene) string {
	return Render(FromScenes(scenes))
}

// FormatTimestamp renders seconds as the SRT HH:MM:SS,mmm form.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	millis := int(seconds*1000 + 0.5)
	h := millis / 3600000
	m := millis % 3600000 / 60000
	s := millis % 60000 / 1000
	ms := millis % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
