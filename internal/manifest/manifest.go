// Package manifest builds the terminal index artifact from processed scenes.
package manifest

import (
	"sort"
	"strings"
	"time"

	"github.com/kelvinpraises/vidrune/internal/models"
)

// SceneEntry is one indexed scene: its caption plus extracted keywords.
type SceneEntry struct {
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

// SearchableContent carries the text fields a search indexer consumes
// verbatim.
type SearchableContent struct {
	Transcription     string `json:"transcription"`
	SceneDescriptions string `json:"sceneDescriptions"`
	TTSContent        string `json:"ttsContent"`
}

// Manifest is the terminal artifact of an index run.
type Manifest struct {
	ID                string            `json:"id"`
	Title             string            `json:"title"`
	UploadedBy        string            `json:"uploadedBy"`
	Description       string            `json:"description"`
	UploadTime        time.Time         `json:"uploadTime"`
	Scenes            []SceneEntry      `json:"scenes"`
	SearchableContent SearchableContent `json:"searchableContent"`
}

// Meta identifies the video a manifest describes.
type Meta struct {
	ID          string
	Title       string
	UploadedBy  string
	Description string
	UploadTime  time.Time
}

// Build projects processed scenes into a manifest. Scenes are ordered by
// timestamp; unprocessed scenes are excluded so the manifest length always
// equals the processed count.
func Build(meta Meta, scenes []*models.Scene) Manifest {
	processed := make([]*models.Scene, 0, len(scenes))
	for _, s := range scenes {
		if s.Processed {
			processed = append(processed, s)
		}
	}
	sort.Slice(processed, func(i, j int) bool {
		return processed[i].Timestamp < processed[j].Timestamp
	})

	entries := make([]SceneEntry, 0, len(processed))
	captions := make([]string, 0, len(processed))
	for _, s := range processed {
		entries = append(entries, SceneEntry{
			Description: s.Caption,
			Keywords:    ExtractKeywords(s.Caption, MaxKeywordsPerScene),
		})
		captions = append(captions, s.Caption)
	}

	joined := strings.Join(captions, " ")

	return Manifest{
		ID:          meta.ID,
		Title:       meta.Title,
		UploadedBy:  meta.UploadedBy,
		Description: meta.Description,
		UploadTime:  meta.UploadTime,
		Scenes:      entries,
		SearchableContent: SearchableContent{
			Transcription:     joined,
			SceneDescriptions: joined,
			TTSContent:        joined,
		},
	}
}
