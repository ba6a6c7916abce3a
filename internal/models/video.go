// Package models holds the shared domain types of the indexing engine.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Index status values a video moves through. Mirrors the product's
// server-side index lifecycle.
const (
	IndexStatusNone     = "not_indexed"
	IndexStatusQueued   = "queued"
	IndexStatusIndexing = "indexing"
	IndexStatusIndexed  = "indexed"
	IndexStatusError    = "error"
)

// Video is one uploaded source video in the catalog.
type Video struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	UploadedBy  string    `json:"uploadedBy"`
	Filename    string    `json:"-"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	UploadTime  time.Time `json:"uploadTime"`
	IndexStatus string    `json:"indexStatus"`
}

func NewVideo(title, description, uploadedBy, filename, contentType string, size int64) *Video {
	return &Video{
		ID:          uuid.New().String(),
		Title:       title,
		Description: description,
		UploadedBy:  uploadedBy,
		Filename:    filename,
		ContentType: contentType,
		Size:        size,
		UploadTime:  time.Now().UTC(),
		IndexStatus: IndexStatusNone,
	}
}

// IndexRun is one completed (or failed) pipeline run over a video.
type IndexRun struct {
	ID         string    `json:"id"`
	VideoID    string    `json:"videoId"`
	Status     string    `json:"status"`
	SceneCount int       `json:"sceneCount"`
	Manifest   string    `json:"-"` // manifest JSON
	SRT        string    `json:"-"` // rendered subtitle text
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}
