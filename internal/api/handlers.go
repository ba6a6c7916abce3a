// Package api exposes the catalog and the indexing engine over a JSON HTTP
// surface.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kelvinpraises/vidrune/internal/database"
	"github.com/kelvinpraises/vidrune/internal/engine"
	"github.com/kelvinpraises/vidrune/internal/logger"
	"github.com/kelvinpraises/vidrune/internal/models"
	"github.com/kelvinpraises/vidrune/internal/storage"
)

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

type App struct {
	Storage       storage.Storage
	VideoRepo     *database.VideoRepository
	RunRepo       *database.RunRepository
	Engine        *engine.Service
	Log           logger.Logger
	MaxUploadSize int64
}

// fileModTime reports the modification time when the store hands out real
// files. Other ReadSeekCloser implementations get the zero time, which
// ServeContent treats as unknown.
func fileModTime(file io.ReadSeekCloser) (time.Time, error) {
	statter, ok := file.(interface{ Stat() (os.FileInfo, error) })
	if !ok {
		return time.Time{}, nil
	}
	stat, err := statter.Stat()
	if err != nil {
		return time.Time{}, err
	}
	return stat.ModTime(), nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// UploadHandler accepts a multipart video upload and registers it in the
// catalog. Only MP4 content is admitted.
func (app *App) UploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, app.MaxUploadSize)

	if err := r.ParseMultipartForm(app.MaxUploadSize); err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to get file")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "video/") && contentType != "application/octet-stream" {
		ext := strings.ToLower(filepath.Ext(header.Filename))
		if ext != ".mp4" {
			respondError(w, http.StatusUnsupportedMediaType, "only MP4 video files are allowed")
			return
		}
		contentType = "video/mp4"
	}

	title := r.FormValue("title")
	if title == "" {
		respondError(w, http.StatusBadRequest, "title is required")
		return
	}

	description := r.FormValue("description")
	uploadedBy := r.FormValue("uploadedBy")

	filename, err := app.Storage.SaveFile(file, storage.FileInfo{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to save file")
		return
	}

	video := models.NewVideo(title, description, uploadedBy, filename, contentType, header.Size)
	if err := app.VideoRepo.InsertVideo(video); err != nil {
		app.Storage.DeleteFile(filename)
		respondError(w, http.StatusInternalServerError, "failed to save video information")
		return
	}

	respondJSON(w, http.StatusCreated, video)
}

func (app *App) ListVideosHandler(w http.ResponseWriter, r *http.Request) {
	videos, err := app.VideoRepo.ListVideos()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "error loading videos")
		return
	}
	respondJSON(w, http.StatusOK, videos)
}

func (app *App) SearchVideosHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		respondError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}

	videos, err := app.VideoRepo.SearchVideos(query)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "error searching videos")
		return
	}
	respondJSON(w, http.StatusOK, videos)
}

func (app *App) GetVideoHandler(w http.ResponseWriter, r *http.Request) {
	video, err := app.VideoRepo.GetVideoByID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "video not found")
		return
	}
	respondJSON(w, http.StatusOK, video)
}

// StreamVideoHandler serves the raw video file with Range support.
func (app *App) StreamVideoHandler(w http.ResponseWriter, r *http.Request) {
	video, err := app.VideoRepo.GetVideoByID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "video not found")
		return
	}

	file, err := app.Storage.OpenFile(video.Filename)
	if err != nil {
		respondError(w, http.StatusNotFound, "video file not found")
		return
	}
	defer file.Close()

	modTime, err := fileModTime(file)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "error accessing video file")
		return
	}

	w.Header().Set("Content-Type", video.ContentType)
	// ServeContent handles Range requests, Accept-Ranges and 206 responses.
	http.ServeContent(w, r, video.Filename, modTime, file)
}

// StartIndexHandler launches an index run over the video. At most one run
// is live at a time; a second request gets 409.
func (app *App) StartIndexHandler(w http.ResponseWriter, r *http.Request) {
	runID, err := app.Engine.StartIndex(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, engine.ErrRunInProgress) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		respondError(w, http.StatusNotFound, "video not found")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"runId": runID})
}

// RunStatusHandler reports a run: the live snapshot while it executes, the
// persisted record afterwards.
func (app *App) RunStatusHandler(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	if snap, ok := app.Engine.RunStatus(runID); ok {
		respondJSON(w, http.StatusOK, map[string]any{
			"runId":        runID,
			"stage":        snap.Stage,
			"percentage":   snap.Percentage,
			"progress":     snap.Progress.Label,
			"modelsLoaded": snap.ModelsLoaded,
			"sceneCount":   snap.SceneCount,
			"error":        snap.Error,
		})
		return
	}

	run, err := app.RunRepo.GetRunByID(runID)
	if err != nil {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}
	respondJSON(w, http.StatusOK, run)
}

func (app *App) StopRunHandler(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	if _, ok := app.Engine.RunStatus(runID); !ok {
		respondError(w, http.StatusNotFound, "no live run with that id")
		return
	}
	app.Engine.StopActiveRun()
	respondJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// ManifestHandler returns the manifest of the latest completed run.
func (app *App) ManifestHandler(w http.ResponseWriter, r *http.Request) {
	run, err := app.RunRepo.LatestRunForVideo(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "error loading run")
		return
	}
	if run == nil || run.Manifest == "" {
		respondError(w, http.StatusNotFound, "no manifest available")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(run.Manifest))
}

// CaptionsHandler returns the SRT of the latest completed run.
func (app *App) CaptionsHandler(w http.ResponseWriter, r *http.Request) {
	run, err := app.RunRepo.LatestRunForVideo(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "error loading run")
		return
	}
	if run == nil || run.SRT == "" {
		respondError(w, http.StatusNotFound, "no captions available")
		return
	}

	w.Header().Set("Content-Type", "application/x-subrip")
	w.Write([]byte(run.SRT))
}

// ArchiveHandler serves the packed artifact archive of a finished run.
func (app *App) ArchiveHandler(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	if _, err := app.RunRepo.GetRunByID(runID); err != nil {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}

	file, err := app.Storage.OpenFile(runID + ".zip")
	if err != nil {
		respondError(w, http.StatusNotFound, "archive not found")
		return
	}
	defer file.Close()

	modTime, err := fileModTime(file)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "error accessing archive")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+runID+`.zip"`)
	http.ServeContent(w, r, runID+".zip", modTime, file)
}
